package services

import (
	"sort"

	"badge-draw-system/errs"
	"badge-draw-system/models"

	"gorm.io/gorm"
)

// RankingService orders persisted draw results and selects the ownership sets
// that feed batch evaluation.
type RankingService struct {
	DB *gorm.DB
}

func NewRankingService(db *gorm.DB) *RankingService {
	return &RankingService{DB: db}
}

// RankWithTies orders results by similarity score descending, breaking ties
// by evaluated_at then id ascending. With a limit, entries tied with the
// cutoff score are all included, so the output may exceed the limit. Every
// result must carry a score.
func (s *RankingService) RankWithTies(results []models.DrawResult, limit *int) ([]models.DrawResult, error) {
	if limit != nil && *limit < 0 {
		return nil, errs.Validationf("limit_negative", "limit must not be negative")
	}
	for i := range results {
		if results[i].SimilarityScore == nil {
			return nil, errs.Validationf("result_missing_score",
				"result %s has no similarity score and cannot be ranked", results[i].ID)
		}
	}

	ranked := make([]models.DrawResult, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := &ranked[i], &ranked[j]
		if *a.SimilarityScore != *b.SimilarityScore {
			return *a.SimilarityScore > *b.SimilarityScore
		}
		if !a.EvaluatedAt.Equal(b.EvaluatedAt) {
			return a.EvaluatedAt.Before(b.EvaluatedAt)
		}
		return a.ID < b.ID
	})

	if limit == nil {
		return ranked, nil
	}
	if *limit == 0 {
		return []models.DrawResult{}, nil
	}
	if *limit >= len(ranked) {
		return ranked, nil
	}

	// Extend past the limit while entries still match the cutoff score.
	cutoff := *ranked[*limit-1].SimilarityScore
	end := *limit
	for end < len(ranked) && *ranked[end].SimilarityScore == cutoff {
		end++
	}
	return ranked[:end], nil
}

// SelectTopByScore returns the top results persisted for the draw type and
// winning number, capped at limit. When winningNumber is nil the latest
// recorded number is used; having none is an error. Pending rows are excluded
// when includePending is false.
func (s *RankingService) SelectTopByScore(drawType *models.DrawType, winningNumber *models.WinningNumber, limit int, includePending bool) ([]models.DrawResult, error) {
	if drawType == nil || drawType.ID == "" {
		return nil, errs.Preconditionf("draw_type_not_persisted", "draw type must be persisted before selecting results")
	}
	if limit < 0 {
		return nil, errs.Validationf("limit_negative", "limit must not be negative")
	}
	if limit == 0 {
		return []models.DrawResult{}, nil
	}

	if winningNumber == nil {
		var latest models.WinningNumber
		err := s.DB.Where("draw_type_id = ?", drawType.ID).
			Order("created_at DESC, id DESC").
			First(&latest).Error
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFoundf("winning_number_missing",
				"no winning number recorded for draw type %s", drawType.ID)
		}
		if err != nil {
			return nil, err
		}
		winningNumber = &latest
	}

	q := s.DB.Where("draw_type_id = ? AND winning_number_id = ?", drawType.ID, winningNumber.ID)
	if !includePending {
		q = q.Where("outcome <> ?", models.OutcomePending)
	}

	var results []models.DrawResult
	err := q.Order("similarity_score DESC NULLS LAST").
		Order("evaluated_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// OwnershipsOnCompletedLines collects the ownerships sitting on any completed
// line of the user's cards, deduplicated with first-seen order preserved.
// Pure selection; nothing is persisted.
func (s *RankingService) OwnershipsOnCompletedLines(userID string) ([]models.BadgeOwnership, error) {
	var cards []models.GridCard
	err := s.DB.Preload("Cells", func(db *gorm.DB) *gorm.DB {
		return db.Order("grid_cells.idx ASC")
	}).
		Where("user_id = ?", userID).
		Order("issued_at ASC, id ASC").
		Find(&cards).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var ids []string
	for i := range cards {
		card := &cards[i]
		byIdx := make(map[int]*models.GridCell, len(card.Cells))
		for j := range card.Cells {
			byIdx[card.Cells[j].Idx] = &card.Cells[j]
		}
		for _, line := range card.CompletedLines() {
			for _, idx := range [3]int{line[0], line[1], line[2]} {
				cell := byIdx[idx]
				if cell.MatchedOwnershipID == nil || seen[*cell.MatchedOwnershipID] {
					continue
				}
				seen[*cell.MatchedOwnershipID] = true
				ids = append(ids, *cell.MatchedOwnershipID)
			}
		}
	}
	if len(ids) == 0 {
		return []models.BadgeOwnership{}, nil
	}

	var rows []models.BadgeOwnership
	if err := s.DB.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.BadgeOwnership, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	ordered := make([]models.BadgeOwnership, 0, len(ids))
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			ordered = append(ordered, row)
		}
	}
	return ordered, nil
}

// OwnershipsOfDefinition returns every active ownership of the definition,
// ordered by serial number.
func (s *RankingService) OwnershipsOfDefinition(definitionID string) ([]models.BadgeOwnership, error) {
	var rows []models.BadgeOwnership
	err := s.DB.Where("definition_id = ? AND status = ?", definitionID, models.OwnershipStatusActive).
		Order("serial_number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
