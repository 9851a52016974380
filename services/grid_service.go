package services

import (
	"math/rand"
	"time"

	"badge-draw-system/errs"
	"badge-draw-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Rand is the randomness source used by card generation. Inject a seeded
// *math/rand.Rand for reproducible grids.
type Rand interface {
	Shuffle(n int, swap func(i, j int))
}

type GridService struct {
	DB *gorm.DB
}

func NewGridService(db *gorm.DB) *GridService {
	return &GridService{DB: db}
}

// nonCenterPositions are the cell indices filled with sampled definitions;
// index 4 is always the requested center definition.
var nonCenterPositions = [8]int{0, 1, 2, 3, 5, 6, 7, 8}

// GenerateCardOptions tunes candidate selection for GenerateCard.
type GenerateCardOptions struct {
	// Included restricts the candidate pool to these definition ids. Empty
	// means every known definition is a candidate.
	Included []string
	// Excluded removes definition ids from the pool.
	Excluded []string
	// Rand overrides the randomness source.
	Rand Rand
}

// GenerateCard builds a fresh 3x3 grid card for the user, centered on the
// given definition. Eight distinct candidates are drawn uniformly without
// replacement for the outer cells; cells whose definition the user already
// owns start unlocked. Card and cells are persisted in one transaction.
func (s *GridService) GenerateCard(userID, centerDefinitionID string, opts *GenerateCardOptions) (*models.GridCard, error) {
	if opts == nil {
		opts = &GenerateCardOptions{}
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	var user models.LedgerUser
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFoundf("user_not_found", "user %s not found", userID)
		}
		return nil, err
	}

	var center models.BadgeDefinition
	if err := s.DB.First(&center, "id = ?", centerDefinitionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFoundf("definition_not_found", "definition %s not found", centerDefinitionID)
		}
		return nil, err
	}

	candidates, err := s.candidatePool(center.ID, opts)
	if err != nil {
		return nil, err
	}
	if len(candidates) < 8 {
		return nil, errs.Validationf("insufficient_candidates",
			"need at least 8 candidate definitions besides the center, have %d", len(candidates))
	}

	// Uniform sample without replacement: shuffle, take the first 8, then
	// shuffle their destination positions.
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	picked := candidates[:8]

	positions := nonCenterPositions
	rng.Shuffle(len(positions), func(i, j int) {
		positions[i], positions[j] = positions[j], positions[i]
	})

	targetByIdx := make(map[int]string, 9)
	targetByIdx[4] = center.ID
	for i, defID := range picked {
		targetByIdx[positions[i]] = defID
	}

	owned, err := s.ownershipsByDefinition(userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	card := &models.GridCard{
		ID:       uuid.NewString(),
		UserID:   userID,
		IssuedAt: now,
		State:    models.CardStateActive,
	}

	for idx := 0; idx <= 8; idx++ {
		cell := models.GridCell{
			ID:                 uuid.NewString(),
			CardID:             card.ID,
			Idx:                idx,
			TargetDefinitionID: targetByIdx[idx],
			State:              models.CellStateLocked,
		}
		if ownership, ok := owned[cell.TargetDefinitionID]; ok {
			ownershipID := ownership.ID
			unlockedAt := now
			cell.State = models.CellStateUnlocked
			cell.MatchedOwnershipID = &ownershipID
			cell.UnlockedAt = &unlockedAt
		}
		card.Cells = append(card.Cells, cell)
	}

	if card.IsComplete() {
		completedAt := now
		card.CompletedAt = &completedAt
		card.State = models.CardStateCompleted
	}

	if err := s.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Create(card).Error
	}); err != nil {
		return nil, err
	}
	return card, nil
}

func (s *GridService) candidatePool(centerID string, opts *GenerateCardOptions) ([]string, error) {
	var ids []string
	q := s.DB.Model(&models.BadgeDefinition{}).Order("created_at ASC, id ASC")
	if len(opts.Included) > 0 {
		q = q.Where("id IN ?", opts.Included)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}

	dropped := map[string]bool{centerID: true}
	for _, id := range opts.Excluded {
		dropped[id] = true
	}
	pool := ids[:0]
	for _, id := range ids {
		if !dropped[id] {
			pool = append(pool, id)
		}
	}
	return pool, nil
}

func (s *GridService) ownershipsByDefinition(userID string) (map[string]models.BadgeOwnership, error) {
	var ownerships []models.BadgeOwnership
	if err := s.DB.Where("user_id = ? AND status = ?", userID, models.OwnershipStatusActive).
		Find(&ownerships).Error; err != nil {
		return nil, err
	}
	byDef := make(map[string]models.BadgeOwnership, len(ownerships))
	for _, o := range ownerships {
		byDef[o.DefinitionID] = o
	}
	return byDef, nil
}

// UnlockForOwnership unlocks every locked cell of the card whose target
// definition matches the ownership. Returns true if any cell changed.
// Unlocking is monotonic, and when the 9th cell unlocks the card completes
// exactly once; repeated calls with the same ownership are no-ops.
func (s *GridService) UnlockForOwnership(card *models.GridCard, ownership *models.BadgeOwnership) (bool, error) {
	if card.ID == "" {
		return false, errs.Preconditionf("card_not_persisted", "grid card must be persisted before unlocking cells")
	}
	if ownership.ID == "" {
		return false, errs.Preconditionf("ownership_not_persisted", "ownership must be persisted before unlocking cells")
	}

	now := time.Now().UTC()
	changed := false

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		for i := range card.Cells {
			cell := &card.Cells[i]
			if cell.State != models.CellStateLocked || cell.TargetDefinitionID != ownership.DefinitionID {
				continue
			}
			ownershipID := ownership.ID
			unlockedAt := now
			cell.State = models.CellStateUnlocked
			cell.MatchedOwnershipID = &ownershipID
			cell.UnlockedAt = &unlockedAt
			if err := tx.Model(&models.GridCell{}).Where("id = ?", cell.ID).Updates(map[string]any{
				"state":                models.CellStateUnlocked,
				"matched_ownership_id": ownershipID,
				"unlocked_at":          unlockedAt,
			}).Error; err != nil {
				return err
			}
			changed = true
		}

		if changed && card.CompletedAt == nil && card.IsComplete() {
			completedAt := now
			card.CompletedAt = &completedAt
			card.State = models.CardStateCompleted
			if err := tx.Model(&models.GridCard{}).Where("id = ?", card.ID).Updates(map[string]any{
				"completed_at": completedAt,
				"state":        models.CardStateCompleted,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// UnlockForDefinition looks up the user's ownership of the definition and
// unlocks matching cells across all of the user's active cards. Returns false
// when the user does not own the definition.
func (s *GridService) UnlockForDefinition(userID, definitionID string) (bool, error) {
	var ownership models.BadgeOwnership
	err := s.DB.Where("user_id = ? AND definition_id = ? AND status = ?",
		userID, definitionID, models.OwnershipStatusActive).First(&ownership).Error
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	cards, err := s.activeCards(userID)
	if err != nil {
		return false, err
	}

	any := false
	for i := range cards {
		changed, err := s.UnlockForOwnership(&cards[i], &ownership)
		if err != nil {
			return any, err
		}
		any = any || changed
	}
	return any, nil
}

// EnsureCardsForUser generates a card for every trigger-flagged definition the
// user owns that does not yet have a card centered on it. Returns the number
// of cards created.
func (s *GridService) EnsureCardsForUser(userID string) (int, error) {
	var ownerships []models.BadgeOwnership
	err := s.DB.Where("user_id = ? AND status = ?", userID, models.OwnershipStatusActive).
		Order("acquired_at ASC, id ASC").
		Find(&ownerships).Error
	if err != nil {
		return 0, err
	}

	created := 0
	for _, ownership := range ownerships {
		var def models.BadgeDefinition
		if err := s.DB.First(&def, "id = ?", ownership.DefinitionID).Error; err != nil {
			return created, err
		}
		if !def.TriggersGridCard {
			continue
		}
		var count int64
		err := s.DB.Model(&models.GridCell{}).
			Joins("JOIN grid_cards ON grid_cards.id = grid_cells.card_id").
			Where("grid_cards.user_id = ? AND grid_cells.idx = 4 AND grid_cells.target_definition_id = ?", userID, def.ID).
			Count(&count).Error
		if err != nil {
			return created, err
		}
		if count > 0 {
			continue
		}
		if _, err := s.GenerateCard(userID, def.ID, nil); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// EnsureCellsForUser reconciles all of the user's badges against the locked
// cells of their active cards, unlocking any late matches. Returns the number
// of cells unlocked.
func (s *GridService) EnsureCellsForUser(userID string) (int, error) {
	owned, err := s.ownershipsByDefinition(userID)
	if err != nil {
		return 0, err
	}
	if len(owned) == 0 {
		return 0, nil
	}

	cards, err := s.activeCards(userID)
	if err != nil {
		return 0, err
	}

	unlocked := 0
	for i := range cards {
		card := &cards[i]
		before := lockedCellCount(card)
		for _, ownership := range owned {
			o := ownership
			if _, err := s.UnlockForOwnership(card, &o); err != nil {
				return unlocked, err
			}
		}
		unlocked += before - lockedCellCount(card)
	}
	return unlocked, nil
}

func (s *GridService) activeCards(userID string) ([]models.GridCard, error) {
	var cards []models.GridCard
	err := s.DB.Preload("Cells", func(db *gorm.DB) *gorm.DB {
		return db.Order("grid_cells.idx ASC")
	}).
		Where("user_id = ? AND state = ?", userID, models.CardStateActive).
		Order("issued_at ASC, id ASC").
		Find(&cards).Error
	return cards, err
}

// CardsForUser returns all of the user's cards with cells, newest first.
func (s *GridService) CardsForUser(userID string) ([]models.GridCard, error) {
	var cards []models.GridCard
	err := s.DB.Preload("Cells", func(db *gorm.DB) *gorm.DB {
		return db.Order("grid_cells.idx ASC")
	}).
		Where("user_id = ?", userID).
		Order("issued_at DESC, id DESC").
		Find(&cards).Error
	return cards, err
}

func lockedCellCount(card *models.GridCard) int {
	n := 0
	for i := range card.Cells {
		if card.Cells[i].State == models.CellStateLocked {
			n++
		}
	}
	return n
}
