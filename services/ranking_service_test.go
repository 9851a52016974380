package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"badge-draw-system/errs"
	"badge-draw-system/models"

	"github.com/google/uuid"
)

func resultWithScore(id string, score float64, evaluatedAt time.Time) models.DrawResult {
	return models.DrawResult{
		ID:              id,
		SimilarityScore: floatPtr(score),
		EvaluatedAt:     evaluatedAt,
	}
}

func TestRankWithTiesExtendsThroughCutoff(t *testing.T) {
	ranking := NewRankingService(nil)
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	results := []models.DrawResult{
		resultWithScore("a", 0.8, at),
		resultWithScore("b", 0.9, at),
		resultWithScore("c", 0.8, at),
	}

	ranked, err := ranking.RankWithTies(results, intPtr(2))
	if err != nil {
		t.Fatalf("RankWithTies() error = %v", err)
	}
	// The cutoff score 0.8 is tied, so both 0.8 entries make the cut
	if len(ranked) != 3 {
		t.Fatalf("ranked count = %d, want 3", len(ranked))
	}
	if ranked[0].ID != "b" {
		t.Fatalf("top result = %s, want b", ranked[0].ID)
	}
}

func TestRankWithTiesOrdering(t *testing.T) {
	ranking := NewRankingService(nil)
	early := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Minute)

	results := []models.DrawResult{
		resultWithScore("z", 0.7, late),
		resultWithScore("m", 0.7, early),
		resultWithScore("a", 0.7, late),
		resultWithScore("top", 0.99, late),
	}

	ranked, err := ranking.RankWithTies(results, nil)
	if err != nil {
		t.Fatalf("RankWithTies() error = %v", err)
	}

	want := []string{"top", "m", "a", "z"}
	for i, id := range want {
		if ranked[i].ID != id {
			t.Fatalf("position %d = %s, want %s", i, ranked[i].ID, id)
		}
	}
}

func TestRankWithTiesLimitEdges(t *testing.T) {
	ranking := NewRankingService(nil)
	at := time.Now().UTC()
	results := []models.DrawResult{resultWithScore("a", 0.5, at)}

	empty, err := ranking.RankWithTies(results, intPtr(0))
	if err != nil {
		t.Fatalf("RankWithTies(limit=0) error = %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("limit 0 returned %d entries", len(empty))
	}

	if _, err := ranking.RankWithTies(results, intPtr(-1)); !errors.Is(err, errs.Validation) {
		t.Fatalf("negative limit error = %v, want validation", err)
	}

	all, err := ranking.RankWithTies(results, intPtr(10))
	if err != nil {
		t.Fatalf("RankWithTies(limit>len) error = %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("oversized limit returned %d entries", len(all))
	}
}

func TestRankWithTiesRejectsUnscoredResults(t *testing.T) {
	ranking := NewRankingService(nil)
	results := []models.DrawResult{{ID: "pending", EvaluatedAt: time.Now().UTC()}}

	_, err := ranking.RankWithTies(results, nil)
	if !errors.Is(err, errs.Validation) {
		t.Fatalf("unscored result error = %v, want validation", err)
	}
	if errs.CodeOf(err) != "result_missing_score" {
		t.Fatalf("error code = %s", errs.CodeOf(err))
	}
}

func TestSelectTopByScore(t *testing.T) {
	db := setupTestDB(t)
	draws := NewDrawService(db, nil)
	ranking := NewRankingService(db)
	user := seedUser(t, db)
	drawType := seedDrawType(t, db, AlgorithmSHA256HexProximity, floatPtr(0.95))
	winning := seedWinningNumber(t, db, drawType, "target", time.Now().UTC())

	origins := []string{"target", "close-call", "way-off", "another"}
	for i, origin := range origins {
		def := seedDefinition(t, db, fmt.Sprintf("S%d", i), false)
		ownership := seedOwnership(t, db, user, def, origin)
		if _, err := draws.Evaluate(ownership, drawType, winning, nil); err != nil {
			t.Fatalf("Evaluate(%s) error = %v", origin, err)
		}
	}

	top, err := ranking.SelectTopByScore(drawType, winning, 2, true)
	if err != nil {
		t.Fatalf("SelectTopByScore() error = %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("top count = %d, want 2", len(top))
	}
	// "target" matches the winning number exactly and must rank first
	if top[0].DrawNumber != "target" {
		t.Fatalf("top result draw number = %q, want target", top[0].DrawNumber)
	}
	if *top[0].SimilarityScore < *top[1].SimilarityScore {
		t.Fatal("results not ordered by score descending")
	}

	empty, err := ranking.SelectTopByScore(drawType, winning, 0, true)
	if err != nil {
		t.Fatalf("SelectTopByScore(limit=0) error = %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("limit 0 returned %d results", len(empty))
	}

	if _, err := ranking.SelectTopByScore(drawType, winning, -1, true); !errors.Is(err, errs.Validation) {
		t.Fatalf("negative limit error = %v, want validation", err)
	}
	if _, err := ranking.SelectTopByScore(&models.DrawType{}, winning, 3, true); !errors.Is(err, errs.Precondition) {
		t.Fatalf("unpersisted draw type error = %v, want precondition", err)
	}
}

func TestSelectTopByScoreExcludesPending(t *testing.T) {
	db := setupTestDB(t)
	draws := NewDrawService(db, nil)
	ranking := NewRankingService(db)
	user := seedUser(t, db)

	// No threshold anywhere, so every evaluated result stays pending
	drawType := seedDrawType(t, db, AlgorithmSHA256HexProximity, nil)
	winning := seedWinningNumber(t, db, drawType, "target", time.Now().UTC())

	ownership := seedOwnership(t, db, user, seedDefinition(t, db, "PD", false), "near-miss")
	if _, err := draws.Evaluate(ownership, drawType, winning, nil); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	settled, err := ranking.SelectTopByScore(drawType, winning, 10, false)
	if err != nil {
		t.Fatalf("SelectTopByScore() error = %v", err)
	}
	if len(settled) != 0 {
		t.Fatalf("pending-only draw returned %d settled results", len(settled))
	}

	all, err := ranking.SelectTopByScore(drawType, winning, 10, true)
	if err != nil {
		t.Fatalf("SelectTopByScore(includePending) error = %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("include_pending returned %d results, want 1", len(all))
	}
}

func TestSelectTopByScoreDefaultsToLatestNumber(t *testing.T) {
	db := setupTestDB(t)
	draws := NewDrawService(db, nil)
	ranking := NewRankingService(db)
	user := seedUser(t, db)
	drawType := seedDrawType(t, db, AlgorithmSHA256HexProximity, floatPtr(0.95))

	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	older := seedWinningNumber(t, db, drawType, "old-target", base)
	newest := seedWinningNumber(t, db, drawType, "new-target", base.Add(time.Hour))

	oldOwnership := seedOwnership(t, db, user, seedDefinition(t, db, "OLD", false), "old-target")
	if _, err := draws.Evaluate(oldOwnership, drawType, older, nil); err != nil {
		t.Fatalf("Evaluate(old) error = %v", err)
	}
	newOwnership := seedOwnership(t, db, user, seedDefinition(t, db, "NEW", false), "new-target")
	if _, err := draws.Evaluate(newOwnership, drawType, newest, nil); err != nil {
		t.Fatalf("Evaluate(new) error = %v", err)
	}

	// nil winning number selects against the latest published one
	top, err := ranking.SelectTopByScore(drawType, nil, 10, true)
	if err != nil {
		t.Fatalf("SelectTopByScore() error = %v", err)
	}
	if len(top) != 1 {
		t.Fatalf("result count = %d, want 1 under the latest number", len(top))
	}
	if top[0].OwnershipID != newOwnership.ID {
		t.Fatalf("selected ownership %s, want %s", top[0].OwnershipID, newOwnership.ID)
	}
}

func TestSelectTopByScoreWithoutWinningNumbers(t *testing.T) {
	db := setupTestDB(t)
	ranking := NewRankingService(db)
	drawType := seedDrawType(t, db, AlgorithmSHA256HexProximity, nil)

	_, err := ranking.SelectTopByScore(drawType, nil, 5, true)
	if !errors.Is(err, errs.NotFound) {
		t.Fatalf("error = %v, want not-found when no number was published", err)
	}
}

func TestOwnershipsOnCompletedLines(t *testing.T) {
	db := setupTestDB(t)
	grids := NewGridService(db)
	ranking := NewRankingService(db)
	user := seedUser(t, db)

	center := seedDefinition(t, db, "C", false)
	for i := 0; i < 8; i++ {
		seedDefinition(t, db, fmt.Sprintf("D%d", i), false)
	}

	card, err := grids.GenerateCard(user.ID, center.ID, nil)
	if err != nil {
		t.Fatalf("GenerateCard() error = %v", err)
	}

	// Unlock the top row: cells 0, 1, 2
	byIdx := make(map[int]models.GridCell, 9)
	for _, cell := range card.Cells {
		byIdx[cell.Idx] = cell
	}
	for _, idx := range []int{0, 1, 2} {
		var def models.BadgeDefinition
		if err := db.First(&def, "id = ?", byIdx[idx].TargetDefinitionID).Error; err != nil {
			t.Fatalf("load definition: %v", err)
		}
		ownership := seedOwnership(t, db, user, &def, fmt.Sprintf("origin-%d", idx))
		if _, err := grids.UnlockForOwnership(card, ownership); err != nil {
			t.Fatalf("UnlockForOwnership(%d) error = %v", idx, err)
		}
	}

	onLines, err := ranking.OwnershipsOnCompletedLines(user.ID)
	if err != nil {
		t.Fatalf("OwnershipsOnCompletedLines() error = %v", err)
	}
	if len(onLines) != 3 {
		t.Fatalf("ownerships on lines = %d, want 3", len(onLines))
	}
	for i, ownership := range onLines {
		// First-seen order follows the line's cell indices
		if ownership.DefinitionID != byIdx[i].TargetDefinitionID {
			t.Fatalf("position %d holds definition %s, want the cell %d target", i, ownership.DefinitionID, i)
		}
	}

	// An unlocked cell off any completed line contributes nothing
	var def models.BadgeDefinition
	if err := db.First(&def, "id = ?", byIdx[8].TargetDefinitionID).Error; err != nil {
		t.Fatalf("load definition: %v", err)
	}
	extra := seedOwnership(t, db, user, &def, "origin-extra")
	if _, err := grids.UnlockForOwnership(card, extra); err != nil {
		t.Fatalf("UnlockForOwnership(extra) error = %v", err)
	}
	onLines, err = ranking.OwnershipsOnCompletedLines(user.ID)
	if err != nil {
		t.Fatalf("OwnershipsOnCompletedLines() rerun error = %v", err)
	}
	if len(onLines) != 3 {
		t.Fatalf("ownerships on lines after off-line unlock = %d, want 3", len(onLines))
	}
}

func TestOwnershipsOnCompletedLinesEmptyUser(t *testing.T) {
	db := setupTestDB(t)
	ranking := NewRankingService(db)

	onLines, err := ranking.OwnershipsOnCompletedLines(uuid.NewString())
	if err != nil {
		t.Fatalf("OwnershipsOnCompletedLines() error = %v", err)
	}
	if len(onLines) != 0 {
		t.Fatalf("unknown user yielded %d ownerships", len(onLines))
	}
}

func TestOwnershipsOfDefinitionOrderedBySerial(t *testing.T) {
	db := setupTestDB(t)
	ranking := NewRankingService(db)
	def := seedDefinition(t, db, "SER", false)

	var want []string
	for i := 0; i < 3; i++ {
		user := seedUser(t, db)
		want = append(want, seedOwnership(t, db, user, def, fmt.Sprintf("o-%d", i)).ID)
	}

	rows, err := ranking.OwnershipsOfDefinition(def.ID)
	if err != nil {
		t.Fatalf("OwnershipsOfDefinition() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("ownership count = %d, want 3", len(rows))
	}
	for i, row := range rows {
		if row.ID != want[i] {
			t.Fatalf("position %d = %s, want serial order", i, row.ID)
		}
	}
}
