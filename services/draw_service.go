package services

import (
	"errors"
	"strings"
	"time"

	"badge-draw-system/errs"
	"badge-draw-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

// DrawService derives draw numbers, scores badge instances against winning
// numbers, and upserts the per-(ownership, draw type) result rows.
type DrawService struct {
	DB       *gorm.DB
	Registry *AlgorithmRegistry
}

func NewDrawService(db *gorm.DB, registry *AlgorithmRegistry) *DrawService {
	if registry == nil {
		registry = NewDefaultRegistry()
	}
	return &DrawService{DB: db, Registry: registry}
}

// Evaluation describes one evaluation produced by the engine.
type Evaluation struct {
	Result     *models.DrawResult
	DrawNumber string
	Threshold  *float64
	Similarity *float64
}

// Evaluate scores one badge instance against a draw type and persists the
// result. Without a winning number the result is stored as pending so the
// instance can be pre-registered before the number is published; re-running
// with the number later updates the same row instead of duplicating it.
func (s *DrawService) Evaluate(ownership *models.BadgeOwnership, drawType *models.DrawType, winningNumber *models.WinningNumber, thresholdOverride *float64) (*Evaluation, error) {
	if ownership == nil || ownership.ID == "" {
		return nil, errs.Preconditionf("ownership_not_persisted", "ownership must be persisted before running a prize draw")
	}
	if drawType == nil || drawType.ID == "" {
		return nil, errs.Preconditionf("draw_type_not_persisted", "draw type must be persisted before running a prize draw")
	}
	if ownership.Origin == nil {
		return nil, errs.Preconditionf("ownership_missing_origin", "ownership must have an origin before running a prize draw")
	}

	drawNumber, err := DeriveDrawNumber(*ownership.Origin)
	if err != nil {
		return nil, err
	}

	threshold := thresholdOverride
	if threshold == nil {
		threshold = drawType.DefaultThreshold
	}

	outcome := models.OutcomePending
	var similarity *float64
	var drawDigits, winningDigits *string
	var winningNumberID *string

	if winningNumber != nil {
		algorithm, err := s.Registry.Get(drawType.AlgorithmKey)
		if err != nil {
			return nil, err
		}
		evaluation, err := algorithm.Evaluate(drawNumber, winningNumber.Value, threshold)
		if err != nil {
			return nil, err
		}
		similarity = &evaluation.Score
		drawDigits = evaluation.DrawTopDigits
		winningDigits = evaluation.WinningTopDigits
		winningNumberID = &winningNumber.ID
		if evaluation.Passed != nil {
			if *evaluation.Passed {
				outcome = models.OutcomeWin
			} else {
				outcome = models.OutcomeLose
			}
		}
	}

	now := time.Now().UTC()
	var result *models.DrawResult

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.DrawResult
		lookupErr := tx.Where("ownership_id = ? AND draw_type_id = ?", ownership.ID, drawType.ID).
			First(&existing).Error

		if lookupErr == nil {
			existing.WinningNumberID = winningNumberID
			existing.UserID = ownership.UserID
			existing.DefinitionID = ownership.DefinitionID
			existing.DrawNumber = drawNumber
			existing.SimilarityScore = similarity
			existing.DrawTopDigits = drawDigits
			existing.WinningTopDigits = winningDigits
			existing.ThresholdUsed = threshold
			existing.Outcome = outcome
			existing.EvaluatedAt = now
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			result = &existing
			return nil
		}
		if lookupErr != gorm.ErrRecordNotFound {
			return lookupErr
		}

		fresh := models.DrawResult{
			ID:               uuid.NewString(),
			DrawTypeID:       drawType.ID,
			WinningNumberID:  winningNumberID,
			UserID:           ownership.UserID,
			DefinitionID:     ownership.DefinitionID,
			OwnershipID:      ownership.ID,
			DrawNumber:       drawNumber,
			SimilarityScore:  similarity,
			DrawTopDigits:    drawDigits,
			WinningTopDigits: winningDigits,
			ThresholdUsed:    threshold,
			Outcome:          outcome,
			EvaluatedAt:      now,
		}
		if err := tx.Create(&fresh).Error; err != nil {
			if isDuplicateKey(err) {
				// A concurrent evaluator won the insert race; the caller may
				// retry and will then update in place.
				return errs.ConflictWrap(err, "result_key_collision",
					"draw result already exists for this ownership and draw type")
			}
			return err
		}
		result = &fresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Evaluation{
		Result:     result,
		DrawNumber: drawNumber,
		Threshold:  threshold,
		Similarity: similarity,
	}, nil
}

// EvaluateBatch evaluates multiple ownerships with a shared configuration,
// preserving input order. Empty input yields an empty result set.
func (s *DrawService) EvaluateBatch(ownerships []models.BadgeOwnership, drawType *models.DrawType, winningNumber *models.WinningNumber, thresholdOverride *float64) ([]*Evaluation, error) {
	evaluations := make([]*Evaluation, 0, len(ownerships))
	for i := range ownerships {
		evaluation, err := s.Evaluate(&ownerships[i], drawType, winningNumber, thresholdOverride)
		if err != nil {
			return nil, err
		}
		evaluations = append(evaluations, evaluation)
	}
	return evaluations, nil
}

// CreateDrawType registers a named draw configuration. The internal name is
// slugged from the given name; the display name is title-cased.
func (s *DrawService) CreateDrawType(name, description, algorithmKey string, defaultThreshold *float64) (*models.DrawType, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errs.Validationf("draw_type_name_blank", "draw type name must not be empty")
	}
	if _, err := s.Registry.Get(algorithmKey); err != nil {
		return nil, err
	}

	drawType := &models.DrawType{
		ID:               uuid.NewString(),
		InternalName:     slug.Make(name),
		DisplayName:      cases.Title(language.English).String(name),
		Description:      description,
		AlgorithmKey:     algorithmKey,
		DefaultThreshold: defaultThreshold,
	}
	if err := s.DB.Create(drawType).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, errs.ConflictWrap(err, "draw_type_exists",
				"a draw type with this internal name already exists")
		}
		return nil, err
	}
	return drawType, nil
}

// GetDrawTypeByInternalName resolves a draw type by its machine name.
func (s *DrawService) GetDrawTypeByInternalName(internalName string) (*models.DrawType, error) {
	var drawType models.DrawType
	err := s.DB.Where("internal_name = ?", internalName).First(&drawType).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errs.NotFoundf("draw_type_unknown", "draw type %q not found", internalName)
	}
	if err != nil {
		return nil, err
	}
	return &drawType, nil
}

// RecordWinningNumber stores an externally published winning number.
func (s *DrawService) RecordWinningNumber(drawTypeID, value string) (*models.WinningNumber, error) {
	if strings.TrimSpace(value) == "" {
		return nil, errs.Validationf("winning_number_blank", "winning number value must not be empty")
	}
	var drawType models.DrawType
	if err := s.DB.First(&drawType, "id = ?", drawTypeID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFoundf("draw_type_unknown", "draw type %s not found", drawTypeID)
		}
		return nil, err
	}

	winningNumber := &models.WinningNumber{
		ID:         uuid.NewString(),
		DrawTypeID: drawType.ID,
		Value:      value,
	}
	if err := s.DB.Create(winningNumber).Error; err != nil {
		return nil, err
	}
	return winningNumber, nil
}

// LatestWinningNumber returns the most recently published winning number for
// the draw type, with id as tie-break when timestamps collide.
func (s *DrawService) LatestWinningNumber(drawTypeID string) (*models.WinningNumber, error) {
	var winningNumber models.WinningNumber
	err := s.DB.Where("draw_type_id = ?", drawTypeID).
		Order("created_at DESC, id DESC").
		First(&winningNumber).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errs.NotFoundf("winning_number_missing", "no winning number recorded for draw type %s", drawTypeID)
	}
	if err != nil {
		return nil, err
	}
	return &winningNumber, nil
}

// isDuplicateKey detects unique-constraint violations across the postgres and
// sqlite drivers.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}
