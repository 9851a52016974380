package services

import (
	"fmt"
	"strings"
	"time"

	"badge-draw-system/errs"
	"badge-draw-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BadgeService manages badge definitions and issues badge instances to users.
// Issuing assigns the next serial, stamps the globally-unique instance id,
// and keeps the user's grid cards in sync.
type BadgeService struct {
	DB    *gorm.DB
	Grids *GridService
}

func NewBadgeService(db *gorm.DB, grids *GridService) *BadgeService {
	return &BadgeService{DB: db, Grids: grids}
}

// CreateDefinitionInput carries the admin-supplied fields for a new badge
// definition.
type CreateDefinitionInput struct {
	Prefix           string
	Name             string
	Description      string
	Category         string
	Subcategory      string
	ArtworkURL       string
	MaxSupply        *int64
	TriggersGridCard bool
}

func (s *BadgeService) CreateDefinition(in CreateDefinitionInput) (*models.BadgeDefinition, error) {
	if strings.TrimSpace(in.Prefix) == "" {
		return nil, errs.Validationf("prefix_blank", "badge prefix must not be empty")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, errs.Validationf("name_blank", "badge name must not be empty")
	}
	if in.MaxSupply != nil && *in.MaxSupply < 0 {
		return nil, errs.Validationf("max_supply_negative", "max supply must not be negative")
	}

	def := &models.BadgeDefinition{
		ID:               uuid.NewString(),
		Prefix:           in.Prefix,
		Name:             in.Name,
		Description:      in.Description,
		Category:         in.Category,
		Subcategory:      in.Subcategory,
		ArtworkURL:       in.ArtworkURL,
		MaxSupply:        in.MaxSupply,
		Status:           models.DefinitionStatusActive,
		TriggersGridCard: in.TriggersGridCard,
	}
	if err := s.DB.Create(def).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, errs.ConflictWrap(err, "prefix_taken", "a badge definition with this prefix already exists")
		}
		return nil, err
	}
	return def, nil
}

// IssueBadge mints one instance of the definition to the user: serial number
// from the minted count, instance id "<prefix>-<serial>", supply cap
// enforced. A trigger-flagged definition also opens a fresh grid card
// centered on it, and the new badge unlocks matching cells on the user's
// active cards.
func (s *BadgeService) IssueBadge(userID, definitionID string, origin *string) (*models.BadgeOwnership, error) {
	var user models.LedgerUser
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFoundf("user_not_found", "user %s not found", userID)
		}
		return nil, err
	}

	var ownership *models.BadgeOwnership
	var triggersCard bool

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var def models.BadgeDefinition
		if err := tx.First(&def, "id = ?", definitionID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errs.NotFoundf("definition_not_found", "definition %s not found", definitionID)
			}
			return err
		}
		if def.Status != models.DefinitionStatusActive {
			return errs.Preconditionf("definition_retired", "definition %s is not active", def.ID)
		}
		if def.MaxSupply != nil && def.MintedCount >= *def.MaxSupply {
			return errs.Conflictf("supply_exhausted", "definition %s reached its max supply of %d", def.ID, *def.MaxSupply)
		}

		serial := def.MintedCount
		ownership = &models.BadgeOwnership{
			ID:           uuid.NewString(),
			UserID:       user.ID,
			DefinitionID: def.ID,
			SerialNumber: serial,
			InstanceID:   fmt.Sprintf("%s-%d", def.Prefix, serial),
			Origin:       origin,
			AcquiredAt:   time.Now().UTC(),
			Status:       models.OwnershipStatusActive,
		}
		if err := tx.Create(ownership).Error; err != nil {
			if isDuplicateKey(err) {
				return errs.ConflictWrap(err, "already_owned", "user already owns a badge of this definition")
			}
			return err
		}

		def.MintedCount++
		if err := tx.Model(&models.BadgeDefinition{}).Where("id = ?", def.ID).
			Update("minted_count", def.MintedCount).Error; err != nil {
			return err
		}

		triggersCard = def.TriggersGridCard
		return nil
	})
	if err != nil {
		return nil, err
	}

	if triggersCard {
		if _, err := s.Grids.GenerateCard(user.ID, definitionID, nil); err != nil {
			return ownership, err
		}
	}
	if _, err := s.Grids.UnlockForDefinition(user.ID, definitionID); err != nil {
		return ownership, err
	}
	return ownership, nil
}

// OwnershipByInstanceID resolves one badge instance.
func (s *BadgeService) OwnershipByInstanceID(instanceID string) (*models.BadgeOwnership, error) {
	var ownership models.BadgeOwnership
	err := s.DB.Where("instance_id = ?", instanceID).First(&ownership).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errs.NotFoundf("ownership_unknown", "badge instance %q not found", instanceID)
	}
	if err != nil {
		return nil, err
	}
	return &ownership, nil
}

// DefinitionByPrefix resolves a badge definition by its unique prefix.
func (s *BadgeService) DefinitionByPrefix(prefix string) (*models.BadgeDefinition, error) {
	var def models.BadgeDefinition
	err := s.DB.Where("prefix = ?", prefix).First(&def).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errs.NotFoundf("definition_not_found", "definition with prefix %q not found", prefix)
	}
	if err != nil {
		return nil, err
	}
	return &def, nil
}
