package services

import (
	"fmt"
	"testing"
	"time"

	"badge-draw-system/models"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := db.AutoMigrate(
		&models.LedgerUser{},
		&models.BadgeDefinition{},
		&models.BadgeOwnership{},
		&models.GridCard{},
		&models.GridCell{},
		&models.DrawType{},
		&models.WinningNumber{},
		&models.DrawResult{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB) *models.LedgerUser {
	t.Helper()

	id := uuid.NewString()
	user := &models.LedgerUser{
		ID:             id,
		ExternalUserID: "ext-" + id,
		Wallet:         "wallet-" + id,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedDefinition(t *testing.T, db *gorm.DB, prefix string, triggers bool) *models.BadgeDefinition {
	t.Helper()

	def := &models.BadgeDefinition{
		ID:               uuid.NewString(),
		Prefix:           prefix,
		Name:             "Badge " + prefix,
		Category:         "event",
		Subcategory:      "festival",
		Status:           models.DefinitionStatusActive,
		TriggersGridCard: triggers,
	}
	if err := db.Create(def).Error; err != nil {
		t.Fatalf("seed definition %s: %v", prefix, err)
	}
	return def
}

func seedOwnership(t *testing.T, db *gorm.DB, user *models.LedgerUser, def *models.BadgeDefinition, origin string) *models.BadgeOwnership {
	t.Helper()

	var originPtr *string
	if origin != "" {
		originPtr = &origin
	}
	ownership := &models.BadgeOwnership{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		DefinitionID: def.ID,
		SerialNumber: def.MintedCount,
		InstanceID:   fmt.Sprintf("%s-%d", def.Prefix, def.MintedCount),
		Origin:       originPtr,
		AcquiredAt:   time.Now().UTC(),
		Status:       models.OwnershipStatusActive,
	}
	if err := db.Create(ownership).Error; err != nil {
		t.Fatalf("seed ownership %s: %v", ownership.InstanceID, err)
	}
	def.MintedCount++
	if err := db.Model(&models.BadgeDefinition{}).Where("id = ?", def.ID).
		Update("minted_count", def.MintedCount).Error; err != nil {
		t.Fatalf("bump minted count: %v", err)
	}
	return ownership
}

func seedDrawType(t *testing.T, db *gorm.DB, algorithmKey string, threshold *float64) *models.DrawType {
	t.Helper()

	drawType := &models.DrawType{
		ID:               uuid.NewString(),
		InternalName:     "draw-" + uuid.NewString(),
		AlgorithmKey:     algorithmKey,
		DefaultThreshold: threshold,
	}
	if err := db.Create(drawType).Error; err != nil {
		t.Fatalf("seed draw type: %v", err)
	}
	return drawType
}

func seedWinningNumber(t *testing.T, db *gorm.DB, drawType *models.DrawType, value string, createdAt time.Time) *models.WinningNumber {
	t.Helper()

	winningNumber := &models.WinningNumber{
		ID:         uuid.NewString(),
		DrawTypeID: drawType.ID,
		Value:      value,
		CreatedAt:  createdAt,
	}
	if err := db.Create(winningNumber).Error; err != nil {
		t.Fatalf("seed winning number: %v", err)
	}
	return winningNumber
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
