package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"badge-draw-system/models"
	"badge-draw-system/services"
	"badge-draw-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerBadgeItem is one badge holding reported by the ledger service.
type LedgerBadgeItem struct {
	InstanceID   string    `json:"instance_id"`
	BadgePrefix  string    `json:"badge_prefix"`
	BadgeName    string    `json:"badge_name"`
	Category     string    `json:"category"`
	Subcategory  string    `json:"subcategory"`
	SerialNumber int64     `json:"serial_number"`
	Origin       string    `json:"origin"`
	AcquiredAt   time.Time `json:"acquired_at"`
}

// LedgerUserItem matches the JSON response from the ledger sync endpoint.
type LedgerUserItem struct {
	ExternalID string            `json:"external_id"`
	Wallet     string            `json:"wallet"`
	Nickname   *string           `json:"nickname,omitempty"`
	Badges     []LedgerBadgeItem `json:"badges"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// GetLedgerChangesResponse is the top-level structure of the ledger response.
type GetLedgerChangesResponse struct {
	Users []LedgerUserItem `json:"users"`
}

// OwnershipSyncWorker mirrors badge ownership from the external ledger into
// the local tables, then lets the grid service react to the new holdings.
type OwnershipSyncWorker struct {
	db           *gorm.DB
	grids        *services.GridService
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
}

func NewOwnershipSyncWorker(db *gorm.DB, grids *services.GridService, ledgerBaseURL, endpointPath, serviceToken string) *OwnershipSyncWorker {
	return &OwnershipSyncWorker{
		db:           db,
		grids:        grids,
		interval:     1 * time.Minute,
		baseURL:      ledgerBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

func (w *OwnershipSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Ownership Sync Worker (ledger → badge_ownerships)…")
	go w.run(ctx)
}

func (w *OwnershipSyncWorker) run(ctx context.Context) {
	// Initial backfill from the beginning of time
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial ledger sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx, w.lastSyncTime()); err != nil {
				log.Printf("❌ Ledger sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("🛑 Ownership Sync Worker stopped")
			return
		}
	}
}

func (w *OwnershipSyncWorker) lastSyncTime() time.Time {
	var last *time.Time
	w.db.Model(&models.LedgerUser{}).Select("MAX(last_synced_at)").Scan(&last)
	if last == nil {
		return time.Time{}
	}
	return *last
}

func (w *OwnershipSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	u, err := url.Parse(fmt.Sprintf("%s%s", w.baseURL, w.endpointPath))
	if err != nil {
		return fmt.Errorf("failed to parse ledger URL: %w", err)
	}
	q := u.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create ledger request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call ledger service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("ledger service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response GetLedgerChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode ledger response: %w", err)
	}

	for _, item := range response.Users {
		if err := w.upsertUser(item); err != nil {
			log.Printf("⚠️ Failed to sync ledger user %s: %v", item.ExternalID, err)
		}
	}

	if len(response.Users) > 0 {
		log.Printf("✅ Ledger sync: processed %d users", len(response.Users))
	}
	return nil
}

func (w *OwnershipSyncWorker) upsertUser(item LedgerUserItem) error {
	now := time.Now().UTC()
	user := models.LedgerUser{
		ID:             uuid.NewString(),
		ExternalUserID: item.ExternalID,
		Wallet:         item.Wallet,
		Nickname:       item.Nickname,
		LastSyncedAt:   &now,
	}
	if err := w.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"wallet", "nickname", "last_synced_at", "updated_at"}),
	}).Create(&user).Error; err != nil {
		return err
	}
	// Re-read to get the canonical row id after a conflict-update
	if err := w.db.Where("external_user_id = ?", item.ExternalID).First(&user).Error; err != nil {
		return err
	}

	for _, badge := range item.Badges {
		if err := w.upsertOwnership(user.ID, badge); err != nil {
			log.Printf("⚠️ Failed to sync badge %s for user %s: %v", badge.InstanceID, item.ExternalID, err)
		}
	}

	// React to the new holdings: open trigger cards, unlock late cells
	if _, err := w.grids.EnsureCardsForUser(user.ID); err != nil {
		log.Printf("⚠️ Grid card backfill failed for user %s: %v", item.ExternalID, err)
	}
	if _, err := w.grids.EnsureCellsForUser(user.ID); err != nil {
		log.Printf("⚠️ Grid cell backfill failed for user %s: %v", item.ExternalID, err)
	}
	return nil
}

func (w *OwnershipSyncWorker) upsertOwnership(userID string, badge LedgerBadgeItem) error {
	var def models.BadgeDefinition
	err := w.db.Where("prefix = ?", badge.BadgePrefix).First(&def).Error
	if err == gorm.ErrRecordNotFound {
		// First sighting of this badge type; create a minimal definition
		def = models.BadgeDefinition{
			ID:          uuid.NewString(),
			Prefix:      badge.BadgePrefix,
			Name:        badge.BadgeName,
			Category:    badge.Category,
			Subcategory: badge.Subcategory,
			Status:      models.DefinitionStatusActive,
		}
		if err := w.db.Create(&def).Error; err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	var existing models.BadgeOwnership
	err = w.db.Where("instance_id = ?", badge.InstanceID).First(&existing).Error
	if err == nil {
		return nil // already mirrored
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	origin := badge.Origin
	ownership := models.BadgeOwnership{
		ID:           uuid.NewString(),
		UserID:       userID,
		DefinitionID: def.ID,
		SerialNumber: badge.SerialNumber,
		InstanceID:   badge.InstanceID,
		Origin:       &origin,
		AcquiredAt:   badge.AcquiredAt,
		Status:       models.OwnershipStatusActive,
	}
	if err := w.db.Create(&ownership).Error; err != nil {
		return err
	}

	// Serial numbers come from the ledger; keep the mint counter ahead of them
	if def.MintedCount <= badge.SerialNumber {
		return w.db.Model(&models.BadgeDefinition{}).Where("id = ?", def.ID).
			Update("minted_count", badge.SerialNumber+1).Error
	}
	return nil
}
