package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"badge-draw-system/errs"
	"badge-draw-system/models"
	"badge-draw-system/services"
	"badge-draw-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PublishedWinningNumber is one entry from the draw operator's feed.
type PublishedWinningNumber struct {
	DrawType    string    `json:"draw_type"` // internal name
	Value       string    `json:"value"`
	PublishedAt time.Time `json:"published_at"`
}

// WinningNumberSyncClient polls the draw operator for newly published winning
// numbers and records them locally.
type WinningNumberSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
	Draws      *services.DrawService
}

func NewWinningNumberSyncClient(db *gorm.DB, draws *services.DrawService) *WinningNumberSyncClient {
	baseURL := os.Getenv("DRAW_OPERATOR_URL")
	if baseURL == "" {
		log.Fatal("DRAW_OPERATOR_URL environment variable is required")
	}
	token := os.Getenv("BADGE_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("BADGE_SERVICE_TOKEN environment variable is required for winning number sync")
	}

	return &WinningNumberSyncClient{
		BaseURL:    baseURL,
		Token:      token,
		DB:         db,
		Draws:      draws,
		HTTPClient: utils.HTTPClient,
	}
}

// PollWinningNumbers keeps fetching the operator feed until ctx is cancelled.
func PollWinningNumbers(ctx context.Context, client *WinningNumberSyncClient, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := client.SyncOnce(ctx); err != nil {
				log.Printf("❌ Winning number sync failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("🛑 Winning number polling stopped")
			return
		}
	}
}

func (c *WinningNumberSyncClient) SyncOnce(ctx context.Context) error {
	published, err := c.fetchPublished(ctx)
	if err != nil {
		return err
	}

	recorded := 0
	for _, item := range published {
		stored, err := c.record(item)
		if err != nil {
			log.Printf("⚠️ Failed to record winning number for %q: %v", item.DrawType, err)
			continue
		}
		if stored {
			recorded++
		}
	}
	if recorded > 0 {
		log.Printf("✅ Winning number sync: recorded %d new numbers", recorded)
	}
	return nil
}

func (c *WinningNumberSyncClient) fetchPublished(ctx context.Context) ([]PublishedWinningNumber, error) {
	u, err := url.Parse(fmt.Sprintf("%s/api/v1/public/winning-numbers", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse operator URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create operator request: %w", err)
	}
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call draw operator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("draw operator returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		WinningNumbers []PublishedWinningNumber `json:"winning_numbers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode operator response: %w", err)
	}
	return response.WinningNumbers, nil
}

// record stores one published number unless it is already mirrored. Returns
// true when a new row was created.
func (c *WinningNumberSyncClient) record(item PublishedWinningNumber) (bool, error) {
	drawType, err := c.Draws.GetDrawTypeByInternalName(item.DrawType)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			log.Printf("⚠️ Operator published number for unknown draw type %q — skipping", item.DrawType)
			return false, nil
		}
		return false, err
	}

	var count int64
	err = c.DB.Model(&models.WinningNumber{}).
		Where("draw_type_id = ? AND value = ? AND created_at = ?", drawType.ID, item.Value, item.PublishedAt).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	winningNumber := models.WinningNumber{
		ID:         uuid.NewString(),
		DrawTypeID: drawType.ID,
		Value:      item.Value,
		CreatedAt:  item.PublishedAt,
	}
	return true, c.DB.Create(&winningNumber).Error
}
