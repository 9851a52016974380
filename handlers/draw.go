package handlers

import (
	"fmt"
	"log"
	"path/filepath"
	"strconv"

	"badge-draw-system/middleware"
	"badge-draw-system/models"
	"badge-draw-system/services"
	"badge-draw-system/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SetupDrawRoutes wires the admin endpoints for badge definitions, draw
// configuration, and evaluation.
func SetupDrawRoutes(app *fiber.App, badges *services.BadgeService, draws *services.DrawService, ranking *services.RankingService) {
	adminGroup := app.Group("/admin", middleware.UserContextMiddleware(), middleware.RequireAdmin())

	// Create a badge definition, optionally with artwork (multipart)
	adminGroup.Post("/definitions", func(c *fiber.Ctx) error {
		var maxSupply *int64
		if raw := c.FormValue("max_supply"); raw != "" {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid max_supply"})
			}
			maxSupply = &v
		}

		in := services.CreateDefinitionInput{
			Prefix:           c.FormValue("prefix"),
			Name:             c.FormValue("name"),
			Description:      c.FormValue("description"),
			Category:         c.FormValue("category"),
			Subcategory:      c.FormValue("subcategory"),
			MaxSupply:        maxSupply,
			TriggersGridCard: c.FormValue("triggers_grid_card") == "true",
		}

		if artwork, err := c.FormFile("artwork"); err == nil {
			key := fmt.Sprintf("badges/%s%s", in.Prefix, filepath.Ext(artwork.Filename))
			url, err := utils.UploadBadgeArt(artwork, key)
			if err != nil {
				log.Printf("❌ Artwork upload failed for %s: %v", in.Prefix, err)
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "artwork upload failed"})
			}
			in.ArtworkURL = url
		}

		def, err := badges.CreateDefinition(in)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(def)
	})

	// Issue one badge instance to a user
	adminGroup.Post("/definitions/:id/issue", func(c *fiber.Ctx) error {
		var req struct {
			UserID string  `json:"user_id"`
			Origin *string `json:"origin"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		user, err := localUser(badges.DB, req.UserID)
		if err != nil {
			return serviceError(c, err)
		}

		ownership, err := badges.IssueBadge(user.ID, c.Params("id"), req.Origin)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(ownership)
	})

	// Create a draw type
	adminGroup.Post("/draw-types", func(c *fiber.Ctx) error {
		var req struct {
			Name             string   `json:"name"`
			Description      string   `json:"description"`
			AlgorithmKey     string   `json:"algorithm_key"`
			DefaultThreshold *float64 `json:"default_threshold"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		drawType, err := draws.CreateDrawType(req.Name, req.Description, req.AlgorithmKey, req.DefaultThreshold)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(drawType)
	})

	// Record a published winning number
	adminGroup.Post("/draw-types/:id/winning-numbers", func(c *fiber.Ctx) error {
		var req struct {
			Value string `json:"value"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		winningNumber, err := draws.RecordWinningNumber(c.Params("id"), req.Value)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(winningNumber)
	})

	// Evaluate a user's badges sitting on completed lines against a draw type
	adminGroup.Post("/draw-types/:id/evaluate-completed-lines", func(c *fiber.Ctx) error {
		var req struct {
			UserID            string   `json:"user_id"`
			ThresholdOverride *float64 `json:"threshold_override"`
			UseLatestNumber   bool     `json:"use_latest_number"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		drawType, err := loadDrawType(draws.DB, c.Params("id"))
		if err != nil {
			return serviceError(c, err)
		}

		user, err := localUser(badges.DB, req.UserID)
		if err != nil {
			return serviceError(c, err)
		}

		eligible, err := ranking.OwnershipsOnCompletedLines(user.ID)
		if err != nil {
			return serviceError(c, err)
		}

		var winningNumber *models.WinningNumber
		if req.UseLatestNumber {
			winningNumber, err = draws.LatestWinningNumber(drawType.ID)
			if err != nil {
				return serviceError(c, err)
			}
		}

		evaluations, err := draws.EvaluateBatch(eligible, drawType, winningNumber, req.ThresholdOverride)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"evaluations": evaluations})
	})

	// Top-K persisted results for a draw type
	adminGroup.Get("/draw-types/:id/top", func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 10)
		includePending := c.Query("include_pending", "true") == "true"

		drawType, err := loadDrawType(draws.DB, c.Params("id"))
		if err != nil {
			return serviceError(c, err)
		}

		results, err := ranking.SelectTopByScore(drawType, nil, limit, includePending)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"results": results})
	})
}

func loadDrawType(db *gorm.DB, id string) (*models.DrawType, error) {
	var drawType models.DrawType
	if err := db.First(&drawType, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, drawTypeNotFoundErr(id)
		}
		return nil, err
	}
	return &drawType, nil
}
