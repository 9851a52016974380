package handlers

import (
	"badge-draw-system/middleware"
	"badge-draw-system/models"
	"badge-draw-system/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SetupGridRoutes wires the user-facing grid card endpoints.
func SetupGridRoutes(app *fiber.App, grids *services.GridService) {
	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	// List my cards with cells and completed lines
	securedGroup.Get("/user/cards", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		user, err := localUser(grids.DB, userID)
		if err != nil {
			return serviceError(c, err)
		}

		cards, err := grids.CardsForUser(user.ID)
		if err != nil {
			return serviceError(c, err)
		}

		out := make([]fiber.Map, 0, len(cards))
		for i := range cards {
			out = append(out, fiber.Map{
				"card":            cards[i],
				"completed_lines": cards[i].CompletedLines(),
			})
		}
		return c.JSON(fiber.Map{"cards": out})
	})

	// My draw results
	securedGroup.Get("/user/draws", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		user, err := localUser(grids.DB, userID)
		if err != nil {
			return serviceError(c, err)
		}

		var results []models.DrawResult
		if err := grids.DB.Where("user_id = ?", user.ID).
			Order("evaluated_at DESC, id DESC").
			Find(&results).Error; err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"results": results})
	})

	// Reconcile my cards and cells on demand
	securedGroup.Post("/user/cards/reconcile", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		user, err := localUser(grids.DB, userID)
		if err != nil {
			return serviceError(c, err)
		}

		created, err := grids.EnsureCardsForUser(user.ID)
		if err != nil {
			return serviceError(c, err)
		}
		unlocked, err := grids.EnsureCellsForUser(user.ID)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"cards_created": created, "cells_unlocked": unlocked})
	})
}

// localUser resolves the gateway user id to the synced ledger user row.
func localUser(db *gorm.DB, externalUserID string) (*models.LedgerUser, error) {
	var user models.LedgerUser
	if err := db.Where("external_user_id = ?", externalUserID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notSyncedErr(externalUserID)
		}
		return nil, err
	}
	return &user, nil
}
