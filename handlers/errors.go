package handlers

import (
	"errors"

	"badge-draw-system/errs"

	"github.com/gofiber/fiber/v2"
)

func drawTypeNotFoundErr(id string) error {
	return errs.NotFoundf("draw_type_unknown", "draw type %s not found", id)
}

func notSyncedErr(externalUserID string) error {
	return errs.NotFoundf("user_not_synced", "user %s has not been synced from the ledger yet", externalUserID)
}

// serviceError maps the service error taxonomy onto HTTP responses.
func serviceError(c *fiber.Ctx, err error) error {
	var e *errs.Error
	if !errors.As(err, &e) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
			"cause": err.Error(),
		})
	}

	status := fiber.StatusInternalServerError
	switch e.Kind {
	case errs.KindValidation:
		status = fiber.StatusBadRequest
	case errs.KindPrecondition:
		status = fiber.StatusUnprocessableEntity
	case errs.KindNotFound:
		status = fiber.StatusNotFound
	case errs.KindConflict:
		status = fiber.StatusConflict
	}

	return c.Status(status).JSON(fiber.Map{
		"error": e.Error(),
		"code":  e.Code,
	})
}
