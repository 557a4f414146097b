package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/tavanofede-png/clases-de-frances/pkg/apperr"
)

// All endpoints answer with the same envelope: {ok, data, error, message}.

func respondData(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{"ok": true, "data": data})
}

func respondMessage(c *fiber.Ctx, status int, data any, message string) error {
	return c.Status(status).JSON(fiber.Map{"ok": true, "data": data, "message": message})
}

func respondError(c *fiber.Ctx, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(fiber.Map{
			"ok":    false,
			"error": appErr.Message,
			"code":  appErr.Code,
		})
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"ok":    false,
			"error": "Resource not found",
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"ok":    false,
		"error": "Internal server error",
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"ok":    false,
		"error": message,
	})
}
