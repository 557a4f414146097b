package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tavanofede-png/clases-de-frances/internal/middleware"
	"github.com/tavanofede-png/clases-de-frances/internal/models"
	"github.com/tavanofede-png/clases-de-frances/internal/services"
)

type AvailabilityHandler struct {
	service slotService
}

type slotService interface {
	GenerateSlots(ctx context.Context, tenant *models.Tenant, lessonTypeID string, from, to time.Time) ([]models.Slot, error)
}

func NewAvailabilityHandler(service *services.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: service}
}

// GetSlots lists the open slots for a lesson type between two dates. Dates
// default to the coming week.
func (h *AvailabilityHandler) GetSlots(c *fiber.Ctx) error {
	tenant := middleware.Tenant(c)

	lessonTypeID := strings.TrimSpace(c.Query("lessonTypeId"))
	if lessonTypeID == "" {
		return badRequest(c, "lessonTypeId is required")
	}

	from := time.Now()
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		parsed, err := parseDateParam(raw)
		if err != nil {
			return badRequest(c, "from must be an RFC3339 timestamp or YYYY-MM-DD date")
		}
		from = parsed
	}
	to := from.AddDate(0, 0, 6)
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		parsed, err := parseDateParam(raw)
		if err != nil {
			return badRequest(c, "to must be an RFC3339 timestamp or YYYY-MM-DD date")
		}
		to = parsed
	}
	if to.Before(from) {
		return badRequest(c, "to must not be before from")
	}

	slots, err := h.service.GenerateSlots(c.Context(), tenant, lessonTypeID, from, to)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, fiber.Map{"slots": slots})
}

func parseDateParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
