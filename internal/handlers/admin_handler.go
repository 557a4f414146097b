package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tavanofede-png/clases-de-frances/internal/middleware"
	"github.com/tavanofede-png/clases-de-frances/internal/models"
	"github.com/tavanofede-png/clases-de-frances/internal/repository"
	"github.com/tavanofede-png/clases-de-frances/internal/services"
	"github.com/tavanofede-png/clases-de-frances/internal/timegrid"
)

// AdminHandler covers the tenant back office: lesson management,
// availability configuration and tenant policy updates.
type AdminHandler struct {
	booking      *services.BookingService
	lessons      *repository.LessonRepository
	availability *repository.AvailabilityRepository
	tenants      *repository.TenantRepository
}

func NewAdminHandler(
	booking *services.BookingService,
	lessons *repository.LessonRepository,
	availability *repository.AvailabilityRepository,
	tenants *repository.TenantRepository,
) *AdminHandler {
	return &AdminHandler{
		booking:      booking,
		lessons:      lessons,
		availability: availability,
		tenants:      tenants,
	}
}

func (h *AdminHandler) ListLessons(c *fiber.Ctx) error {
	tenant := middleware.Tenant(c)

	filter := repository.LessonListFilter{
		Status:        strings.TrimSpace(c.Query("status")),
		PaymentStatus: strings.TrimSpace(c.Query("paymentStatus")),
		StudentID:     strings.TrimSpace(c.Query("studentId")),
	}
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		from, err := parseDateParam(raw)
		if err != nil {
			return badRequest(c, "from must be an RFC3339 timestamp or YYYY-MM-DD date")
		}
		filter.From = &from
	}
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		to, err := parseDateParam(raw)
		if err != nil {
			return badRequest(c, "to must be an RFC3339 timestamp or YYYY-MM-DD date")
		}
		filter.To = &to
	}

	lessons, err := h.lessons.List(c.Context(), tenant.ID, filter)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, fiber.Map{"lessons": lessons})
}

func (h *AdminHandler) GetLesson(c *fiber.Ctx) error {
	tenant := middleware.Tenant(c)

	lesson, err := h.lessons.GetByID(c.Context(), c.Params("id"), tenant.ID)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, fiber.Map{"lesson": lesson})
}

type adminLessonRequest struct {
	Status        *string `json:"status"`
	PaymentStatus *string `json:"paymentStatus"`
	TeacherNotes  *string `json:"teacherNotes"`
}

var validLessonStatuses = map[string]bool{
	models.LessonStatusReserved:  true,
	models.LessonStatusConfirmed: true,
	models.LessonStatusCompleted: true,
	models.LessonStatusCancelled: true,
	models.LessonStatusNoShow:    true,
}

func (h *AdminHandler) UpdateLesson(c *fiber.Ctx) error {
	tenant := middleware.Tenant(c)

	var req adminLessonRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Status != nil && !validLessonStatuses[*req.Status] {
		return badRequest(c, "invalid lesson status")
	}

	lesson, err := h.booking.AdminUpdate(c.Context(), tenant, c.Params("id"), repository.AdminLessonUpdate{
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
		TeacherNotes:  req.TeacherNotes,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, fiber.Map{"lesson": lesson})
}

func (h *AdminHandler) ListRules(c *fiber.Ctx) error {
	tenant := middleware.Tenant(c)

	rules, err := h.availability.ListActiveRules(c.Context(), tenant.ID)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, fiber.Map{"rules": rules})
}

type createRuleRequest struct {
	Weekday     int    `json:"weekday"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	SlotMinutes int    `json:"slotMinutes"`
}

func (h *AdminHandler) CreateRule(c *fiber.Ctx) error {
	tenant := middleware.Tenant(c)

	var req createRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Weekday < 0 || req.Weekday > 6 {
		return badRequest(c, "weekday must be between 0 (Sunday) and 6 (Saturday)")
	}
	startH, startM, err := timegrid.ParseClock(req.StartTime)
	if err != nil {
		return badRequest(c, "startTime must be HH:MM")
	}
	endH, endM, err := timegrid.ParseClock(req.EndTime)
	if err != nil {
		return badRequest(c, "endTime must be HH:MM")
	}
	if endH*60+endM <= startH*60+startM {
		return badRequest(c, "endTime must be after startTime")
	}
	if req.SlotMinutes <= 0 {
		return badRequest(c, "slotMinutes must be greater than 0")
	}

	rule := &models.AvailabilityRule{
		TenantID:    tenant.ID,
		Weekday:     req.Weekday,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		SlotMinutes: req.SlotMinutes,
	}
	if err := h.availability.CreateRule(c.Context(), rule); err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusCreated, fiber.Map{"rule": rule})
}

func (h *AdminHandler) DeleteRule(c *fiber.Ctx) error {
	tenant := middleware.Tenant(c)

	deleted, err := h.availability.DeleteRule(c.Context(), c.Params("id"), tenant.ID)
	if err != nil {
		return respondError(c, err)
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"ok": false, "error": "Rule not found"})
	}
	return respondMessage(c, fiber.StatusOK, nil, "Rule deleted")
}

func (h *AdminHandler) ListBlockedTimes(c *fiber.Ctx) error {
	tenant := middleware.Tenant(c)

	from := time.Now()
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		parsed, err := parseDateParam(raw)
		if err != nil {
			return badRequest(c, "from must be an RFC3339 timestamp or YYYY-MM-DD date")
		}
		from = parsed
	}
	to := from.AddDate(0, 1, 0)
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		parsed, err := parseDateParam(raw)
		if err != nil {
			return badRequest(c, "to must be an RFC3339 timestamp or YYYY-MM-DD date")
		}
		to = parsed
	}

	blocked, err := h.availability.ListBlockedInRange(c.Context(), tenant.ID, from, to)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, fiber.Map{"blockedTimes": blocked})
}

type createBlockedRequest struct {
	StartsAt string `json:"startsAt"`
	EndsAt   string `json:"endsAt"`
	Reason   string `json:"reason"`
}

func (h *AdminHandler) CreateBlockedTime(c *fiber.Ctx) error {
	tenant := middleware.Tenant(c)

	var req createBlockedRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	startsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartsAt))
	if err != nil {
		return badRequest(c, "startsAt must be a valid RFC3339 timestamp")
	}
	endsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.EndsAt))
	if err != nil {
		return badRequest(c, "endsAt must be a valid RFC3339 timestamp")
	}
	if !endsAt.After(startsAt) {
		return badRequest(c, "endsAt must be after startsAt")
	}

	blocked := &models.BlockedTime{
		TenantID: tenant.ID,
		StartsAt: startsAt,
		EndsAt:   endsAt,
	}
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		blocked.Reason = &reason
	}
	if err := h.availability.CreateBlockedTime(c.Context(), blocked); err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusCreated, fiber.Map{"blockedTime": blocked})
}

func (h *AdminHandler) DeleteBlockedTime(c *fiber.Ctx) error {
	tenant := middleware.Tenant(c)

	deleted, err := h.availability.DeleteBlockedTime(c.Context(), c.Params("id"), tenant.ID)
	if err != nil {
		return respondError(c, err)
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"ok": false, "error": "Blocked time not found"})
	}
	return respondMessage(c, fiber.StatusOK, nil, "Blocked time deleted")
}

// UpdateConfig merges the submitted settings into the tenant's JSONB blob.
// Absent fields keep their stored values.
func (h *AdminHandler) UpdateConfig(c *fiber.Ctx) error {
	tenant := middleware.Tenant(c)

	var settings models.TenantSettings
	if err := c.BodyParser(&settings); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if settings.RescheduleMinHours != nil && *settings.RescheduleMinHours < 0 {
		return badRequest(c, "rescheduleMinHours must not be negative")
	}
	if settings.CancelMinHours != nil && *settings.CancelMinHours < 0 {
		return badRequest(c, "cancelMinHours must not be negative")
	}

	if err := h.tenants.UpdateSettings(c.Context(), tenant.ID, settings); err != nil {
		return respondError(c, err)
	}

	updated, err := h.tenants.GetByID(c.Context(), tenant.ID)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, fiber.Map{"settings": updated.Settings})
}
