package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tavanofede-png/clases-de-frances/internal/middleware"
	"github.com/tavanofede-png/clases-de-frances/internal/services"
)

type BookingHandler struct {
	service *services.BookingService
}

func NewBookingHandler(service *services.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

type createBookingRequest struct {
	LessonTypeID string `json:"lessonTypeId"`
	StartsAt     string `json:"startsAt"`
}

type rescheduleRequest struct {
	StartsAt string `json:"startsAt"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type purchasePackRequest struct {
	LessonTypeID string `json:"lessonTypeId"`
}

type checkoutRequest struct {
	LessonID string `json:"lessonId"`
}

func (h *BookingHandler) Create(c *fiber.Ctx) error {
	tenant := middleware.Tenant(c)
	userID := middleware.UserID(c)

	var req createBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.LessonTypeID) == "" {
		return badRequest(c, "lessonTypeId is required")
	}
	startsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartsAt))
	if err != nil {
		return badRequest(c, "startsAt must be a valid RFC3339 timestamp")
	}

	result, err := h.service.Create(c.Context(), tenant, userID, services.CreateBookingInput{
		LessonTypeID: req.LessonTypeID,
		StartsAt:     startsAt,
	})
	if err != nil {
		return respondError(c, err)
	}

	return respondMessage(c, fiber.StatusCreated, fiber.Map{
		"lesson":          result.Lesson,
		"payment":         result.Payment,
		"coveredByPack":   result.CoveredByPack,
		"requiresPayment": result.RequiresPayment,
	}, result.Message)
}

func (h *BookingHandler) Reschedule(c *fiber.Ctx) error {
	tenant := middleware.Tenant(c)
	userID := middleware.UserID(c)

	var req rescheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	startsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartsAt))
	if err != nil {
		return badRequest(c, "startsAt must be a valid RFC3339 timestamp")
	}

	lesson, err := h.service.Reschedule(c.Context(), tenant, userID, c.Params("id"), startsAt)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, fiber.Map{"lesson": lesson})
}

func (h *BookingHandler) Cancel(c *fiber.Ctx) error {
	tenant := middleware.Tenant(c)
	userID := middleware.UserID(c)

	var req cancelRequest
	// Body is optional for cancellations.
	_ = c.BodyParser(&req)

	if err := h.service.Cancel(c.Context(), tenant, userID, c.Params("id"), req.Reason); err != nil {
		return respondError(c, err)
	}
	return respondMessage(c, fiber.StatusOK, nil, "Lesson cancelled")
}

func (h *BookingHandler) MyLessons(c *fiber.Ctx) error {
	tenant := middleware.Tenant(c)
	userID := middleware.UserID(c)

	lessons, err := h.service.StudentLessons(c.Context(), tenant, userID)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, fiber.Map{"lessons": lessons})
}

func (h *BookingHandler) MyPacks(c *fiber.Ctx) error {
	tenant := middleware.Tenant(c)
	userID := middleware.UserID(c)

	packs, err := h.service.StudentPacks(c.Context(), tenant, userID)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, fiber.Map{"packs": packs})
}

func (h *BookingHandler) Checkout(c *fiber.Ctx) error {
	tenant := middleware.Tenant(c)

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.LessonID) == "" {
		return badRequest(c, "lessonId is required")
	}

	result, err := h.service.Checkout(c.Context(), tenant, req.LessonID)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, fiber.Map{
		"checkoutUrl": result.CheckoutURL,
		"reference":   result.Reference,
		"amount":      result.Amount,
	})
}

func (h *BookingHandler) PurchasePack(c *fiber.Ctx) error {
	tenant := middleware.Tenant(c)
	userID := middleware.UserID(c)

	var req purchasePackRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.LessonTypeID) == "" {
		return badRequest(c, "lessonTypeId is required")
	}

	result, err := h.service.PurchasePack(c.Context(), tenant, userID, req.LessonTypeID)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusCreated, fiber.Map{
		"pack":        result.Pack,
		"checkoutUrl": result.CheckoutURL,
		"reference":   result.Reference,
		"amount":      result.Amount,
	})
}
