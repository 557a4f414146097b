package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/tavanofede-png/clases-de-frances/internal/middleware"
	"github.com/tavanofede-png/clases-de-frances/internal/models"
	"github.com/tavanofede-png/clases-de-frances/internal/queue"
	"github.com/tavanofede-png/clases-de-frances/internal/repository"
)

type LeadHandler struct {
	leads    *repository.LeadRepository
	enqueuer queue.Enqueuer
	logger   *zap.Logger
}

func NewLeadHandler(leads *repository.LeadRepository, enqueuer queue.Enqueuer, logger *zap.Logger) *LeadHandler {
	return &LeadHandler{leads: leads, enqueuer: enqueuer, logger: logger}
}

type createLeadRequest struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Objective string `json:"objective"`
}

// Create registers a prospect from the public landing form and queues the
// welcome email.
func (h *LeadHandler) Create(c *fiber.Ctx) error {
	tenant := middleware.Tenant(c)

	var req createLeadRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Phone == "" {
		return badRequest(c, "name and phone are required")
	}

	lead := &models.Lead{
		TenantID: tenant.ID,
		Name:     req.Name,
		Phone:    req.Phone,
	}
	if req.Email != "" {
		lead.Email = &req.Email
	}
	if objective := strings.TrimSpace(req.Objective); objective != "" {
		lead.Objective = &objective
	}

	if err := h.leads.Create(c.Context(), lead); err != nil {
		return respondError(c, err)
	}

	job := queue.Welcome(tenant.ID, queue.LeadInfo{
		Name:      req.Name,
		Phone:     req.Phone,
		Email:     req.Email,
		Objective: req.Objective,
	})
	if err := h.enqueuer.Enqueue(c.Context(), job); err != nil {
		// The lead is saved; a lost welcome email is not worth a 500.
		h.logger.Error("failed to enqueue welcome job",
			zap.String("lead_id", lead.ID), zap.Error(err))
	}

	return respondMessage(c, fiber.StatusCreated, fiber.Map{"lead": lead}, "Thanks! We will contact you soon.")
}
