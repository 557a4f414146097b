package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/tavanofede-png/clases-de-frances/internal/middleware"
	"github.com/tavanofede-png/clases-de-frances/internal/services"
)

type WebhookHandler struct {
	service *services.WebhookService
}

func NewWebhookHandler(service *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// Wompi receives provider payment events. The raw body goes to the service
// untouched; signatures are computed over the original bytes.
func (h *WebhookHandler) Wompi(c *fiber.Ctx) error {
	tenant := middleware.Tenant(c)

	requestID, _ := c.Locals("requestid").(string)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	outcome, err := h.service.ProcessWompi(c.Context(), tenant, c.Body(), requestID)
	if err != nil {
		return respondError(c, err)
	}
	return respondMessage(c, fiber.StatusOK, nil, outcome.Message)
}
