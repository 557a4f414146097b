package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/tavanofede-png/clases-de-frances/internal/models"
	"github.com/tavanofede-png/clases-de-frances/internal/repository"
)

const tenantLocalKey = "tenant"

// ResolveTenant loads the active tenant named by the :slug path segment and
// stores it on locals for the downstream handlers.
func ResolveTenant(tenants *repository.TenantRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		slug := c.Params("slug")
		if slug == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"ok":    false,
				"error": "Missing tenant slug",
			})
		}

		tenant, err := tenants.GetBySlug(c.Context(), slug)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"ok":    false,
					"error": "Tenant not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"ok":    false,
				"error": "Failed to resolve tenant",
			})
		}

		c.Locals(tenantLocalKey, tenant)
		return c.Next()
	}
}

// Tenant returns the tenant stored by ResolveTenant. It is nil only on
// routes not wrapped by the middleware.
func Tenant(c *fiber.Ctx) *models.Tenant {
	tenant, _ := c.Locals(tenantLocalKey).(*models.Tenant)
	return tenant
}
