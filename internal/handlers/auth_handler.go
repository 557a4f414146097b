package handlers

import (
	"errors"
	"net/mail"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tavanofede-png/clases-de-frances/internal/middleware"
	"github.com/tavanofede-png/clases-de-frances/internal/models"
	"github.com/tavanofede-png/clases-de-frances/internal/repository"
	"github.com/tavanofede-png/clases-de-frances/pkg/utils"
)

type AuthHandler struct {
	db        *pgxpool.Pool
	users     *repository.UserRepository
	students  *repository.StudentRepository
	jwtSecret string
}

func NewAuthHandler(
	db *pgxpool.Pool,
	users *repository.UserRepository,
	students *repository.StudentRepository,
	jwtSecret string,
) *AuthHandler {
	return &AuthHandler{db: db, users: users, students: students, jwtSecret: jwtSecret}
}

type registerRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     string  `json:"name"`
	Phone    *string `json:"phone"`
	Level    *string `json:"level"`
	Goals    *string `json:"goals"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a student account scoped to the current tenant. An email
// already registered on another tenant can enroll here by signing up again
// with the same password.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	tenant := middleware.Tenant(c)

	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	parsedEmail, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return badRequest(c, "Invalid email format")
	}
	req.Email = strings.ToLower(parsedEmail.Address)
	if len(req.Password) < 8 {
		return badRequest(c, "Password must be at least 8 characters")
	}
	if strings.TrimSpace(req.Name) == "" {
		return badRequest(c, "name is required")
	}

	student := &models.Student{
		TenantID: tenant.ID,
		Level:    req.Level,
		Goals:    req.Goals,
	}

	user, err := h.users.GetByEmail(c.Context(), req.Email)
	switch {
	case err == nil:
		if !utils.CheckPassword(req.Password, user.PasswordHash) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"ok":    false,
				"error": "Email already registered",
			})
		}
		student.UserID = user.ID
		if createErr := h.students.Create(c.Context(), student); createErr != nil {
			return respondError(c, createErr)
		}
	case errors.Is(err, pgx.ErrNoRows):
		hashed, hashErr := utils.HashPassword(req.Password)
		if hashErr != nil {
			return respondError(c, hashErr)
		}
		user = &models.User{
			Email:        req.Email,
			PasswordHash: hashed,
			Name:         strings.TrimSpace(req.Name),
			Phone:        req.Phone,
			Role:         models.RoleStudent,
		}

		tx, txErr := h.db.Begin(c.Context())
		if txErr != nil {
			return respondError(c, txErr)
		}
		defer func() {
			_ = tx.Rollback(c.Context())
		}()

		if createErr := repository.NewUserRepository(tx).Create(c.Context(), user); createErr != nil {
			var pgErr *pgconn.PgError
			if errors.As(createErr, &pgErr) && pgErr.Code == "23505" {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"ok":    false,
					"error": "Email already registered",
				})
			}
			return respondError(c, createErr)
		}
		student.UserID = user.ID
		if createErr := repository.NewStudentRepository(tx).Create(c.Context(), student); createErr != nil {
			return respondError(c, createErr)
		}
		if commitErr := tx.Commit(c.Context()); commitErr != nil {
			return respondError(c, commitErr)
		}
	default:
		return respondError(c, err)
	}

	token, err := utils.GenerateToken(user.ID, user.Role, h.jwtSecret)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusCreated, fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
			"role":  user.Role,
		},
		"studentId": student.ID,
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	parsedEmail, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return badRequest(c, "Invalid email format")
	}

	user, err := h.users.GetByEmail(c.Context(), strings.ToLower(parsedEmail.Address))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return unauthorized(c, "Invalid email or password")
		}
		return respondError(c, err)
	}
	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		return unauthorized(c, "Invalid email or password")
	}

	token, err := utils.GenerateToken(user.ID, user.Role, h.jwtSecret)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
			"role":  user.Role,
		},
	})
}

// Me returns the authenticated user plus their enrollment on this tenant.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	tenant := middleware.Tenant(c)
	userID := middleware.UserID(c)
	if userID == "" {
		return unauthorized(c, "Invalid token")
	}

	user, err := h.users.GetByID(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	payload := fiber.Map{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
		"phone": user.Phone,
		"role":  user.Role,
	}
	student, err := h.students.GetByUserAndTenant(c.Context(), user.ID, tenant.ID)
	if err == nil {
		payload["studentId"] = student.ID
		payload["level"] = student.Level
		payload["goals"] = student.Goals
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return respondError(c, err)
	}
	return respondData(c, fiber.StatusOK, payload)
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"ok": false, "error": msg})
}
