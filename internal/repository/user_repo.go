package repository

import (
	"context"

	"github.com/tavanofede-png/clases-de-frances/internal/models"
)

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, password_hash, name, phone, role, timezone)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, 'America/Bogota'))
		RETURNING id, timezone, created_at
	`
	return r.db.QueryRow(ctx, query,
		user.Email, user.PasswordHash, user.Name, user.Phone, user.Role, user.Timezone,
	).Scan(&user.ID, &user.Timezone, &user.CreatedAt)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, name, phone, role, timezone, created_at
		FROM users
		WHERE email = $1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Name,
		&user.Phone, &user.Role, &user.Timezone, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, name, phone, role, timezone, created_at
		FROM users
		WHERE id = $1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Name,
		&user.Phone, &user.Role, &user.Timezone, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
