package repository

import (
	"context"

	"github.com/tavanofede-png/clases-de-frances/internal/models"
)

type TenantRepository struct {
	db DBTX
}

func NewTenantRepository(db DBTX) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	query := `
		SELECT id, slug, name, timezone, currency, is_active, settings, created_at, updated_at
		FROM tenants
		WHERE slug = $1 AND is_active = true
	`
	var tenant models.Tenant
	err := r.db.QueryRow(ctx, query, slug).Scan(
		&tenant.ID,
		&tenant.Slug,
		&tenant.Name,
		&tenant.Timezone,
		&tenant.Currency,
		&tenant.IsActive,
		&tenant.Settings,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *TenantRepository) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	query := `
		SELECT id, slug, name, timezone, currency, is_active, settings, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`
	var tenant models.Tenant
	err := r.db.QueryRow(ctx, query, id).Scan(
		&tenant.ID,
		&tenant.Slug,
		&tenant.Name,
		&tenant.Timezone,
		&tenant.Currency,
		&tenant.IsActive,
		&tenant.Settings,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *TenantRepository) UpdateSettings(ctx context.Context, id string, settings models.TenantSettings) error {
	query := `
		UPDATE tenants
		SET settings = settings || $2, updated_at = now()
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, id, settings)
	return err
}
