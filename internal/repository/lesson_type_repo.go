package repository

import (
	"context"

	"github.com/tavanofede-png/clases-de-frances/internal/models"
)

type LessonTypeRepository struct {
	db DBTX
}

func NewLessonTypeRepository(db DBTX) *LessonTypeRepository {
	return &LessonTypeRepository{db: db}
}

const lessonTypeColumns = `id, tenant_id, name, duration_min, price_amount, currency,
		is_pack_type, pack_size, pack_validity_days, is_active, created_at`

func (r *LessonTypeRepository) scanOne(row interface{ Scan(...any) error }) (*models.LessonType, error) {
	var lt models.LessonType
	err := row.Scan(
		&lt.ID,
		&lt.TenantID,
		&lt.Name,
		&lt.DurationMin,
		&lt.PriceAmount,
		&lt.Currency,
		&lt.IsPackType,
		&lt.PackSize,
		&lt.PackValidityDays,
		&lt.IsActive,
		&lt.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &lt, nil
}

// GetActive returns the lesson type only when it exists, belongs to the
// tenant, and has not been deactivated.
func (r *LessonTypeRepository) GetActive(ctx context.Context, id, tenantID string) (*models.LessonType, error) {
	query := `
		SELECT ` + lessonTypeColumns + `
		FROM lesson_types
		WHERE id = $1 AND tenant_id = $2 AND is_active = true
	`
	return r.scanOne(r.db.QueryRow(ctx, query, id, tenantID))
}

func (r *LessonTypeRepository) GetByID(ctx context.Context, id string) (*models.LessonType, error) {
	query := `
		SELECT ` + lessonTypeColumns + `
		FROM lesson_types
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *LessonTypeRepository) ListActive(ctx context.Context, tenantID string) ([]models.LessonType, error) {
	query := `
		SELECT ` + lessonTypeColumns + `
		FROM lesson_types
		WHERE tenant_id = $1 AND is_active = true
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []models.LessonType
	for rows.Next() {
		lt, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, *lt)
	}
	return types, rows.Err()
}
