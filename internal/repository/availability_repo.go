package repository

import (
	"context"
	"time"

	"github.com/tavanofede-png/clases-de-frances/internal/models"
)

type AvailabilityRepository struct {
	db DBTX
}

func NewAvailabilityRepository(db DBTX) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

func (r *AvailabilityRepository) ListActiveRules(ctx context.Context, tenantID string) ([]models.AvailabilityRule, error) {
	query := `
		SELECT id, tenant_id, weekday, start_time, end_time, slot_minutes, is_active
		FROM availability_rules
		WHERE tenant_id = $1 AND is_active = true
		ORDER BY weekday, start_time
	`
	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []models.AvailabilityRule
	for rows.Next() {
		var rule models.AvailabilityRule
		if err := rows.Scan(
			&rule.ID,
			&rule.TenantID,
			&rule.Weekday,
			&rule.StartTime,
			&rule.EndTime,
			&rule.SlotMinutes,
			&rule.IsActive,
		); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *AvailabilityRepository) CreateRule(ctx context.Context, rule *models.AvailabilityRule) error {
	query := `
		INSERT INTO availability_rules (tenant_id, weekday, start_time, end_time, slot_minutes, is_active)
		VALUES ($1, $2, $3, $4, $5, true)
		RETURNING id, is_active
	`
	return r.db.QueryRow(ctx, query,
		rule.TenantID, rule.Weekday, rule.StartTime, rule.EndTime, rule.SlotMinutes,
	).Scan(&rule.ID, &rule.IsActive)
}

func (r *AvailabilityRepository) DeleteRule(ctx context.Context, id, tenantID string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM availability_rules WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListBlockedInRange returns blocked intervals intersecting [from, to].
func (r *AvailabilityRepository) ListBlockedInRange(ctx context.Context, tenantID string, from, to time.Time) ([]models.BlockedTime, error) {
	query := `
		SELECT id, tenant_id, starts_at, ends_at, reason
		FROM blocked_times
		WHERE tenant_id = $1 AND starts_at <= $3 AND ends_at >= $2
		ORDER BY starts_at
	`
	rows, err := r.db.Query(ctx, query, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocked []models.BlockedTime
	for rows.Next() {
		var bt models.BlockedTime
		if err := rows.Scan(&bt.ID, &bt.TenantID, &bt.StartsAt, &bt.EndsAt, &bt.Reason); err != nil {
			return nil, err
		}
		blocked = append(blocked, bt)
	}
	return blocked, rows.Err()
}

func (r *AvailabilityRepository) CreateBlockedTime(ctx context.Context, bt *models.BlockedTime) error {
	query := `
		INSERT INTO blocked_times (tenant_id, starts_at, ends_at, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	return r.db.QueryRow(ctx, query, bt.TenantID, bt.StartsAt, bt.EndsAt, bt.Reason).Scan(&bt.ID)
}

func (r *AvailabilityRepository) DeleteBlockedTime(ctx context.Context, id, tenantID string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM blocked_times WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
