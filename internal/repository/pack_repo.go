package repository

import (
	"context"
	"time"

	"github.com/tavanofede-png/clases-de-frances/internal/models"
)

type PackRepository struct {
	db DBTX
}

func NewPackRepository(db DBTX) *PackRepository {
	return &PackRepository{db: db}
}

const packColumns = `id, tenant_id, student_id, lesson_type_id, total_credits, used_credits,
		expires_at, is_active, created_at`

func scanPack(row interface{ Scan(...any) error }) (*models.Pack, error) {
	var p models.Pack
	err := row.Scan(
		&p.ID,
		&p.TenantID,
		&p.StudentID,
		&p.LessonTypeID,
		&p.TotalCredits,
		&p.UsedCredits,
		&p.ExpiresAt,
		&p.IsActive,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PackRepository) Create(ctx context.Context, pack *models.Pack) error {
	query := `
		INSERT INTO packs (tenant_id, student_id, lesson_type_id, total_credits, used_credits, expires_at, is_active)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
		RETURNING id, used_credits, created_at
	`
	return r.db.QueryRow(ctx, query,
		pack.TenantID, pack.StudentID, pack.LessonTypeID, pack.TotalCredits, pack.ExpiresAt, pack.IsActive,
	).Scan(&pack.ID, &pack.UsedCredits, &pack.CreatedAt)
}

func (r *PackRepository) GetByID(ctx context.Context, id, tenantID string) (*models.Pack, error) {
	query := `
		SELECT ` + packColumns + `
		FROM packs
		WHERE id = $1 AND tenant_id = $2
	`
	return scanPack(r.db.QueryRow(ctx, query, id, tenantID))
}

// OldestUsableForUpdate locks and returns the student's earliest-created pack
// that is active, unexpired, and has credits left. First-expiring-first-used:
// packs are consumed in creation order, never split across packs.
func (r *PackRepository) OldestUsableForUpdate(ctx context.Context, tenantID, studentID string, now time.Time) (*models.Pack, error) {
	query := `
		SELECT ` + packColumns + `
		FROM packs
		WHERE tenant_id = $1 AND student_id = $2 AND is_active = true
		  AND (expires_at IS NULL OR expires_at > $3)
		  AND used_credits < total_credits
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE
	`
	return scanPack(r.db.QueryRow(ctx, query, tenantID, studentID, now))
}

func (r *PackRepository) ListByStudent(ctx context.Context, tenantID, studentID string) ([]models.Pack, error) {
	query := `
		SELECT ` + packColumns + `
		FROM packs
		WHERE tenant_id = $1 AND student_id = $2
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, tenantID, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var packs []models.Pack
	for rows.Next() {
		pack, err := scanPack(rows)
		if err != nil {
			return nil, err
		}
		packs = append(packs, *pack)
	}
	return packs, rows.Err()
}

// AdjustUsed moves used_credits by delta (+1 consume, -1 refund). The check
// constraint on the table rejects moves outside [0, total_credits].
func (r *PackRepository) AdjustUsed(ctx context.Context, id string, delta int) error {
	query := `
		UPDATE packs
		SET used_credits = used_credits + $2
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, id, delta)
	return err
}

// Activate turns the pack on after payment approval and stamps the expiry.
func (r *PackRepository) Activate(ctx context.Context, id string, expiresAt *time.Time) error {
	query := `
		UPDATE packs
		SET is_active = true, expires_at = COALESCE($2, expires_at)
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, id, expiresAt)
	return err
}

func (r *PackRepository) AppendLedger(ctx context.Context, entry *models.PackLedgerEntry) error {
	query := `
		INSERT INTO pack_ledger (tenant_id, pack_id, lesson_id, delta, reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	return r.db.QueryRow(ctx, query,
		entry.TenantID, entry.PackID, entry.LessonID, entry.Delta, entry.Reason,
	).Scan(&entry.ID, &entry.CreatedAt)
}

// LedgerSum returns the sum of deltas for a pack. The conservation law
// requires used_credits == -LedgerSum at all times.
func (r *PackRepository) LedgerSum(ctx context.Context, packID string) (int, error) {
	var sum int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(delta), 0) FROM pack_ledger WHERE pack_id = $1`, packID).Scan(&sum)
	return sum, err
}

func (r *PackRepository) ListLedger(ctx context.Context, packID string) ([]models.PackLedgerEntry, error) {
	query := `
		SELECT id, tenant_id, pack_id, lesson_id, delta, reason, created_at
		FROM pack_ledger
		WHERE pack_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, packID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.PackLedgerEntry
	for rows.Next() {
		var e models.PackLedgerEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.PackID, &e.LessonID, &e.Delta, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
