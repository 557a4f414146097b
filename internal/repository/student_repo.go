package repository

import (
	"context"

	"github.com/tavanofede-png/clases-de-frances/internal/models"
)

type StudentRepository struct {
	db DBTX
}

func NewStudentRepository(db DBTX) *StudentRepository {
	return &StudentRepository{db: db}
}

func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	query := `
		INSERT INTO students (tenant_id, user_id, level, goals)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, created_at
	`
	return r.db.QueryRow(ctx, query,
		student.TenantID, student.UserID, student.Level, student.Goals,
	).Scan(&student.ID, &student.CreatedAt)
}

func (r *StudentRepository) GetByUserAndTenant(ctx context.Context, userID, tenantID string) (*models.Student, error) {
	query := `
		SELECT id, tenant_id, user_id, level, goals, created_at
		FROM students
		WHERE user_id = $1 AND tenant_id = $2
	`
	var student models.Student
	err := r.db.QueryRow(ctx, query, userID, tenantID).Scan(
		&student.ID,
		&student.TenantID,
		&student.UserID,
		&student.Level,
		&student.Goals,
		&student.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *StudentRepository) GetByID(ctx context.Context, id, tenantID string) (*models.Student, error) {
	query := `
		SELECT id, tenant_id, user_id, level, goals, created_at
		FROM students
		WHERE id = $1 AND tenant_id = $2
	`
	var student models.Student
	err := r.db.QueryRow(ctx, query, id, tenantID).Scan(
		&student.ID,
		&student.TenantID,
		&student.UserID,
		&student.Level,
		&student.Goals,
		&student.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &student, nil
}

// ContactByStudentID returns the student's user name and email for outbound
// messaging.
func (r *StudentRepository) ContactByStudentID(ctx context.Context, studentID string) (name, email string, err error) {
	query := `
		SELECT u.name, u.email
		FROM students s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = $1
	`
	err = r.db.QueryRow(ctx, query, studentID).Scan(&name, &email)
	return name, email, err
}

type LeadRepository struct {
	db DBTX
}

func NewLeadRepository(db DBTX) *LeadRepository {
	return &LeadRepository{db: db}
}

func (r *LeadRepository) Create(ctx context.Context, lead *models.Lead) error {
	query := `
		INSERT INTO leads (tenant_id, name, phone, email, objective, status)
		VALUES ($1, $2, $3, $4, $5, 'new')
		RETURNING id, status, created_at
	`
	return r.db.QueryRow(ctx, query, lead.TenantID, lead.Name, lead.Phone, lead.Email, lead.Objective).
		Scan(&lead.ID, &lead.Status, &lead.CreatedAt)
}
