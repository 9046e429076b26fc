package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/smart-report-api/internal/models"
	"github.com/noah-isme/smart-report-api/pkg/database"
)

const profileSelect = `SELECT s.id, s.user_id, s.class_id, s.student_role, s.created_at, s.updated_at,
u.name, u.email, u.status AS user_status, u.created_at AS user_created_at, c.name AS class_name
FROM students s
JOIN users u ON u.id = s.user_id
LEFT JOIN classes c ON c.id = s.class_id`

// StudentRepository persists student profiles and class memberships.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByUserID returns the student profile of a user.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	const query = `SELECT id, user_id, class_id, student_role, created_at, updated_at FROM students WHERE user_id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// Assign sets class membership and representative role, creating the profile when missing.
func (r *StudentRepository) Assign(ctx context.Context, userID string, classID *string, role *models.StudentRole) (*models.Student, error) {
	now := time.Now().UTC()
	const query = `INSERT INTO students (id, user_id, class_id, student_role, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (user_id) DO UPDATE SET class_id = EXCLUDED.class_id, student_role = EXCLUDED.student_role, updated_at = EXCLUDED.updated_at
RETURNING id, user_id, class_id, student_role, created_at, updated_at`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, uuid.NewString(), userID, classID, role, now); err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, ErrUnknownReference
		}
		return nil, fmt.Errorf("assign student: %w", err)
	}
	return &student, nil
}

// ListRepresentatives returns active students holding any representative role.
func (r *StudentRepository) ListRepresentatives(ctx context.Context) ([]models.StudentProfile, error) {
	roles := make([]string, len(models.RepresentativeRoles))
	for i, role := range models.RepresentativeRoles {
		roles[i] = string(role)
	}
	query := profileSelect + ` WHERE s.student_role = ANY($1) AND u.status = $2 ORDER BY u.name ASC`
	var profiles []models.StudentProfile
	if err := r.db.SelectContext(ctx, &profiles, query, pq.Array(roles), models.UserStatusActive); err != nil {
		return nil, fmt.Errorf("list representatives: %w", err)
	}
	return profiles, nil
}

// ListByClass returns the members of a class ordered by name.
func (r *StudentRepository) ListByClass(ctx context.Context, classID string) ([]models.StudentProfile, error) {
	query := profileSelect + ` WHERE s.class_id = $1 ORDER BY u.name ASC`
	var profiles []models.StudentProfile
	if err := r.db.SelectContext(ctx, &profiles, query, classID); err != nil {
		return nil, fmt.Errorf("list class students: %w", err)
	}
	return profiles, nil
}

// CountRepresentatives returns the number of active representatives.
func (r *StudentRepository) CountRepresentatives(ctx context.Context) (int, error) {
	roles := make([]string, len(models.RepresentativeRoles))
	for i, role := range models.RepresentativeRoles {
		roles[i] = string(role)
	}
	const query = `SELECT COUNT(*) FROM students s JOIN users u ON u.id = s.user_id WHERE s.student_role = ANY($1) AND u.status = $2`
	var total int
	if err := r.db.GetContext(ctx, &total, query, pq.Array(roles), models.UserStatusActive); err != nil {
		return 0, fmt.Errorf("count representatives: %w", err)
	}
	return total, nil
}
