package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/smart-report-api/internal/models"
	"github.com/noah-isme/smart-report-api/pkg/database"
)

// ClassRepository handles persistence of classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// ListSummaries returns classes with membership and report counters; weekStart bounds reports_this_week.
func (r *ClassRepository) ListSummaries(ctx context.Context, search string, weekStart time.Time) ([]models.ClassSummary, error) {
	query := `SELECT c.id, c.name, c.description, c.created_at, c.updated_at,
(SELECT COUNT(*) FROM students s WHERE s.class_id = c.id) AS total_students,
(SELECT COUNT(*) FROM students s WHERE s.class_id = c.id AND s.student_role IS NOT NULL) AS representatives,
(SELECT COUNT(*) FROM reports r WHERE r.class_id = c.id AND r.created_at >= $1) AS reports_this_week,
(SELECT COUNT(*) FROM reports r WHERE r.class_id = c.id) AS total_reports
FROM classes c`
	args := []interface{}{weekStart}
	if search = strings.TrimSpace(search); search != "" {
		query += ` WHERE LOWER(c.name) LIKE $2 OR LOWER(COALESCE(c.description, '')) LIKE $2`
		args = append(args, "%"+strings.ToLower(search)+"%")
	}
	query += ` ORDER BY c.name ASC`

	var classes []models.ClassSummary
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// FindByID returns a class by id.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, name, description, created_at, updated_at FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find class: %w", err)
	}
	return &class, nil
}

// Create inserts a class. Duplicate names yield ErrDuplicateName.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now
	const query = `INSERT INTO classes (id, name, description, created_at, updated_at) VALUES (:id, :name, :description, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		if database.IsUniqueViolation(err, "") {
			return ErrDuplicateName
		}
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update persists name and description changes.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, description = :description, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		if database.IsUniqueViolation(err, "") {
			return ErrDuplicateName
		}
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// Delete removes a class. Rows still pointing at it yield ErrReferenced.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id); err != nil {
		if database.IsForeignKeyViolation(err) {
			return ErrReferenced
		}
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}

// CountDependents returns how many students and reports reference the class.
func (r *ClassRepository) CountDependents(ctx context.Context, id string) (students int, reports int, err error) {
	const query = `SELECT (SELECT COUNT(*) FROM students WHERE class_id = $1) AS students, (SELECT COUNT(*) FROM reports WHERE class_id = $1) AS reports`
	var row struct {
		Students int `db:"students"`
		Reports  int `db:"reports"`
	}
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return 0, 0, fmt.Errorf("count class dependents: %w", err)
	}
	return row.Students, row.Reports, nil
}

// Count returns the number of classes.
func (r *ClassRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM classes`); err != nil {
		return 0, fmt.Errorf("count classes: %w", err)
	}
	return total, nil
}
