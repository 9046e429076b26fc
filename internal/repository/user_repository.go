package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/smart-report-api/internal/models"
	"github.com/noah-isme/smart-report-api/pkg/database"
)

const userColumns = `id, name, email, phone, password_hash, role, status, last_login, created_at, updated_at`

// UserRepository provides database access for accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// PhoneTaken reports whether another account already uses phone.
func (r *UserRepository) PhoneTaken(ctx context.Context, phone string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE phone = $1)`, phone); err != nil {
		return false, fmt.Errorf("check phone: %w", err)
	}
	return exists, nil
}

// UpdateLastLogin updates the last_login timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// Create inserts a user and, when student is non-nil, its profile in the same transaction.
func (r *UserRepository) Create(ctx context.Context, user *models.User, student *models.Student) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt

	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const insertUser = `INSERT INTO users (id, name, email, phone, password_hash, role, status, created_at, updated_at) VALUES (:id, :name, :email, :phone, :password_hash, :role, :status, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, insertUser, user); err != nil {
			if database.IsUniqueViolation(err, "") {
				return ErrDuplicateEmail
			}
			return fmt.Errorf("create user: %w", err)
		}
		if student == nil {
			return nil
		}
		student.UserID = user.ID
		if student.ID == "" {
			student.ID = uuid.NewString()
		}
		student.CreatedAt = user.CreatedAt
		student.UpdatedAt = user.CreatedAt
		const insertStudent = `INSERT INTO students (id, user_id, class_id, student_role, created_at, updated_at) VALUES (:id, :user_id, :class_id, :student_role, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, insertStudent, student); err != nil {
			if database.IsForeignKeyViolation(err) {
				return ErrUnknownReference
			}
			return fmt.Errorf("create student profile: %w", err)
		}
		return nil
	})
}

// CountActiveStudents returns the number of active STUDENT accounts.
func (r *UserRepository) CountActiveStudents(ctx context.Context) (int, error) {
	var total int
	const query = `SELECT COUNT(*) FROM users WHERE role = $1 AND status = $2`
	if err := r.db.GetContext(ctx, &total, query, models.RoleStudent, models.UserStatusActive); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return total, nil
}
