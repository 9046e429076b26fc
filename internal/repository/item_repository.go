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
	"github.com/lib/pq"

	"github.com/noah-isme/smart-report-api/internal/models"
	"github.com/noah-isme/smart-report-api/pkg/database"
)

// ItemRepository persists the inspection item catalog.
type ItemRepository struct {
	db *sqlx.DB
}

// NewItemRepository constructs the repository.
func NewItemRepository(db *sqlx.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// List returns catalog items, optionally filtered by name or description.
func (r *ItemRepository) List(ctx context.Context, search string) ([]models.Item, error) {
	query := `SELECT id, name, description, created_at, updated_at FROM items`
	var args []interface{}
	if search = strings.TrimSpace(search); search != "" {
		query += ` WHERE LOWER(name) LIKE $1 OR LOWER(COALESCE(description, '')) LIKE $1`
		args = append(args, "%"+strings.ToLower(search)+"%")
	}
	query += ` ORDER BY name ASC`
	var items []models.Item
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// FindByID returns one item.
func (r *ItemRepository) FindByID(ctx context.Context, id string) (*models.Item, error) {
	const query = `SELECT id, name, description, created_at, updated_at FROM items WHERE id = $1`
	var item models.Item
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find item: %w", err)
	}
	return &item, nil
}

// FindByIDs returns the items among ids that exist.
func (r *ItemRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT id, name, description, created_at, updated_at FROM items WHERE id = ANY($1)`
	var items []models.Item
	if err := r.db.SelectContext(ctx, &items, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find items: %w", err)
	}
	return items, nil
}

// Create inserts an item. Duplicate names yield ErrDuplicateName.
func (r *ItemRepository) Create(ctx context.Context, item *models.Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	const query = `INSERT INTO items (id, name, description, created_at, updated_at) VALUES (:id, :name, :description, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		if database.IsUniqueViolation(err, "") {
			return ErrDuplicateName
		}
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

// Update persists name and description changes.
func (r *ItemRepository) Update(ctx context.Context, item *models.Item) error {
	item.UpdatedAt = time.Now().UTC()
	const query = `UPDATE items SET name = :name, description = :description, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		if database.IsUniqueViolation(err, "") {
			return ErrDuplicateName
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// IsReferenced reports whether any report evaluated the item.
func (r *ItemRepository) IsReferenced(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM report_items WHERE item_id = $1)`, id); err != nil {
		return false, fmt.Errorf("check item references: %w", err)
	}
	return exists, nil
}

// Delete removes an item. The report_items foreign key rejects in-use items with ErrReferenced.
func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id); err != nil {
		if database.IsForeignKeyViolation(err) {
			return ErrReferenced
		}
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}
