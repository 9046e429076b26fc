package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-report-api/internal/dto"
	"github.com/noah-isme/smart-report-api/internal/models"
	"github.com/noah-isme/smart-report-api/internal/repository"
	appErrors "github.com/noah-isme/smart-report-api/pkg/errors"
)

const itemInUseMessage = "Cannot delete item that is used in reports. Please remove it from all reports first."

type itemRepository interface {
	List(ctx context.Context, search string) ([]models.Item, error)
	FindByID(ctx context.Context, id string) (*models.Item, error)
	Create(ctx context.Context, item *models.Item) error
	Update(ctx context.Context, item *models.Item) error
	IsReferenced(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// ItemService manages the inspection item catalog.
type ItemService struct {
	repo      itemRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewItemService constructs ItemService.
func NewItemService(repo itemRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ItemService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ItemService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns catalog items, optionally filtered by name.
func (s *ItemService) List(ctx context.Context, search string) ([]models.Item, error) {
	items, err := s.repo.List(ctx, strings.TrimSpace(search))
	if err != nil {
		return nil, appErrors.Persistence(err, "failed to list items")
	}
	if items == nil {
		items = []models.Item{}
	}
	return items, nil
}

// Get returns one item.
func (s *ItemService) Get(ctx context.Context, id string) (*models.Item, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Item not found")
		}
		return nil, appErrors.Persistence(err, "failed to load item")
	}
	return item, nil
}

// Create adds an item with a unique name.
func (s *ItemService) Create(ctx context.Context, req dto.ItemRequest) (*models.Item, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid item payload")
	}
	item := &models.Item{Name: strings.TrimSpace(req.Name), Description: trimOptional(req.Description)}
	if item.Name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Item name is required")
	}
	if err := s.repo.Create(ctx, item); err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Item with this name already exists")
		}
		return nil, appErrors.Persistence(err, "failed to create item")
	}
	s.cache.InvalidateAggregations(ctx)
	return item, nil
}

// Update renames or redescribes an item. The name must stay unique among other items.
func (s *ItemService) Update(ctx context.Context, id string, req dto.ItemRequest) (*models.Item, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid item payload")
	}
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	item.Name = strings.TrimSpace(req.Name)
	item.Description = trimOptional(req.Description)
	if item.Name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Item name is required")
	}
	if err := s.repo.Update(ctx, item); err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Another item with this name already exists")
		}
		return nil, appErrors.Persistence(err, "failed to update item")
	}
	s.cache.InvalidateAggregations(ctx)
	return item, nil
}

// Delete removes an item no report has evaluated.
func (s *ItemService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	referenced, err := s.repo.IsReferenced(ctx, id)
	if err != nil {
		return appErrors.Persistence(err, "failed to check item usage")
	}
	if referenced {
		return appErrors.Clone(appErrors.ErrValidation, itemInUseMessage)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrReferenced) {
			return appErrors.Clone(appErrors.ErrValidation, itemInUseMessage)
		}
		return appErrors.Persistence(err, "failed to delete item")
	}
	s.cache.InvalidateAggregations(ctx)
	return nil
}
