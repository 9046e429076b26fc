package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-report-api/internal/dto"
	"github.com/noah-isme/smart-report-api/internal/models"
	"github.com/noah-isme/smart-report-api/internal/repository"
	appErrors "github.com/noah-isme/smart-report-api/pkg/errors"
)

const recentClassReports = 20

type classRepository interface {
	ListSummaries(ctx context.Context, search string, weekStart time.Time) ([]models.ClassSummary, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id string) error
	CountDependents(ctx context.Context, id string) (students int, reports int, err error)
}

type classMembers interface {
	ListByClass(ctx context.Context, classID string) ([]models.StudentProfile, error)
}

type classReports interface {
	List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error)
}

// ClassServiceParams groups constructor dependencies.
type ClassServiceParams struct {
	Classes   classRepository
	Students  classMembers
	Reports   classReports
	Cache     *CacheService
	Validator *validator.Validate
	Logger    *zap.Logger
	Location  *time.Location
}

// ClassService coordinates class operations.
type ClassService struct {
	repo      classRepository
	students  classMembers
	reports   classReports
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	loc       *time.Location
	now       func() time.Time
}

// NewClassService constructs ClassService.
func NewClassService(params ClassServiceParams) *ClassService {
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := params.Location
	if loc == nil {
		loc = time.Local
	}
	return &ClassService{
		repo:      params.Classes,
		students:  params.Students,
		reports:   params.Reports,
		cache:     params.Cache,
		validator: validate,
		logger:    logger,
		loc:       loc,
		now:       time.Now,
	}
}

// List returns classes with membership counts, reports this week and derived department and year.
func (s *ClassService) List(ctx context.Context, search string) ([]dto.ClassListItem, error) {
	summaries, err := s.repo.ListSummaries(ctx, strings.TrimSpace(search), weekStart(s.now().In(s.loc)))
	if err != nil {
		return nil, appErrors.Persistence(err, "failed to list classes")
	}
	items := make([]dto.ClassListItem, 0, len(summaries))
	for _, summary := range summaries {
		items = append(items, dto.ClassListItem{
			ClassSummary: summary,
			Department:   classDepartment(summary.Name),
			Year:         classYear(summary.Name),
		})
	}
	return items, nil
}

// Get returns a class with its students and most recent reports.
func (s *ClassService) Get(ctx context.Context, id string) (*dto.ClassDetails, error) {
	class, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	students, err := s.students.ListByClass(ctx, id)
	if err != nil {
		return nil, appErrors.Persistence(err, "failed to load class students")
	}
	reports, _, err := s.reports.List(ctx, models.ReportFilter{ClassID: id, Page: 1, PageSize: recentClassReports})
	if err != nil {
		return nil, appErrors.Persistence(err, "failed to load class reports")
	}
	if students == nil {
		students = []models.StudentProfile{}
	}
	if reports == nil {
		reports = []models.Report{}
	}
	return &dto.ClassDetails{
		Class:         *class,
		Department:    classDepartment(class.Name),
		Year:          classYear(class.Name),
		Students:      students,
		RecentReports: reports,
	}, nil
}

// Create adds a new class.
func (s *ClassService) Create(ctx context.Context, req dto.ClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	class := &models.Class{Name: strings.TrimSpace(req.Name), Description: trimOptional(req.Description)}
	if class.Name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Class name is required")
	}
	if err := s.repo.Create(ctx, class); err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Class with this name already exists")
		}
		return nil, appErrors.Persistence(err, "failed to create class")
	}
	s.cache.InvalidateAggregations(ctx)
	return class, nil
}

// Update modifies a class record.
func (s *ClassService) Update(ctx context.Context, id string, req dto.ClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	class, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	class.Name = strings.TrimSpace(req.Name)
	class.Description = trimOptional(req.Description)
	if class.Name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Class name is required")
	}
	if err := s.repo.Update(ctx, class); err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Class with this name already exists")
		}
		return nil, appErrors.Persistence(err, "failed to update class")
	}
	s.cache.InvalidateAggregations(ctx)
	return class, nil
}

// Delete removes a class that no student or report references.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	students, reports, err := s.repo.CountDependents(ctx, id)
	if err != nil {
		return appErrors.Persistence(err, "failed to check class dependents")
	}
	if students > 0 || reports > 0 {
		return appErrors.Clone(appErrors.ErrValidation, classInUseMessage)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrReferenced) {
			return appErrors.Clone(appErrors.ErrValidation, classInUseMessage)
		}
		return appErrors.Persistence(err, "failed to delete class")
	}
	s.cache.InvalidateAggregations(ctx)
	return nil
}

const classInUseMessage = "Cannot delete class with existing students or reports. Please reassign or remove them first."

func (s *ClassService) load(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Class not found")
		}
		return nil, appErrors.Persistence(err, "failed to load class")
	}
	return class, nil
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
