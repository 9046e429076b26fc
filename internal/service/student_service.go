package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-report-api/internal/dto"
	"github.com/noah-isme/smart-report-api/internal/models"
	"github.com/noah-isme/smart-report-api/internal/repository"
	appErrors "github.com/noah-isme/smart-report-api/pkg/errors"
)

type studentAssigner interface {
	Assign(ctx context.Context, userID string, classID *string, role *models.StudentRole) (*models.Student, error)
}

// StudentService manages class membership and representative roles.
type StudentService struct {
	users     identityUserReader
	students  studentAssigner
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(users identityUserReader, students studentAssigner, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{users: users, students: students, cache: cache, validator: validate, logger: logger}
}

// Assign sets the class and representative role of a STUDENT account. Nil fields clear the value.
func (s *StudentService) Assign(ctx context.Context, userID string, req dto.AssignStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Student not found")
		}
		return nil, appErrors.Persistence(err, "failed to load student")
	}
	if user.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only student accounts can join a class")
	}

	var role *models.StudentRole
	if req.StudentRole != nil && *req.StudentRole != "" {
		r := models.StudentRole(*req.StudentRole)
		role = &r
	}
	classID := req.ClassID
	if classID != nil && *classID == "" {
		classID = nil
	}

	student, err := s.students.Assign(ctx, userID, classID, role)
	if err != nil {
		if errors.Is(err, repository.ErrUnknownReference) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "Invalid class ID provided")
		}
		return nil, appErrors.Persistence(err, "failed to assign student")
	}
	s.logger.Info("student assignment updated", zap.String("user_id", userID))
	s.cache.InvalidateAggregations(ctx)
	return student, nil
}
