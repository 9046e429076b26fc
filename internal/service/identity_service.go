package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/smart-report-api/internal/models"
	appErrors "github.com/noah-isme/smart-report-api/pkg/errors"
)

type identityUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type studentProfileReader interface {
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
}

// IdentityService resolves authenticated user ids into principals with current class membership.
type IdentityService struct {
	users    identityUserReader
	students studentProfileReader
	logger   *zap.Logger
}

// NewIdentityService constructs the resolver.
func NewIdentityService(users identityUserReader, students studentProfileReader, logger *zap.Logger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{users: users, students: students, logger: logger}
}

// Resolve loads the user and, for students, the class and representative role.
// Membership is read on every call so reassignments apply without a new token.
func (s *IdentityService) Resolve(ctx context.Context, userID string) (*models.Principal, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user no longer exists")
		}
		return nil, appErrors.Persistence(err, "failed to resolve user")
	}
	if !user.Active() {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}

	principal := &models.Principal{UserID: user.ID, Role: user.Role, Email: user.Email, Name: user.Name}
	if user.Role != models.RoleStudent {
		return principal, nil
	}
	student, err := s.students.FindByUserID(ctx, user.ID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return principal, nil
	case err != nil:
		return nil, appErrors.Persistence(err, "failed to resolve class membership")
	}
	principal.ClassID = student.ClassID
	principal.StudentRole = student.StudentRole
	return principal, nil
}
