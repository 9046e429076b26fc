package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/smart-report-api/internal/models"
	"github.com/noah-isme/smart-report-api/internal/repository"
	appErrors "github.com/noah-isme/smart-report-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	PhoneTaken(ctx context.Context, phone string) (bool, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	Create(ctx context.Context, user *models.User, student *models.Student) error
}

type classFinder interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
}

// AuthServiceParams groups constructor dependencies.
type AuthServiceParams struct {
	Users     authUserRepository
	Classes   classFinder
	Events    EventPublisher
	Notifier  Notifier
	Validator *validator.Validate
	Logger    *zap.Logger
	Config    AuthConfig
}

// AuthService provides authentication and account provisioning.
type AuthService struct {
	users     authUserRepository
	classes   classFinder
	events    EventPublisher
	notifier  Notifier
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(params AuthServiceParams) *AuthService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	cfg := params.Config
	if cfg.AccessTokenExpiry <= 0 {
		cfg.AccessTokenExpiry = 24 * time.Hour
	}
	return &AuthService{
		users:     params.Users,
		classes:   params.Classes,
		events:    params.Events,
		notifier:  params.Notifier,
		validator: validate,
		logger:    logger,
		config:    cfg,
		now:       time.Now,
	}
}

// Login authenticates a user and returns an access token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.users.FindByEmail(ctx, normaliseEmail(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}
	if !user.Active() {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}

	accessToken, _, err := s.generateAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}

	return &models.LoginResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:    now,
		User:        models.UserInfo{ID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role},
	}, nil
}

// Register creates an ACTIVE student account with an optional class membership.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.UserInfo, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	if req.ClassID != nil && *req.ClassID != "" {
		if _, err := s.classes.FindByID(ctx, *req.ClassID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "Invalid class ID provided")
			}
			return nil, appErrors.Persistence(err, "failed to load class")
		}
	}

	user, err := s.provision(ctx, req.Name, req.Email, req.Phone, req.Password, models.RoleStudent)
	if err != nil {
		return nil, err
	}
	student := &models.Student{ID: uuid.NewString(), UserID: user.ID, CreatedAt: user.CreatedAt, UpdatedAt: user.CreatedAt}
	if req.ClassID != nil && *req.ClassID != "" {
		student.ClassID = req.ClassID
	}
	if err := s.create(ctx, user, student); err != nil {
		return nil, err
	}

	s.welcome(ctx, user)
	info := models.UserInfo{ID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role, ClassID: student.ClassID}
	return &info, nil
}

// CreateAdmin provisions an ADMIN account. Callers must already hold ADMIN.
func (s *AuthService) CreateAdmin(ctx context.Context, actor *models.Principal, req models.CreateAdminRequest) (*models.UserInfo, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can create administrators")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid admin payload")
	}
	user, err := s.provision(ctx, req.Name, req.Email, req.Phone, req.Password, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if err := s.create(ctx, user, nil); err != nil {
		return nil, err
	}
	s.welcome(ctx, user)
	info := models.UserInfo{ID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role}
	return &info, nil
}

// provision checks uniqueness and hashes the password. Nothing is written yet.
func (s *AuthService) provision(ctx context.Context, name, email string, phone *string, password string, role models.UserRole) (*models.User, error) {
	email = normaliseEmail(email)
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Persistence(err, "failed to check email")
	}

	if phone != nil {
		trimmed := strings.TrimSpace(*phone)
		phone = &trimmed
		if trimmed == "" {
			phone = nil
		}
	}
	if phone != nil {
		taken, err := s.users.PhoneTaken(ctx, *phone)
		if err != nil {
			return nil, appErrors.Persistence(err, "failed to check phone")
		}
		if taken {
			return nil, appErrors.Clone(appErrors.ErrValidation, "Phone number already registered")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	now := s.now().UTC()
	return &models.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		Phone:        phone,
		PasswordHash: string(hash),
		Role:         role,
		Status:       models.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *AuthService) create(ctx context.Context, user *models.User, student *models.Student) error {
	if err := s.users.Create(ctx, user, student); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return appErrors.Clone(appErrors.ErrValidation, "Email already registered")
		case errors.Is(err, repository.ErrUnknownReference):
			return appErrors.Clone(appErrors.ErrValidation, "Invalid class ID provided")
		}
		return appErrors.Persistence(err, "failed to create user")
	}
	return nil
}

// welcome emits the post-commit registration effects.
func (s *AuthService) welcome(ctx context.Context, user *models.User) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, models.Notification{
			Kind:      models.NotificationWelcome,
			Recipient: user.Email,
			Payload:   map[string]string{"name": user.Name, "role": string(user.Role)},
		})
	}
	if s.events == nil {
		return
	}
	event := models.Event{
		Type:       models.EventUserRegistered,
		Payload:    map[string]interface{}{"userId": user.ID, "name": user.Name, "role": user.Role},
		OccurredAt: user.CreatedAt,
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("publish realtime event failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

// ChangePassword changes the password for the given user ID.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change password payload")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrForbidden, "old password does not match")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.users.UpdatePassword(ctx, userID, string(newHash), s.now().UTC()); err != nil {
		return appErrors.Persistence(err, "failed to update password")
	}
	return nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

func (s *AuthService) generateAccessToken(user *models.User) (string, time.Time, error) {
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims := &models.JWTClaims{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
