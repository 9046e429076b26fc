package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// RegisterRequest creates a student account.
type RegisterRequest struct {
	Name     string  `json:"name" validate:"required,min=2,max=100"`
	Email    string  `json:"email" validate:"required,email"`
	Phone    *string `json:"phone" validate:"omitempty,min=6,max=20"`
	Password string  `json:"password" validate:"required,min=6"`
	ClassID  *string `json:"class_id" validate:"omitempty,uuid"`
}

// CreateAdminRequest provisions an administrator account.
type CreateAdminRequest struct {
	Name     string  `json:"name" validate:"required,min=2,max=100"`
	Email    string  `json:"email" validate:"required,email"`
	Phone    *string `json:"phone" validate:"omitempty,min=6,max=20"`
	Password string  `json:"password" validate:"required,min=6"`
}

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	Name        string       `json:"name"`
	Role        UserRole     `json:"role"`
	ClassID     *string      `json:"class_id,omitempty"`
	StudentRole *StudentRole `json:"student_role,omitempty"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	jwt.RegisteredClaims
}

// Principal is the identity resolved for a request, with fresh class membership.
type Principal struct {
	UserID      string
	Role        UserRole
	Email       string
	Name        string
	ClassID     *string
	StudentRole *StudentRole
}

// IsAdmin reports whether the principal holds the ADMIN role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// Info projects the principal into its response shape.
func (p *Principal) Info() UserInfo {
	return UserInfo{ID: p.UserID, Email: p.Email, Name: p.Name, Role: p.Role, ClassID: p.ClassID, StudentRole: p.StudentRole}
}
