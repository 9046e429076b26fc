package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smart-report-api/internal/models"
	appErrors "github.com/noah-isme/smart-report-api/pkg/errors"
	"github.com/noah-isme/smart-report-api/pkg/logger"
	"github.com/noah-isme/smart-report-api/pkg/response"
)

// ContextUserKey is the gin context key storing the resolved principal.
const ContextUserKey = "currentUser"

// TokenValidator verifies access tokens.
type TokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// PrincipalResolver loads the current identity and class membership for a user.
type PrincipalResolver interface {
	Resolve(ctx context.Context, userID string) (*models.Principal, error)
}

// JWT protects routes by requiring a valid access token. Class membership is read
// fresh on every request so reassignments apply without a new login.
func JWT(tokens TokenValidator, identities PrincipalResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		principal, err := Authenticate(c.Request.Context(), tokens, identities, token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, principal)
		c.Set(logger.UserIDKey, principal.UserID)
		c.Next()
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", appErrors.ErrUnauthorized
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

// Authenticate validates the token and resolves its principal.
func Authenticate(ctx context.Context, tokens TokenValidator, identities PrincipalResolver, token string) (*models.Principal, error) {
	claims, err := tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return identities.Resolve(ctx, claims.UserID)
}

// CurrentPrincipal returns the principal stored by JWT.
func CurrentPrincipal(c *gin.Context) (*models.Principal, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	principal, ok := value.(*models.Principal)
	return principal, ok && principal != nil
}
