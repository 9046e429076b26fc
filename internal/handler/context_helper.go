package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/smart-report-api/internal/middleware"
	"github.com/noah-isme/smart-report-api/internal/models"
	appErrors "github.com/noah-isme/smart-report-api/pkg/errors"
	"github.com/noah-isme/smart-report-api/pkg/response"
)

var queryValidator = validator.New()

// principalFromContext returns the resolved principal or writes 401 and returns nil.
func principalFromContext(c *gin.Context) *models.Principal {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil
	}
	return principal
}

// bindQuery binds query parameters into dest and runs its validate tags.
func bindQuery(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindQuery(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	if err := queryValidator.Struct(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

// pathID returns the uuid path parameter key, writing 404 with message when it is malformed.
func pathID(c *gin.Context, key, message string) (string, bool) {
	raw := c.Param(key)
	if _, err := uuid.Parse(raw); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, message))
		return "", false
	}
	return raw, true
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

// respondCached writes data with cache_hit and processing time in meta.
func respondCached(c *gin.Context, message string, data interface{}, hit bool, start time.Time) {
	middleware.SetCacheHit(c, hit)
	meta := middleware.ResponseMeta(c)
	if meta == nil {
		meta = map[string]interface{}{"cache_hit": hit, "processing_time_ms": time.Since(start).Milliseconds()}
	}
	response.JSON(c, http.StatusOK, message, data, nil, meta)
}
