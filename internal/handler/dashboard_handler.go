package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smart-report-api/internal/dto"
	"github.com/noah-isme/smart-report-api/internal/models"
	"github.com/noah-isme/smart-report-api/pkg/response"
)

type studentStats interface {
	StudentDashboard(ctx context.Context, principal *models.Principal) (*dto.StudentDashboard, bool, error)
	StudentProfile(ctx context.Context, principal *models.Principal) (*dto.StudentProfile, error)
}

// DashboardHandler serves the student home screen and profile card.
type DashboardHandler struct {
	stats studentStats
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(stats studentStats) *DashboardHandler {
	return &DashboardHandler{stats: stats}
}

// Student godoc
// @Summary Class dashboard of the signed-in student
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Student(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	start := time.Now()
	dashboard, hit, err := h.stats.StudentDashboard(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, "Dashboard retrieved", dashboard, hit, start)
}

// Profile godoc
// @Summary Profile card with authored report counts
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /dashboard/profile [get]
func (h *DashboardHandler) Profile(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	profile, err := h.stats.StudentProfile(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Profile retrieved", profile, nil)
}
