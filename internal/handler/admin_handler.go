package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smart-report-api/internal/dto"
	appErrors "github.com/noah-isme/smart-report-api/pkg/errors"
	"github.com/noah-isme/smart-report-api/pkg/response"
)

type aggregationService interface {
	AdminOverview(ctx context.Context) (*dto.AdminOverview, bool, error)
	DailyDigest(ctx context.Context, day time.Time) (*dto.DailyDigest, bool, error)
	WeeklyDigest(ctx context.Context, ref time.Time) (*dto.WeeklyDigest, bool, error)
	OrganizedByWeek(ctx context.Context, search string) (*dto.OrganizedWeeks, bool, error)
	WeekReports(ctx context.Context, req dto.WeekReportsRequest) (*dto.WeekReports, error)
	ItemUsageStats(ctx context.Context, search, category string) (*dto.ItemUsageResponse, bool, error)
	ItemDetails(ctx context.Context, id string) (*dto.ItemDetails, error)
	ItemTrends(ctx context.Context, id string, days int) (*dto.ItemTrends, error)
	RepresentativeStats(ctx context.Context, search, department string) (*dto.RepresentativeStats, bool, error)
	AdminReports(ctx context.Context, req dto.AdminReportsRequest) (*dto.AdminReportsResponse, error)
}

type weeklyExporter interface {
	WeeklyExport(ctx context.Context, req dto.WeeklyExportRequest) (*dto.WeeklyExport, error)
}

// AdminHandler serves the administrator statistics endpoints.
type AdminHandler struct {
	stats   aggregationService
	exports weeklyExporter
	loc     *time.Location
	now     func() time.Time
}

// NewAdminHandler constructs AdminHandler. Dates in query strings are read in loc.
func NewAdminHandler(stats aggregationService, exports weeklyExporter, loc *time.Location) *AdminHandler {
	if loc == nil {
		loc = time.Local
	}
	return &AdminHandler{stats: stats, exports: exports, loc: loc, now: time.Now}
}

// Dashboard godoc
// @Summary Administrator overview
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/dashboard [get]
func (h *AdminHandler) Dashboard(c *gin.Context) {
	start := time.Now()
	overview, hit, err := h.stats.AdminOverview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, "Dashboard retrieved", overview, hit, start)
}

// Reports godoc
// @Summary Paged report listing with status breakdown
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param search query string false "Search"
// @Param status query string false "all, pending, approved or rejected"
// @Param sortBy query string false "createdAt, title, status, class or reporter"
// @Param sortOrder query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /admin/reports [get]
func (h *AdminHandler) Reports(c *gin.Context) {
	var req dto.AdminReportsRequest
	if !bindQuery(c, &req, "invalid report query") {
		return
	}
	res, err := h.stats.AdminReports(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Reports retrieved", res, nil)
}

// Today godoc
// @Summary Reports of one calendar day
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param date query string false "Date (YYYY-MM-DD). Defaults to today"
// @Success 200 {object} response.Envelope
// @Router /admin/reports/today [get]
func (h *AdminHandler) Today(c *gin.Context) {
	day, ok := h.dateParam(c)
	if !ok {
		return
	}
	start := time.Now()
	digest, hit, err := h.stats.DailyDigest(c.Request.Context(), day)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, "Daily reports retrieved", digest, hit, start)
}

// Weekly godoc
// @Summary Weekly digest
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param date query string false "Any date inside the week (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /admin/reports/weekly [get]
func (h *AdminHandler) Weekly(c *gin.Context) {
	ref, ok := h.dateParam(c)
	if !ok {
		return
	}
	start := time.Now()
	digest, hit, err := h.stats.WeeklyDigest(c.Request.Context(), ref)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, "Weekly digest retrieved", digest, hit, start)
}

// WeeklyExport godoc
// @Summary Render the weekly digest as CSV or PDF
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param date query string false "Any date inside the week (YYYY-MM-DD)"
// @Param format query string false "csv or pdf"
// @Success 200 {object} response.Envelope
// @Router /admin/reports/weekly/export [get]
func (h *AdminHandler) WeeklyExport(c *gin.Context) {
	var req dto.WeeklyExportRequest
	if !bindQuery(c, &req, "invalid export query") {
		return
	}
	res, err := h.exports.WeeklyExport(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Export ready", res, nil)
}

// Organized godoc
// @Summary Reports grouped by ISO week
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search"
// @Success 200 {object} response.Envelope
// @Router /admin/reports/organized [get]
func (h *AdminHandler) Organized(c *gin.Context) {
	start := time.Now()
	weeks, hit, err := h.stats.OrganizedByWeek(c.Request.Context(), c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, "Organized reports retrieved", weeks, hit, start)
}

// Week godoc
// @Summary Reports of one week
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param startDate query string false "Start date (YYYY-MM-DD)"
// @Param endDate query string false "End date (YYYY-MM-DD)"
// @Param week query int false "ISO week"
// @Param year query int false "ISO year"
// @Success 200 {object} response.Envelope
// @Router /admin/reports/week [get]
func (h *AdminHandler) Week(c *gin.Context) {
	var req dto.WeekReportsRequest
	if !bindQuery(c, &req, "invalid week query") {
		return
	}
	res, err := h.stats.WeekReports(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Week reports retrieved", res, nil)
}

// Representatives godoc
// @Summary Representative activity statistics
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name, email or class search"
// @Param department query string false "Department filter"
// @Success 200 {object} response.Envelope
// @Router /admin/representatives [get]
func (h *AdminHandler) Representatives(c *gin.Context) {
	start := time.Now()
	stats, hit, err := h.stats.RepresentativeStats(c.Request.Context(), c.Query("search"), c.Query("department"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, "Representatives retrieved", stats, hit, start)
}

// ItemUsage godoc
// @Summary Per-item evaluation statistics
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param search query string false "Item name search"
// @Param category query string false "Category filter"
// @Success 200 {object} response.Envelope
// @Router /admin/items/usage [get]
func (h *AdminHandler) ItemUsage(c *gin.Context) {
	start := time.Now()
	usage, hit, err := h.stats.ItemUsageStats(c.Request.Context(), c.Query("search"), c.Query("category"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, "Item usage retrieved", usage, hit, start)
}

// ItemDetails godoc
// @Summary Evaluation rates and recent evaluations of one item
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Router /admin/items/{id}/details [get]
func (h *AdminHandler) ItemDetails(c *gin.Context) {
	id, ok := pathID(c, "id", "Item not found")
	if !ok {
		return
	}
	details, err := h.stats.ItemDetails(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Item details retrieved", details, nil)
}

// ItemTrends godoc
// @Summary Daily evaluation counts of one item
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Item ID"
// @Param days query int false "7, 30 or 90"
// @Success 200 {object} response.Envelope
// @Router /admin/items/{id}/trends [get]
func (h *AdminHandler) ItemTrends(c *gin.Context) {
	id, ok := pathID(c, "id", "Item not found")
	if !ok {
		return
	}
	days := 0
	if raw := strings.TrimSpace(c.Query("days")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "days must be a number"))
			return
		}
		days = parsed
	}
	trends, err := h.stats.ItemTrends(c.Request.Context(), id, days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Item trends retrieved", trends, nil)
}

func (h *AdminHandler) dateParam(c *gin.Context) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query("date"))
	if raw == "" {
		return h.now().In(h.loc), true
	}
	day, err := time.ParseInLocation("2006-01-02", raw, h.loc)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD"))
		return time.Time{}, false
	}
	return day, true
}
