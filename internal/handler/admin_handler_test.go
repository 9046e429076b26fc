package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-report-api/internal/dto"
	appErrors "github.com/noah-isme/smart-report-api/pkg/errors"
)

type fakeStats struct {
	day      time.Time
	days     int
	weekReq  dto.WeekReportsRequest
	adminReq dto.AdminReportsRequest
	search   string
	filter   string
	hit      bool
	err      error
}

func (f *fakeStats) AdminOverview(context.Context) (*dto.AdminOverview, bool, error) {
	return &dto.AdminOverview{}, f.hit, f.err
}

func (f *fakeStats) DailyDigest(_ context.Context, day time.Time) (*dto.DailyDigest, bool, error) {
	f.day = day
	return &dto.DailyDigest{Date: day.Format("2006-01-02")}, f.hit, f.err
}

func (f *fakeStats) WeeklyDigest(_ context.Context, ref time.Time) (*dto.WeeklyDigest, bool, error) {
	f.day = ref
	return &dto.WeeklyDigest{}, f.hit, f.err
}

func (f *fakeStats) OrganizedByWeek(_ context.Context, search string) (*dto.OrganizedWeeks, bool, error) {
	f.search = search
	return &dto.OrganizedWeeks{}, f.hit, f.err
}

func (f *fakeStats) WeekReports(_ context.Context, req dto.WeekReportsRequest) (*dto.WeekReports, error) {
	f.weekReq = req
	return &dto.WeekReports{}, f.err
}

func (f *fakeStats) ItemUsageStats(_ context.Context, search, category string) (*dto.ItemUsageResponse, bool, error) {
	f.search, f.filter = search, category
	return &dto.ItemUsageResponse{}, f.hit, f.err
}

func (f *fakeStats) ItemDetails(context.Context, string) (*dto.ItemDetails, error) {
	return &dto.ItemDetails{}, f.err
}

func (f *fakeStats) ItemTrends(_ context.Context, _ string, days int) (*dto.ItemTrends, error) {
	f.days = days
	return &dto.ItemTrends{}, f.err
}

func (f *fakeStats) RepresentativeStats(_ context.Context, search, department string) (*dto.RepresentativeStats, bool, error) {
	f.search, f.filter = search, department
	return &dto.RepresentativeStats{}, f.hit, f.err
}

func (f *fakeStats) AdminReports(_ context.Context, req dto.AdminReportsRequest) (*dto.AdminReportsResponse, error) {
	f.adminReq = req
	return &dto.AdminReportsResponse{}, f.err
}

type fakeExporter struct{ req dto.WeeklyExportRequest }

func (f *fakeExporter) WeeklyExport(_ context.Context, req dto.WeeklyExportRequest) (*dto.WeeklyExport, error) {
	f.req = req
	return &dto.WeeklyExport{Format: req.Format, URL: "/api/v1/exports/token"}, nil
}

func newAdminFixture(stats *fakeStats) (*AdminHandler, *fakeExporter) {
	exporter := &fakeExporter{}
	h := NewAdminHandler(stats, exporter, time.UTC)
	h.now = func() time.Time { return time.Date(2024, time.March, 6, 9, 0, 0, 0, time.UTC) }
	return h, exporter
}

func TestAdminHandlerDashboardReportsCacheHit(t *testing.T) {
	h, _ := newAdminFixture(&fakeStats{hit: true})
	c, rec := newTestContext(http.MethodGet, "/admin/dashboard", nil)

	h.Dashboard(c)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Contains(t, env.Meta, "processing_time_ms")
}

func TestAdminHandlerTodayDate(t *testing.T) {
	stats := &fakeStats{}
	h, _ := newAdminFixture(stats)

	c, rec := newTestContext(http.MethodGet, "/admin/reports/today", nil)
	h.Today(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 6, stats.day.Day())

	c, rec = newTestContext(http.MethodGet, "/admin/reports/today?date=2024-02-29", nil)
	h.Today(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), stats.day)

	c, rec = newTestContext(http.MethodGet, "/admin/reports/today?date=29-02-2024", nil)
	h.Today(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminHandlerWeekQuery(t *testing.T) {
	stats := &fakeStats{}
	h, _ := newAdminFixture(stats)

	c, rec := newTestContext(http.MethodGet, "/admin/reports/week?week=10&year=2024", nil)
	h.Week(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dto.WeekReportsRequest{Week: 10, Year: 2024}, stats.weekReq)

	c, rec = newTestContext(http.MethodGet, "/admin/reports/week?week=60", nil)
	h.Week(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminHandlerReportsQuery(t *testing.T) {
	stats := &fakeStats{}
	h, _ := newAdminFixture(stats)

	c, rec := newTestContext(http.MethodGet, "/admin/reports?status=pending&sortBy=class&sortOrder=asc&page=2", nil)
	h.Reports(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pending", stats.adminReq.Status)
	assert.Equal(t, "class", stats.adminReq.SortBy)
	assert.Equal(t, 2, stats.adminReq.Page)

	c, rec = newTestContext(http.MethodGet, "/admin/reports?sortBy=password", nil)
	h.Reports(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminHandlerItemTrendsDays(t *testing.T) {
	stats := &fakeStats{}
	h, _ := newAdminFixture(stats)

	c, rec := newTestContext(http.MethodGet, "/admin/items/i1/trends?days=7", nil)
	c.Params = gin.Params{{Key: "id", Value: testItemID}}
	h.ItemTrends(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, stats.days)

	c, rec = newTestContext(http.MethodGet, "/admin/items/i1/trends?days=week", nil)
	c.Params = gin.Params{{Key: "id", Value: testItemID}}
	h.ItemTrends(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newTestContext(http.MethodGet, "/admin/items/i1/trends?days=7", nil)
	c.Params = gin.Params{{Key: "id", Value: "i1"}}
	h.ItemTrends(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Item not found", decodeEnvelope(t, rec).Message)
}

func TestAdminHandlerRepresentativesFilters(t *testing.T) {
	stats := &fakeStats{}
	h, _ := newAdminFixture(stats)
	c, rec := newTestContext(http.MethodGet, "/admin/representatives?search=ani&department=Physics", nil)

	h.Representatives(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ani", stats.search)
	assert.Equal(t, "Physics", stats.filter)
}

func TestAdminHandlerWeeklyExport(t *testing.T) {
	h, exporter := newAdminFixture(&fakeStats{})

	c, rec := newTestContext(http.MethodGet, "/admin/reports/weekly/export?format=pdf&date=2024-03-04", nil)
	h.WeeklyExport(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dto.WeeklyExportRequest{Date: "2024-03-04", Format: "pdf"}, exporter.req)

	c, rec = newTestContext(http.MethodGet, "/admin/reports/weekly/export?format=docx", nil)
	h.WeeklyExport(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminHandlerAggregationFailure(t *testing.T) {
	h, _ := newAdminFixture(&fakeStats{err: appErrors.Aggregation(context.DeadlineExceeded)})
	c, rec := newTestContext(http.MethodGet, "/admin/reports/organized", nil)

	h.Organized(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
