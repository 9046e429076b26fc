package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-report-api/internal/dto"
	"github.com/noah-isme/smart-report-api/internal/models"
	appErrors "github.com/noah-isme/smart-report-api/pkg/errors"
)

type fakeStudentStats struct {
	principal *models.Principal
	hit       bool
	err       error
}

func (f *fakeStudentStats) StudentDashboard(_ context.Context, principal *models.Principal) (*dto.StudentDashboard, bool, error) {
	f.principal = principal
	if f.err != nil {
		return nil, false, f.err
	}
	return &dto.StudentDashboard{ClassID: testClassID, Stats: dto.ClassTotals{TotalStudents: 30, TotalReports: 12}}, f.hit, nil
}

func (f *fakeStudentStats) StudentProfile(_ context.Context, principal *models.Principal) (*dto.StudentProfile, error) {
	f.principal = principal
	if f.err != nil {
		return nil, f.err
	}
	return &dto.StudentProfile{UserID: principal.UserID, Stats: dto.ReporterStats{Submitted: 4, Approved: 2, Pending: 1, Rejected: 1}}, nil
}

func TestDashboardHandlerStudent(t *testing.T) {
	stats := &fakeStudentStats{hit: true}
	h := NewDashboardHandler(stats)
	c, rec := newTestContext(http.MethodGet, "/dashboard", nil)
	withPrincipal(c, studentCS)

	h.Student(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Same(t, studentCS, stats.principal)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Contains(t, string(env.Data), `"totalStudents":30`)
	assert.Contains(t, string(env.Data), `"totalReports":12`)
}

func TestDashboardHandlerStudentWithoutClass(t *testing.T) {
	h := NewDashboardHandler(&fakeStudentStats{err: appErrors.Clone(appErrors.ErrValidation, "User not assigned to any class")})
	c, rec := newTestContext(http.MethodGet, "/dashboard", nil)
	withPrincipal(c, studentCS)

	h.Student(c)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User not assigned to any class", decodeEnvelope(t, rec).Message)
}

func TestDashboardHandlerProfile(t *testing.T) {
	stats := &fakeStudentStats{}
	h := NewDashboardHandler(stats)

	c, rec := newTestContext(http.MethodGet, "/dashboard/profile", nil)
	h.Profile(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, stats.principal)

	c, rec = newTestContext(http.MethodGet, "/dashboard/profile", nil)
	withPrincipal(c, studentCS)
	h.Profile(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), `"stats":{"submitted":4,"approved":2,"pending":1,"rejected":1}`)
}
