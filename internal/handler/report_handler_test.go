package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-report-api/internal/dto"
	"github.com/noah-isme/smart-report-api/internal/models"
	appErrors "github.com/noah-isme/smart-report-api/pkg/errors"
)

type fakeReportService struct {
	submitted *dto.SubmitReportRequest
	decision  dto.ApprovalDecision
	comments  string
	reportID  string
	review    dto.ReviewReportRequest
	listReq   dto.ListClassReportsRequest
	err       error
}

func (f *fakeReportService) SubmitReport(_ context.Context, _ *models.Principal, req dto.SubmitReportRequest) (*models.Report, error) {
	f.submitted = &req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Report{ID: "r1", Title: req.Title, Status: models.ReportStatusSubmitted}, nil
}

func (f *fakeReportService) ActOnReport(_ context.Context, _ *models.Principal, id string, decision dto.ApprovalDecision, comments string) (*dto.ActOnReportResponse, error) {
	f.reportID, f.decision, f.comments = id, decision, comments
	if f.err != nil {
		return nil, f.err
	}
	return &dto.ActOnReportResponse{ReportStatus: models.ReportStatusPartial}, nil
}

func (f *fakeReportService) ApprovalView(context.Context, *models.Principal) (*dto.ApprovalView, error) {
	return &dto.ApprovalView{CanAct: true}, f.err
}

func (f *fakeReportService) ReviewReport(_ context.Context, _ *models.Principal, id string, req dto.ReviewReportRequest) (*dto.ReviewReportResponse, error) {
	f.reportID, f.review = id, req
	return &dto.ReviewReportResponse{ReportStatus: req.Decision}, f.err
}

func (f *fakeReportService) ListClassReports(_ context.Context, _ *models.Principal, req dto.ListClassReportsRequest) ([]models.Report, *models.Pagination, error) {
	f.listReq = req
	return []models.Report{{ID: "r1"}}, &models.Pagination{Page: 1, PageSize: 10, TotalCount: 1, TotalPages: 1}, f.err
}

func (f *fakeReportService) GetReport(_ context.Context, _ *models.Principal, id string) (*models.Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Report{ID: id}, nil
}

func (f *fakeReportService) DownloadReport(_ context.Context, _ *models.Principal, id string) ([]byte, string, error) {
	return []byte("%PDF-1.3"), "report-" + id + ".pdf", f.err
}

var studentCS = &models.Principal{UserID: "u1", Role: models.RoleStudent}

func TestReportHandlerRequiresPrincipal(t *testing.T) {
	h := NewReportHandler(&fakeReportService{})
	c, rec := newTestContext(http.MethodGet, "/reports", nil)

	h.List(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReportHandlerSubmit(t *testing.T) {
	svc := &fakeReportService{}
	h := NewReportHandler(svc)
	c, rec := newTestContext(http.MethodPost, "/reports", map[string]interface{}{
		"title":         "Morning check",
		"itemEvaluated": []map[string]string{{"itemId": "i1", "status": "GOOD"}},
	})
	withPrincipal(c, studentCS)

	h.Submit(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, svc.submitted)
	assert.Equal(t, "Morning check", svc.submitted.Title)
	assert.Len(t, svc.submitted.ItemEvaluated, 1)
}

func TestReportHandlerSubmitMalformed(t *testing.T) {
	h := NewReportHandler(&fakeReportService{})
	c, rec := newTestContext(http.MethodPost, "/reports", nil)
	c.Request.Header.Set("Content-Type", "application/json")
	withPrincipal(c, studentCS)

	h.Submit(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportHandlerApproveWithoutBody(t *testing.T) {
	svc := &fakeReportService{}
	h := NewReportHandler(svc)
	c, rec := newTestContext(http.MethodPost, "/reports/r9/approve", nil)
	c.Params = gin.Params{{Key: "id", Value: testReportID}}
	withPrincipal(c, studentCS)

	h.Approve(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testReportID, svc.reportID)
	assert.Equal(t, dto.DecisionApprove, svc.decision)
	assert.Empty(t, svc.comments)
}

func TestReportHandlerDenyPassesComments(t *testing.T) {
	svc := &fakeReportService{}
	h := NewReportHandler(svc)
	c, _ := newTestContext(http.MethodPost, "/reports/r9/deny", map[string]string{"comments": "  dirty floor "})
	c.Params = gin.Params{{Key: "id", Value: testReportID}}
	withPrincipal(c, studentCS)

	h.Deny(c)

	assert.Equal(t, dto.DecisionDeny, svc.decision)
	assert.Equal(t, "dirty floor", svc.comments)
}

func TestReportHandlerMapsServiceErrors(t *testing.T) {
	svc := &fakeReportService{err: appErrors.Clone(appErrors.ErrForbidden, "You can only view reports from your class")}
	h := NewReportHandler(svc)
	c, rec := newTestContext(http.MethodGet, "/reports/r1", nil)
	c.Params = gin.Params{{Key: "id", Value: testReportID}}
	withPrincipal(c, studentCS)

	h.Get(c)

	require.Equal(t, http.StatusForbidden, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "You can only view reports from your class", env.Message)
}

func TestReportHandlerListValidatesQuery(t *testing.T) {
	svc := &fakeReportService{}
	h := NewReportHandler(svc)

	c, rec := newTestContext(http.MethodGet, "/reports?filter=yearly", nil)
	withPrincipal(c, studentCS)
	h.List(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newTestContext(http.MethodGet, "/reports?filter=weekly&page=2&limit=5", nil)
	withPrincipal(c, studentCS)
	h.List(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dto.ListClassReportsRequest{Filter: "weekly", Page: 2, Limit: 5}, svc.listReq)
}

func TestReportHandlerReviewNormalisesDecision(t *testing.T) {
	svc := &fakeReportService{}
	h := NewReportHandler(svc)
	c, rec := newTestContext(http.MethodPost, "/admin/reports/r1/review", map[string]string{"decision": "reviewed"})
	c.Params = gin.Params{{Key: "id", Value: testReportID}}
	withPrincipal(c, &models.Principal{UserID: "a", Role: models.RoleAdmin})

	h.Review(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ReportStatusReviewed, svc.review.Decision)
}

func TestReportHandlerDownload(t *testing.T) {
	h := NewReportHandler(&fakeReportService{})
	c, rec := newTestContext(http.MethodGet, "/reports/r1/download", nil)
	c.Params = gin.Params{{Key: "id", Value: testReportID}}
	withPrincipal(c, studentCS)

	h.Download(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "report-"+testReportID+".pdf")
}

func TestHandlersRejectMalformedPathIDs(t *testing.T) {
	reports := &fakeReportService{}
	rh := NewReportHandler(reports)
	items := &fakeItemService{}
	ih := NewItemHandler(items)
	students := &fakeStudentService{}
	sh := NewStudentHandler(students)

	cases := map[string]struct {
		key     string
		call    func(*gin.Context)
		message string
	}{
		"report get":      {"id", rh.Get, "Report not found"},
		"report download": {"id", rh.Download, "Report not found"},
		"report approve":  {"id", rh.Approve, "Report not found"},
		"report review":   {"id", rh.Review, "Report not found"},
		"item update":     {"id", ih.Update, "Item not found"},
		"item delete":     {"id", ih.Delete, "Item not found"},
		"student assign":  {"userId", sh.Assign, "Student not found"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c, rec := newTestContext(http.MethodPost, "/x/not-a-uuid", map[string]string{"decision": "REVIEWED", "name": "Desk"})
			c.Params = gin.Params{{Key: tc.key, Value: "not-a-uuid"}}
			withPrincipal(c, &models.Principal{UserID: testUserID, Role: models.RoleAdmin})

			tc.call(c)

			require.Equal(t, http.StatusNotFound, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.False(t, env.Success)
			assert.Equal(t, tc.message, env.Message)
		})
	}
	assert.Empty(t, reports.reportID)
	assert.Empty(t, items.updatedID)
	assert.Empty(t, students.userID)
}
