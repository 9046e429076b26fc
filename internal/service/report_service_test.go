package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-report-api/internal/dto"
	"github.com/noah-isme/smart-report-api/internal/models"
	"github.com/noah-isme/smart-report-api/internal/repository"
	appErrors "github.com/noah-isme/smart-report-api/pkg/errors"
	"github.com/noah-isme/smart-report-api/pkg/export"
)

type memoryReportStore struct {
	mu        sync.Mutex
	reports   map[string]*models.Report
	approvals map[string]*models.ReportApproval
	reviews   map[string][]models.ReportReview
	listed    models.ReportFilter
}

func newMemoryReportStore() *memoryReportStore {
	return &memoryReportStore{
		reports:   map[string]*models.Report{},
		approvals: map[string]*models.ReportApproval{},
		reviews:   map[string][]models.ReportReview{},
	}
}

func (m *memoryReportStore) Create(_ context.Context, report *models.Report, review *models.ReportReview) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.reports {
		if existing.ReporterID == report.ReporterID && existing.ClassID == report.ClassID && existing.SubmissionDate.Equal(report.SubmissionDate) {
			return repository.ErrDuplicateReport
		}
	}
	copied := *report
	m.reports[report.ID] = &copied
	review.ReportID = report.ID
	m.reviews[report.ID] = append(m.reviews[report.ID], *review)
	return nil
}

func (m *memoryReportStore) WithTx(ctx context.Context, fn func(tx repository.ReportTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryReportTx{store: m, approvals: map[string]*models.ReportApproval{}, statuses: map[string]models.ReportStatus{}}
	if err := fn(tx); err != nil {
		return err
	}
	for id, approval := range tx.approvals {
		m.approvals[id] = approval
	}
	for id, status := range tx.statuses {
		m.reports[id].Status = status
	}
	for _, review := range tx.reviews {
		m.reviews[review.ReportID] = append(m.reviews[review.ReportID], review)
	}
	return nil
}

func (m *memoryReportStore) GetByID(_ context.Context, id string) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	report, ok := m.reports[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *report
	return &copied, nil
}

func (m *memoryReportStore) FindForClassOn(_ context.Context, classID string, day time.Time) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, report := range m.reports {
		if report.ClassID == classID && report.SubmissionDate.Equal(day) {
			copied := *report
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryReportStore) GetApproval(_ context.Context, reportID string) (*models.ReportApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if approval, ok := m.approvals[reportID]; ok {
		copied := *approval
		return &copied, nil
	}
	return nil, nil
}

func (m *memoryReportStore) ListReviews(_ context.Context, reportID string) ([]models.ReportReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ReportReview(nil), m.reviews[reportID]...), nil
}

func (m *memoryReportStore) List(_ context.Context, filter models.ReportFilter) ([]models.Report, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listed = filter
	var out []models.Report
	for _, report := range m.reports {
		if filter.ClassID == "" || report.ClassID == filter.ClassID {
			out = append(out, *report)
		}
	}
	return out, len(out), nil
}

// memoryReportTx stages writes until the surrounding WithTx returns without error.
type memoryReportTx struct {
	store     *memoryReportStore
	approvals map[string]*models.ReportApproval
	statuses  map[string]models.ReportStatus
	reviews   []models.ReportReview
}

func (t *memoryReportTx) LockReport(_ context.Context, id string) (*models.Report, error) {
	report, ok := t.store.reports[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *report
	return &copied, nil
}

func (t *memoryReportTx) GetApproval(_ context.Context, reportID string) (*models.ReportApproval, error) {
	if approval, ok := t.store.approvals[reportID]; ok {
		copied := *approval
		return &copied, nil
	}
	return nil, nil
}

func (t *memoryReportTx) SaveApproval(_ context.Context, approval *models.ReportApproval) error {
	copied := *approval
	t.approvals[approval.ReportID] = &copied
	return nil
}

func (t *memoryReportTx) UpdateStatus(_ context.Context, id string, status models.ReportStatus, _ time.Time) error {
	t.statuses[id] = status
	return nil
}

func (t *memoryReportTx) InsertReview(_ context.Context, review *models.ReportReview) error {
	t.reviews = append(t.reviews, *review)
	return nil
}

type stubItemLookup struct {
	items map[string]models.Item
}

func (s stubItemLookup) FindByIDs(_ context.Context, ids []string) ([]models.Item, error) {
	var out []models.Item
	for _, id := range ids {
		if item, ok := s.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, notification models.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
}

type reportFixture struct {
	svc      *ReportService
	store    *memoryReportStore
	events   *recordingPublisher
	notifier *recordingNotifier
}

var reportTestNow = time.Date(2024, time.March, 6, 9, 30, 0, 0, time.UTC)

const (
	fireItemID = "5f0c6f5e-2f1a-4b7e-9a61-3b2f8f1d2c01"
	deskItemID = "0b6f3a52-8d8e-4a3f-b1f7-6a4c2e9d7e12"
)

func newReportFixture(t *testing.T) reportFixture {
	t.Helper()
	store := newMemoryReportStore()
	events := &recordingPublisher{}
	notifier := &recordingNotifier{}
	svc := NewReportService(ReportServiceParams{
		Reports:  store,
		Items:    stubItemLookup{items: map[string]models.Item{fireItemID: {ID: fireItemID, Name: "Fire Extinguisher"}}},
		Events:   events,
		Notifier: notifier,
		Location: time.UTC,
	})
	svc.now = func() time.Time { return reportTestNow }
	return reportFixture{svc: svc, store: store, events: events, notifier: notifier}
}

func studentPrincipal(userID, classID string, role models.StudentRole) *models.Principal {
	p := &models.Principal{UserID: userID, Role: models.RoleStudent, Email: userID + "@school.test", Name: userID}
	if classID != "" {
		p.ClassID = &classID
	}
	if role != "" {
		p.StudentRole = &role
	}
	return p
}

func seedReport(store *memoryReportStore, id, classID string, status models.ReportStatus) {
	store.reports[id] = &models.Report{
		ID:             id,
		Title:          "Morning inspection",
		ClassID:        classID,
		ReporterID:     "reporter",
		ReporterEmail:  "reporter@school.test",
		ReporterName:   "Rina",
		Category:       "ONTIME",
		Status:         status,
		SubmissionDate: startOfDay(reportTestNow),
		CreatedAt:      reportTestNow,
	}
}

func TestSubmitReportAppliesDefaultsAndFillsNames(t *testing.T) {
	f := newReportFixture(t)

	report, err := f.svc.SubmitReport(context.Background(), studentPrincipal("u1", "class-a", models.StudentRoleCC), dto.SubmitReportRequest{
		ItemEvaluated: []dto.ItemEvaluationInput{{ItemID: fireItemID, Status: "good"}, {ItemID: deskItemID, Name: "Desk"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Inspection Report 2024-03-06", report.Title)
	assert.Equal(t, models.DefaultReportCategory, report.Category)
	assert.Equal(t, models.ReportStatusSubmitted, report.Status)
	assert.Equal(t, startOfDay(reportTestNow), report.SubmissionDate)
	require.Len(t, report.ItemEvaluated, 2)
	assert.Equal(t, "Fire Extinguisher", report.ItemEvaluated[0].Name)
	assert.Equal(t, models.EvaluationGood, report.ItemEvaluated[0].Status)
	assert.Equal(t, models.EvaluationStatus(""), report.ItemEvaluated[1].Status)

	require.Len(t, f.store.reviews[report.ID], 1)
	assert.Equal(t, models.ReviewStatusPending, f.store.reviews[report.ID][0].Status)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, models.EventReportSubmitted, f.events.events[0].Type)
}

func TestSubmitReportRejectsSecondSubmissionSameDay(t *testing.T) {
	f := newReportFixture(t)
	principal := studentPrincipal("u1", "class-a", "")
	req := dto.SubmitReportRequest{ItemEvaluated: []dto.ItemEvaluationInput{{ItemID: fireItemID, Status: "GOOD"}}}

	_, err := f.svc.SubmitReport(context.Background(), principal, req)
	require.NoError(t, err)

	_, err = f.svc.SubmitReport(context.Background(), principal, req)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrDuplicateSubmission))
	assert.Len(t, f.store.reports, 1)
}

func TestSubmitReportValidation(t *testing.T) {
	f := newReportFixture(t)

	_, err := f.svc.SubmitReport(context.Background(), studentPrincipal("u1", "", ""), dto.SubmitReportRequest{
		ItemEvaluated: []dto.ItemEvaluationInput{{ItemID: fireItemID}},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	cases := map[string]dto.SubmitReportRequest{
		"empty items":    {},
		"duplicate item": {ItemEvaluated: []dto.ItemEvaluationInput{{ItemID: fireItemID}, {ItemID: fireItemID}}},
		"unknown status": {ItemEvaluated: []dto.ItemEvaluationInput{{ItemID: fireItemID, Status: "MAYBE"}}},
		"malformed item": {ItemEvaluated: []dto.ItemEvaluationInput{{ItemID: "i1", Status: "GOOD"}}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.SubmitReport(context.Background(), studentPrincipal("u1", "class-a", ""), req)
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
		})
	}
	assert.Empty(t, f.store.reports)
}

type malformedIDStore struct {
	*memoryReportStore
}

func (malformedIDStore) Create(context.Context, *models.Report, *models.ReportReview) error {
	return fmt.Errorf("index report item: %w", repository.ErrMalformedID)
}

func TestSubmitReportMapsMalformedIDToValidation(t *testing.T) {
	svc := NewReportService(ReportServiceParams{
		Reports:  malformedIDStore{newMemoryReportStore()},
		Items:    stubItemLookup{items: map[string]models.Item{}},
		Location: time.UTC,
	})
	svc.now = func() time.Time { return reportTestNow }

	_, err := svc.SubmitReport(context.Background(), studentPrincipal("u1", "class-a", ""), dto.SubmitReportRequest{
		ItemEvaluated: []dto.ItemEvaluationInput{{ItemID: deskItemID, Status: "GOOD"}},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
}

func TestActOnReportBothApprovalsMoveToUnderReview(t *testing.T) {
	f := newReportFixture(t)
	seedReport(f.store, "r1", "class-a", models.ReportStatusSubmitted)
	ctx := context.Background()

	resp, err := f.svc.ActOnReport(ctx, studentPrincipal("cs-user", "class-a", models.StudentRoleCS), "r1", dto.DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusPartial, resp.ReportStatus)
	require.NotNil(t, resp.Approval.CommentsCS)
	assert.Equal(t, defaultApproveComment, *resp.Approval.CommentsCS)
	require.NotNil(t, resp.Approval.CSStudentID)
	assert.Equal(t, "cs-user", *resp.Approval.CSStudentID)
	require.NotNil(t, resp.Approval.ApprovalCatCS)
	assert.Equal(t, "ONTIME", *resp.Approval.ApprovalCatCS)
	assert.Empty(t, f.notifier.sent)

	resp, err = f.svc.ActOnReport(ctx, studentPrincipal("cp-user", "class-a", models.StudentRoleCP), "r1", dto.DecisionApprove, "Looks fine")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusUnderReview, resp.ReportStatus)
	assert.Equal(t, models.ReportStatusUnderReview, f.store.reports["r1"].Status)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "reporter@school.test", f.notifier.sent[0].Recipient)
	assert.Equal(t, string(models.ReportStatusUnderReview), f.notifier.sent[0].Payload["status"])
}

func TestActOnReportDenyRejects(t *testing.T) {
	f := newReportFixture(t)
	seedReport(f.store, "r1", "class-a", models.ReportStatusSubmitted)
	ctx := context.Background()
	cs := studentPrincipal("cs-user", "class-a", models.StudentRoleCS)
	cp := studentPrincipal("cp-user", "class-a", models.StudentRoleCP)

	resp, err := f.svc.ActOnReport(ctx, cs, "r1", dto.DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusPartial, resp.ReportStatus)
	require.NotNil(t, resp.Approval.ApprovalCatCS)
	assert.Equal(t, "ONTIME", *resp.Approval.ApprovalCatCS)

	resp, err = f.svc.ActOnReport(ctx, cp, "r1", dto.DecisionDeny, "missing extinguisher")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusRejected, resp.ReportStatus)
	assert.Nil(t, resp.Approval.ApprovalCatCP)
	require.NotNil(t, resp.Approval.ApprovedByCP)
	assert.False(t, *resp.Approval.ApprovedByCP)
	require.NotNil(t, resp.Approval.CommentsCP)
	assert.Equal(t, "missing extinguisher", *resp.Approval.CommentsCP)
	assert.Equal(t, models.ReportStatusRejected, f.store.reports["r1"].Status)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, string(models.ReportStatusRejected), f.notifier.sent[0].Payload["status"])

	for name, principal := range map[string]*models.Principal{"cs": cs, "cp": cp} {
		_, err = f.svc.ActOnReport(ctx, principal, "r1", dto.DecisionApprove, "")
		require.Error(t, err, name)
		assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyActed), name)
	}
	assert.Equal(t, models.ReportStatusRejected, f.store.reports["r1"].Status)
	assert.Len(t, f.notifier.sent, 1)
}

func TestActOnReportRejectsRepeatAction(t *testing.T) {
	f := newReportFixture(t)
	seedReport(f.store, "r1", "class-a", models.ReportStatusSubmitted)
	principal := studentPrincipal("cs-user", "class-a", models.StudentRoleCS)

	_, err := f.svc.ActOnReport(context.Background(), principal, "r1", dto.DecisionApprove, "")
	require.NoError(t, err)

	_, err = f.svc.ActOnReport(context.Background(), principal, "r1", dto.DecisionDeny, "changed my mind")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyActed))
	assert.Equal(t, models.ReportStatusPartial, f.store.reports["r1"].Status)
}

func TestActOnReportGuards(t *testing.T) {
	f := newReportFixture(t)
	seedReport(f.store, "r1", "class-a", models.ReportStatusSubmitted)
	ctx := context.Background()

	_, err := f.svc.ActOnReport(ctx, studentPrincipal("cs-user", "class-a", models.StudentRoleCS), "r1", dto.DecisionDeny, "  ")
	assert.True(t, appErrors.Is(err, appErrors.ErrCommentsRequired))

	_, err = f.svc.ActOnReport(ctx, studentPrincipal("cc-user", "class-a", models.StudentRoleCC), "r1", dto.DecisionApprove, "")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = f.svc.ActOnReport(ctx, studentPrincipal("cs-other", "class-b", models.StudentRoleCS), "r1", dto.DecisionApprove, "")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = f.svc.ActOnReport(ctx, studentPrincipal("cs-user", "class-a", models.StudentRoleCS), "missing", dto.DecisionApprove, "")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = f.svc.ActOnReport(ctx, studentPrincipal("cs-user", "class-a", models.StudentRoleCS), "r1", dto.ApprovalDecision("MAYBE"), "")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	assert.Empty(t, f.store.approvals)
	assert.Equal(t, models.ReportStatusSubmitted, f.store.reports["r1"].Status)
}

func TestDeriveReportStatus(t *testing.T) {
	yes, no := true, false
	cases := []struct {
		name     string
		approval models.ReportApproval
		want     models.ReportStatus
	}{
		{"nobody", models.ReportApproval{}, models.ReportStatusSubmitted},
		{"cs only", models.ReportApproval{ApprovedByCS: &yes}, models.ReportStatusPartial},
		{"cp only", models.ReportApproval{ApprovedByCP: &yes}, models.ReportStatusPartial},
		{"both", models.ReportApproval{ApprovedByCS: &yes, ApprovedByCP: &yes}, models.ReportStatusUnderReview},
		{"cs denied", models.ReportApproval{ApprovedByCS: &no}, models.ReportStatusRejected},
		{"cp denied after cs", models.ReportApproval{ApprovedByCS: &yes, ApprovedByCP: &no}, models.ReportStatusRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			approval := tc.approval
			assert.Equal(t, tc.want, deriveReportStatus(&approval))
		})
	}
}

func TestApprovalViewShowsBothRoles(t *testing.T) {
	f := newReportFixture(t)
	seedReport(f.store, "r1", "class-a", models.ReportStatusPartial)
	approved := true
	f.store.approvals["r1"] = &models.ReportApproval{ReportID: "r1", ApprovedByCS: &approved}

	view, err := f.svc.ApprovalView(context.Background(), studentPrincipal("cp-user", "class-a", models.StudentRoleCP))
	require.NoError(t, err)
	assert.True(t, view.CanAct)
	assert.False(t, view.UserAction.Acted())
	assert.True(t, view.OtherRoleAction.Acted())

	_, err = f.svc.ApprovalView(context.Background(), studentPrincipal("cp-user", "class-b", models.StudentRoleCP))
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestReviewReportOnlyFromUnderReview(t *testing.T) {
	f := newReportFixture(t)
	seedReport(f.store, "r1", "class-a", models.ReportStatusPartial)
	seedReport(f.store, "r2", "class-b", models.ReportStatusUnderReview)
	admin := &models.Principal{UserID: "admin-1", Role: models.RoleAdmin}
	ctx := context.Background()

	_, err := f.svc.ReviewReport(ctx, admin, "r1", dto.ReviewReportRequest{Decision: models.ReportStatusApproved})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, models.ReportStatusPartial, f.store.reports["r1"].Status)

	_, err = f.svc.ReviewReport(ctx, studentPrincipal("cs", "class-b", models.StudentRoleCS), "r2", dto.ReviewReportRequest{Decision: models.ReportStatusApproved})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	resp, err := f.svc.ReviewReport(ctx, admin, "r2", dto.ReviewReportRequest{Decision: models.ReportStatusReviewed, Comments: "Filed"})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusReviewed, resp.ReportStatus)
	assert.Equal(t, models.ReportStatusReviewed, f.store.reports["r2"].Status)
	require.Len(t, f.store.reviews["r2"], 1)
	require.NotNil(t, f.store.reviews["r2"][0].AdminID)
	assert.Equal(t, "admin-1", *f.store.reviews["r2"][0].AdminID)

	_, err = f.svc.ReviewReport(ctx, admin, "r2", dto.ReviewReportRequest{Decision: models.ReportStatusApproved})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestGetReportEnforcesClassScope(t *testing.T) {
	f := newReportFixture(t)
	seedReport(f.store, "r1", "class-a", models.ReportStatusSubmitted)
	ctx := context.Background()

	_, err := f.svc.GetReport(ctx, studentPrincipal("u2", "class-b", ""), "r1")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	report, err := f.svc.GetReport(ctx, &models.Principal{UserID: "admin", Role: models.RoleAdmin}, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", report.ID)

	_, err = f.svc.GetReport(ctx, studentPrincipal("u1", "class-a", ""), "nope")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestListClassReportsAppliesWindow(t *testing.T) {
	f := newReportFixture(t)
	seedReport(f.store, "r1", "class-a", models.ReportStatusSubmitted)

	reports, pagination, err := f.svc.ListClassReports(context.Background(), studentPrincipal("u1", "class-a", ""), dto.ListClassReportsRequest{Filter: dto.WindowWeekly})
	require.NoError(t, err)
	assert.Len(t, reports, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, "class-a", f.store.listed.ClassID)
	require.NotNil(t, f.store.listed.From)
	assert.Equal(t, reportTestNow.AddDate(0, 0, -7), *f.store.listed.From)
}

type stubRenderer struct{ doc export.Document }

func (r *stubRenderer) Render(doc export.Document) ([]byte, error) {
	r.doc = doc
	return []byte("%PDF-stub"), nil
}

func TestDownloadReportRendersDocument(t *testing.T) {
	f := newReportFixture(t)
	renderer := &stubRenderer{}
	f.svc.pdf = renderer
	seedReport(f.store, "r1", "class-a", models.ReportStatusSubmitted)
	f.store.reports["r1"].ItemEvaluated = models.ItemEvaluations{{ItemID: fireItemID, Name: "Fire Extinguisher", Status: models.EvaluationGood}}

	data, filename, err := f.svc.DownloadReport(context.Background(), studentPrincipal("u1", "class-a", ""), "r1")
	require.NoError(t, err)
	assert.Equal(t, "report-r1.pdf", filename)
	assert.Equal(t, []byte("%PDF-stub"), data)
	assert.Equal(t, "Morning inspection", renderer.doc.Title)
	require.GreaterOrEqual(t, len(renderer.doc.Sections), 3)
	assert.Equal(t, "Inspected Items", renderer.doc.Sections[1].Heading)
	assert.Equal(t, []string{"Fire Extinguisher", "GOOD", ""}, renderer.doc.Sections[1].Table.Rows[0])
}
