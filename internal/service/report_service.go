package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-report-api/internal/dto"
	"github.com/noah-isme/smart-report-api/internal/models"
	"github.com/noah-isme/smart-report-api/internal/repository"
	appErrors "github.com/noah-isme/smart-report-api/pkg/errors"
	"github.com/noah-isme/smart-report-api/pkg/export"
)

const defaultApproveComment = "Report approved successfully"

type reportStore interface {
	Create(ctx context.Context, report *models.Report, review *models.ReportReview) error
	WithTx(ctx context.Context, fn func(tx repository.ReportTx) error) error
	GetByID(ctx context.Context, id string) (*models.Report, error)
	FindForClassOn(ctx context.Context, classID string, day time.Time) (*models.Report, error)
	GetApproval(ctx context.Context, reportID string) (*models.ReportApproval, error)
	ListReviews(ctx context.Context, reportID string) ([]models.ReportReview, error)
	List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error)
}

type itemLookup interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Item, error)
}

// EventPublisher broadcasts lifecycle events to realtime subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// Notifier accepts e-mail intents without waiting for delivery.
type Notifier interface {
	Notify(ctx context.Context, notification models.Notification)
}

type documentRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

// ReportServiceParams groups constructor dependencies.
type ReportServiceParams struct {
	Reports   reportStore
	Items     itemLookup
	Events    EventPublisher
	Notifier  Notifier
	Cache     *CacheService
	Metrics   *MetricsService
	PDF       documentRenderer
	Validator *validator.Validate
	Logger    *zap.Logger
	Location  *time.Location
}

// ReportService owns the report lifecycle: submission, peer approval and administrative review.
type ReportService struct {
	reports   reportStore
	items     itemLookup
	events    EventPublisher
	notifier  Notifier
	cache     *CacheService
	metrics   *MetricsService
	pdf       documentRenderer
	validator *validator.Validate
	logger    *zap.Logger
	loc       *time.Location
	now       func() time.Time
}

// NewReportService constructs the lifecycle engine.
func NewReportService(params ReportServiceParams) *ReportService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	loc := params.Location
	if loc == nil {
		loc = time.Local
	}
	pdf := params.PDF
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ReportService{
		reports:   params.Reports,
		items:     params.Items,
		events:    params.Events,
		notifier:  params.Notifier,
		cache:     params.Cache,
		metrics:   params.Metrics,
		pdf:       pdf,
		validator: validate,
		logger:    logger,
		loc:       loc,
		now:       time.Now,
	}
}

// SubmitReport records today's inspection for the principal's class.
// One report per reporter, class and calendar day; a second attempt yields DuplicateSubmission.
func (s *ReportService) SubmitReport(ctx context.Context, principal *models.Principal, req dto.SubmitReportRequest) (*models.Report, error) {
	if principal == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if principal.ClassID == nil || *principal.ClassID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "User not assigned to any class")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}

	evaluations, err := s.normaliseEvaluations(ctx, req.ItemEvaluated)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.loc)
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Inspection Report " + now.Format("2006-01-02")
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = models.DefaultReportCategory
	}

	report := &models.Report{
		ID:             uuid.NewString(),
		Title:          title,
		ClassID:        *principal.ClassID,
		ReporterID:     principal.UserID,
		ItemEvaluated:  evaluations,
		GeneralComment: strings.TrimSpace(req.GeneralComment),
		Category:       category,
		Status:         models.ReportStatusSubmitted,
		SubmissionDate: startOfDay(now),
		CreatedAt:      now.UTC(),
	}
	review := &models.ReportReview{Status: models.ReviewStatusPending, CreatedAt: now.UTC()}

	if err := s.reports.Create(ctx, report, review); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateReport):
			return nil, appErrors.Clone(appErrors.ErrDuplicateSubmission, "")
		case errors.Is(err, repository.ErrUnknownReference):
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "report references an unknown class or item")
		case errors.Is(err, repository.ErrMalformedID):
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "report contains a malformed item id")
		}
		return nil, appErrors.Persistence(err, "failed to submit report")
	}
	report.Reviews = []models.ReportReview{*review}

	s.metrics.RecordSubmission()
	s.publish(ctx, models.Event{
		Type:    models.EventReportSubmitted,
		ClassID: report.ClassID,
		Payload: map[string]interface{}{
			"reportId":   report.ID,
			"title":      report.Title,
			"reporterId": report.ReporterID,
			"status":     report.Status,
		},
		OccurredAt: report.CreatedAt,
	})
	s.cache.InvalidateAggregations(ctx)
	return report, nil
}

func (s *ReportService) normaliseEvaluations(ctx context.Context, inputs []dto.ItemEvaluationInput) (models.ItemEvaluations, error) {
	evaluations := make(models.ItemEvaluations, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	var unnamed []string
	for _, input := range inputs {
		id := strings.TrimSpace(input.ItemID)
		if id == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "every evaluated item needs an itemId")
		}
		if _, dup := seen[id]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("item %s is evaluated more than once", id))
		}
		seen[id] = struct{}{}

		status, ok := models.ParseEvaluationStatus(input.Status)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid status %q for item %s", input.Status, id))
		}
		name := strings.TrimSpace(input.Name)
		if name == "" {
			unnamed = append(unnamed, id)
		}
		evaluations = append(evaluations, models.ItemEvaluation{ItemID: id, Name: name, Status: status, Comment: strings.TrimSpace(input.Comment)})
	}

	if len(unnamed) == 0 || s.items == nil {
		return evaluations, nil
	}
	items, err := s.items.FindByIDs(ctx, unnamed)
	if err != nil {
		return nil, appErrors.Persistence(err, "failed to load inspection items")
	}
	names := make(map[string]string, len(items))
	for _, item := range items {
		names[item.ID] = item.Name
	}
	for i := range evaluations {
		if evaluations[i].Name == "" {
			evaluations[i].Name = names[evaluations[i].ItemID]
		}
	}
	return evaluations, nil
}

// ActOnReport records a CS or CP decision and recomputes the report status in one transaction.
func (s *ReportService) ActOnReport(ctx context.Context, principal *models.Principal, reportID string, decision dto.ApprovalDecision, comments string) (*dto.ActOnReportResponse, error) {
	if decision != dto.DecisionApprove && decision != dto.DecisionDeny {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be APPROVE or DENY")
	}
	comments = strings.TrimSpace(comments)
	if decision == dto.DecisionDeny && comments == "" {
		return nil, appErrors.Clone(appErrors.ErrCommentsRequired, "")
	}
	if principal == nil || principal.StudentRole == nil || !principal.StudentRole.CanApprove() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "You don't have permission to approve reports")
	}
	role := *principal.StudentRole
	if decision == dto.DecisionApprove && comments == "" {
		comments = defaultApproveComment
	}

	var (
		approval *models.ReportApproval
		status   models.ReportStatus
		previous models.ReportStatus
	)
	err := s.reports.WithTx(ctx, func(tx repository.ReportTx) error {
		report, err := tx.LockReport(ctx, reportID)
		if err != nil {
			return err
		}
		if principal.ClassID == nil || *principal.ClassID != report.ClassID {
			return appErrors.Clone(appErrors.ErrForbidden, "You can only approve reports from your class")
		}

		current, err := tx.GetApproval(ctx, reportID)
		if err != nil {
			return err
		}
		if current == nil {
			current = &models.ReportApproval{ReportID: reportID}
		}
		if current.Action(role).Acted() {
			return appErrors.Clone(appErrors.ErrAlreadyActed, "")
		}

		var category *string
		approved := decision == dto.DecisionApprove
		if approved {
			category = &report.Category
		}
		at := s.now().UTC()
		current.Record(role, principal.UserID, approved, comments, category, at)
		if err := tx.SaveApproval(ctx, current); err != nil {
			return err
		}

		previous = report.Status
		status = deriveReportStatus(current)
		if err := tx.UpdateStatus(ctx, reportID, status, at); err != nil {
			return err
		}
		approval = current
		return nil
	})
	if err != nil {
		return nil, s.translateTxError(err, "failed to record approval")
	}

	s.metrics.RecordReportAction(string(role), string(decision), string(status))
	s.afterStatusChange(ctx, reportID, previous, status)
	return &dto.ActOnReportResponse{Approval: approval, ReportStatus: status}, nil
}

// deriveReportStatus applies the dual-approval rules: any denial rejects, two approvals
// send the report to review, a single approval leaves it partial.
func deriveReportStatus(approval *models.ReportApproval) models.ReportStatus {
	cs := approval.Action(models.StudentRoleCS).Approved
	cp := approval.Action(models.StudentRoleCP).Approved
	switch {
	case (cs != nil && !*cs) || (cp != nil && !*cp):
		return models.ReportStatusRejected
	case cs != nil && cp != nil:
		return models.ReportStatusUnderReview
	case cs != nil || cp != nil:
		return models.ReportStatusPartial
	default:
		return models.ReportStatusSubmitted
	}
}

// ApprovalView returns today's report of the principal's class with both signatories' actions.
func (s *ReportService) ApprovalView(ctx context.Context, principal *models.Principal) (*dto.ApprovalView, error) {
	if principal == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if principal.ClassID == nil || *principal.ClassID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "User not assigned to any class")
	}
	report, err := s.reports.FindForClassOn(ctx, *principal.ClassID, startOfDay(s.now().In(s.loc)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "No report found for today")
		}
		return nil, appErrors.Persistence(err, "failed to load today's report")
	}
	approval, err := s.reports.GetApproval(ctx, report.ID)
	if err != nil {
		return nil, appErrors.Persistence(err, "failed to load approval")
	}
	report.Approval = approval

	view := &dto.ApprovalView{Report: report, StudentRole: principal.StudentRole, Approval: approval}
	if principal.StudentRole != nil && principal.StudentRole.CanApprove() {
		role := *principal.StudentRole
		view.UserAction = approval.Action(role)
		view.OtherRoleAction = approval.Action(models.OtherRole(role))
		view.CanAct = !view.UserAction.Acted()
	}
	return view, nil
}

// ReviewReport appends an administrative decision. Only UNDER_REVIEW reports may be closed.
func (s *ReportService) ReviewReport(ctx context.Context, admin *models.Principal, reportID string, req dto.ReviewReportRequest) (*dto.ReviewReportResponse, error) {
	if !admin.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can review reports")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	var review models.ReportReview
	err := s.reports.WithTx(ctx, func(tx repository.ReportTx) error {
		report, err := tx.LockReport(ctx, reportID)
		if err != nil {
			return err
		}
		if report.Status != models.ReportStatusUnderReview {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("report is %s; only reports under review can be closed", report.Status))
		}
		at := s.now().UTC()
		adminID := admin.UserID
		review = models.ReportReview{
			ID:         uuid.NewString(),
			ReportID:   reportID,
			AdminID:    &adminID,
			Status:     models.ReviewStatus(req.Decision),
			ReviewedAt: &at,
			CreatedAt:  at,
		}
		if comments := strings.TrimSpace(req.Comments); comments != "" {
			review.Comments = &comments
		}
		if err := tx.InsertReview(ctx, &review); err != nil {
			return err
		}
		return tx.UpdateStatus(ctx, reportID, req.Decision, at)
	})
	if err != nil {
		return nil, s.translateTxError(err, "failed to record review")
	}

	s.metrics.RecordReportAction(string(models.RoleAdmin), string(req.Decision), string(req.Decision))
	s.afterStatusChange(ctx, reportID, models.ReportStatusUnderReview, req.Decision)
	return &dto.ReviewReportResponse{Review: review, ReportStatus: req.Decision}, nil
}

// ListClassReports pages through the principal's class reports within the selected window.
func (s *ReportService) ListClassReports(ctx context.Context, principal *models.Principal, req dto.ListClassReportsRequest) ([]models.Report, *models.Pagination, error) {
	if principal == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if principal.ClassID == nil || *principal.ClassID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "User not assigned to any class")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters")
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}

	filter := models.ReportFilter{
		ClassID:  *principal.ClassID,
		Search:   strings.TrimSpace(req.Search),
		Page:     req.Page,
		PageSize: req.Limit,
	}
	if from := s.windowStart(req.Filter); from != nil {
		filter.From = from
	}

	reports, total, err := s.reports.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Persistence(err, "failed to list reports")
	}
	return reports, models.NewPagination(req.Page, req.Limit, total), nil
}

func (s *ReportService) windowStart(window dto.ReportWindow) *time.Time {
	now := s.now().In(s.loc)
	var from time.Time
	switch window {
	case dto.WindowDaily:
		from = startOfDay(now)
	case dto.WindowWeekly:
		from = now.AddDate(0, 0, -7)
	case dto.WindowMonthly:
		from = now.AddDate(0, 0, -30)
	default:
		return nil
	}
	return &from
}

// GetReport loads a report with its approval and review trail.
// Students may only read reports of their own class.
func (s *ReportService) GetReport(ctx context.Context, principal *models.Principal, id string) (*models.Report, error) {
	if principal == nil {
		return nil, appErrors.ErrUnauthorized
	}
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Report not found")
		}
		return nil, appErrors.Persistence(err, "failed to load report")
	}
	if !principal.IsAdmin() && (principal.ClassID == nil || *principal.ClassID != report.ClassID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "You can only view reports from your class")
	}

	if report.Approval, err = s.reports.GetApproval(ctx, id); err != nil {
		return nil, appErrors.Persistence(err, "failed to load approval")
	}
	if report.Reviews, err = s.reports.ListReviews(ctx, id); err != nil {
		return nil, appErrors.Persistence(err, "failed to load reviews")
	}
	return report, nil
}

// DownloadReport renders a report as PDF and returns the bytes with a suggested filename.
func (s *ReportService) DownloadReport(ctx context.Context, principal *models.Principal, id string) ([]byte, string, error) {
	report, err := s.GetReport(ctx, principal, id)
	if err != nil {
		return nil, "", err
	}
	data, err := s.pdf.Render(reportDocument(report, s.loc))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	return data, fmt.Sprintf("report-%s.pdf", report.ID), nil
}

func reportDocument(report *models.Report, loc *time.Location) export.Document {
	summary := export.Section{
		Heading: "Summary",
		Fields: []export.Field{
			{Label: "Report ID", Value: report.ID},
			{Label: "Class", Value: report.ClassName},
			{Label: "Reporter", Value: report.ReporterName},
			{Label: "Status", Value: string(report.Status)},
			{Label: "Category", Value: report.Category},
			{Label: "Created", Value: report.CreatedAt.In(loc).Format("Jan 2, 2006 3:04 PM")},
		},
	}

	items := &export.Table{Headers: []string{"Item", "Status", "Comment"}}
	for _, item := range report.ItemEvaluated {
		status := string(item.Status)
		if status == "" {
			status = "NOT CHECKED"
		}
		items.Rows = append(items.Rows, []string{item.Name, status, item.Comment})
	}

	sections := []export.Section{summary, {Heading: "Inspected Items", Table: items}}
	if report.GeneralComment != "" {
		sections = append(sections, export.Section{Heading: "General Comment", Text: report.GeneralComment})
	}

	approvals := export.Section{Heading: "Approvals"}
	for _, role := range []models.StudentRole{models.StudentRoleCS, models.StudentRoleCP} {
		approvals.Fields = append(approvals.Fields, export.Field{Label: string(role), Value: describeAction(report.Approval.Action(role), loc)})
	}
	sections = append(sections, approvals)

	if len(report.Reviews) > 0 {
		reviews := &export.Table{Headers: []string{"Status", "Comments", "Date"}}
		for _, review := range report.Reviews {
			comments := ""
			if review.Comments != nil {
				comments = *review.Comments
			}
			reviews.Rows = append(reviews.Rows, []string{string(review.Status), comments, review.CreatedAt.In(loc).Format("Jan 2, 2006")})
		}
		sections = append(sections, export.Section{Heading: "Reviews", Table: reviews})
	}

	return export.Document{Title: report.Title, Subtitle: "Classroom inspection report", Sections: sections}
}

func describeAction(action models.ApprovalAction, loc *time.Location) string {
	if !action.Acted() {
		return "Pending"
	}
	verdict := "Denied"
	if *action.Approved {
		verdict = "Approved"
	}
	if action.ActedAt != nil {
		verdict += " on " + action.ActedAt.In(loc).Format("Jan 2, 2006 3:04 PM")
	}
	if action.Comments != nil && *action.Comments != "" {
		verdict += ": " + *action.Comments
	}
	return verdict
}

func (s *ReportService) translateTxError(err error, message string) error {
	var appErr *appErrors.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "Report not found")
	default:
		return appErrors.Persistence(err, message)
	}
}

// afterStatusChange runs the post-commit effects of a status transition. Failures are logged only.
func (s *ReportService) afterStatusChange(ctx context.Context, reportID string, previous, status models.ReportStatus) {
	s.cache.InvalidateAggregations(ctx)

	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		s.logger.Warn("load report for notifications failed", zap.String("report_id", reportID), zap.Error(err))
		return
	}
	s.publish(ctx, models.Event{
		Type:    models.EventReportStatusChanged,
		ClassID: report.ClassID,
		Payload: map[string]interface{}{
			"reportId":       report.ID,
			"title":          report.Title,
			"previousStatus": previous,
			"status":         status,
		},
		OccurredAt: s.now().UTC(),
	})

	if !notifiesReporter(status) || s.notifier == nil || report.ReporterEmail == "" {
		return
	}
	s.notifier.Notify(ctx, models.Notification{
		Kind:      models.NotificationReportStatus,
		Recipient: report.ReporterEmail,
		Payload: map[string]string{
			"name":     report.ReporterName,
			"reportId": report.ID,
			"title":    report.Title,
			"class":    report.ClassName,
			"status":   string(status),
		},
	})
}

func notifiesReporter(status models.ReportStatus) bool {
	switch status {
	case models.ReportStatusRejected, models.ReportStatusUnderReview, models.ReportStatusApproved, models.ReportStatusReviewed:
		return true
	default:
		return false
	}
}

func (s *ReportService) publish(ctx context.Context, event models.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("publish realtime event failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
