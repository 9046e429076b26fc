package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/smart-report-api/internal/models"
	"github.com/noah-isme/smart-report-api/pkg/database"
)

// reportDayConstraint is the unique index guarding one report per reporter, class and day.
const reportDayConstraint = "reports_reporter_class_day_key"

const reportColumns = `r.id, r.title, r.class_id, r.reporter_id, r.item_evaluated, r.general_comment, r.category, r.status, r.submission_date, r.created_at, r.updated_at, c.name AS class_name, u.name AS reporter_name, u.email AS reporter_email`

const reportFrom = ` FROM reports r JOIN classes c ON c.id = r.class_id JOIN users u ON u.id = r.reporter_id`

const approvalColumns = `id, report_id, cs_student_id, cp_student_id, approved_by_cs, approved_by_cp, comments_cs, comments_cp, approved_at_cs, approved_at_cp, approval_cat_cs, approval_cat_cp, created_at, updated_at`

// ReportTx exposes the writes the approval state machine performs inside one transaction.
type ReportTx interface {
	LockReport(ctx context.Context, id string) (*models.Report, error)
	GetApproval(ctx context.Context, reportID string) (*models.ReportApproval, error)
	SaveApproval(ctx context.Context, approval *models.ReportApproval) error
	UpdateStatus(ctx context.Context, id string, status models.ReportStatus, at time.Time) error
	InsertReview(ctx context.Context, review *models.ReportReview) error
}

// ItemUsage is the per-item tally read from the report_items index.
type ItemUsage struct {
	ItemID       string `db:"item_id"`
	UsageCount   int    `db:"usage_count"`
	GoodCount    int    `db:"good_count"`
	BadCount     int    `db:"bad_count"`
	FlaggedCount int    `db:"flagged_count"`
}

// ItemEvaluationRecord is one evaluation of an item joined with its report.
type ItemEvaluationRecord struct {
	ReportID     string                  `db:"report_id"`
	ReportTitle  string                  `db:"report_title"`
	Status       models.EvaluationStatus `db:"status"`
	ClassName    string                  `db:"class_name"`
	ReporterName string                  `db:"reporter_name"`
	CreatedAt    time.Time               `db:"created_at"`
}

// ReportRepository is the persistence gateway for reports, approvals and reviews.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts the report, its item index rows and the placeholder review atomically.
// A second report for the same reporter, class and day yields ErrDuplicateReport.
func (r *ReportRepository) Create(ctx context.Context, report *models.Report, review *models.ReportReview) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	report.UpdatedAt = report.CreatedAt

	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const insertReport = `INSERT INTO reports (id, title, class_id, reporter_id, item_evaluated, general_comment, category, status, submission_date, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
		if _, err := tx.ExecContext(ctx, insertReport,
			report.ID, report.Title, report.ClassID, report.ReporterID, report.ItemEvaluated, report.GeneralComment,
			report.Category, report.Status, report.SubmissionDate, report.CreatedAt, report.UpdatedAt,
		); err != nil {
			return translateReportError("create report", err)
		}

		const insertItem = `INSERT INTO report_items (report_id, item_id, status, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT (report_id, item_id) DO NOTHING`
		for _, item := range report.ItemEvaluated {
			if _, err := tx.ExecContext(ctx, insertItem, report.ID, item.ItemID, item.Status, report.CreatedAt); err != nil {
				return translateReportError("index report item", err)
			}
		}

		if review != nil {
			review.ReportID = report.ID
			if err := insertReview(ctx, tx, review); err != nil {
				return err
			}
		}
		return nil
	})
}

// WithTx runs fn with transactional access to report state.
func (r *ReportRepository) WithTx(ctx context.Context, fn func(tx ReportTx) error) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return fn(&reportTx{tx: tx})
	})
}

// GetByID returns a report with class and reporter names.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.Report, error) {
	query := `SELECT ` + reportColumns + reportFrom + ` WHERE r.id = $1`
	var report models.Report
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get report: %w", err)
	}
	return &report, nil
}

// FindForClassOn returns the most recent report of a class submitted on day.
func (r *ReportRepository) FindForClassOn(ctx context.Context, classID string, day time.Time) (*models.Report, error) {
	query := `SELECT ` + reportColumns + reportFrom + ` WHERE r.class_id = $1 AND r.submission_date = $2 ORDER BY r.created_at DESC LIMIT 1`
	var report models.Report
	if err := r.db.GetContext(ctx, &report, query, classID, day.Format("2006-01-02")); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find class report: %w", err)
	}
	return &report, nil
}

// GetApproval returns the approval row of a report, or nil when nobody acted yet.
func (r *ReportRepository) GetApproval(ctx context.Context, reportID string) (*models.ReportApproval, error) {
	return getApproval(ctx, r.db, reportID)
}

// ListReviews returns the review trail of a report, oldest first.
func (r *ReportRepository) ListReviews(ctx context.Context, reportID string) ([]models.ReportReview, error) {
	const query = `SELECT id, report_id, admin_id, status, comments, reviewed_at, created_at FROM report_reviews WHERE report_id = $1 ORDER BY created_at ASC`
	var reviews []models.ReportReview
	if err := r.db.SelectContext(ctx, &reviews, query, reportID); err != nil {
		return nil, fmt.Errorf("list report reviews: %w", err)
	}
	return reviews, nil
}

// List returns a filtered page of reports and the total match count.
func (r *ReportRepository) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error) {
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("r.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			statuses[i] = string(status)
		}
		conditions = append(conditions, fmt.Sprintf("r.status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(statuses))
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("r.created_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("r.created_at < $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	if filter.Search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(r.title) LIKE $%d OR LOWER(r.general_comment) LIKE $%d OR LOWER(c.name) LIKE $%d OR LOWER(u.name) LIKE $%d)", idx, idx, idx, idx))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at": "r.created_at",
		"title":      "r.title",
		"status":     "r.status",
		"class":      "c.name",
		"reporter":   "u.name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "r.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	listQuery := fmt.Sprintf("SELECT %s%s%s ORDER BY %s %s LIMIT %d OFFSET %d", reportColumns, reportFrom, clause, orderBy, order, size, (page-1)*size)
	var reports []models.Report
	if err := r.db.SelectContext(ctx, &reports, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}

	countQuery := "SELECT COUNT(*)" + reportFrom + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}
	return reports, total, nil
}

// ListCreatedBetween returns every report created in [from, to), oldest first.
func (r *ReportRepository) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]models.Report, error) {
	query := `SELECT ` + reportColumns + reportFrom + ` WHERE r.created_at >= $1 AND r.created_at < $2 ORDER BY r.created_at ASC`
	var reports []models.Report
	if err := r.db.SelectContext(ctx, &reports, query, from, to); err != nil {
		return nil, fmt.Errorf("list reports between: %w", err)
	}
	return reports, nil
}

// ListRecent returns the newest reports.
func (r *ReportRepository) ListRecent(ctx context.Context, limit int) ([]models.Report, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT ` + reportColumns + reportFrom + ` ORDER BY r.created_at DESC LIMIT $1`
	var reports []models.Report
	if err := r.db.SelectContext(ctx, &reports, query, limit); err != nil {
		return nil, fmt.Errorf("list recent reports: %w", err)
	}
	return reports, nil
}

// ListForReporters returns all reports authored by the given users.
func (r *ReportRepository) ListForReporters(ctx context.Context, reporterIDs []string) ([]models.Report, error) {
	if len(reporterIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + reportColumns + reportFrom + ` WHERE r.reporter_id = ANY($1) ORDER BY r.created_at ASC`
	var reports []models.Report
	if err := r.db.SelectContext(ctx, &reports, query, pq.Array(reporterIDs)); err != nil {
		return nil, fmt.Errorf("list reporter reports: %w", err)
	}
	return reports, nil
}

// Count returns the number of stored reports.
func (r *ReportRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM reports`); err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return total, nil
}

// CountByStatus returns report totals keyed by status.
func (r *ReportRepository) CountByStatus(ctx context.Context) (map[models.ReportStatus]int, error) {
	return r.countByStatus(ctx, "count reports by status", `SELECT status, COUNT(*) AS total FROM reports GROUP BY status`)
}

// CountByStatusForReporter returns the totals of one reporter's reports keyed by status.
func (r *ReportRepository) CountByStatusForReporter(ctx context.Context, reporterID string) (map[models.ReportStatus]int, error) {
	return r.countByStatus(ctx, "count reporter reports by status", `SELECT status, COUNT(*) AS total FROM reports WHERE reporter_id = $1 GROUP BY status`, reporterID)
}

func (r *ReportRepository) countByStatus(ctx context.Context, op, query string, args ...interface{}) (map[models.ReportStatus]int, error) {
	var rows []struct {
		Status models.ReportStatus `db:"status"`
		Total  int                 `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result := make(map[models.ReportStatus]int, len(rows))
	for _, row := range rows {
		result[row.Status] = row.Total
	}
	return result, nil
}

// ListClassCreatedBetween returns the reports of one class created in [from, to), oldest first.
func (r *ReportRepository) ListClassCreatedBetween(ctx context.Context, classID string, from, to time.Time) ([]models.Report, error) {
	query := `SELECT ` + reportColumns + reportFrom + ` WHERE r.class_id = $1 AND r.created_at >= $2 AND r.created_at < $3 ORDER BY r.created_at ASC`
	var reports []models.Report
	if err := r.db.SelectContext(ctx, &reports, query, classID, from, to); err != nil {
		return nil, fmt.Errorf("list class reports between: %w", err)
	}
	return reports, nil
}

// ReviewActivity is the latest administrative decision on a report.
type ReviewActivity struct {
	ID        string              `db:"id"`
	ReportID  string              `db:"report_id"`
	Status    models.ReviewStatus `db:"status"`
	AdminName sql.NullString      `db:"admin_name"`
	ActedAt   time.Time           `db:"acted_at"`
}

// ListLatestReviews returns the newest decided review of each report. Pending rows are skipped.
func (r *ReportRepository) ListLatestReviews(ctx context.Context, reportIDs []string) ([]ReviewActivity, error) {
	if len(reportIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT DISTINCT ON (rv.report_id) rv.id, rv.report_id, rv.status, a.name AS admin_name, COALESCE(rv.reviewed_at, rv.created_at) AS acted_at
FROM report_reviews rv LEFT JOIN users a ON a.id = rv.admin_id
WHERE rv.report_id = ANY($1) AND rv.status <> $2
ORDER BY rv.report_id, rv.created_at DESC`
	var reviews []ReviewActivity
	if err := r.db.SelectContext(ctx, &reviews, query, pq.Array(reportIDs), models.ReviewStatusPending); err != nil {
		return nil, fmt.Errorf("list latest reviews: %w", err)
	}
	return reviews, nil
}

// ItemUsage tallies evaluations per item. The report_items key counts an item once per report.
func (r *ReportRepository) ItemUsage(ctx context.Context) ([]ItemUsage, error) {
	const query = `SELECT item_id,
COUNT(*) AS usage_count,
COUNT(*) FILTER (WHERE UPPER(status) = 'GOOD') AS good_count,
COUNT(*) FILTER (WHERE UPPER(status) = 'BAD') AS bad_count,
COUNT(*) FILTER (WHERE UPPER(status) = 'FLAGGED') AS flagged_count
FROM report_items GROUP BY item_id`
	var usage []ItemUsage
	if err := r.db.SelectContext(ctx, &usage, query); err != nil {
		return nil, fmt.Errorf("item usage: %w", err)
	}
	return usage, nil
}

// ListItemEvaluations returns evaluations of one item created at or after since, newest first.
func (r *ReportRepository) ListItemEvaluations(ctx context.Context, itemID string, since time.Time) ([]ItemEvaluationRecord, error) {
	const query = `SELECT ri.report_id, r.title AS report_title, ri.status, c.name AS class_name, u.name AS reporter_name, ri.created_at
FROM report_items ri
JOIN reports r ON r.id = ri.report_id
JOIN classes c ON c.id = r.class_id
JOIN users u ON u.id = r.reporter_id
WHERE ri.item_id = $1 AND ri.created_at >= $2
ORDER BY ri.created_at DESC`
	var records []ItemEvaluationRecord
	if err := r.db.SelectContext(ctx, &records, query, itemID, since); err != nil {
		return nil, fmt.Errorf("list item evaluations: %w", err)
	}
	return records, nil
}

type reportTx struct {
	tx *sqlx.Tx
}

func (t *reportTx) LockReport(ctx context.Context, id string) (*models.Report, error) {
	const query = `SELECT id, title, class_id, reporter_id, item_evaluated, general_comment, category, status, submission_date, created_at, updated_at FROM reports WHERE id = $1 FOR UPDATE`
	var report models.Report
	if err := t.tx.GetContext(ctx, &report, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock report: %w", err)
	}
	return &report, nil
}

func (t *reportTx) GetApproval(ctx context.Context, reportID string) (*models.ReportApproval, error) {
	return getApproval(ctx, t.tx, reportID)
}

func (t *reportTx) SaveApproval(ctx context.Context, approval *models.ReportApproval) error {
	if approval.ID == "" {
		approval.ID = uuid.NewString()
	}
	if approval.CreatedAt.IsZero() {
		approval.CreatedAt = approval.UpdatedAt
	}
	const query = `INSERT INTO report_approvals (` + approvalColumns + `)
VALUES (:id, :report_id, :cs_student_id, :cp_student_id, :approved_by_cs, :approved_by_cp, :comments_cs, :comments_cp, :approved_at_cs, :approved_at_cp, :approval_cat_cs, :approval_cat_cp, :created_at, :updated_at)
ON CONFLICT (report_id) DO UPDATE SET cs_student_id = EXCLUDED.cs_student_id, cp_student_id = EXCLUDED.cp_student_id,
approved_by_cs = EXCLUDED.approved_by_cs, approved_by_cp = EXCLUDED.approved_by_cp,
comments_cs = EXCLUDED.comments_cs, comments_cp = EXCLUDED.comments_cp,
approved_at_cs = EXCLUDED.approved_at_cs, approved_at_cp = EXCLUDED.approved_at_cp,
approval_cat_cs = EXCLUDED.approval_cat_cs, approval_cat_cp = EXCLUDED.approval_cat_cp,
updated_at = EXCLUDED.updated_at`
	if _, err := t.tx.NamedExecContext(ctx, query, approval); err != nil {
		return fmt.Errorf("save report approval: %w", err)
	}
	return nil
}

func (t *reportTx) UpdateStatus(ctx context.Context, id string, status models.ReportStatus, at time.Time) error {
	const query = `UPDATE reports SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := t.tx.ExecContext(ctx, query, status, at, id); err != nil {
		return fmt.Errorf("update report status: %w", err)
	}
	return nil
}

func (t *reportTx) InsertReview(ctx context.Context, review *models.ReportReview) error {
	return insertReview(ctx, t.tx, review)
}

func getApproval(ctx context.Context, q sqlx.QueryerContext, reportID string) (*models.ReportApproval, error) {
	query := `SELECT ` + approvalColumns + ` FROM report_approvals WHERE report_id = $1`
	var approval models.ReportApproval
	if err := sqlx.GetContext(ctx, q, &approval, query, reportID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get report approval: %w", err)
	}
	return &approval, nil
}

func insertReview(ctx context.Context, tx *sqlx.Tx, review *models.ReportReview) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO report_reviews (id, report_id, admin_id, status, comments, reviewed_at, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(ctx, query, review.ID, review.ReportID, review.AdminID, review.Status, review.Comments, review.ReviewedAt, review.CreatedAt); err != nil {
		return fmt.Errorf("insert report review: %w", err)
	}
	return nil
}

func translateReportError(op string, err error) error {
	switch {
	case database.IsUniqueViolation(err, reportDayConstraint):
		return ErrDuplicateReport
	case database.IsForeignKeyViolation(err):
		return fmt.Errorf("%s: %w", op, ErrUnknownReference)
	case database.IsInvalidText(err):
		return fmt.Errorf("%s: %w", op, ErrMalformedID)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
