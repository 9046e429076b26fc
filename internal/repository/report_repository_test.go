package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-report-api/internal/models"
)

var reportRowColumns = []string{"id", "title", "class_id", "reporter_id", "item_evaluated", "general_comment", "category", "status", "submission_date", "created_at", "updated_at", "class_name", "reporter_name", "reporter_email"}

func sampleReport() *models.Report {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	return &models.Report{
		Title:      "Inspection Report 2024-01-01",
		ClassID:    "class-1",
		ReporterID: "user-1",
		ItemEvaluated: models.ItemEvaluations{
			{ItemID: "i1", Name: "Fan", Status: models.EvaluationGood},
			{ItemID: "i2", Name: "Lamp", Status: models.EvaluationBad},
		},
		Category:       models.DefaultReportCategory,
		Status:         models.ReportStatusSubmitted,
		SubmissionDate: now,
		CreatedAt:      now,
	}
}

func TestReportRepositoryCreateWritesReportIndexAndReview(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)
	report := sampleReport()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reports (id, title, class_id, reporter_id, item_evaluated, general_comment, category, status, submission_date, created_at, updated_at)")).
		WithArgs(sqlmock.AnyArg(), report.Title, "class-1", "user-1", sqlmock.AnyArg(), "", "ONTIME", models.ReportStatusSubmitted, report.SubmissionDate, report.CreatedAt, report.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO report_items")).
		WithArgs(sqlmock.AnyArg(), "i1", models.EvaluationGood, report.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO report_items")).
		WithArgs(sqlmock.AnyArg(), "i2", models.EvaluationBad, report.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO report_reviews")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), nil, models.ReviewStatusPending, nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	review := &models.ReportReview{Status: models.ReviewStatusPending}
	require.NoError(t, repo.Create(context.Background(), report, review))
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, report.ID, review.ReportID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryCreateMapsUniqueViolation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reports")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: reportDayConstraint})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), sampleReport(), nil)
	require.ErrorIs(t, err, ErrDuplicateReport)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryCreateMapsUnknownItem(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reports")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO report_items")).WillReturnError(&pq.Error{Code: "23503"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), sampleReport(), nil)
	require.ErrorIs(t, err, ErrUnknownReference)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryCreateMapsMalformedItemID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reports")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO report_items")).WillReturnError(&pq.Error{Code: "22P02"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), sampleReport(), nil)
	require.ErrorIs(t, err, ErrMalformedID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryWithTxApprovalFlow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM reports WHERE id = $1 FOR UPDATE")).
		WithArgs("r-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "class_id", "reporter_id", "item_evaluated", "general_comment", "category", "status", "submission_date", "created_at", "updated_at"}).
			AddRow("r-1", "t", "class-1", "user-1", `[]`, "", "ONTIME", "SUBMITTED", now, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM report_approvals WHERE report_id = $1")).
		WithArgs("r-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO report_approvals")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reports SET status = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(models.ReportStatusPartial, now, "r-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.WithTx(context.Background(), func(tx ReportTx) error {
		report, err := tx.LockReport(context.Background(), "r-1")
		if err != nil {
			return err
		}
		approval, err := tx.GetApproval(context.Background(), report.ID)
		if err != nil {
			return err
		}
		assert.Nil(t, approval)
		approval = &models.ReportApproval{ReportID: report.ID}
		approval.Record(models.StudentRoleCS, "s-1", true, "ok", &report.Category, now)
		if err := tx.SaveApproval(context.Background(), approval); err != nil {
			return err
		}
		return tx.UpdateStatus(context.Background(), report.ID, models.ReportStatusPartial, now)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.class_id = $1 AND r.status = ANY($2) AND (LOWER(r.title) LIKE $3 OR LOWER(r.general_comment) LIKE $3 OR LOWER(c.name) LIKE $3 OR LOWER(u.name) LIKE $3) ORDER BY r.created_at DESC LIMIT 10 OFFSET 10")).
		WithArgs("class-1", sqlmock.AnyArg(), "%fan%").
		WillReturnRows(sqlmock.NewRows(reportRowColumns).
			AddRow("r-1", "Fan check", "class-1", "user-1", `[{"itemId":"i1","status":"GOOD"}]`, "", "ONTIME", "PARTIAL", now, now, now, "10A", "Ana", "ana@example.com"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM reports r JOIN classes c ON c.id = r.class_id JOIN users u ON u.id = r.reporter_id WHERE r.class_id = $1")).
		WithArgs("class-1", sqlmock.AnyArg(), "%fan%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	reports, total, err := repo.List(context.Background(), models.ReportFilter{
		ClassID:  "class-1",
		Statuses: []models.ReportStatus{models.ReportStatusPartial},
		Search:   "Fan",
		Page:     2,
		PageSize: 10,
	})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 11, total)
	assert.Equal(t, "10A", reports[0].ClassName)
	assert.Len(t, reports[0].ItemEvaluated, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryItemUsage(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM report_items GROUP BY item_id")).
		WillReturnRows(sqlmock.NewRows([]string{"item_id", "usage_count", "good_count", "bad_count", "flagged_count"}).
			AddRow("i1", 3, 2, 1, 0))

	usage, err := repo.ItemUsage(context.Background())
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, ItemUsage{ItemID: "i1", UsageCount: 3, GoodCount: 2, BadCount: 1}, usage[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryCountByStatusForReporter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM reports WHERE reporter_id = $1 GROUP BY status")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "total"}).
			AddRow("APPROVED", 2).
			AddRow("PARTIAL", 1))

	counts, err := repo.CountByStatusForReporter(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, map[models.ReportStatus]int{models.ReportStatusApproved: 2, models.ReportStatusPartial: 1}, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListClassCreatedBetween(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.class_id = $1 AND r.created_at >= $2 AND r.created_at < $3 ORDER BY r.created_at ASC")).
		WithArgs("class-1", from, to).
		WillReturnRows(sqlmock.NewRows(reportRowColumns).
			AddRow("r-1", "Fan check", "class-1", "user-1", `[]`, "", "ONTIME", "SUBMITTED", from, from, from, "10A", "Ana", "ana@example.com"))

	reports, err := repo.ListClassCreatedBetween(context.Background(), "class-1", from, to)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "Ana", reports[0].ReporterName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListLatestReviews(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)
	at := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)

	reviews, err := repo.ListLatestReviews(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, reviews)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT ON (rv.report_id)")).
		WithArgs(sqlmock.AnyArg(), models.ReviewStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id", "report_id", "status", "admin_name", "acted_at"}).
			AddRow("rv-1", "r-1", "APPROVED", "Pak Budi", at).
			AddRow("rv-2", "r-2", "REJECTED", nil, at))

	reviews, err = repo.ListLatestReviews(context.Background(), []string{"r-1", "r-2"})
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, sql.NullString{String: "Pak Budi", Valid: true}, reviews[0].AdminName)
	assert.False(t, reviews[1].AdminName.Valid)
	assert.Equal(t, models.ReviewStatusRejected, reviews[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
