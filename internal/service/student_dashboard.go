package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/smart-report-api/internal/dto"
	"github.com/noah-isme/smart-report-api/internal/models"
	appErrors "github.com/noah-isme/smart-report-api/pkg/errors"
)

const (
	dashboardRecentScan    = 10
	dashboardActivityLimit = 5
	dashboardReportLimit   = 4
)

// StudentDashboard summarises the principal's class: headcount and report totals, the
// last seven days by weekday, a feed of submissions and admin decisions, and the newest
// reports. Results are cached per class and hour and dropped on every report change.
func (s *AggregationService) StudentDashboard(ctx context.Context, principal *models.Principal) (*dto.StudentDashboard, bool, error) {
	if principal == nil {
		return nil, false, appErrors.ErrUnauthorized
	}
	if principal.ClassID == nil || *principal.ClassID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "User not assigned to any class")
	}
	classID := *principal.ClassID
	now := s.now().In(s.loc)
	key := fmt.Sprintf("agg:student:%s:%s", classID, now.Format("2006-01-02T15"))
	dashboard, hit, err := cached(ctx, s.cache, key, func(ctx context.Context) (*dto.StudentDashboard, error) {
		return s.composeStudentDashboard(ctx, classID, now)
	})
	if err != nil {
		return nil, false, s.fail("student_dashboard", err)
	}
	return dashboard, hit, nil
}

func (s *AggregationService) composeStudentDashboard(ctx context.Context, classID string, now time.Time) (*dto.StudentDashboard, error) {
	defer s.observe("student_dashboard", time.Now())

	dashboard := &dto.StudentDashboard{ClassID: classID}
	var err error
	if dashboard.Stats.TotalStudents, dashboard.Stats.TotalReports, err = s.classes.CountDependents(ctx, classID); err != nil {
		return nil, err
	}

	weekly, err := s.reports.ListClassCreatedBetween(ctx, classID, startOfDay(now).AddDate(0, 0, -7), now.Add(time.Second))
	if err != nil {
		return nil, err
	}
	dashboard.WeeklyData = weekdaySeries(weekly, s.loc)

	recent, _, err := s.reports.List(ctx, models.ReportFilter{ClassID: classID, PageSize: dashboardRecentScan})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(recent))
	titles := make(map[string]string, len(recent))
	for i := range recent {
		ids[i] = recent[i].ID
		titles[recent[i].ID] = recent[i].Title
	}
	reviews, err := s.reports.ListLatestReviews(ctx, ids)
	if err != nil {
		return nil, err
	}

	type entry struct {
		activity dto.Activity
		at       time.Time
	}
	feed := make([]entry, 0, len(recent)+len(reviews))
	for i := range recent {
		r := &recent[i]
		feed = append(feed, entry{
			activity: dto.Activity{ID: "report-" + r.ID, Type: "submitted", Title: r.Title, User: r.ReporterName},
			at:       r.CreatedAt,
		})
	}
	for _, rv := range reviews {
		admin := "Admin"
		if rv.AdminName.Valid && rv.AdminName.String != "" {
			admin = rv.AdminName.String
		}
		feed = append(feed, entry{
			activity: dto.Activity{
				ID:    "review-" + rv.ID,
				Type:  strings.ToLower(string(rv.Status)),
				Title: titles[rv.ReportID] + " (Admin Review)",
				User:  admin,
			},
			at: rv.ActedAt,
		})
	}
	sort.SliceStable(feed, func(i, j int) bool { return feed[i].at.After(feed[j].at) })
	if len(feed) > dashboardActivityLimit {
		feed = feed[:dashboardActivityLimit]
	}
	dashboard.RecentActivity = make([]dto.Activity, len(feed))
	for i, e := range feed {
		e.activity.Time = timeAgo(now.Sub(e.at))
		dashboard.RecentActivity[i] = e.activity
	}

	limit := len(recent)
	if limit > dashboardReportLimit {
		limit = dashboardReportLimit
	}
	dashboard.RecentReports = make([]dto.RecentReport, 0, limit)
	for i := 0; i < limit; i++ {
		r := &recent[i]
		dashboard.RecentReports = append(dashboard.RecentReports, dto.RecentReport{
			ID:             r.ID,
			Title:          r.Title,
			Status:         listingStatus(r.Status),
			Date:           r.CreatedAt.In(s.loc).Format("2006-01-02"),
			Representative: r.ReporterName,
			Class:          r.ClassName,
		})
	}
	return dashboard, nil
}

// StudentProfile returns the principal's identity with counts of the reports they authored.
func (s *AggregationService) StudentProfile(ctx context.Context, principal *models.Principal) (*dto.StudentProfile, error) {
	if principal == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if principal.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Access denied. Student role required.")
	}
	defer s.observe("student_profile", time.Now())

	counts, err := s.reports.CountByStatusForReporter(ctx, principal.UserID)
	if err != nil {
		return nil, s.fail("student_profile", err)
	}
	return &dto.StudentProfile{
		UserID:      principal.UserID,
		Name:        principal.Name,
		Email:       principal.Email,
		ClassID:     principal.ClassID,
		StudentRole: principal.StudentRole,
		Stats:       reporterStats(counts),
	}, nil
}

// reporterStats folds status totals into submitted, approved, pending and rejected.
func reporterStats(counts map[models.ReportStatus]int) dto.ReporterStats {
	var stats dto.ReporterStats
	for status, n := range counts {
		stats.Submitted += n
		switch {
		case status.Resolved():
			stats.Approved += n
		case isPending(status):
			stats.Pending += n
		case status == models.ReportStatusRejected:
			stats.Rejected += n
		}
	}
	return stats
}
