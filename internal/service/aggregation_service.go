package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/smart-report-api/internal/dto"
	"github.com/noah-isme/smart-report-api/internal/models"
	"github.com/noah-isme/smart-report-api/internal/repository"
	appErrors "github.com/noah-isme/smart-report-api/pkg/errors"
)

type aggregationReportStore interface {
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]models.Report, error)
	ListRecent(ctx context.Context, limit int) ([]models.Report, error)
	ListForReporters(ctx context.Context, reporterIDs []string) ([]models.Report, error)
	List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error)
	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context) (map[models.ReportStatus]int, error)
	CountByStatusForReporter(ctx context.Context, reporterID string) (map[models.ReportStatus]int, error)
	ListClassCreatedBetween(ctx context.Context, classID string, from, to time.Time) ([]models.Report, error)
	ListLatestReviews(ctx context.Context, reportIDs []string) ([]repository.ReviewActivity, error)
	ItemUsage(ctx context.Context) ([]repository.ItemUsage, error)
	ListItemEvaluations(ctx context.Context, itemID string, since time.Time) ([]repository.ItemEvaluationRecord, error)
}

type itemCatalogReader interface {
	List(ctx context.Context, search string) ([]models.Item, error)
	FindByID(ctx context.Context, id string) (*models.Item, error)
}

type representativeDirectory interface {
	ListRepresentatives(ctx context.Context) ([]models.StudentProfile, error)
	CountRepresentatives(ctx context.Context) (int, error)
}

type studentCounter interface {
	CountActiveStudents(ctx context.Context) (int, error)
}

type classCounter interface {
	Count(ctx context.Context) (int, error)
	CountDependents(ctx context.Context, id string) (students int, reports int, err error)
}

// AggregationConfig tunes statistics windows.
type AggregationConfig struct {
	OrganizedLookbackDays int
}

// AggregationServiceParams groups constructor dependencies.
type AggregationServiceParams struct {
	Reports         aggregationReportStore
	Items           itemCatalogReader
	Representatives representativeDirectory
	Students        studentCounter
	Classes         classCounter
	Cache           *CacheService
	Metrics         *MetricsService
	Logger          *zap.Logger
	Location        *time.Location
	Config          AggregationConfig
}

// AggregationService computes read-only statistics over reports. Results are cached per window.
type AggregationService struct {
	reports         aggregationReportStore
	items           itemCatalogReader
	representatives representativeDirectory
	students        studentCounter
	classes         classCounter
	cache           *CacheService
	metrics         *MetricsService
	logger          *zap.Logger
	loc             *time.Location
	now             func() time.Time
	cfg             AggregationConfig
}

// NewAggregationService constructs an AggregationService with sane defaults.
func NewAggregationService(params AggregationServiceParams) *AggregationService {
	cfg := params.Config
	if cfg.OrganizedLookbackDays <= 0 {
		cfg.OrganizedLookbackDays = 60
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := params.Location
	if loc == nil {
		loc = time.Local
	}
	return &AggregationService{
		reports:         params.Reports,
		items:           params.Items,
		representatives: params.Representatives,
		students:        params.Students,
		classes:         params.Classes,
		cache:           params.Cache,
		metrics:         params.Metrics,
		logger:          logger,
		loc:             loc,
		now:             time.Now,
		cfg:             cfg,
	}
}

// fail logs a gateway failure and maps it to AggregationUnavailable.
func (s *AggregationService) fail(op string, err error) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	s.logger.Error("aggregation failed", zap.String("op", op), zap.Error(err))
	return appErrors.Aggregation(err)
}

func (s *AggregationService) observe(label string, start time.Time) {
	s.metrics.ObserveDBQuery(label, time.Since(start))
}

// AdminOverview composes the admin dashboard from cached statistics plus a live system snapshot.
func (s *AggregationService) AdminOverview(ctx context.Context) (*dto.AdminOverview, bool, error) {
	now := s.now().In(s.loc)
	key := fmt.Sprintf("agg:overview:%s", now.Format("2006-01-02T15"))
	overview, hit, err := cached(ctx, s.cache, key, func(ctx context.Context) (*dto.AdminOverview, error) {
		return s.composeOverview(ctx, now)
	})
	if err != nil {
		return nil, false, s.fail("admin_overview", err)
	}
	out := *overview
	system := s.metrics.Snapshot()
	out.System = &system
	return &out, hit, nil
}

func (s *AggregationService) composeOverview(ctx context.Context, now time.Time) (*dto.AdminOverview, error) {
	defer s.observe("admin_overview", time.Now())

	var (
		overview dto.AdminOverview
		err      error
	)
	if overview.Stats.TotalStudents, err = s.students.CountActiveStudents(ctx); err != nil {
		return nil, err
	}
	if overview.Stats.Representatives, err = s.representatives.CountRepresentatives(ctx); err != nil {
		return nil, err
	}
	if overview.Stats.TotalClasses, err = s.classes.Count(ctx); err != nil {
		return nil, err
	}
	if overview.Stats.TotalReports, err = s.reports.Count(ctx); err != nil {
		return nil, err
	}

	weekly, err := s.reports.ListCreatedBetween(ctx, startOfDay(now).AddDate(0, 0, -7), now.Add(time.Second))
	if err != nil {
		return nil, err
	}
	overview.WeeklyReportData = weekdaySeries(weekly, s.loc)

	recent, err := s.reports.ListRecent(ctx, 10)
	if err != nil {
		return nil, err
	}
	overview.Activities = make([]dto.Activity, 0, len(recent))
	overview.RecentReports = make([]dto.RecentReport, 0, len(recent))
	for i := range recent {
		r := &recent[i]
		if now.Sub(r.CreatedAt) <= 24*time.Hour {
			overview.Activities = append(overview.Activities, dto.Activity{
				ID:    r.ID,
				Type:  activityType(r.Status),
				Title: r.Title,
				Time:  timeAgo(now.Sub(r.CreatedAt)),
				User:  fmt.Sprintf("%s (%s)", r.ReporterName, r.ClassName),
			})
		}
		overview.RecentReports = append(overview.RecentReports, dto.RecentReport{
			ID:             r.ID,
			Title:          r.Title,
			Status:         displayStatus(r.Status),
			Date:           r.CreatedAt.In(s.loc).Format("2006-01-02"),
			Representative: r.ReporterName,
			Class:          r.ClassName,
		})
	}
	return &overview, nil
}

// weekdaySeries counts reports per weekday, Sunday first.
func weekdaySeries(reports []models.Report, loc *time.Location) []dto.DayCount {
	series := make([]dto.DayCount, 7)
	for day := time.Sunday; day <= time.Saturday; day++ {
		series[day] = dto.DayCount{Day: day.String()[:3]}
	}
	for i := range reports {
		series[reports[i].CreatedAt.In(loc).Weekday()].Count++
	}
	return series
}

func activityType(status models.ReportStatus) string {
	switch {
	case status.Resolved():
		return "approved"
	case status == models.ReportStatusUnderReview || status == models.ReportStatusPartial:
		return "pending"
	default:
		return "submitted"
	}
}

// DailyDigest classifies the reports created on day into pending, approved and flagged.
func (s *AggregationService) DailyDigest(ctx context.Context, day time.Time) (*dto.DailyDigest, bool, error) {
	start := startOfDay(day.In(s.loc))
	key := "agg:daily:" + start.Format("2006-01-02")
	digest, hit, err := cached(ctx, s.cache, key, func(ctx context.Context) (*dto.DailyDigest, error) {
		defer s.observe("daily_digest", time.Now())
		reports, err := s.reports.ListCreatedBetween(ctx, start, start.AddDate(0, 0, 1))
		if err != nil {
			return nil, err
		}
		digest := &dto.DailyDigest{
			Date:        start.Format("2006-01-02"),
			DisplayDate: start.Format("Monday, January 2, 2006"),
			Reports:     make([]dto.ReportRow, 0, len(reports)),
			Stats:       digestStats(reports),
		}
		for i := len(reports) - 1; i >= 0; i-- {
			digest.Reports = append(digest.Reports, reportRow(&reports[i], s.loc, true))
		}
		return digest, nil
	})
	if err != nil {
		return nil, false, s.fail("daily_digest", err)
	}
	return digest, hit, nil
}

// WeeklyDigest summarises the Monday-anchored week containing ref and compares it with the week before.
func (s *AggregationService) WeeklyDigest(ctx context.Context, ref time.Time) (*dto.WeeklyDigest, bool, error) {
	start := weekStart(ref.In(s.loc))
	key := "agg:weekly:" + start.Format("2006-01-02")
	digest, hit, err := cached(ctx, s.cache, key, func(ctx context.Context) (*dto.WeeklyDigest, error) {
		return s.composeWeekly(ctx, start)
	})
	if err != nil {
		return nil, false, s.fail("weekly_digest", err)
	}
	return digest, hit, nil
}

func (s *AggregationService) composeWeekly(ctx context.Context, start time.Time) (*dto.WeeklyDigest, error) {
	defer s.observe("weekly_digest", time.Now())

	next := start.AddDate(0, 0, 7)
	reports, err := s.reports.ListCreatedBetween(ctx, start, next)
	if err != nil {
		return nil, err
	}
	previous, err := s.reports.ListCreatedBetween(ctx, start.AddDate(0, 0, -7), start)
	if err != nil {
		return nil, err
	}

	end := weekEnd(start)
	digest := &dto.WeeklyDigest{
		WeekStart: start,
		WeekEnd:   end,
		DateRange: formatDateRange(start, end),
		WeeklyStats: dto.WeeklyStats{
			TotalReports:         len(reports),
			TotalRepresentatives: distinctReporters(reports),
			Trend:                trendPercent(len(reports), len(previous)),
		},
		DailyBreakdown: make([]dto.DayBreakdown, 0, 7),
		TopPerformers:  topPerformers(reports, 3),
		DayDetails:     make(map[string]dto.DayDetail, 7),
	}

	byDay := make(map[string][]models.Report, 7)
	for i := range reports {
		r := reports[i]
		if r.Flagged() {
			digest.WeeklyStats.FlaggedItems++
		}
		if r.Status.Resolved() {
			digest.WeeklyStats.ResolvedIssues++
		}
		dayKey := startOfDay(r.CreatedAt.In(s.loc)).Format("2006-01-02")
		byDay[dayKey] = append(byDay[dayKey], r)
	}

	for offset := 0; offset < 7; offset++ {
		day := start.AddDate(0, 0, offset)
		dayReports := byDay[day.Format("2006-01-02")]
		entry := dto.DayBreakdown{Day: day.Weekday().String(), Date: day.Format("2006-01-02"), Reports: len(dayReports)}
		for i := range dayReports {
			if dayReports[i].Flagged() {
				entry.Flagged++
			}
			if dayReports[i].Status.Resolved() {
				entry.Approved++
			}
		}
		digest.DailyBreakdown = append(digest.DailyBreakdown, entry)
		digest.DayDetails[entry.Day] = dayDetail(dayReports)
	}
	return digest, nil
}

// OrganizedByWeek groups the lookback window into week buckets, newest first.
// search matches the rendered date range or a "week N" label.
func (s *AggregationService) OrganizedByWeek(ctx context.Context, search string) (*dto.OrganizedWeeks, bool, error) {
	now := s.now().In(s.loc)
	key := fmt.Sprintf("agg:organized:%s:%d", now.Format("2006-01-02"), s.cfg.OrganizedLookbackDays)
	all, hit, err := cached(ctx, s.cache, key, func(ctx context.Context) (*dto.OrganizedWeeks, error) {
		return s.composeOrganized(ctx, now)
	})
	if err != nil {
		return nil, false, s.fail("organized_by_week", err)
	}

	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return all, hit, nil
	}
	filtered := *all
	filtered.Weeks = make([]dto.OrganizedWeek, 0, len(all.Weeks))
	for _, week := range all.Weeks {
		if strings.Contains(strings.ToLower(week.StartDate), needle) ||
			strings.Contains(strings.ToLower(week.EndDate), needle) ||
			strings.Contains(fmt.Sprintf("week %d", week.WeekNumber), needle) {
			filtered.Weeks = append(filtered.Weeks, week)
		}
	}
	return &filtered, hit, nil
}

func (s *AggregationService) composeOrganized(ctx context.Context, now time.Time) (*dto.OrganizedWeeks, error) {
	defer s.observe("organized_by_week", time.Now())

	from := now.AddDate(0, 0, -s.cfg.OrganizedLookbackDays)
	reports, err := s.reports.ListCreatedBetween(ctx, from, now.Add(time.Second))
	if err != nil {
		return nil, err
	}

	buckets := make(map[string][]models.Report)
	starts := make(map[string]time.Time)
	for i := range reports {
		start := weekStart(reports[i].CreatedAt.In(s.loc))
		key := start.Format("2006-01-02")
		buckets[key] = append(buckets[key], reports[i])
		starts[key] = start
	}

	result := &dto.OrganizedWeeks{Weeks: make([]dto.OrganizedWeek, 0, len(buckets))}
	for key, weekReports := range buckets {
		start := starts[key]
		end := weekEnd(start)
		year, number := weekNumber(start)
		stats := digestStats(weekReports)
		result.Weeks = append(result.Weeks, dto.OrganizedWeek{
			WeekNumber:      number,
			Year:            year,
			StartDate:       shortDate(start),
			EndDate:         longDate(end),
			TotalReports:    stats.Total,
			Approved:        stats.Approved,
			Pending:         stats.Pending,
			Flagged:         stats.Flagged,
			Representatives: distinctReporters(weekReports),
			RawStartDate:    start,
			RawEndDate:      end,
		})
		result.TotalStats.TotalReports += stats.Total
		result.TotalStats.TotalFlagged += stats.Flagged
	}
	sort.Slice(result.Weeks, func(i, j int) bool {
		return result.Weeks[i].RawStartDate.After(result.Weeks[j].RawStartDate)
	})

	result.TotalWeeks = len(result.Weeks)
	result.TotalStats.Weeks = len(result.Weeks)
	if result.TotalWeeks > 0 {
		result.TotalStats.AvgReports = int(math.Round(float64(result.TotalStats.TotalReports) / float64(result.TotalWeeks)))
	}
	return result, nil
}

// WeekReports lists the reports of one week chosen by explicit dates or by ISO week and year.
func (s *AggregationService) WeekReports(ctx context.Context, req dto.WeekReportsRequest) (*dto.WeekReports, error) {
	start, end, err := s.resolveWeek(req)
	if err != nil {
		return nil, err
	}

	defer s.observe("week_reports", time.Now())
	reports, err := s.reports.ListCreatedBetween(ctx, start, end)
	if err != nil {
		return nil, s.fail("week_reports", err)
	}

	year, number := weekNumber(start)
	result := &dto.WeekReports{
		Reports: make([]dto.ReportRow, 0, len(reports)),
		Stats:   statusCounts(reports),
		WeekInfo: dto.WeekInfo{
			WeekNumber:   number,
			Year:         year,
			StartDate:    shortDate(start),
			EndDate:      longDate(end.Add(-time.Millisecond)),
			TotalReports: len(reports),
		},
	}
	for i := len(reports) - 1; i >= 0; i-- {
		result.Reports = append(result.Reports, reportRow(&reports[i], s.loc, true))
	}
	return result, nil
}

// resolveWeek returns the half-open window [start, end) selected by req.
func (s *AggregationService) resolveWeek(req dto.WeekReportsRequest) (time.Time, time.Time, error) {
	if req.StartDate != "" || req.EndDate != "" {
		if req.StartDate == "" || req.EndDate == "" {
			return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "startDate and endDate must be provided together")
		}
		start, err := time.ParseInLocation("2006-01-02", req.StartDate, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid startDate")
		}
		end, err := time.ParseInLocation("2006-01-02", req.EndDate, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid endDate")
		}
		if end.Before(start) {
			return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "endDate must not be before startDate")
		}
		return start, end.AddDate(0, 0, 1), nil
	}

	year, week := weekNumber(s.now().In(s.loc))
	if req.Year > 0 {
		year = req.Year
	}
	if req.Week > 0 {
		week = req.Week
	}
	if week < 1 || week > 53 {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "week must be between 1 and 53")
	}
	start := isoWeekStart(year, week, s.loc)
	return start, start.AddDate(0, 0, 7), nil
}

// ItemUsageStats tallies evaluations per catalog item. Items never evaluated report zero usage.
func (s *AggregationService) ItemUsageStats(ctx context.Context, search, category string) (*dto.ItemUsageResponse, bool, error) {
	all, hit, err := cached(ctx, s.cache, "agg:items:usage", s.composeItemUsage)
	if err != nil {
		return nil, false, s.fail("item_usage", err)
	}

	needle := strings.ToLower(strings.TrimSpace(search))
	category = strings.TrimSpace(category)
	if needle == "" && (category == "" || strings.EqualFold(category, "all")) {
		return all, hit, nil
	}
	filtered := *all
	filtered.Items = make([]dto.ItemUsageEntry, 0, len(all.Items))
	for _, item := range all.Items {
		if category != "" && !strings.EqualFold(category, "all") && !strings.EqualFold(item.Category, category) {
			continue
		}
		if needle != "" && !itemMatches(item, needle) {
			continue
		}
		filtered.Items = append(filtered.Items, item)
	}
	return &filtered, hit, nil
}

func itemMatches(item dto.ItemUsageEntry, needle string) bool {
	if strings.Contains(strings.ToLower(item.Name), needle) || strings.Contains(strings.ToLower(item.Category), needle) {
		return true
	}
	return item.Description != nil && strings.Contains(strings.ToLower(*item.Description), needle)
}

func (s *AggregationService) composeItemUsage(ctx context.Context) (*dto.ItemUsageResponse, error) {
	defer s.observe("item_usage", time.Now())

	items, err := s.items.List(ctx, "")
	if err != nil {
		return nil, err
	}
	usage, err := s.reports.ItemUsage(ctx)
	if err != nil {
		return nil, err
	}
	byItem := make(map[string]repository.ItemUsage, len(usage))
	for _, u := range usage {
		byItem[u.ItemID] = u
	}

	result := &dto.ItemUsageResponse{Items: make([]dto.ItemUsageEntry, 0, len(items)), Categories: []string{"all"}}
	seenCategory := map[string]struct{}{}
	var goodRateSum int
	for _, item := range items {
		entry := itemEntry(item)
		u := byItem[item.ID]
		entry.UsageCount, entry.GoodCount, entry.BadCount, entry.FlaggedCount = u.UsageCount, u.GoodCount, u.BadCount, u.FlaggedCount
		result.Items = append(result.Items, entry)

		result.Stats.TotalUsage += entry.UsageCount
		if entry.Mandatory {
			result.Stats.Mandatory++
		}
		goodRateSum += percent(entry.GoodCount, entry.UsageCount)
		if _, ok := seenCategory[entry.Category]; !ok {
			seenCategory[entry.Category] = struct{}{}
			result.Categories = append(result.Categories, entry.Category)
		}
	}
	result.Stats.TotalItems = len(items)
	if len(items) > 0 {
		result.Stats.AvgGoodRate = percent(goodRateSum, len(items)*100)
	}
	return result, nil
}

func itemEntry(item models.Item) dto.ItemUsageEntry {
	return dto.ItemUsageEntry{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Category:    itemCategory(item.Name, item.Description),
		Mandatory:   itemMandatory(item.Name),
		CreatedAt:   item.CreatedAt,
	}
}

func (s *AggregationService) loadItem(ctx context.Context, id string) (*models.Item, error) {
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Item not found")
		}
		return nil, err
	}
	return item, nil
}

// ItemDetails returns outcome rates for one item and its ten most recent evaluations.
func (s *AggregationService) ItemDetails(ctx context.Context, id string) (*dto.ItemDetails, error) {
	defer s.observe("item_details", time.Now())

	item, err := s.loadItem(ctx, id)
	if err != nil {
		return nil, s.fail("item_details", err)
	}
	records, err := s.reports.ListItemEvaluations(ctx, id, time.Time{})
	if err != nil {
		return nil, s.fail("item_details", err)
	}

	details := &dto.ItemDetails{Item: itemEntry(*item), RecentEvaluations: make([]dto.ItemEvaluationEntry, 0, 10), TotalReports: len(records)}
	var rates dto.ItemRates
	for _, record := range records {
		tallyOutcome(&rates.UsageCount, &rates.GoodCount, &rates.BadCount, &rates.FlaggedCount, record.Status)
		if len(details.RecentEvaluations) < 10 {
			details.RecentEvaluations = append(details.RecentEvaluations, dto.ItemEvaluationEntry{
				ReportID:    record.ReportID,
				ReportTitle: record.ReportTitle,
				Reporter:    record.ReporterName,
				Class:       record.ClassName,
				Status:      strings.ToUpper(string(record.Status)),
				EvaluatedAt: record.CreatedAt,
			})
		}
	}
	rates.GoodRate = percent(rates.GoodCount, rates.UsageCount)
	rates.BadRate = percent(rates.BadCount, rates.UsageCount)
	rates.FlaggedRate = percent(rates.FlaggedCount, rates.UsageCount)
	details.Statistics = rates
	details.Item.UsageCount, details.Item.GoodCount, details.Item.BadCount, details.Item.FlaggedCount = rates.UsageCount, rates.GoodCount, rates.BadCount, rates.FlaggedCount
	return details, nil
}

func tallyOutcome(usage, good, bad, flagged *int, raw models.EvaluationStatus) {
	*usage++
	status, _ := models.ParseEvaluationStatus(string(raw))
	switch status {
	case models.EvaluationGood:
		*good++
	case models.EvaluationBad:
		*bad++
	case models.EvaluationFlagged:
		*flagged++
	}
}

// ItemTrends returns per-day usage of an item over the last 7, 30 or 90 days.
func (s *AggregationService) ItemTrends(ctx context.Context, id string, days int) (*dto.ItemTrends, error) {
	switch days {
	case 0:
		days = 30
	case 7, 30, 90:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "period must be 7d, 30d or 90d")
	}
	defer s.observe("item_trends", time.Now())

	if _, err := s.loadItem(ctx, id); err != nil {
		return nil, s.fail("item_trends", err)
	}
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	records, err := s.reports.ListItemEvaluations(ctx, id, since)
	if err != nil {
		return nil, s.fail("item_trends", err)
	}

	points := make(map[string]*dto.ItemTrendPoint)
	for _, record := range records {
		date := record.CreatedAt.In(s.loc).Format("2006-01-02")
		point, ok := points[date]
		if !ok {
			point = &dto.ItemTrendPoint{Date: date}
			points[date] = point
		}
		tallyOutcome(&point.Usage, &point.Good, &point.Bad, &point.Flagged, record.Status)
	}

	trends := &dto.ItemTrends{Trends: make([]dto.ItemTrendPoint, 0, len(points)), Period: fmt.Sprintf("%dd", days)}
	for _, point := range points {
		point.GoodRate = percent(point.Good, point.Usage)
		trends.Trends = append(trends.Trends, *point)
	}
	sort.Slice(trends.Trends, func(i, j int) bool { return trends.Trends[i].Date < trends.Trends[j].Date })
	return trends, nil
}

// RepresentativeStats lists active CS, CP, CC and WS students with their report counts and mean completion.
func (s *AggregationService) RepresentativeStats(ctx context.Context, search, department string) (*dto.RepresentativeStats, bool, error) {
	all, hit, err := cached(ctx, s.cache, "agg:representatives", s.composeRepresentatives)
	if err != nil {
		return nil, false, s.fail("representative_stats", err)
	}

	needle := strings.ToLower(strings.TrimSpace(search))
	department = strings.TrimSpace(department)
	if needle == "" && (department == "" || strings.EqualFold(department, "all")) {
		return all, hit, nil
	}
	filtered := *all
	filtered.Representatives = make([]dto.RepresentativeEntry, 0, len(all.Representatives))
	for _, rep := range all.Representatives {
		if department != "" && !strings.EqualFold(department, "all") && !strings.EqualFold(rep.Department, department) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(rep.Name), needle) &&
			!strings.Contains(strings.ToLower(rep.Email), needle) &&
			!strings.Contains(strings.ToLower(rep.Class), needle) {
			continue
		}
		filtered.Representatives = append(filtered.Representatives, rep)
	}
	return &filtered, hit, nil
}

func (s *AggregationService) composeRepresentatives(ctx context.Context) (*dto.RepresentativeStats, error) {
	defer s.observe("representative_stats", time.Now())

	profiles, err := s.representatives.ListRepresentatives(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.UserID)
	}
	reports, err := s.reports.ListForReporters(ctx, ids)
	if err != nil {
		return nil, err
	}
	byReporter := make(map[string][]models.Report, len(profiles))
	for i := range reports {
		byReporter[reports[i].ReporterID] = append(byReporter[reports[i].ReporterID], reports[i])
	}

	result := &dto.RepresentativeStats{Representatives: make([]dto.RepresentativeEntry, 0, len(profiles)), Departments: []string{"all"}}
	seen := map[string]struct{}{}
	for _, p := range profiles {
		className := "Not Assigned"
		department := "General"
		if p.ClassName != nil && *p.ClassName != "" {
			className = *p.ClassName
			department = firstWord(className)
		}
		role := ""
		if p.StudentRole != nil {
			role = string(*p.StudentRole)
		}
		authored := byReporter[p.UserID]
		entry := dto.RepresentativeEntry{
			ID:                p.UserID,
			Name:              p.Name,
			Email:             p.Email,
			Class:             className,
			Department:        department,
			StudentRole:       role,
			Status:            strings.ToLower(string(p.UserStatus)),
			ReportsSubmitted:  len(authored),
			AvgCompletionRate: averageCompletion(authored),
			CreatedAt:         p.JoinedAt,
		}
		result.Representatives = append(result.Representatives, entry)
		if p.UserStatus == models.UserStatusActive {
			result.Stats.Active++
		}
		if _, ok := seen[department]; !ok {
			seen[department] = struct{}{}
			result.Departments = append(result.Departments, department)
		}
	}
	result.Stats.Total = len(result.Representatives)
	result.Stats.Departments = len(result.Departments) - 1
	return result, nil
}

var adminSortColumns = map[string]string{
	"createdAt": "created_at",
	"title":     "title",
	"status":    "status",
	"class":     "class",
	"reporter":  "reporter",
}

// AdminReports pages through every report with the overall status breakdown.
func (s *AggregationService) AdminReports(ctx context.Context, req dto.AdminReportsRequest) (*dto.AdminReportsResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}
	filter := models.ReportFilter{
		Search:    strings.TrimSpace(req.Search),
		Page:      req.Page,
		PageSize:  req.Limit,
		SortBy:    adminSortColumns[req.SortBy],
		SortOrder: req.SortOrder,
	}
	switch req.Status {
	case displayPending:
		filter.Statuses = pendingStatuses
	case displayApproved:
		filter.Statuses = resolvedStatuses
	case displayRejected:
		filter.Statuses = []models.ReportStatus{models.ReportStatusRejected}
	}

	defer s.observe("admin_reports", time.Now())
	reports, total, err := s.reports.List(ctx, filter)
	if err != nil {
		return nil, s.fail("admin_reports", err)
	}
	byStatus, err := s.reports.CountByStatus(ctx)
	if err != nil {
		return nil, s.fail("admin_reports", err)
	}

	resp := &dto.AdminReportsResponse{
		Reports:    make([]dto.ReportRow, 0, len(reports)),
		Pagination: models.NewPagination(req.Page, req.Limit, total),
	}
	for i := range reports {
		resp.Reports = append(resp.Reports, reportRow(&reports[i], s.loc, true))
	}
	for status, count := range byStatus {
		resp.Stats.Total += count
		switch {
		case status.Resolved():
			resp.Stats.Approved += count
		case status == models.ReportStatusRejected:
			resp.Stats.Rejected += count
		case isPending(status):
			resp.Stats.Pending += count
		}
	}
	return resp, nil
}
