package dto

import "time"

// DigestStats counts reports by display bucket.
type DigestStats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Flagged  int `json:"flagged"`
}

// DailyDigest lists the reports of one calendar day.
type DailyDigest struct {
	Date        string      `json:"date"`
	DisplayDate string      `json:"displayDate"`
	Reports     []ReportRow `json:"reports"`
	Stats       DigestStats `json:"stats"`
}

// WeeklyStats is the headline block of the weekly digest.
type WeeklyStats struct {
	TotalReports         int     `json:"totalReports"`
	TotalRepresentatives int     `json:"totalRepresentatives"`
	FlaggedItems         int     `json:"flaggedItems"`
	ResolvedIssues       int     `json:"resolvedIssues"`
	Trend                float64 `json:"trend"`
}

// DayBreakdown is one weekday of the weekly digest.
type DayBreakdown struct {
	Day      string `json:"day"`
	Date     string `json:"date"`
	Reports  int    `json:"reports"`
	Flagged  int    `json:"flagged"`
	Approved int    `json:"approved"`
}

// Performer ranks a reporter by weekly activity.
type Performer struct {
	ReporterID string `json:"reporterId"`
	Name       string `json:"name"`
	Class      string `json:"class"`
	Reports    int    `json:"reports"`
	Completion int    `json:"completion"`
}

// ReporterRef names a reporter and class inside day details.
type ReporterRef struct {
	Name  string `json:"name"`
	Class string `json:"class"`
}

// DetailBucket counts reports in one day-detail bucket with up to five samples.
type DetailBucket struct {
	Count int           `json:"count"`
	Items []ReporterRef `json:"items"`
}

// DayDetail splits a day's reports into good, bad and flagged buckets.
type DayDetail struct {
	Good    DetailBucket `json:"good"`
	Bad     DetailBucket `json:"bad"`
	Flagged DetailBucket `json:"flagged"`
}

// WeeklyDigest summarises a Monday-anchored week.
type WeeklyDigest struct {
	WeekStart      time.Time            `json:"weekStart"`
	WeekEnd        time.Time            `json:"weekEnd"`
	DateRange      string               `json:"dateRange"`
	WeeklyStats    WeeklyStats          `json:"weeklyStats"`
	DailyBreakdown []DayBreakdown       `json:"dailyBreakdown"`
	TopPerformers  []Performer          `json:"topPerformers"`
	DayDetails     map[string]DayDetail `json:"dayDetails"`
}

// OrganizedWeek is one week bucket of the organized listing.
type OrganizedWeek struct {
	WeekNumber      int       `json:"weekNumber"`
	Year            int       `json:"year"`
	StartDate       string    `json:"startDate"`
	EndDate         string    `json:"endDate"`
	TotalReports    int       `json:"totalReports"`
	Approved        int       `json:"approved"`
	Pending         int       `json:"pending"`
	Flagged         int       `json:"flagged"`
	Representatives int       `json:"representatives"`
	RawStartDate    time.Time `json:"rawStartDate"`
	RawEndDate      time.Time `json:"rawEndDate"`
}

// OrganizedTotals aggregates every week in the lookback window.
type OrganizedTotals struct {
	Weeks        int `json:"weeks"`
	TotalReports int `json:"totalReports"`
	AvgReports   int `json:"avgReports"`
	TotalFlagged int `json:"totalFlagged"`
}

// OrganizedWeeks is the response of the organized-by-week listing.
type OrganizedWeeks struct {
	Weeks      []OrganizedWeek `json:"weeks"`
	TotalStats OrganizedTotals `json:"totalStats"`
	TotalWeeks int             `json:"totalWeeks"`
}

// WeekReportsRequest selects a week by explicit dates or by ISO week and year.
type WeekReportsRequest struct {
	StartDate string `form:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"endDate" validate:"omitempty,datetime=2006-01-02"`
	Week      int    `form:"week" validate:"omitempty,min=1,max=53"`
	Year      int    `form:"year" validate:"omitempty,min=2000,max=2100"`
}

// WeekInfo describes the selected week.
type WeekInfo struct {
	WeekNumber   int    `json:"weekNumber"`
	Year         int    `json:"year"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	TotalReports int    `json:"totalReports"`
}

// WeekReports lists the reports of one week.
type WeekReports struct {
	Reports  []ReportRow  `json:"reports"`
	Stats    StatusCounts `json:"stats"`
	WeekInfo WeekInfo     `json:"weekInfo"`
}

// ItemUsageEntry is one catalog item with its evaluation tallies.
type ItemUsageEntry struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description,omitempty"`
	Category     string    `json:"category"`
	Mandatory    bool      `json:"mandatory"`
	UsageCount   int       `json:"usageCount"`
	GoodCount    int       `json:"goodCount"`
	BadCount     int       `json:"badCount"`
	FlaggedCount int       `json:"flaggedCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ItemUsageTotals summarises the whole catalog.
type ItemUsageTotals struct {
	TotalItems  int `json:"totalItems"`
	Mandatory   int `json:"mandatory"`
	TotalUsage  int `json:"totalUsage"`
	AvgGoodRate int `json:"avgGoodRate"`
}

// ItemUsageResponse is the item usage listing.
type ItemUsageResponse struct {
	Items      []ItemUsageEntry `json:"items"`
	Stats      ItemUsageTotals  `json:"stats"`
	Categories []string         `json:"categories"`
}

// ItemRates expresses outcome tallies and their rounded percentages.
type ItemRates struct {
	UsageCount   int `json:"usageCount"`
	GoodCount    int `json:"goodCount"`
	BadCount     int `json:"badCount"`
	FlaggedCount int `json:"flaggedCount"`
	GoodRate     int `json:"goodRate"`
	BadRate      int `json:"badRate"`
	FlaggedRate  int `json:"flaggedRate"`
}

// ItemEvaluationEntry is one recent evaluation of an item.
type ItemEvaluationEntry struct {
	ReportID    string    `json:"reportId"`
	ReportTitle string    `json:"reportTitle"`
	Reporter    string    `json:"reporter"`
	Class       string    `json:"class"`
	Status      string    `json:"status"`
	EvaluatedAt time.Time `json:"evaluatedAt"`
}

// ItemDetails combines the catalog entry, rates and recent evaluations.
type ItemDetails struct {
	Item              ItemUsageEntry        `json:"item"`
	Statistics        ItemRates             `json:"statistics"`
	RecentEvaluations []ItemEvaluationEntry `json:"recentEvaluations"`
	TotalReports      int                   `json:"totalReports"`
}

// ItemTrendPoint is the per-day usage of an item.
type ItemTrendPoint struct {
	Date     string `json:"date"`
	Usage    int    `json:"usage"`
	Good     int    `json:"good"`
	Bad      int    `json:"bad"`
	Flagged  int    `json:"flagged"`
	GoodRate int    `json:"goodRate"`
}

// ItemTrends is the daily series over the requested period.
type ItemTrends struct {
	Trends []ItemTrendPoint `json:"trends"`
	Period string           `json:"period"`
}

// RepresentativeEntry is one representative with report statistics.
type RepresentativeEntry struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Class             string    `json:"class"`
	Department        string    `json:"department"`
	StudentRole       string    `json:"studentRole"`
	Status            string    `json:"status"`
	ReportsSubmitted  int       `json:"reportsSubmitted"`
	AvgCompletionRate int       `json:"avgCompletionRate"`
	CreatedAt         time.Time `json:"createdAt"`
}

// RepresentativeTotals summarises representatives before filtering.
type RepresentativeTotals struct {
	Total       int `json:"total"`
	Active      int `json:"active"`
	Departments int `json:"departments"`
}

// RepresentativeStats is the representative listing.
type RepresentativeStats struct {
	Representatives []RepresentativeEntry `json:"representatives"`
	Stats           RepresentativeTotals  `json:"stats"`
	Departments     []string              `json:"departments"`
}

// OverviewStats counts the headline entities of the admin dashboard.
type OverviewStats struct {
	TotalStudents   int `json:"totalStudents"`
	Representatives int `json:"representatives"`
	TotalClasses    int `json:"totalClasses"`
	TotalReports    int `json:"totalReports"`
}

// DayCount is one bar of the weekly activity chart.
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// Activity is one entry of the recent activity feed.
type Activity struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	Time  string `json:"time"`
	User  string `json:"user"`
}

// RecentReport is one entry of the recent reports table.
type RecentReport struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Status         string `json:"status"`
	Date           string `json:"date"`
	Representative string `json:"representative"`
	Class          string `json:"class"`
}

// AdminOverview is the admin dashboard payload.
type AdminOverview struct {
	Stats            OverviewStats  `json:"stats"`
	WeeklyReportData []DayCount     `json:"weeklyReportData"`
	Activities       []Activity     `json:"activities"`
	RecentReports    []RecentReport `json:"recentReports"`
	System           *SystemMetrics `json:"system,omitempty"`
}

// SystemMetrics is a point-in-time view of process counters. It is never cached.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	DBQueryCount             uint64    `json:"dbQueryCount"`
	AverageDBQueryDurationMs float64   `json:"averageDbQueryDurationMs"`
	ReportsSubmitted         uint64    `json:"reportsSubmitted"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}

// WeeklyExportRequest captures GET /admin/reports/weekly/export parameters.
type WeeklyExportRequest struct {
	Date   string `form:"date" validate:"omitempty,datetime=2006-01-02"`
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}

// WeeklyExport describes a rendered digest available for download.
type WeeklyExport struct {
	ExportID  string    `json:"exportId"`
	Format    string    `json:"format"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
