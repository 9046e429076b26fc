package service

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/smart-report-api/internal/dto"
	"github.com/noah-isme/smart-report-api/internal/models"
)

const (
	displayPending  = "pending"
	displayApproved = "approved"
	displayFlagged  = "flagged"
	displayRejected = "rejected"
)

// pendingStatuses are the states still awaiting a peer or administrative decision.
var pendingStatuses = []models.ReportStatus{models.ReportStatusSubmitted, models.ReportStatusPartial, models.ReportStatusUnderReview}

var resolvedStatuses = []models.ReportStatus{models.ReportStatusApproved, models.ReportStatusReviewed}

// startOfDay truncates t to midnight in its own location.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// weekStart rolls t back to Monday 00:00. Sunday belongs to the week that started six days earlier.
func weekStart(t time.Time) time.Time {
	day := startOfDay(t)
	offset := int(day.Weekday()) - 1
	if day.Weekday() == time.Sunday {
		offset = 6
	}
	return day.AddDate(0, 0, -offset)
}

// weekEnd is the last instant of the week starting at start.
func weekEnd(start time.Time) time.Time {
	return start.AddDate(0, 0, 7).Add(-time.Millisecond)
}

// weekNumber returns the ISO 8601 week and its year.
func weekNumber(t time.Time) (year, week int) {
	return t.ISOWeek()
}

// isoWeekStart returns the Monday of ISO week w in year.
func isoWeekStart(year, week int, loc *time.Location) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	return weekStart(jan4).AddDate(0, 0, (week-1)*7)
}

// trendPercent is the change from previous to current in percent, one decimal. An empty previous window yields 0.
func trendPercent(current, previous int) float64 {
	if previous <= 0 {
		return 0
	}
	change := float64(current-previous) / float64(previous) * 100
	return math.Round(change*10) / 10
}

// percent rounds part/total*100 to the nearest integer.
func percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

// displayStatus maps a report to the approved, flagged or pending bucket of the dashboards.
func displayStatus(status models.ReportStatus) string {
	switch {
	case status.Resolved():
		return displayApproved
	case status == models.ReportStatusRejected:
		return displayFlagged
	default:
		return displayPending
	}
}

// listingStatus is displayStatus for listings that name rejections explicitly.
func listingStatus(status models.ReportStatus) string {
	if status == models.ReportStatusRejected {
		return displayRejected
	}
	return displayStatus(status)
}

func isPending(status models.ReportStatus) bool {
	for _, s := range pendingStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// digestStats applies the daily digest classification. Flagged is a union and may overlap pending.
func digestStats(reports []models.Report) dto.DigestStats {
	stats := dto.DigestStats{Total: len(reports)}
	for i := range reports {
		r := &reports[i]
		switch {
		case r.Status.Resolved():
			stats.Approved++
		case r.Status != models.ReportStatusRejected:
			stats.Pending++
		}
		if r.Flagged() {
			stats.Flagged++
		}
	}
	return stats
}

// statusCounts tallies reports per listing status.
func statusCounts(reports []models.Report) dto.StatusCounts {
	counts := dto.StatusCounts{Total: len(reports)}
	for i := range reports {
		switch listingStatus(reports[i].Status) {
		case displayApproved:
			counts.Approved++
		case displayRejected:
			counts.Rejected++
		default:
			counts.Pending++
		}
	}
	return counts
}

func distinctReporters(reports []models.Report) int {
	seen := make(map[string]struct{}, len(reports))
	for i := range reports {
		seen[reports[i].ReporterID] = struct{}{}
	}
	return len(seen)
}

// reportRow projects a report into the admin listing shape.
func reportRow(r *models.Report, loc *time.Location, withDetail bool) dto.ReportRow {
	created := r.CreatedAt.In(loc)
	row := dto.ReportRow{
		ID:             r.ID,
		Title:          r.Title,
		Representative: r.ReporterName,
		Class:          r.ClassName,
		Status:         listingStatus(r.Status),
		Date:           created.Format("Jan 2, 2006"),
		Time:           created.Format("3:04 PM"),
		TotalItems:     len(r.ItemEvaluated),
		CreatedAt:      r.CreatedAt,
	}
	for _, item := range r.ItemEvaluated {
		if item.Recorded() {
			row.ItemsChecked++
		}
		if item.Problem() {
			row.FlaggedItems++
		}
	}
	if withDetail {
		row.GeneralComment = r.GeneralComment
		row.Items = r.ItemEvaluated
	}
	return row
}

type performerTally struct {
	performer dto.Performer
	mean      float64
}

// topPerformers ranks reporters by report count, then completion, keeping the first limit.
// Completion is a running mean: mean = (mean*(n-1) + completion) / n.
func topPerformers(reports []models.Report, limit int) []dto.Performer {
	order := make([]string, 0)
	tallies := make(map[string]*performerTally)
	for i := range reports {
		r := &reports[i]
		tally, ok := tallies[r.ReporterID]
		if !ok {
			tally = &performerTally{performer: dto.Performer{ReporterID: r.ReporterID, Name: r.ReporterName, Class: r.ClassName}}
			tallies[r.ReporterID] = tally
			order = append(order, r.ReporterID)
		}
		tally.performer.Reports++
		n := float64(tally.performer.Reports)
		tally.mean = (tally.mean*(n-1) + r.ItemEvaluated.CompletionRate()*100) / n
	}

	ranked := make([]*performerTally, 0, len(order))
	for _, id := range order {
		ranked = append(ranked, tallies[id])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].performer.Reports != ranked[j].performer.Reports {
			return ranked[i].performer.Reports > ranked[j].performer.Reports
		}
		return ranked[i].mean > ranked[j].mean
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	result := make([]dto.Performer, 0, len(ranked))
	for _, t := range ranked {
		p := t.performer
		if p.Class == "" {
			p.Class = "Unknown Class"
		}
		p.Completion = int(math.Round(t.mean))
		result = append(result, p)
	}
	return result
}

// averageCompletion is the arithmetic mean completion in percent, rounded.
func averageCompletion(reports []models.Report) int {
	if len(reports) == 0 {
		return 0
	}
	var total float64
	for i := range reports {
		total += reports[i].ItemEvaluated.CompletionRate() * 100
	}
	return int(math.Round(total / float64(len(reports))))
}

// dayDetail buckets the reports of one day into good, bad and flagged samples.
func dayDetail(reports []models.Report) dto.DayDetail {
	detail := dto.DayDetail{
		Good:    dto.DetailBucket{Items: []dto.ReporterRef{}},
		Bad:     dto.DetailBucket{Items: []dto.ReporterRef{}},
		Flagged: dto.DetailBucket{Items: []dto.ReporterRef{}},
	}
	add := func(bucket *dto.DetailBucket, r *models.Report) {
		bucket.Count++
		if len(bucket.Items) < 5 {
			bucket.Items = append(bucket.Items, dto.ReporterRef{Name: r.ReporterName, Class: r.ClassName})
		}
	}
	for i := range reports {
		r := &reports[i]
		allGood, anyBad, anyFlagged := true, false, false
		for _, item := range r.ItemEvaluated {
			status, _ := models.ParseEvaluationStatus(string(item.Status))
			if status != models.EvaluationGood {
				allGood = false
			}
			anyBad = anyBad || status == models.EvaluationBad
			anyFlagged = anyFlagged || status == models.EvaluationFlagged
		}
		if allGood && r.Status.Resolved() {
			add(&detail.Good, r)
		}
		if anyBad || r.Status == models.ReportStatusRejected {
			add(&detail.Bad, r)
		}
		if anyFlagged {
			add(&detail.Flagged, r)
		}
	}
	return detail
}

// formatDateRange renders "Jan 1 - Jan 7, 2024".
func formatDateRange(start, end time.Time) string {
	return shortDate(start) + " - " + longDate(end)
}

func shortDate(t time.Time) string { return t.Format("Jan 2") }

func longDate(t time.Time) string { return t.Format("Jan 2, 2006") }

// timeAgo renders an elapsed duration as days, hours or minutes ago.
func timeAgo(elapsed time.Duration) string {
	if elapsed < 0 {
		elapsed = 0
	}
	if days := int(elapsed.Hours() / 24); days > 0 {
		return plural(days, "day") + " ago"
	}
	if hours := int(elapsed.Hours()); hours > 0 {
		return plural(hours, "hour") + " ago"
	}
	return plural(int(elapsed.Minutes()), "minute") + " ago"
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

var itemCategoryKeywords = []struct {
	category string
	keywords []string
}{
	{"Safety Equipment", []string{"fire", "extinguisher", "emergency", "exit", "safety", "first aid", "chemical", "goggles", "gloves"}},
	{"Infrastructure", []string{"window", "glass", "floor", "wall", "ceiling", "door", "building"}},
	{"Electrical", []string{"electrical", "outlet", "lighting", "light", "wiring", "socket", "power"}},
	{"HVAC", []string{"ventilation", "air conditioning", "heating", "hvac", "fan", "vent"}},
	{"Furniture", []string{"desk", "chair", "table", "furniture", "cabinet", "shelf"}},
	{"Equipment", []string{"equipment", "machine", "tool", "device", "instrument"}},
}

var mandatoryItemKeywords = []string{"fire extinguisher", "emergency exit", "first aid", "electrical", "lighting", "ventilation"}

// itemCategory derives a catalog category from keywords in the item name and description.
func itemCategory(name string, description *string) string {
	text := strings.ToLower(name)
	if description != nil {
		text += " " + strings.ToLower(*description)
	}
	for _, entry := range itemCategoryKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(text, keyword) {
				return entry.category
			}
		}
	}
	return "General"
}

// itemMandatory reports whether the item name matches a mandatory inspection point.
func itemMandatory(name string) bool {
	lower := strings.ToLower(name)
	for _, keyword := range mandatoryItemKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

var departmentKeywords = []struct {
	key        string
	department string
}{
	{"computer", "Computer Science"},
	{"cs", "Computer Science"},
	{"engineering", "Engineering"},
	{"eng", "Engineering"},
	{"chemistry", "Chemistry"},
	{"chem", "Chemistry"},
	{"physics", "Physics"},
	{"phys", "Physics"},
	{"mathematics", "Mathematics"},
	{"math", "Mathematics"},
	{"business", "Business"},
	{"bio", "Biology"},
	{"biology", "Biology"},
}

// classDepartment maps a class name to its department, falling back to the first word.
// Keywords match word prefixes so "Physics" is not read as "cs".
func classDepartment(className string) string {
	words := strings.Fields(strings.ToLower(className))
	for _, entry := range departmentKeywords {
		for _, word := range words {
			if strings.HasPrefix(word, entry.key) {
				return entry.department
			}
		}
	}
	return firstWord(className)
}

// classYear is the first digit in the class name, or 1.
func classYear(className string) int {
	for _, r := range className {
		if r >= '0' && r <= '9' {
			return int(r - '0')
		}
	}
	return 1
}

// firstWord returns the first space-separated word, or "General".
func firstWord(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "General"
	}
	return fields[0]
}
