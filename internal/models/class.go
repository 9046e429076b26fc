package models

import "time"

// Class represents a classroom that owns student memberships and reports.
type Class struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ClassSummary is a class row enriched with membership and activity counters.
type ClassSummary struct {
	Class
	TotalStudents   int `db:"total_students" json:"total_students"`
	Representatives int `db:"representatives" json:"representatives"`
	ReportsThisWeek int `db:"reports_this_week" json:"reports_this_week"`
	TotalReports    int `db:"total_reports" json:"total_reports"`
}
