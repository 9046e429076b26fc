package dto

import "github.com/noah-isme/smart-report-api/internal/models"

// ClassTotals counts the members and reports of the student's class.
type ClassTotals struct {
	TotalStudents int `json:"totalStudents"`
	TotalReports  int `json:"totalReports"`
}

// StudentDashboard is the student home screen payload.
type StudentDashboard struct {
	ClassID        string         `json:"classId"`
	Stats          ClassTotals    `json:"stats"`
	WeeklyData     []DayCount     `json:"weeklyData"`
	RecentActivity []Activity     `json:"recentActivity"`
	RecentReports  []RecentReport `json:"recentReports"`
}

// ReporterStats counts the reports one student authored.
type ReporterStats struct {
	Submitted int `json:"submitted"`
	Approved  int `json:"approved"`
	Pending   int `json:"pending"`
	Rejected  int `json:"rejected"`
}

// StudentProfile is the profile card of the signed-in student.
type StudentProfile struct {
	UserID      string              `json:"userId"`
	Name        string              `json:"name"`
	Email       string              `json:"email"`
	ClassID     *string             `json:"classId,omitempty"`
	StudentRole *models.StudentRole `json:"studentRole,omitempty"`
	Stats       ReporterStats       `json:"stats"`
}
