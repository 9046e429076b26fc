package dto

import "github.com/noah-isme/smart-report-api/internal/models"

// ClassRequest captures class create and update payloads.
type ClassRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

// ClassListItem is a class with membership and weekly activity statistics.
type ClassListItem struct {
	models.ClassSummary
	Department string `json:"department"`
	Year       int    `json:"year"`
}

// ClassDetails is a class with its students and recent reports.
type ClassDetails struct {
	Class         models.Class            `json:"class"`
	Department    string                  `json:"department"`
	Year          int                     `json:"year"`
	Students      []models.StudentProfile `json:"students"`
	RecentReports []models.Report         `json:"recentReports"`
}

// ItemRequest captures item create and update payloads.
type ItemRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

// AssignStudentRequest captures PATCH /admin/students/:userId payload.
type AssignStudentRequest struct {
	ClassID     *string `json:"classId" validate:"omitempty,uuid"`
	StudentRole *string `json:"studentRole" validate:"omitempty,oneof=CS CP CC WS"`
}
