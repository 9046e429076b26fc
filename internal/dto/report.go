package dto

import (
	"time"

	"github.com/noah-isme/smart-report-api/internal/models"
)

// ItemEvaluationInput is one inspected item in a submission.
type ItemEvaluationInput struct {
	ItemID  string `json:"itemId" validate:"required,uuid"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

// SubmitReportRequest captures POST /reports payload.
type SubmitReportRequest struct {
	Title          string                `json:"title" validate:"omitempty,max=200"`
	ItemEvaluated  []ItemEvaluationInput `json:"itemEvaluated" validate:"required,min=1,dive"`
	GeneralComment string                `json:"generalComment"`
	Category       string                `json:"category" validate:"omitempty,max=50"`
}

// ApprovalDecision is the peer action taken on a report.
type ApprovalDecision string

const (
	DecisionApprove ApprovalDecision = "APPROVE"
	DecisionDeny    ApprovalDecision = "DENY"
)

// ActOnReportRequest captures approve/deny payloads.
type ActOnReportRequest struct {
	Comments string `json:"comments"`
}

// ActOnReportResponse returns the approval snapshot and the derived status.
type ActOnReportResponse struct {
	Approval     *models.ReportApproval `json:"approval"`
	ReportStatus models.ReportStatus    `json:"reportStatus"`
}

// ApprovalView is the current-day report of the principal's class with both role actions.
type ApprovalView struct {
	Report          *models.Report         `json:"report"`
	UserAction      models.ApprovalAction  `json:"userAction"`
	OtherRoleAction models.ApprovalAction  `json:"otherRoleAction"`
	StudentRole     *models.StudentRole    `json:"studentRole"`
	CanAct          bool                   `json:"canAct"`
	Approval        *models.ReportApproval `json:"approval,omitempty"`
}

// ReviewReportRequest captures POST /admin/reports/:id/review payload.
type ReviewReportRequest struct {
	Decision models.ReportStatus `json:"decision" validate:"required,oneof=APPROVED REVIEWED"`
	Comments string              `json:"comments" validate:"omitempty,max=1000"`
}

// ReviewReportResponse returns the appended review and the report status.
type ReviewReportResponse struct {
	Review       models.ReportReview `json:"review"`
	ReportStatus models.ReportStatus `json:"reportStatus"`
}

// ReportWindow selects the time range of a class listing.
type ReportWindow string

const (
	WindowDaily   ReportWindow = "daily"
	WindowWeekly  ReportWindow = "weekly"
	WindowMonthly ReportWindow = "monthly"
	WindowAll     ReportWindow = "all"
)

// ListClassReportsRequest captures GET /reports query parameters.
type ListClassReportsRequest struct {
	Filter ReportWindow `form:"filter" validate:"omitempty,oneof=daily weekly monthly all"`
	Search string       `form:"search"`
	Page   int          `form:"page" validate:"omitempty,min=1"`
	Limit  int          `form:"limit" validate:"omitempty,min=1,max=100"`
}

// AdminReportsRequest captures GET /admin/reports query parameters.
type AdminReportsRequest struct {
	Page      int    `form:"page" validate:"omitempty,min=1"`
	Limit     int    `form:"limit" validate:"omitempty,min=1,max=100"`
	Search    string `form:"search"`
	Status    string `form:"status" validate:"omitempty,oneof=all pending approved rejected"`
	SortBy    string `form:"sortBy" validate:"omitempty,oneof=createdAt title status class reporter"`
	SortOrder string `form:"sortOrder" validate:"omitempty,oneof=asc desc"`
}

// ReportRow is the compact admin listing shape of a report.
type ReportRow struct {
	ID             string                 `json:"id"`
	Title          string                 `json:"title"`
	Representative string                 `json:"representative"`
	Class          string                 `json:"class"`
	Status         string                 `json:"status"`
	Date           string                 `json:"date"`
	Time           string                 `json:"time"`
	ItemsChecked   int                    `json:"itemsChecked"`
	TotalItems     int                    `json:"totalItems"`
	FlaggedItems   int                    `json:"flaggedItems"`
	GeneralComment string                 `json:"generalComment,omitempty"`
	Items          models.ItemEvaluations `json:"items,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
}

// StatusCounts tallies reports per display status.
type StatusCounts struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// AdminReportsResponse is the admin listing with overall statistics.
type AdminReportsResponse struct {
	Reports    []ReportRow        `json:"reports"`
	Pagination *models.Pagination `json:"pagination"`
	Stats      StatusCounts       `json:"stats"`
}
