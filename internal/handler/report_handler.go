package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smart-report-api/internal/dto"
	"github.com/noah-isme/smart-report-api/internal/models"
	appErrors "github.com/noah-isme/smart-report-api/pkg/errors"
	"github.com/noah-isme/smart-report-api/pkg/response"
)

type reportService interface {
	SubmitReport(ctx context.Context, principal *models.Principal, req dto.SubmitReportRequest) (*models.Report, error)
	ActOnReport(ctx context.Context, principal *models.Principal, reportID string, decision dto.ApprovalDecision, comments string) (*dto.ActOnReportResponse, error)
	ApprovalView(ctx context.Context, principal *models.Principal) (*dto.ApprovalView, error)
	ReviewReport(ctx context.Context, admin *models.Principal, reportID string, req dto.ReviewReportRequest) (*dto.ReviewReportResponse, error)
	ListClassReports(ctx context.Context, principal *models.Principal, req dto.ListClassReportsRequest) ([]models.Report, *models.Pagination, error)
	GetReport(ctx context.Context, principal *models.Principal, id string) (*models.Report, error)
	DownloadReport(ctx context.Context, principal *models.Principal, id string) ([]byte, string, error)
}

// ReportHandler exposes the report lifecycle endpoints.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(service reportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// List godoc
// @Summary List reports of the caller's class
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param filter query string false "daily, weekly, monthly or all"
// @Param search query string false "Title, comment or reporter search"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	var req dto.ListClassReportsRequest
	if !bindQuery(c, &req, "invalid report query") {
		return
	}
	reports, pagination, err := h.service.ListClassReports(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Reports retrieved", reports, pagination)
}

// Submit godoc
// @Summary Submit today's report for the caller's class
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SubmitReportRequest true "Report payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Submit(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	var req dto.SubmitReportRequest
	if !bindJSON(c, &req, "invalid report payload") {
		return
	}
	report, err := h.service.SubmitReport(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Report submitted successfully", report)
}

// Approval godoc
// @Summary Today's report with the caller's approval state
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /reports/approval [get]
func (h *ReportHandler) Approval(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	view, err := h.service.ApprovalView(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Approval status retrieved", view, nil)
}

// Get godoc
// @Summary Report details
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) Get(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	id, ok := pathID(c, "id", "Report not found")
	if !ok {
		return
	}
	report, err := h.service.GetReport(c.Request.Context(), principal, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Report retrieved", report, nil)
}

// Download godoc
// @Summary Download a report as PDF
// @Tags Reports
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Router /reports/{id}/download [get]
func (h *ReportHandler) Download(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	id, ok := pathID(c, "id", "Report not found")
	if !ok {
		return
	}
	data, filename, err := h.service.DownloadReport(c.Request.Context(), principal, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", data)
}

// Approve godoc
// @Summary Approve a report as CS or CP
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Param payload body dto.ActOnReportRequest false "Optional comments"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/approve [post]
func (h *ReportHandler) Approve(c *gin.Context) {
	h.act(c, dto.DecisionApprove, "Report approved")
}

// Deny godoc
// @Summary Deny a report as CS or CP
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Param payload body dto.ActOnReportRequest true "Denial reason"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/deny [post]
func (h *ReportHandler) Deny(c *gin.Context) {
	h.act(c, dto.DecisionDeny, "Report denied")
}

func (h *ReportHandler) act(c *gin.Context, decision dto.ApprovalDecision, message string) {
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	id, ok := pathID(c, "id", "Report not found")
	if !ok {
		return
	}
	var req dto.ActOnReportRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req, "invalid approval payload") {
		return
	}
	res, err := h.service.ActOnReport(c.Request.Context(), principal, id, decision, strings.TrimSpace(req.Comments))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, message, res, nil)
}

// Review godoc
// @Summary Administrator review of an UNDER_REVIEW report
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Param payload body dto.ReviewReportRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Router /admin/reports/{id}/review [post]
func (h *ReportHandler) Review(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		return
	}
	id, ok := pathID(c, "id", "Report not found")
	if !ok {
		return
	}
	var req dto.ReviewReportRequest
	if !bindJSON(c, &req, "invalid review payload") {
		return
	}
	req.Decision = models.ReportStatus(strings.ToUpper(strings.TrimSpace(string(req.Decision))))
	if req.Decision == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "decision is required"))
		return
	}
	res, err := h.service.ReviewReport(c.Request.Context(), principal, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Report reviewed", res, nil)
}
