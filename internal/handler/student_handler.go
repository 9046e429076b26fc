package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smart-report-api/internal/dto"
	"github.com/noah-isme/smart-report-api/internal/models"
	"github.com/noah-isme/smart-report-api/pkg/response"
)

type studentService interface {
	Assign(ctx context.Context, userID string, req dto.AssignStudentRequest) (*models.Student, error)
}

// StudentHandler exposes student membership endpoints.
type StudentHandler struct {
	students studentService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentService) *StudentHandler {
	return &StudentHandler{students: students}
}

// Assign godoc
// @Summary Assign a student's class and representative role
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Student user ID"
// @Param payload body dto.AssignStudentRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Router /admin/students/{userId} [patch]
func (h *StudentHandler) Assign(c *gin.Context) {
	id, ok := pathID(c, "userId", "Student not found")
	if !ok {
		return
	}
	var req dto.AssignStudentRequest
	if !bindJSON(c, &req, "invalid student payload") {
		return
	}
	student, err := h.students.Assign(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Student updated successfully", student, nil)
}
