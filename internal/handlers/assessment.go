package handlers

import (
	"net/http"

	"assessment-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type AssessmentHandler struct {
	assessmentService *services.AssessmentService
}

func NewAssessmentHandler(assessmentService *services.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{assessmentService: assessmentService}
}

// ListAssessments godoc
// @Summary      List assessments
// @Description  Non-archived assessments first, newest first
// @Tags         assessments
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} Assessment
// @Failure      401 {object} ErrorResponse
// @Router       /api/v1/assessments [get]
func (h *AssessmentHandler) ListAssessments(c *gin.Context) {
	assessments, err := h.assessmentService.ListAssessments()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, assessments)
}

// CreateAssessment godoc
// @Summary      Create an assessment
// @Description  Questions are ordered by their position in the request
// @Tags         assessments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body services.AssessmentInput true "Assessment with questions"
// @Success      201 {object} Assessment
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/assessments [post]
func (h *AssessmentHandler) CreateAssessment(c *gin.Context) {
	var req services.AssessmentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	assessment, err := h.assessmentService.CreateAssessment(req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, assessment)
}

// GetAssessment godoc
// @Summary      Get an assessment
// @Tags         assessments
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Assessment ID"
// @Success      200 {object} Assessment
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/assessments/{id} [get]
func (h *AssessmentHandler) GetAssessment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	assessment, err := h.assessmentService.GetAssessment(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, assessment)
}

// ToggleArchive godoc
// @Summary      Archive or unarchive an assessment
// @Tags         assessments
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Assessment ID"
// @Success      200 {object} Assessment
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/assessments/{id}/archive [post]
func (h *AssessmentHandler) ToggleArchive(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	assessment, err := h.assessmentService.ToggleArchive(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, assessment)
}

// DeleteAssessment godoc
// @Summary      Delete an assessment
// @Description  Removes its questions, instances and answers. Refused while one of its instances is active.
// @Tags         assessments
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Assessment ID"
// @Success      200 {object} MessageResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/assessments/{id} [delete]
func (h *AssessmentHandler) DeleteAssessment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.assessmentService.DeleteAssessment(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "assessment deleted"})
}
