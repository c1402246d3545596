package handlers

import (
	"net/http"

	"assessment-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type InstanceHandler struct {
	instanceService *services.InstanceService
}

func NewInstanceHandler(instanceService *services.InstanceService) *InstanceHandler {
	return &InstanceHandler{instanceService: instanceService}
}

type CreateInstanceRequest struct {
	Title string `json:"title" binding:"required,min=1,max=255" example:"Spring cohort"`
}

type AddParticipantsRequest struct {
	Participants []services.ParticipantInput `json:"participants" binding:"required,min=1"`
}

// CreateInstance godoc
// @Summary      Create an assessment instance
// @Description  The new instance starts in the not-started state
// @Tags         instances
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Assessment ID"
// @Param        request body CreateInstanceRequest true "Instance data"
// @Success      201 {object} AssessmentInstance
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/assessments/{id}/instances [post]
func (h *InstanceHandler) CreateInstance(c *gin.Context) {
	assessmentID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req CreateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	instance, err := h.instanceService.CreateInstance(assessmentID, req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, instance)
}

// ListInstances godoc
// @Summary      List instances of an assessment
// @Tags         instances
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Assessment ID"
// @Success      200 {array} AssessmentInstance
// @Router       /api/v1/assessments/{id}/instances [get]
func (h *InstanceHandler) ListInstances(c *gin.Context) {
	assessmentID, ok := idParam(c, "id")
	if !ok {
		return
	}

	instances, err := h.instanceService.ListInstances(assessmentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, instances)
}

// GetInstance godoc
// @Summary      Get an assessment instance
// @Description  Includes participants with their access codes, and all answers
// @Tags         instances
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Instance ID"
// @Success      200 {object} AssessmentInstance
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/assessment-instances/{id} [get]
func (h *InstanceHandler) GetInstance(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	instance, err := h.instanceService.GetInstance(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, instance)
}

// DeleteInstance godoc
// @Summary      Delete an assessment instance
// @Tags         instances
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Instance ID"
// @Success      200 {object} MessageResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/assessment-instances/{id} [delete]
func (h *InstanceHandler) DeleteInstance(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.instanceService.DeleteInstance(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "assessment instance deleted"})
}

// AddParticipants godoc
// @Summary      Import participants
// @Description  Bulk add; access codes are generated. turn_order -1 marks an observer.
// @Tags         instances
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Instance ID"
// @Param        request body AddParticipantsRequest true "Roster"
// @Success      201 {array} User
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/assessment-instances/{id}/participants [post]
func (h *InstanceHandler) AddParticipants(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req AddParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	users, err := h.instanceService.AddParticipants(id, req.Participants)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, users)
}
