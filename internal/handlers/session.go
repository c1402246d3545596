package handlers

import (
	"net/http"

	"assessment-backend/internal/middleware"
	"assessment-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	sessionService *services.SessionService
}

func NewSessionHandler(sessionService *services.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

type SubmitAnswersRequest struct {
	Answers []services.AnswerInput `json:"answers" binding:"required,min=1,dive"`
}

type PhaseResponse struct {
	Mode         string `json:"mode" example:"LOBBY"`
	ActualUserID uint   `json:"actual_user_id,omitempty" example:"3"`
	Finished     bool   `json:"finished"`
}

func phaseResponse(p services.Phase) PhaseResponse {
	resp := PhaseResponse{Mode: p.Mode(), ActualUserID: p.Actual()}
	if ended, ok := p.(services.Ended); ok {
		resp.Finished = ended.Completed
	}
	return resp
}

// Active godoc
// @Summary      Current state of the active assessment instance
// @Description  Moderators get the full view. Participants get their own instance, filtered by group visibility.
// @Tags         session
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} services.ModeratorView
// @Success      200 {object} services.ParticipantView
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/assessment-instances/active [get]
func (h *SessionHandler) Active(c *gin.Context) {
	id := middleware.Identity(c)
	if id.IsModerator() {
		view, err := h.sessionService.ModeratorView()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
		return
	}

	view, err := h.sessionService.ParticipantView(id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Start godoc
// @Summary      Start an assessment instance
// @Description  Puts the lowest-ranked participant on stage. Only one instance may be active.
// @Tags         session
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Instance ID"
// @Success      200 {object} PhaseResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/assessment-instances/{id}/start [post]
func (h *SessionHandler) Start(c *gin.Context) {
	instanceID, ok := idParam(c, "id")
	if !ok {
		return
	}

	phase, err := h.sessionService.Start(instanceID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, phaseResponse(phase))
}

// BeginGrading godoc
// @Summary      Open grading for the participant on stage
// @Tags         session
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} PhaseResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/assessment-instances/active/grading [post]
func (h *SessionHandler) BeginGrading(c *gin.Context) {
	phase, err := h.sessionService.BeginGrading(services.AnyInstance)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, phaseResponse(phase))
}

// Next godoc
// @Summary      Advance to the next participant
// @Description  Finishes the instance when no eligible participant is left
// @Tags         session
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} PhaseResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/assessment-instances/active/next [post]
func (h *SessionHandler) Next(c *gin.Context) {
	phase, err := h.sessionService.Advance()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, phaseResponse(phase))
}

// SubmitAnswers godoc
// @Summary      Submit answers about the participant on stage
// @Description  Resubmitting an answer to the same question overwrites it
// @Tags         session
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body SubmitAnswersRequest true "Answers"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/assessment-instances/active/answers [post]
func (h *SessionHandler) SubmitAnswers(c *gin.Context) {
	var req SubmitAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.sessionService.SubmitAnswers(middleware.Identity(c).UserID, req.Answers); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "answers saved"})
}

// Close godoc
// @Summary      Close the active instance early
// @Description  The instance is deactivated but not finished, and can be started again
// @Tags         session
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} MessageResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/assessment-instances/active/close [post]
func (h *SessionHandler) Close(c *gin.Context) {
	if err := h.sessionService.Close(services.AnyInstance); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "assessment instance closed"})
}
