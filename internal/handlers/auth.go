package handlers

import (
	"net/http"

	"assessment-backend/internal/middleware"
	"assessment-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=100" example:"moderator2"`
	Password string `json:"password" binding:"required,min=6" example:"password123"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"admin"`
	Password string `json:"password" binding:"required" example:"password123"`
}

type ParticipantLoginRequest struct {
	Pin string `json:"pin" binding:"required" example:"3F9A1C2B"`
}

type AuthResponse struct {
	Token string `json:"token" example:"eyJhbGciOiJIUzI1NiIs..."`
}

type ParticipantAuthResponse struct {
	Token string `json:"token" example:"eyJhbGciOiJIUzI1NiIs..."`
	User  User   `json:"user"`
}

type SessionResponse struct {
	Role   string `json:"role" example:"participant"`
	HostID uint   `json:"host_id,omitempty"`
	UserID uint   `json:"user_id,omitempty"`
}

// Register godoc
// @Summary      Register a moderator
// @Description  Create an extra moderator account and return a token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body RegisterRequest true "Registration data"
// @Success      201 {object} AuthResponse
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	token, err := h.authService.Register(req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, AuthResponse{Token: token})
}

// Login godoc
// @Summary      Login as moderator
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login data"
// @Success      200 {object} AuthResponse
// @Failure      401 {object} ErrorResponse
// @Router       /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	token, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, AuthResponse{Token: token})
}

// ParticipantLogin godoc
// @Summary      Login as participant
// @Description  Exchange a participant access code for a token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ParticipantLoginRequest true "Access code"
// @Success      200 {object} ParticipantAuthResponse
// @Failure      401 {object} ErrorResponse
// @Router       /api/v1/auth/participant-login [post]
func (h *AuthHandler) ParticipantLogin(c *gin.Context) {
	var req ParticipantLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	token, user, err := h.authService.ParticipantLogin(req.Pin)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ParticipantAuthResponse{Token: token, User: *user})
}

// Logout godoc
// @Summary      Revoke the presented token
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} MessageResponse
// @Failure      401 {object} ErrorResponse
// @Router       /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), middleware.Identity(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

// Session godoc
// @Summary      Describe the caller
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} SessionResponse
// @Failure      401 {object} ErrorResponse
// @Router       /api/v1/auth/session [get]
func (h *AuthHandler) Session(c *gin.Context) {
	id := middleware.Identity(c)
	c.JSON(http.StatusOK, SessionResponse{Role: id.Role, HostID: id.HostID, UserID: id.UserID})
}
