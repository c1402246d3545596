package handlers

import (
	"log"
	"net/http"
	"strconv"

	"assessment-backend/internal/apperrors"
	"assessment-backend/internal/models"

	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Error string         `json:"error" example:"something went wrong"`
	Code  apperrors.Code `json:"code" example:"VALIDATION_ERROR"`
}

type MessageResponse struct {
	Message string `json:"message" example:"operation successful"`
}

// Type aliases so swag can resolve models in annotations.
type Assessment = models.Assessment
type AssessmentInstance = models.AssessmentInstance
type User = models.User

func respondError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	if code == apperrors.CodeInternal {
		log.Printf("api: %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(apperrors.HTTPStatus(code), ErrorResponse{Error: apperrors.PublicMessage(err), Code: code})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: apperrors.CodeValidation})
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + name, Code: apperrors.CodeValidation})
		return 0, false
	}
	return uint(id), true
}
