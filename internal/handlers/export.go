package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"assessment-backend/internal/apperrors"

	"github.com/gin-gonic/gin"
)

var exportHeader = []string{"graded_user", "question_order", "question", "grading_user", "grading_group", "answer", "submitted_at"}

// ExportAnswers godoc
// @Summary      Export answers of an instance
// @Tags         instances
// @Produce      json
// @Produce      text/csv
// @Security     BearerAuth
// @Param        id path int true "Instance ID"
// @Param        format query string false "json or csv" default(json)
// @Success      200 {object} services.AnswerExport
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/assessment-instances/{id}/answers/export [get]
func (h *InstanceHandler) ExportAnswers(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "csv" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "format must be json or csv", Code: apperrors.CodeValidation})
		return
	}

	export, err := h.instanceService.ExportAnswers(id)
	if err != nil {
		respondError(c, err)
		return
	}

	filename := strings.ReplaceAll(export.Title, " ", "_") + "_answers"

	if format == "csv" {
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

		w := csv.NewWriter(c.Writer)
		w.Write(exportHeader)
		for _, a := range export.Answers {
			w.Write([]string{
				a.GradedUser,
				strconv.Itoa(a.QuestionOrder),
				a.Question,
				a.GradingUser,
				a.GradingGroup,
				a.Answer,
				a.SubmittedAt,
			})
		}
		w.Flush()
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.json\"", filename))
	c.JSON(http.StatusOK, export)
}
