package services

import (
	"fmt"
	"strings"
	"time"

	"assessment-backend/internal/apperrors"
	"assessment-backend/internal/models"

	"gorm.io/gorm"
)

type QuestionInput struct {
	Title         string   `json:"title" binding:"required"`
	Image         string   `json:"image"`
	QuestionType  string   `json:"question_type" binding:"required,oneof=text number select"`
	SelectOptions []string `json:"select_options"`
}

type AssessmentInput struct {
	Title     string          `json:"title" binding:"required,max=255"`
	Image     string          `json:"image"`
	Questions []QuestionInput `json:"questions" binding:"required,min=1,dive"`
}

type AssessmentService struct {
	db *gorm.DB
}

func NewAssessmentService(db *gorm.DB) *AssessmentService {
	return &AssessmentService{db: db}
}

func (s *AssessmentService) ListAssessments() ([]models.Assessment, error) {
	var assessments []models.Assessment
	if err := s.db.Order("archived ASC").Order("created_at DESC").Find(&assessments).Error; err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return assessments, nil
}

func (s *AssessmentService) CreateAssessment(input AssessmentInput) (*models.Assessment, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.Validation("title is required")
	}
	if len(input.Questions) == 0 {
		return nil, apperrors.Validation("an assessment needs at least one question")
	}

	var count int64
	s.db.Model(&models.Assessment{}).Where("title = ?", title).Count(&count)
	if count > 0 {
		return nil, apperrors.Conflict("an assessment with this title already exists")
	}

	assessment := models.Assessment{Title: title, Image: input.Image}
	for i, q := range input.Questions {
		question, err := buildQuestion(q, i+1)
		if err != nil {
			return nil, err
		}
		assessment.Questions = append(assessment.Questions, question)
	}

	if err := s.db.Create(&assessment).Error; err != nil {
		return nil, fmt.Errorf("create assessment: %w", err)
	}
	return &assessment, nil
}

func buildQuestion(q QuestionInput, order int) (models.Question, error) {
	question := models.Question{
		Title:         strings.TrimSpace(q.Title),
		Image:         q.Image,
		QuestionType:  q.QuestionType,
		QuestionOrder: order,
	}
	if question.Title == "" {
		return question, apperrors.Validation(fmt.Sprintf("question %d has no title", order))
	}

	switch q.QuestionType {
	case models.QuestionTypeText, models.QuestionTypeNumber:
	case models.QuestionTypeSelect:
		if len(q.SelectOptions) == 0 {
			return question, apperrors.Validation(fmt.Sprintf("question %d needs select options", order))
		}
		for _, opt := range q.SelectOptions {
			question.SelectOptions = append(question.SelectOptions, models.SelectOption{Title: opt})
		}
	default:
		return question, apperrors.Validation(fmt.Sprintf("question %d has unknown type %q", order, q.QuestionType))
	}
	return question, nil
}

func (s *AssessmentService) GetAssessment(assessmentID uint) (*models.Assessment, error) {
	return loadAssessment(s.db, assessmentID)
}

func (s *AssessmentService) ToggleArchive(assessmentID uint) (*models.Assessment, error) {
	var assessment models.Assessment
	if err := s.db.First(&assessment, assessmentID).Error; err != nil {
		return nil, apperrors.NotFound("assessment not found")
	}

	assessment.Archived = !assessment.Archived
	assessment.UpdatedAt = time.Now()
	if err := s.db.Save(&assessment).Error; err != nil {
		return nil, fmt.Errorf("archive assessment: %w", err)
	}
	return &assessment, nil
}

// DeleteAssessment removes the assessment with its questions, instances and answers.
func (s *AssessmentService) DeleteAssessment(assessmentID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var assessment models.Assessment
		if err := tx.First(&assessment, assessmentID).Error; err != nil {
			return apperrors.NotFound("assessment not found")
		}

		var active int64
		tx.Model(&models.AssessmentInstance{}).
			Where("assessment_id = ? AND active = ?", assessmentID, true).
			Count(&active)
		if active > 0 {
			return apperrors.InvalidState("assessment has an active instance")
		}

		instanceIDs := tx.Model(&models.AssessmentInstance{}).Select("id").Where("assessment_id = ?", assessmentID)
		if err := tx.Where("instance_id IN (?)", instanceIDs).Delete(&models.Answer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("instance_id IN (?)", instanceIDs).Delete(&models.User{}).Error; err != nil {
			return err
		}
		if err := tx.Where("assessment_id = ?", assessmentID).Delete(&models.AssessmentInstance{}).Error; err != nil {
			return err
		}
		if err := tx.Where("assessment_id = ?", assessmentID).Delete(&models.Question{}).Error; err != nil {
			return err
		}
		return tx.Delete(&assessment).Error
	})
}
