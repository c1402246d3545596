package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"assessment-backend/internal/apperrors"
	"assessment-backend/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ParticipantInput struct {
	Name         string `json:"name" validate:"required,max=255"`
	Email        string `json:"email" validate:"required,email,max=255"`
	TurnOrder    int    `json:"turn_order" validate:"min=-1"`
	Group        string `json:"group" validate:"max=100"`
	VoteEveryone bool   `json:"vote_everyone"`
}

type InstanceService struct {
	db       *gorm.DB
	validate *validator.Validate
}

func NewInstanceService(db *gorm.DB) *InstanceService {
	return &InstanceService{db: db, validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (s *InstanceService) CreateInstance(assessmentID uint, title string) (*models.AssessmentInstance, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.Validation("title is required")
	}

	var assessment models.Assessment
	if err := s.db.First(&assessment, assessmentID).Error; err != nil {
		return nil, apperrors.NotFound("assessment not found")
	}
	if assessment.Archived {
		return nil, apperrors.InvalidState("assessment is archived")
	}

	instance := models.AssessmentInstance{Title: title, AssessmentID: assessmentID}
	if err := s.db.Create(&instance).Error; err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	return &instance, nil
}

func (s *InstanceService) ListInstances(assessmentID uint) ([]models.AssessmentInstance, error) {
	var instances []models.AssessmentInstance
	if err := s.db.Where("assessment_id = ?", assessmentID).
		Order("created_at DESC").
		Find(&instances).Error; err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	return instances, nil
}

func (s *InstanceService) GetInstance(instanceID uint) (*models.AssessmentInstance, error) {
	var instance models.AssessmentInstance
	err := s.db.Preload("Users", func(db *gorm.DB) *gorm.DB {
		return db.Order("turn_order ASC").Order("id ASC")
	}).Preload("Answers").First(&instance, instanceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("assessment instance not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load instance: %w", err)
	}
	return &instance, nil
}

func (s *InstanceService) DeleteInstance(instanceID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var instance models.AssessmentInstance
		if err := tx.First(&instance, instanceID).Error; err != nil {
			return apperrors.NotFound("assessment instance not found")
		}
		if instance.Active {
			return apperrors.InvalidState("close the instance before deleting it")
		}
		if err := tx.Where("instance_id = ?", instanceID).Delete(&models.Answer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("instance_id = ?", instanceID).Delete(&models.User{}).Error; err != nil {
			return err
		}
		return tx.Delete(&instance).Error
	})
}

// AddParticipants imports a roster in one transaction. Access codes are generated here.
func (s *InstanceService) AddParticipants(instanceID uint, inputs []ParticipantInput) ([]models.User, error) {
	if len(inputs) == 0 {
		return nil, apperrors.Validation("no participants given")
	}
	for i := range inputs {
		inputs[i].Name = strings.TrimSpace(inputs[i].Name)
		inputs[i].Email = strings.ToLower(strings.TrimSpace(inputs[i].Email))
		if err := s.validate.Struct(inputs[i]); err != nil {
			return nil, apperrors.Validation(fmt.Sprintf("participant %d: %v", i+1, err))
		}
	}

	var created []models.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var instance models.AssessmentInstance
		if err := tx.First(&instance, instanceID).Error; err != nil {
			return apperrors.NotFound("assessment instance not found")
		}
		if instance.Finished {
			return apperrors.InvalidState("assessment instance is finished")
		}

		var existing []models.User
		if err := tx.Where("instance_id = ?", instanceID).Find(&existing).Error; err != nil {
			return err
		}
		ranks := make(map[int]bool)
		names := make(map[string]bool)
		emails := make(map[string]bool)
		for _, u := range existing {
			if !u.Excluded() {
				ranks[u.TurnOrder] = true
			}
			names[u.Name] = true
			emails[u.Email] = true
		}

		for _, in := range inputs {
			if in.TurnOrder >= 0 && ranks[in.TurnOrder] {
				return apperrors.Conflict(fmt.Sprintf("turn order %d is already taken", in.TurnOrder))
			}
			if names[in.Name] {
				return apperrors.Conflict(fmt.Sprintf("participant %q already exists", in.Name))
			}
			if emails[in.Email] {
				return apperrors.Conflict(fmt.Sprintf("email %q already exists", in.Email))
			}
			if in.TurnOrder >= 0 {
				ranks[in.TurnOrder] = true
			}
			names[in.Name] = true
			emails[in.Email] = true

			code, err := uniqueAccessCode(tx)
			if err != nil {
				return err
			}
			created = append(created, models.User{
				InstanceID:   instanceID,
				Name:         in.Name,
				Email:        in.Email,
				TurnOrder:    in.TurnOrder,
				Group:        strings.TrimSpace(in.Group),
				VoteEveryone: in.VoteEveryone,
				AccessCode:   code,
			})
		}
		return tx.Create(&created).Error
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

const accessCodeLength = 8

// uniqueAccessCode keeps codes unique across all instances, since login resolves a code alone.
func uniqueAccessCode(tx *gorm.DB) (string, error) {
	for range 5 {
		code := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:accessCodeLength])
		var count int64
		if err := tx.Model(&models.User{}).Where("access_code = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", errors.New("could not generate a unique access code")
}

// AnswerRecord is one exported answer with names resolved.
type AnswerRecord struct {
	QuestionOrder int    `json:"question_order"`
	Question      string `json:"question"`
	GradedUser    string `json:"graded_user"`
	GradingUser   string `json:"grading_user"`
	GradingGroup  string `json:"grading_group"`
	Answer        string `json:"answer"`
	SubmittedAt   string `json:"submitted_at"`
}

type AnswerExport struct {
	Title   string         `json:"title"`
	Answers []AnswerRecord `json:"answers"`
}

func (s *InstanceService) ExportAnswers(instanceID uint) (*AnswerExport, error) {
	instance, err := s.GetInstance(instanceID)
	if err != nil {
		return nil, err
	}

	var questions []models.Question
	if err := s.db.Where("assessment_id = ?", instance.AssessmentID).Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	questionByID := make(map[uint]models.Question, len(questions))
	for _, q := range questions {
		questionByID[q.ID] = q
	}
	userByID := make(map[uint]models.User, len(instance.Users))
	for _, u := range instance.Users {
		userByID[u.ID] = u
	}

	export := &AnswerExport{Title: instance.Title, Answers: []AnswerRecord{}}
	for _, a := range instance.Answers {
		q := questionByID[a.QuestionID]
		export.Answers = append(export.Answers, AnswerRecord{
			QuestionOrder: q.QuestionOrder,
			Question:      q.Title,
			GradedUser:    userByID[a.GradedUserID].Name,
			GradingUser:   userByID[a.GradingUserID].Name,
			GradingGroup:  userByID[a.GradingUserID].Group,
			Answer:        a.AnswerText,
			SubmittedAt:   a.SubmittedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	sort.SliceStable(export.Answers, func(i, j int) bool {
		a, b := export.Answers[i], export.Answers[j]
		if a.GradedUser != b.GradedUser {
			return a.GradedUser < b.GradedUser
		}
		if a.QuestionOrder != b.QuestionOrder {
			return a.QuestionOrder < b.QuestionOrder
		}
		return a.GradingUser < b.GradingUser
	})
	return export, nil
}
