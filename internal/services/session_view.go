package services

import (
	"fmt"

	"assessment-backend/internal/apperrors"
	"assessment-backend/internal/models"

	"gorm.io/gorm"
)

type GraderStatus struct {
	User      PublicUser `json:"user"`
	Observer  bool       `json:"observer"`
	Voted     bool       `json:"voted"`
	Connected bool       `json:"connected"`
}

// ModeratorView is the full state of the active instance.
type ModeratorView struct {
	Instance       *models.AssessmentInstance `json:"assessment_instance"`
	Mode           string                     `json:"mode"`
	Assessment     *models.Assessment         `json:"assessment"`
	ActualUser     *PublicUser                `json:"actual_user,omitempty"`
	Answers        []models.Answer            `json:"answers"`
	ConnectedUsers []uint                     `json:"connected_users"`
	Graders        []GraderStatus             `json:"graders"`
}

// ParticipantView is one grader's filtered view of its instance.
type ParticipantView struct {
	InstanceID uint               `json:"assessment_instance_id"`
	Title      string             `json:"title"`
	Mode       string             `json:"mode"`
	OnStage    bool               `json:"on_stage"`
	Assessment *models.Assessment `json:"assessment,omitempty"`
	ActualUser *PublicUser        `json:"actual_user,omitempty"`
	Answers    []models.Answer    `json:"answers"`
}

func (s *SessionService) ModeratorView() (*ModeratorView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	instance, err := s.activeInstance(s.db, AnyInstance)
	if apperrors.HasCode(err, apperrors.CodeInvalidState) {
		return nil, apperrors.NotFound("no active assessment instance")
	}
	if err != nil {
		return nil, err
	}
	users, err := instanceUsers(s.db, instance.ID)
	if err != nil {
		return nil, err
	}
	instance.Users = users
	assessment, err := loadAssessment(s.db, instance.AssessmentID)
	if err != nil {
		return nil, err
	}

	phase := s.phaseOf(instance)
	byID := indexUsers(users)
	view := &ModeratorView{
		Instance:       instance,
		Mode:           phase.Mode(),
		Assessment:     assessment,
		ActualUser:     publicUser(byID[phase.Actual()]),
		Answers:        []models.Answer{},
		ConnectedUsers: s.hub.ConnectedUsers(instance.ID),
		Graders:        []GraderStatus{},
	}
	if view.ConnectedUsers == nil {
		view.ConnectedUsers = []uint{}
	}

	actual := byID[phase.Actual()]
	if actual == nil {
		return view, nil
	}
	if err := s.db.Where("instance_id = ? AND graded_user_id = ?", instance.ID, actual.ID).
		Order("grading_user_id ASC").Order("question_id ASC").
		Find(&view.Answers).Error; err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}

	voted := make(map[uint]bool)
	for _, a := range view.Answers {
		voted[a.GradingUserID] = true
	}
	connected := make(map[uint]bool)
	for _, id := range view.ConnectedUsers {
		connected[id] = true
	}
	for i := range users {
		u := &users[i]
		if u.Excluded() && !s.allowObserverAnswers {
			continue
		}
		if !Visible(u, actual, instance).Any() {
			continue
		}
		view.Graders = append(view.Graders, GraderStatus{
			User:      *publicUser(u),
			Observer:  u.Excluded(),
			Voted:     voted[u.ID],
			Connected: connected[u.ID],
		})
	}
	return view, nil
}

// ParticipantView applies the visibility rules to the caller's instance.
func (s *SessionService) ParticipantView(userID uint) (*ParticipantView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var grader models.User
	if err := s.db.First(&grader, userID).Error; err != nil {
		return nil, notFoundOr(err, "participant not found")
	}
	var instance models.AssessmentInstance
	if err := s.db.First(&instance, grader.InstanceID).Error; err != nil {
		return nil, notFoundOr(err, "assessment instance not found")
	}

	view := &ParticipantView{
		InstanceID: instance.ID,
		Title:      instance.Title,
		Mode:       s.modeOf(&instance),
		Answers:    []models.Answer{},
	}
	if !instance.Active || instance.CurrentUserID == nil {
		return view, nil
	}

	if grader.ID == *instance.CurrentUserID {
		view.OnStage = true
		return view, nil
	}
	var actual models.User
	if err := s.db.First(&actual, *instance.CurrentUserID).Error; err != nil {
		return nil, notFoundOr(err, "participant on stage not found")
	}

	disclosure := Visible(&grader, &actual, &instance)
	if disclosure.ActualUserIdentity {
		view.ActualUser = publicUser(&actual)
	}
	if disclosure.AssessmentContent {
		assessment, err := loadAssessment(s.db, instance.AssessmentID)
		if err != nil {
			return nil, err
		}
		view.Assessment = assessment
		if err := s.db.Where("instance_id = ? AND grading_user_id = ? AND graded_user_id = ?", instance.ID, grader.ID, actual.ID).
			Order("question_id ASC").
			Find(&view.Answers).Error; err != nil {
			return nil, fmt.Errorf("load answers: %w", err)
		}
	}
	return view, nil
}

func loadAssessment(tx *gorm.DB, assessmentID uint) (*models.Assessment, error) {
	var assessment models.Assessment
	err := tx.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("question_order ASC")
	}).First(&assessment, assessmentID).Error
	if err != nil {
		return nil, notFoundOr(err, "assessment not found")
	}
	return &assessment, nil
}
