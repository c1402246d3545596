package services

import "assessment-backend/internal/models"

// Disclosure says what a grading participant may see about the participant on stage.
type Disclosure struct {
	AssessmentContent  bool `json:"assessment_content"`
	ActualUserIdentity bool `json:"actual_user_identity"`
}

func (d Disclosure) Any() bool {
	return d.AssessmentContent || d.ActualUserIdentity
}

// Visible is evaluated on every request; group and vote_everyone may change between calls.
func Visible(grader, actual *models.User, instance *models.AssessmentInstance) Disclosure {
	if grader == nil || actual == nil || instance == nil {
		return Disclosure{}
	}
	if grader.InstanceID != instance.ID || actual.InstanceID != instance.ID {
		return Disclosure{}
	}
	if grader.ID == actual.ID {
		return Disclosure{}
	}
	if !grader.VoteEveryone && grader.Group != actual.Group {
		return Disclosure{}
	}
	return Disclosure{AssessmentContent: true, ActualUserIdentity: true}
}
