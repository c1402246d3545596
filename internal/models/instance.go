package models

import "time"

// AssessmentInstance is one run of an assessment against a cohort.
// Finished implies !Active and CurrentUserID == nil.
type AssessmentInstance struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Title         string     `gorm:"size:255;not null" json:"title"`
	AssessmentID  uint       `gorm:"not null;index" json:"assessment_id"`
	Active        bool       `gorm:"not null;default:false" json:"active"`
	Finished      bool       `gorm:"not null;default:false" json:"finished"`
	CurrentUserID *uint      `json:"current_user_id"`
	Users         []User     `gorm:"foreignKey:InstanceID;constraint:OnDelete:CASCADE" json:"users,omitempty"`
	Answers       []Answer   `gorm:"foreignKey:InstanceID;constraint:OnDelete:CASCADE" json:"answers,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

const (
	InstanceStatusNotStarted = "not_started"
	InstanceStatusActive     = "active"
	InstanceStatusFinished   = "finished"
)

func (i *AssessmentInstance) Status() string {
	switch {
	case i.Finished:
		return InstanceStatusFinished
	case i.Active:
		return InstanceStatusActive
	default:
		return InstanceStatusNotStarted
	}
}
