package models

import "time"

type Assessment struct {
	ID        uint                 `gorm:"primaryKey" json:"id"`
	Title     string               `gorm:"size:255;not null" json:"title"`
	Image     string               `gorm:"size:500" json:"image,omitempty"`
	Archived  bool                 `gorm:"not null;default:false" json:"archived"`
	Questions []Question           `gorm:"foreignKey:AssessmentID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
	Instances []AssessmentInstance `gorm:"foreignKey:AssessmentID;constraint:OnDelete:CASCADE" json:"assessment_instances,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}
