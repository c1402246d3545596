package models

import "gorm.io/datatypes"

const (
	QuestionTypeText   = "text"
	QuestionTypeNumber = "number"
	QuestionTypeSelect = "select"
)

type SelectOption struct {
	Title string `json:"title"`
}

type Question struct {
	ID            uint                               `gorm:"primaryKey" json:"id"`
	AssessmentID  uint                               `gorm:"not null;index" json:"assessment_id"`
	Title         string                             `gorm:"type:text;not null" json:"title"`
	Image         string                             `gorm:"size:500" json:"image,omitempty"`
	QuestionType  string                             `gorm:"size:10;not null" json:"question_type"`
	QuestionOrder int                                `gorm:"not null" json:"question_order"`
	SelectOptions datatypes.JSONSlice[SelectOption] `json:"select_options"`
}
