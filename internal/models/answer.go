package models

import "time"

// Answer is one grading submission; GradingUserID never equals GradedUserID.
type Answer struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	InstanceID    uint      `gorm:"not null;uniqueIndex:idx_answer_unique" json:"assessment_instance_id"`
	QuestionID    uint      `gorm:"not null;uniqueIndex:idx_answer_unique" json:"question_id"`
	GradingUserID uint      `gorm:"not null;uniqueIndex:idx_answer_unique;check:chk_answer_not_self,grading_user_id <> graded_user_id" json:"grading_user_id"`
	GradedUserID  uint      `gorm:"not null;uniqueIndex:idx_answer_unique;index" json:"graded_user_id"`
	AnswerText    string    `gorm:"type:text;not null" json:"answer_text"`
	SubmittedAt   time.Time `json:"submitted_at"`
}
