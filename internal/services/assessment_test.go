package services

import (
	"testing"

	"assessment-backend/internal/apperrors"
	"assessment-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAssessment() AssessmentInput {
	return AssessmentInput{
		Title: " Team review ",
		Questions: []QuestionInput{
			{Title: "Communication", QuestionType: models.QuestionTypeText},
			{Title: "Overall", QuestionType: models.QuestionTypeSelect, SelectOptions: []string{"low", "mid", "high"}},
		},
	}
}

func TestCreateAndGetAssessment(t *testing.T) {
	f := newFixture(t)
	assessments := NewAssessmentService(f.db)

	created, err := assessments.CreateAssessment(sampleAssessment())
	require.NoError(t, err)
	assert.Equal(t, "Team review", created.Title)

	got, err := assessments.GetAssessment(created.ID)
	require.NoError(t, err)
	require.Len(t, got.Questions, 2)
	assert.Equal(t, 1, got.Questions[0].QuestionOrder)
	assert.Equal(t, "high", got.Questions[1].SelectOptions[2].Title)

	_, err = assessments.CreateAssessment(sampleAssessment())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestCreateAssessmentValidation(t *testing.T) {
	f := newFixture(t)
	assessments := NewAssessmentService(f.db)

	noOptions := sampleAssessment()
	noOptions.Questions[1].SelectOptions = nil
	_, err := assessments.CreateAssessment(noOptions)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	unknown := sampleAssessment()
	unknown.Questions[0].QuestionType = "essay"
	_, err = assessments.CreateAssessment(unknown)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = assessments.CreateAssessment(AssessmentInput{Title: "empty"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestArchiveAndDeleteAssessment(t *testing.T) {
	f := newFixture(t)
	assessments := NewAssessmentService(f.db)
	instances := NewInstanceService(f.db)
	instance, _ := f.seedInstance(t, "arch", user("ana", 1, "g"))

	archived, err := assessments.ToggleArchive(instance.AssessmentID)
	require.NoError(t, err)
	assert.True(t, archived.Archived)
	_, err = instances.CreateInstance(instance.AssessmentID, "late")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))

	_, err = f.sessions.Start(instance.ID)
	require.NoError(t, err)
	err = assessments.DeleteAssessment(instance.AssessmentID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))

	require.NoError(t, f.sessions.Close(AnyInstance))
	require.NoError(t, assessments.DeleteAssessment(instance.AssessmentID))
	_, err = assessments.GetAssessment(instance.AssessmentID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	var users int64
	f.db.Model(&models.User{}).Count(&users)
	assert.Zero(t, users)
}
