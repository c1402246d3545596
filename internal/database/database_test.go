package database

import (
	"testing"

	"assessment-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(SQLiteDialector("file::memory:?_pragma=foreign_keys(1)"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, AutoMigrate(db))
	return db
}

func seedInstances(t *testing.T, db *gorm.DB) (models.AssessmentInstance, models.AssessmentInstance) {
	t.Helper()
	assessment := models.Assessment{Title: "Peer review"}
	require.NoError(t, db.Create(&assessment).Error)
	first := models.AssessmentInstance{Title: "Cohort A", AssessmentID: assessment.ID}
	second := models.AssessmentInstance{Title: "Cohort B", AssessmentID: assessment.ID}
	require.NoError(t, db.Create(&first).Error)
	require.NoError(t, db.Create(&second).Error)
	return first, second
}

func TestAtMostOneActiveInstance(t *testing.T) {
	db := openTestDB(t)
	first, second := seedInstances(t, db)

	require.NoError(t, db.Model(&first).Update("active", true).Error)
	err := db.Model(&second).Update("active", true).Error
	assert.Error(t, err)

	require.NoError(t, db.Model(&first).Update("active", false).Error)
	assert.NoError(t, db.Model(&second).Update("active", true).Error)
}

func TestTurnOrderUniqueExceptExcluded(t *testing.T) {
	db := openTestDB(t)
	first, _ := seedInstances(t, db)

	users := []models.User{
		{InstanceID: first.ID, Name: "ana", Email: "ana@example.com", TurnOrder: 1, AccessCode: "a1"},
		{InstanceID: first.ID, Name: "obs1", Email: "obs1@example.com", TurnOrder: models.ExcludedRank, AccessCode: "o1"},
		{InstanceID: first.ID, Name: "obs2", Email: "obs2@example.com", TurnOrder: models.ExcludedRank, AccessCode: "o2"},
	}
	require.NoError(t, db.Create(&users).Error)

	dup := models.User{InstanceID: first.ID, Name: "bo", Email: "bo@example.com", TurnOrder: 1, AccessCode: "b1"}
	assert.Error(t, db.Create(&dup).Error)
}

func TestAnswerRejectsSelfGrading(t *testing.T) {
	db := openTestDB(t)
	first, _ := seedInstances(t, db)
	user := models.User{InstanceID: first.ID, Name: "ana", Email: "ana@example.com", TurnOrder: 1, AccessCode: "a1"}
	require.NoError(t, db.Create(&user).Error)
	question := models.Question{AssessmentID: first.AssessmentID, Title: "Clarity", QuestionType: models.QuestionTypeText, QuestionOrder: 1}
	require.NoError(t, db.Create(&question).Error)

	self := models.Answer{InstanceID: first.ID, QuestionID: question.ID, GradingUserID: user.ID, GradedUserID: user.ID, AnswerText: "great"}
	assert.Error(t, db.Create(&self).Error)
}
