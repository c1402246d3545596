package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"assessment-backend/internal/database"
	"assessment-backend/internal/models"
	"assessment-backend/internal/ws"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(database.SQLiteDialector("file::memory:?_pragma=foreign_keys(1)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))
	return db
}

type fixture struct {
	db       *gorm.DB
	hub      *ws.Hub
	sessions *SessionService
	question models.Question
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := openTestDB(t)
	hub := ws.NewHub(time.Second)
	f := &fixture{db: db, hub: hub, sessions: NewSessionService(db, hub, false)}
	return f
}

// seedInstance creates an instance of a two-question assessment with the given participants.
func (f *fixture) seedInstance(t *testing.T, title string, users ...models.User) (models.AssessmentInstance, []models.User) {
	t.Helper()
	assessment := models.Assessment{
		Title: "Review " + title,
		Questions: []models.Question{
			{Title: "Clarity", QuestionType: models.QuestionTypeText, QuestionOrder: 1},
			{Title: "Score", QuestionType: models.QuestionTypeNumber, QuestionOrder: 2},
		},
	}
	require.NoError(t, f.db.Create(&assessment).Error)
	f.question = assessment.Questions[0]

	instance := models.AssessmentInstance{Title: title, AssessmentID: assessment.ID}
	require.NoError(t, f.db.Create(&instance).Error)

	for i := range users {
		users[i].InstanceID = instance.ID
		if users[i].Email == "" {
			users[i].Email = fmt.Sprintf("%s@example.com", users[i].Name)
		}
		users[i].AccessCode = fmt.Sprintf("%s-%d", users[i].Name, instance.ID)
	}
	if len(users) > 0 {
		require.NoError(t, f.db.Create(&users).Error)
	}
	return instance, users
}

func (f *fixture) reload(t *testing.T, id uint) models.AssessmentInstance {
	t.Helper()
	var instance models.AssessmentInstance
	require.NoError(t, f.db.First(&instance, id).Error)
	return instance
}

func user(name string, rank int, group string) models.User {
	return models.User{Name: name, TurnOrder: rank, Group: group}
}

type fakeSocket struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (s *fakeSocket) WriteMessage(_ int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("use of closed network connection")
	}
	s.frames = append(s.frames, data)
	return nil
}

func (s *fakeSocket) SetWriteDeadline(time.Time) error { return nil }

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type received struct {
	Mode       string      `json:"mode"`
	Event      string      `json:"event"`
	InstanceID uint        `json:"assessment_instance_id"`
	ActualUser *PublicUser `json:"actual_user"`
	OnStage    bool        `json:"on_stage"`
	UserID     uint        `json:"user_id"`
	Name       string      `json:"name"`
}

func (s *fakeSocket) messages(t *testing.T) []received {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]received, 0, len(s.frames))
	for _, frame := range s.frames {
		var m received
		require.NoError(t, json.Unmarshal(frame, &m))
		out = append(out, m)
	}
	return out
}

func (s *fakeSocket) last(t *testing.T) received {
	t.Helper()
	msgs := s.messages(t)
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

func (s *fakeSocket) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = nil
}

func (s *fakeSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
