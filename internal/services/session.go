package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"assessment-backend/internal/apperrors"
	"assessment-backend/internal/metrics"
	"assessment-backend/internal/models"
	"assessment-backend/internal/ws"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PublicUser is what other parties may learn about a participant.
type PublicUser struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

func publicUser(u *models.User) *PublicUser {
	if u == nil {
		return nil
	}
	return &PublicUser{ID: u.ID, Name: u.Name, Group: u.Group}
}

type AnswerInput struct {
	QuestionID uint   `json:"question_id" binding:"required"`
	AnswerText string `json:"answer_text"`
	// GradedUserID is optional; when set it must name the participant on stage.
	GradedUserID uint `json:"graded_user_id,omitempty"`
}

// SessionService owns the lifecycle of assessment instances. Every mutation and the
// broadcast that follows it run under one process-wide lock, which also covers the
// single-active-instance check.
type SessionService struct {
	db                   *gorm.DB
	hub                  *ws.Hub
	allowObserverAnswers bool

	mu   sync.Mutex
	live map[uint]Phase
	now  func() time.Time
}

func NewSessionService(db *gorm.DB, hub *ws.Hub, allowObserverAnswers bool) *SessionService {
	return &SessionService{
		db:                   db,
		hub:                  hub,
		allowObserverAnswers: allowObserverAnswers,
		live:                 make(map[uint]Phase),
		now:                  time.Now,
	}
}

// Start activates a not-started (or closed) instance and puts the lowest rank on stage.
func (s *SessionService) Start(instanceID uint) (Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start(instanceID)
}

// StartOrResume is what a moderator connection does: start the instance, or pick up
// the running session when it is already the active one.
func (s *SessionService) StartOrResume(instanceID uint) (Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var instance models.AssessmentInstance
	if err := s.db.First(&instance, instanceID).Error; err != nil {
		return nil, notFoundOr(err, "assessment instance not found")
	}
	if instance.Active {
		return s.phaseOf(&instance), nil
	}
	return s.start(instanceID)
}

func (s *SessionService) start(instanceID uint) (Phase, error) {
	var instance models.AssessmentInstance
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&instance, instanceID).Error; err != nil {
			return notFoundOr(err, "assessment instance not found")
		}
		if instance.Finished {
			return apperrors.InvalidState("assessment instance is finished")
		}
		if instance.Active {
			return apperrors.InvalidState("assessment instance is already active")
		}

		var active int64
		if err := tx.Model(&models.AssessmentInstance{}).Where("active = ?", true).Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return apperrors.Conflict("another assessment instance is active")
		}

		users, err := instanceUsers(tx, instanceID)
		if err != nil {
			return err
		}
		first, ok := NextTurn(turnSlots(users), BeforeFirstTurn)
		if !ok {
			return apperrors.InvalidState("assessment instance has no eligible participants")
		}

		now := s.now()
		instance.Active = true
		instance.CurrentUserID = &first.UserID
		instance.StartedAt = &now
		err = tx.Model(&instance).Updates(map[string]any{
			"active":          true,
			"current_user_id": first.UserID,
			"started_at":      now,
		}).Error
		if isDuplicate(err) {
			return apperrors.Wrap(apperrors.CodeConflict, "another assessment instance is active", err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	phase := Lobby{Current: *instance.CurrentUserID}
	s.live[instanceID] = phase
	metrics.SessionTransitions.WithLabelValues("start").Inc()
	log.Printf("session: instance %d started, user %d on stage", instanceID, phase.Current)

	s.broadcast(&instance, phase, ws.Everyone, ws.EventRefresh)
	return phase, nil
}

// BeginGrading moves the active instance from LOBBY to PLAYING.
func (s *SessionService) BeginGrading(instanceID uint) (Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	instance, err := s.activeInstance(s.db, instanceID)
	if err != nil {
		return nil, err
	}
	lobby, ok := s.phaseOf(instance).(Lobby)
	if !ok {
		return nil, apperrors.InvalidState("grading has already started")
	}

	phase := Playing{Current: lobby.Current}
	s.live[instance.ID] = phase
	metrics.SessionTransitions.WithLabelValues("grading").Inc()
	log.Printf("session: instance %d grading user %d", instance.ID, phase.Current)

	s.broadcast(instance, phase, ws.Everyone, ws.EventRefresh)
	return phase, nil
}

// Advance puts the next rank on stage, or finishes the instance when none is left.
func (s *SessionService) Advance() (Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		instance *models.AssessmentInstance
		next     TurnSlot
		found    bool
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		instance, err = s.activeInstance(tx, AnyInstance)
		if err != nil {
			return err
		}
		users, err := instanceUsers(tx, instance.ID)
		if err != nil {
			return err
		}

		currentRank := BeforeFirstTurn
		if instance.CurrentUserID != nil {
			for _, u := range users {
				if u.ID == *instance.CurrentUserID {
					currentRank = u.TurnOrder
				}
			}
		}

		next, found = NextTurn(turnSlots(users), currentRank)
		if found {
			instance.CurrentUserID = &next.UserID
			return tx.Model(instance).Update("current_user_id", next.UserID).Error
		}

		now := s.now()
		instance.Active = false
		instance.Finished = true
		instance.CurrentUserID = nil
		instance.FinishedAt = &now
		return tx.Model(instance).Updates(map[string]any{
			"active":          false,
			"finished":        true,
			"current_user_id": nil,
			"finished_at":     now,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	if !found {
		delete(s.live, instance.ID)
		metrics.SessionTransitions.WithLabelValues("finish").Inc()
		log.Printf("session: instance %d finished", instance.ID)
		s.hub.CloseInstance(instance.ID, ws.Message{
			Mode:       ws.ModeEnd,
			Event:      ws.EventFinish,
			InstanceID: instance.ID,
			Title:      instance.Title,
		})
		return Ended{Completed: true}, nil
	}

	phase := withCurrent(s.phaseOf(instance), next.UserID)
	s.live[instance.ID] = phase
	metrics.SessionTransitions.WithLabelValues("advance").Inc()
	log.Printf("session: instance %d advanced to user %d (rank %d)", instance.ID, next.UserID, next.Rank)

	s.broadcast(instance, phase, ws.Everyone, ws.EventRefresh)
	return phase, nil
}

// SubmitAnswers stores a grader's answers about the participant on stage. A repeated
// (question, grader, graded) tuple overwrites the earlier text. The moderator refresh
// is delivered before this returns.
func (s *SessionService) SubmitAnswers(userID uint, answers []AnswerInput) error {
	if len(answers) == 0 {
		return apperrors.Validation("no answers given")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var instance *models.AssessmentInstance
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		instance, err = s.activeInstance(tx, AnyInstance)
		if err != nil {
			return err
		}

		var grader models.User
		if err := tx.First(&grader, userID).Error; err != nil {
			return notFoundOr(err, "participant not found")
		}
		if grader.InstanceID != instance.ID {
			return apperrors.Unauthorized("not a participant of the active assessment instance")
		}
		if grader.Excluded() && !s.allowObserverAnswers {
			return apperrors.Unauthorized("observers may not submit answers")
		}
		if _, ok := s.phaseOf(instance).(Playing); !ok {
			return apperrors.InvalidState("grading has not started")
		}
		if instance.CurrentUserID == nil {
			return apperrors.InvalidState("nobody is on stage")
		}

		actualID := *instance.CurrentUserID
		if grader.ID == actualID {
			return apperrors.Validation("participants cannot grade themselves")
		}
		var actual models.User
		if err := tx.First(&actual, actualID).Error; err != nil {
			return notFoundOr(err, "participant on stage not found")
		}
		if !Visible(&grader, &actual, instance).Any() {
			return apperrors.Unauthorized("not allowed to grade this participant")
		}

		var questionIDs []uint
		if err := tx.Model(&models.Question{}).Where("assessment_id = ?", instance.AssessmentID).Pluck("id", &questionIDs).Error; err != nil {
			return err
		}
		known := make(map[uint]bool, len(questionIDs))
		for _, id := range questionIDs {
			known[id] = true
		}

		now := s.now()
		rows := make([]models.Answer, 0, len(answers))
		seen := make(map[uint]int, len(answers))
		for _, a := range answers {
			if a.GradedUserID != 0 && a.GradedUserID != actualID {
				return apperrors.Validation("answers must be about the participant on stage")
			}
			if !known[a.QuestionID] {
				return apperrors.NotFound(fmt.Sprintf("question %d not found", a.QuestionID))
			}
			row := models.Answer{
				InstanceID:    instance.ID,
				QuestionID:    a.QuestionID,
				GradingUserID: grader.ID,
				GradedUserID:  actualID,
				AnswerText:    a.AnswerText,
				SubmittedAt:   now,
			}
			// Last answer wins inside one request too.
			if i, dup := seen[a.QuestionID]; dup {
				rows[i] = row
				continue
			}
			seen[a.QuestionID] = len(rows)
			rows = append(rows, row)
		}

		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "instance_id"}, {Name: "question_id"}, {Name: "grading_user_id"}, {Name: "graded_user_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"answer_text", "submitted_at"}),
		}).Create(&rows).Error
	})
	if err != nil {
		return err
	}

	metrics.AnswersSubmitted.Add(float64(len(answers)))
	s.broadcast(instance, s.phaseOf(instance), ws.Moderators, ws.EventRefresh)
	return nil
}

// Close deactivates the active instance without finishing it and drops its connections.
func (s *SessionService) Close(instanceID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var instance *models.AssessmentInstance
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		instance, err = s.activeInstance(tx, instanceID)
		if err != nil {
			return err
		}
		instance.Active = false
		instance.CurrentUserID = nil
		return tx.Model(instance).Updates(map[string]any{
			"active":          false,
			"current_user_id": nil,
		}).Error
	})
	if err != nil {
		return err
	}

	delete(s.live, instance.ID)
	metrics.SessionTransitions.WithLabelValues("close").Inc()
	log.Printf("session: instance %d closed", instance.ID)

	s.hub.CloseInstance(instance.ID, ws.Message{
		Mode:       ws.ModeEnd,
		Event:      ws.EventClose,
		InstanceID: instance.ID,
		Title:      instance.Title,
	})
	return nil
}

// ParticipantConnected registers a participant channel, tells the moderators and
// sends the participant its current view.
func (s *SessionService) ParticipantConnected(c *ws.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var instance models.AssessmentInstance
	if err := s.db.First(&instance, c.InstanceID).Error; err != nil {
		return notFoundOr(err, "assessment instance not found")
	}
	if instance.Finished {
		return apperrors.InvalidState("assessment instance is finished")
	}

	s.hub.Register(c)
	s.hub.Broadcast(instance.ID, ws.Moderators, ws.Message{
		Mode:       s.modeOf(&instance),
		Event:      ws.EventConnect,
		InstanceID: instance.ID,
		UserID:     c.UserID,
		Name:       c.Name,
	})

	if !instance.Active {
		return s.hub.SendTo(c, ws.Message{Mode: ws.ModeLobby, Event: ws.EventRefresh, InstanceID: instance.ID, Title: instance.Title})
	}
	phase := s.phaseOf(&instance)
	users, err := instanceUsers(s.db, instance.ID)
	if err != nil {
		return err
	}
	return s.hub.SendTo(c, envelope(&instance, phase, indexUsers(users), c, ws.EventRefresh))
}

// ParticipantDisconnected drops the channel. The participant keeps its turn.
func (s *SessionService) ParticipantDisconnected(c *ws.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hub.Unregister(c) {
		return
	}
	s.hub.Broadcast(c.InstanceID, ws.Moderators, ws.Message{
		Mode:       s.currentMode(c.InstanceID),
		Event:      ws.EventDisconnect,
		InstanceID: c.InstanceID,
		UserID:     c.UserID,
		Name:       c.Name,
	})
}

// ModeratorConnected registers a moderator channel and sends it the current state.
func (s *SessionService) ModeratorConnected(c *ws.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var instance models.AssessmentInstance
	if err := s.db.First(&instance, c.InstanceID).Error; err != nil {
		return notFoundOr(err, "assessment instance not found")
	}
	s.hub.Register(c)
	if !instance.Active {
		return s.hub.SendTo(c, ws.Message{Mode: s.modeOf(&instance), Event: ws.EventRefresh, InstanceID: instance.ID, Title: instance.Title})
	}
	users, err := instanceUsers(s.db, instance.ID)
	if err != nil {
		return err
	}
	return s.hub.SendTo(c, envelope(&instance, s.phaseOf(&instance), indexUsers(users), c, ws.EventRefresh))
}

// CurrentMode reports the realtime mode of an instance, for error envelopes.
func (s *SessionService) CurrentMode(instanceID uint) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentMode(instanceID)
}

func (s *SessionService) currentMode(instanceID uint) string {
	var instance models.AssessmentInstance
	if err := s.db.First(&instance, instanceID).Error; err != nil {
		return ws.ModeEnd
	}
	return s.modeOf(&instance)
}

func (s *SessionService) modeOf(instance *models.AssessmentInstance) string {
	if !instance.Active {
		if instance.Finished {
			return ws.ModeEnd
		}
		return ws.ModeLobby
	}
	return s.phaseOf(instance).Mode()
}

// phaseOf reads the in-memory sub-phase. After a restart an active instance resumes in LOBBY.
func (s *SessionService) phaseOf(instance *models.AssessmentInstance) Phase {
	if !instance.Active {
		return Ended{Completed: instance.Finished}
	}
	var current uint
	if instance.CurrentUserID != nil {
		current = *instance.CurrentUserID
	}
	phase, ok := s.live[instance.ID]
	if !ok || phase.Actual() != current {
		phase = withCurrent(phase, current)
		s.live[instance.ID] = phase
	}
	return phase
}

// AnyInstance lets an operation act on whichever instance is active.
const AnyInstance uint = 0

// activeInstance loads the active instance; a non-zero want must name it.
func (s *SessionService) activeInstance(tx *gorm.DB, want uint) (*models.AssessmentInstance, error) {
	var instance models.AssessmentInstance
	err := tx.Where("active = ?", true).First(&instance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.InvalidState("no active assessment instance")
	}
	if err != nil {
		return nil, fmt.Errorf("load active instance: %w", err)
	}
	if want != AnyInstance && instance.ID != want {
		return nil, apperrors.InvalidState("assessment instance is not active")
	}
	return &instance, nil
}

// Participant resolves the caller of a participant channel.
func (s *SessionService) Participant(userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return nil, notFoundOr(err, "participant not found")
	}
	return &user, nil
}

// broadcast renders one envelope per connection so participants only see what
// the visibility rules allow.
func (s *SessionService) broadcast(instance *models.AssessmentInstance, phase Phase, audience ws.Audience, event string) {
	users, err := instanceUsers(s.db, instance.ID)
	if err != nil {
		log.Printf("session: broadcast for instance %d skipped: %v", instance.ID, err)
		return
	}
	byID := indexUsers(users)
	s.hub.BroadcastEach(instance.ID, audience, func(c *ws.Client) (ws.Message, bool) {
		return envelope(instance, phase, byID, c, event), true
	})
}

func envelope(instance *models.AssessmentInstance, phase Phase, users map[uint]*models.User, c *ws.Client, event string) ws.Message {
	msg := ws.Message{
		Mode:       phase.Mode(),
		Event:      event,
		InstanceID: instance.ID,
		Title:      instance.Title,
	}
	actual := users[phase.Actual()]
	if actual == nil {
		return msg
	}
	if c.Role == ws.RoleModerator {
		msg.ActualUser = publicUser(actual)
		return msg
	}
	if c.UserID == actual.ID {
		msg.OnStage = true
		return msg
	}
	if Visible(users[c.UserID], actual, instance).ActualUserIdentity {
		msg.ActualUser = publicUser(actual)
	}
	return msg
}

func instanceUsers(tx *gorm.DB, instanceID uint) ([]models.User, error) {
	var users []models.User
	if err := tx.Where("instance_id = ?", instanceID).Order("turn_order ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	return users, nil
}

func indexUsers(users []models.User) map[uint]*models.User {
	byID := make(map[uint]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	return byID
}

func turnSlots(users []models.User) []TurnSlot {
	slots := make([]TurnSlot, 0, len(users))
	for _, u := range users {
		slots = append(slots, TurnSlot{UserID: u.ID, Rank: u.TurnOrder})
	}
	return slots
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(msg)
	}
	return err
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key")
}
