package handlers

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"assessment-backend/internal/database"
	"assessment-backend/internal/services"
	"assessment-backend/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testServer struct {
	*httptest.Server
	auth     *services.AuthService
	modToken string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(database.SQLiteDialector("file::memory:?_pragma=foreign_keys(1)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	hub := ws.NewHub(time.Second)
	auth := services.NewAuthService(db, "handler-secret", time.Hour, services.NewMemoryRevoker())
	sessions := services.NewSessionService(db, hub, false)

	r := gin.New()
	Routes{
		Auth:        NewAuthHandler(auth),
		Assessments: NewAssessmentHandler(services.NewAssessmentService(db)),
		Instances:   NewInstanceHandler(services.NewInstanceService(db)),
		Session:     NewSessionHandler(sessions),
		WS:          NewWSHandler(hub, sessions),
	}.Register(r, auth)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	require.NoError(t, auth.EnsureModerator("admin", "password"))
	token, err := auth.Login("admin", "password")
	require.NoError(t, err)
	return &testServer{Server: srv, auth: auth, modToken: token}
}

func (s *testServer) call(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (s *testServer) dial(t *testing.T, path, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + path + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type wsMessage struct {
	Mode       string               `json:"mode"`
	Event      string               `json:"event"`
	ActualUser *services.PublicUser `json:"actual_user"`
	OnStage    bool                 `json:"on_stage"`
	UserID     uint                 `json:"user_id"`
	Code       string               `json:"code"`
	Error      string               `json:"error"`
}

func read(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// readUntil skips messages until one with the given event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) wsMessage {
	t.Helper()
	for {
		if msg := read(t, conn); msg.Event == event {
			return msg
		}
	}
}

// seed creates an assessment, an instance and a three person roster through the API.
func (s *testServer) seed(t *testing.T) (uint, map[string]User, uint) {
	t.Helper()
	resp := s.call(t, http.MethodPost, "/api/v1/assessments", s.modToken, services.AssessmentInput{
		Title:     "Peer review",
		Questions: []services.QuestionInput{{Title: "Clarity", QuestionType: "text"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assessment := decode[Assessment](t, resp)

	resp = s.call(t, http.MethodPost, "/api/v1/assessments/"+strconv.Itoa(int(assessment.ID))+"/instances", s.modToken,
		CreateInstanceRequest{Title: "Cohort A"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	instance := decode[AssessmentInstance](t, resp)

	resp = s.call(t, http.MethodPost, "/api/v1/assessment-instances/"+strconv.Itoa(int(instance.ID))+"/participants", s.modToken,
		AddParticipantsRequest{Participants: []services.ParticipantInput{
			{Name: "ana", Email: "ana@example.com", TurnOrder: 1, Group: "red"},
			{Name: "bo", Email: "bo@example.com", TurnOrder: 2, Group: "red"},
			{Name: "cy", Email: "cy@example.com", TurnOrder: 3, Group: "blue"},
		}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	users := map[string]User{}
	for _, u := range decode[[]User](t, resp) {
		users[u.Name] = u
	}
	return instance.ID, users, assessment.Questions[0].ID
}

func (s *testServer) participantToken(t *testing.T, u User) string {
	t.Helper()
	resp := s.call(t, http.MethodPost, "/api/v1/auth/participant-login", "", ParticipantLoginRequest{Pin: u.AccessCode})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[ParticipantAuthResponse](t, resp).Token
}

func TestSessionOverRealtimeChannels(t *testing.T) {
	s := newTestServer(t)
	instanceID, users, questionID := s.seed(t)
	boToken := s.participantToken(t, users["bo"])
	cyToken := s.participantToken(t, users["cy"])

	mod := s.dial(t, "/ws/assessment-instances/"+strconv.Itoa(int(instanceID)), s.modToken)
	state := read(t, mod)
	assert.Equal(t, ws.ModeLobby, state.Mode)
	require.NotNil(t, state.ActualUser)
	assert.Equal(t, "ana", state.ActualUser.Name)

	bo := s.dial(t, "/ws/play", boToken)
	connect := read(t, mod)
	assert.Equal(t, ws.EventConnect, connect.Event)
	assert.Equal(t, users["bo"].ID, connect.UserID)
	boState := read(t, bo)
	require.NotNil(t, boState.ActualUser)
	assert.Equal(t, "ana", boState.ActualUser.Name)

	cy := s.dial(t, "/ws/play", cyToken)
	read(t, mod)
	cyState := read(t, cy)
	assert.Equal(t, ws.ModeLobby, cyState.Mode)
	assert.Nil(t, cyState.ActualUser, "other group without vote everyone")

	answers := SubmitAnswersRequest{Answers: []services.AnswerInput{{QuestionID: questionID, AnswerText: "clear"}}}
	resp := s.call(t, http.MethodPost, "/api/v1/assessment-instances/active/answers", boToken, answers)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "lobby rejects answers")

	require.NoError(t, mod.WriteMessage(websocket.TextMessage, []byte(ws.CommandStart)))
	assert.Equal(t, ws.ModePlaying, read(t, mod).Mode)
	assert.Equal(t, ws.ModePlaying, read(t, bo).Mode)

	resp = s.call(t, http.MethodPost, "/api/v1/assessment-instances/active/answers", boToken, answers)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	refresh := read(t, mod)
	assert.Equal(t, ws.EventRefresh, refresh.Event)

	resp = s.call(t, http.MethodPost, "/api/v1/assessment-instances/active/answers", cyToken, answers)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.call(t, http.MethodGet, "/api/v1/assessment-instances/active", s.modToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[services.ModeratorView](t, resp)
	assert.Len(t, view.Answers, 1)
	assert.ElementsMatch(t, []uint{users["bo"].ID, users["cy"].ID}, view.ConnectedUsers)

	resp = s.call(t, http.MethodPost, "/api/v1/assessment-instances/active/next", s.modToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	next := decode[PhaseResponse](t, resp)
	assert.Equal(t, users["bo"].ID, next.ActualUserID)
	assert.Equal(t, ws.ModePlaying, next.Mode)
	assert.True(t, read(t, bo).OnStage)

	require.NoError(t, mod.WriteMessage(websocket.TextMessage, []byte(ws.CommandClose)))
	closed := readUntil(t, mod, ws.EventClose)
	assert.Equal(t, ws.ModeEnd, closed.Mode)
	assert.Equal(t, ws.ModeEnd, readUntil(t, cy, ws.EventClose).Mode)

	resp = s.call(t, http.MethodPost, "/api/v1/assessment-instances/active/close", s.modToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestModeratorCommandErrors(t *testing.T) {
	s := newTestServer(t)
	instanceID, _, _ := s.seed(t)

	mod := s.dial(t, "/ws/assessment-instances/"+strconv.Itoa(int(instanceID)), s.modToken)
	read(t, mod)

	require.NoError(t, mod.WriteMessage(websocket.TextMessage, []byte("DANCE")))
	msg := read(t, mod)
	assert.Equal(t, ws.EventError, msg.Event)
	assert.Equal(t, "VALIDATION_ERROR", msg.Code)
	assert.Equal(t, ws.ModeLobby, msg.Mode)

	require.NoError(t, mod.WriteMessage(websocket.TextMessage, []byte(ws.CommandStart)))
	read(t, mod)
	require.NoError(t, mod.WriteMessage(websocket.TextMessage, []byte(ws.CommandStart)))
	msg = read(t, mod)
	assert.Equal(t, ws.EventError, msg.Event)
	assert.Equal(t, "INVALID_STATE", msg.Code)
}

func TestRealtimeAuthFailures(t *testing.T) {
	s := newTestServer(t)
	instanceID, users, _ := s.seed(t)
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws/assessment-instances/" + strconv.Itoa(int(instanceID))

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn := s.dial(t, "/ws/assessment-instances/"+strconv.Itoa(int(instanceID)), s.participantToken(t, users["ana"]))
	msg := read(t, conn)
	assert.Equal(t, ws.EventError, msg.Event)
	assert.Equal(t, "UNAUTHORIZED", msg.Code)
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
}

func TestSecondInstanceConflicts(t *testing.T) {
	s := newTestServer(t)
	first, _, _ := s.seed(t)

	resp := s.call(t, http.MethodPost, "/api/v1/assessment-instances/"+strconv.Itoa(int(first))+"/start", s.modToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.call(t, http.MethodGet, "/api/v1/assessments", s.modToken, nil)
	assessments := decode[[]Assessment](t, resp)
	require.Len(t, assessments, 1)
	resp = s.call(t, http.MethodPost, "/api/v1/assessments/"+strconv.Itoa(int(assessments[0].ID))+"/instances", s.modToken,
		CreateInstanceRequest{Title: "Cohort B"})
	second := decode[AssessmentInstance](t, resp)
	s.call(t, http.MethodPost, "/api/v1/assessment-instances/"+strconv.Itoa(int(second.ID))+"/participants", s.modToken,
		AddParticipantsRequest{Participants: []services.ParticipantInput{{Name: "zed", Email: "zed@example.com", TurnOrder: 1}}})

	mod := s.dial(t, "/ws/assessment-instances/"+strconv.Itoa(int(second.ID)), s.modToken)
	var sawConflict bool
	for range 2 {
		if msg := read(t, mod); msg.Event == ws.EventError {
			sawConflict = msg.Code == "CONFLICT"
		}
	}
	assert.True(t, sawConflict)

	resp = s.call(t, http.MethodDelete, "/api/v1/assessment-instances/"+strconv.Itoa(int(first)), s.modToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRoleGuardsAndExport(t *testing.T) {
	s := newTestServer(t)
	instanceID, users, _ := s.seed(t)
	anaToken := s.participantToken(t, users["ana"])

	resp := s.call(t, http.MethodGet, "/api/v1/assessments", anaToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, "UNAUTHORIZED", string(body.Code))

	resp = s.call(t, http.MethodGet, "/api/v1/assessments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.call(t, http.MethodGet, "/api/v1/assessment-instances/"+strconv.Itoa(int(instanceID))+"/answers/export?format=csv", s.modToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	rows, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{exportHeader}, rows)

	resp = s.call(t, http.MethodGet, "/api/v1/assessment-instances/"+strconv.Itoa(int(instanceID))+"/answers/export?format=xml", s.modToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)

	resp := s.call(t, http.MethodGet, "/api/v1/auth/session", s.modToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, services.RoleModerator, decode[SessionResponse](t, resp).Role)

	resp = s.call(t, http.MethodPost, "/api/v1/auth/logout", s.modToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.call(t, http.MethodGet, "/api/v1/auth/session", s.modToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
