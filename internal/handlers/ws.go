package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"assessment-backend/internal/apperrors"
	"assessment-backend/internal/middleware"
	"assessment-backend/internal/services"
	"assessment-backend/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	hub            *ws.Hub
	sessionService *services.SessionService
}

func NewWSHandler(hub *ws.Hub, sessionService *services.SessionService) *WSHandler {
	return &WSHandler{hub: hub, sessionService: sessionService}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Moderator godoc
// @Summary      Moderator realtime channel
// @Description  Connecting starts the instance, or resumes it if it is already active. Text commands: START, CLOSE.
// @Tags         websocket
// @Param        id path int true "Instance ID"
// @Param        token query string true "Moderator token"
// @Router       /ws/assessment-instances/{id} [get]
func (h *WSHandler) Moderator(c *gin.Context) {
	instanceID, ok := idParam(c, "id")
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade error: %v", err)
		return
	}
	if !middleware.Identity(c).IsModerator() {
		reject(conn, apperrors.Unauthorized("moderator role required"))
		return
	}

	_, startErr := h.sessionService.StartOrResume(instanceID)
	if apperrors.HasCode(startErr, apperrors.CodeNotFound) {
		reject(conn, startErr)
		return
	}

	client := ws.NewClient(conn, instanceID, ws.RoleModerator, 0)
	if err := h.sessionService.ModeratorConnected(client); err != nil {
		h.hub.Unregister(client)
		return
	}
	defer h.hub.Unregister(client)
	if startErr != nil {
		h.sendError(client, startErr)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		switch strings.TrimSpace(string(data)) {
		case ws.CommandStart:
			_, err = h.sessionService.BeginGrading(instanceID)
		case ws.CommandClose:
			err = h.sessionService.Close(instanceID)
		default:
			err = apperrors.Validation("unknown command")
		}
		if err != nil {
			h.sendError(client, err)
		}
	}
}

// Play godoc
// @Summary      Participant realtime channel
// @Description  Moderators are told about connects and disconnects. Text command: CLOSE ends this channel only.
// @Tags         websocket
// @Param        token query string true "Participant token"
// @Router       /ws/play [get]
func (h *WSHandler) Play(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade error: %v", err)
		return
	}
	identity := middleware.Identity(c)
	if !identity.IsParticipant() {
		reject(conn, apperrors.Unauthorized("participant role required"))
		return
	}

	user, err := h.sessionService.Participant(identity.UserID)
	if err != nil {
		reject(conn, err)
		return
	}

	client := ws.NewClient(conn, user.InstanceID, ws.RoleParticipant, user.ID)
	client.Name = user.Name
	if err := h.sessionService.ParticipantConnected(client); err != nil {
		reject(conn, err)
		h.sessionService.ParticipantDisconnected(client)
		return
	}
	defer h.sessionService.ParticipantDisconnected(client)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if strings.TrimSpace(string(data)) == ws.CommandClose {
			return
		}
		h.sendError(client, apperrors.Validation("unknown command"))
	}
}

func (h *WSHandler) sendError(c *ws.Client, err error) {
	code := apperrors.CodeOf(err)
	h.hub.SendTo(c, ws.Message{
		Mode:       h.sessionService.CurrentMode(c.InstanceID),
		Event:      ws.EventError,
		InstanceID: c.InstanceID,
		Code:       string(code),
		Error:      apperrors.PublicMessage(err),
	})
}

// reject reports a connect-time failure and closes a connection that was never registered.
func reject(conn *websocket.Conn, err error) {
	code := apperrors.CodeOf(err)
	conn.WriteJSON(ws.Message{
		Mode:  ws.ModeEnd,
		Event: ws.EventError,
		Code:  string(code),
		Error: apperrors.PublicMessage(err),
	})
	closeCode := websocket.ClosePolicyViolation
	if code == apperrors.CodeInternal {
		closeCode = websocket.CloseInternalServerErr
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(closeCode, string(code)),
		time.Now().Add(time.Second))
	conn.Close()
}
