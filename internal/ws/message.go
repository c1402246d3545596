package ws

const (
	ModeLobby   = "LOBBY"
	ModePlaying = "PLAYING"
	ModeEnd     = "END"
)

const (
	EventRefresh    = "REFRESH"
	EventFinish     = "FINISH"
	EventClose      = "CLOSE"
	EventConnect    = "CONNECT"
	EventDisconnect = "DISCONNECT"
	EventError      = "ERROR"
)

// Client commands arrive as literal text frames.
const (
	CommandStart = "START"
	CommandClose = "CLOSE"
)

// Message is the server-to-client realtime envelope.
type Message struct {
	Mode       string `json:"mode"`
	Event      string `json:"event"`
	InstanceID uint   `json:"assessment_instance_id,omitempty"`
	Title      string `json:"title,omitempty"`
	ActualUser any    `json:"actual_user,omitempty"`
	OnStage    bool   `json:"on_stage,omitempty"`
	UserID     uint   `json:"user_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Code       string `json:"code,omitempty"`
	Error      string `json:"error,omitempty"`
}
