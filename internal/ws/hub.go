package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"assessment-backend/internal/metrics"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

type Role string

const (
	RoleModerator   Role = "moderator"
	RoleParticipant Role = "participant"
)

// Audience selects which registered connections a broadcast reaches.
type Audience int

const (
	Everyone Audience = iota
	Moderators
	Participants
)

func (a Audience) matches(r Role) bool {
	switch a {
	case Moderators:
		return r == RoleModerator
	case Participants:
		return r == RoleParticipant
	default:
		return true
	}
}

// Socket is the part of *websocket.Conn the hub writes through.
type Socket interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client is one live realtime connection.
type Client struct {
	InstanceID uint
	Role       Role
	UserID     uint
	Name       string

	socket Socket
	mu     sync.Mutex
}

func NewClient(socket Socket, instanceID uint, role Role, userID uint) *Client {
	return &Client{socket: socket, InstanceID: instanceID, Role: role, UserID: userID}
}

// write serializes frames on one connection; gorilla allows a single concurrent writer.
func (c *Client) write(data []byte, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.socket.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.socket.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) closeSocket() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.socket.Close()
}

const maxParallelWrites = 32

// Hub tracks live connections per assessment instance.
type Hub struct {
	mu           sync.RWMutex
	instances    map[uint]map[*Client]struct{}
	writeTimeout time.Duration
}

func NewHub(writeTimeout time.Duration) *Hub {
	return &Hub{
		instances:    make(map[uint]map[*Client]struct{}),
		writeTimeout: writeTimeout,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.instances[c.InstanceID] == nil {
		h.instances[c.InstanceID] = make(map[*Client]struct{})
	}
	h.instances[c.InstanceID][c] = struct{}{}
	metrics.WSConnections.WithLabelValues(string(c.Role)).Inc()
	log.Printf("ws: %s connected to instance %d (user %d, total: %d)", c.Role, c.InstanceID, c.UserID, len(h.instances[c.InstanceID]))
}

// Unregister drops and closes c. It reports whether c was still registered.
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	conns, ok := h.instances[c.InstanceID]
	if ok {
		_, ok = conns[c]
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.instances, c.InstanceID)
		}
	}
	h.mu.Unlock()

	c.closeSocket()
	if ok {
		metrics.WSConnections.WithLabelValues(string(c.Role)).Dec()
		log.Printf("ws: %s disconnected from instance %d (user %d)", c.Role, c.InstanceID, c.UserID)
	}
	return ok
}

// SendTo delivers msg to c, unregistering c if the write fails.
func (h *Hub) SendTo(c *Client, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.deliver(c, data)
}

func (h *Hub) deliver(c *Client, data []byte) error {
	if err := c.write(data, h.writeTimeout); err != nil {
		log.Printf("ws: write to %s on instance %d failed: %v", c.Role, c.InstanceID, err)
		metrics.WSDeliveryFailures.WithLabelValues(string(c.Role)).Inc()
		h.Unregister(c)
		return err
	}
	return nil
}

// Broadcast sends the same message to every matching connection of an instance.
func (h *Hub) Broadcast(instanceID uint, audience Audience, msg Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("ws: marshal error: %v", err)
		return 0
	}
	return h.fanOut(instanceID, audience, func(*Client) ([]byte, bool) { return data, true })
}

// BroadcastEach renders a message per connection; render returning false skips that connection.
func (h *Hub) BroadcastEach(instanceID uint, audience Audience, render func(c *Client) (Message, bool)) int {
	return h.fanOut(instanceID, audience, func(c *Client) ([]byte, bool) {
		msg, ok := render(c)
		if !ok {
			return nil, false
		}
		data, err := json.Marshal(msg)
		if err != nil {
			log.Printf("ws: marshal error: %v", err)
			return nil, false
		}
		return data, true
	})
}

// fanOut writes concurrently and returns once every write has finished or failed.
func (h *Hub) fanOut(instanceID uint, audience Audience, payload func(*Client) ([]byte, bool)) int {
	targets := h.Clients(instanceID, audience)

	var (
		g         errgroup.Group
		mu        sync.Mutex
		delivered int
	)
	g.SetLimit(maxParallelWrites)
	for _, c := range targets {
		data, ok := payload(c)
		if !ok {
			continue
		}
		g.Go(func() error {
			if err := h.deliver(c, data); err == nil {
				mu.Lock()
				delivered++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return delivered
}

// Clients returns a snapshot, so callers may write while others register or leave.
func (h *Hub) Clients(instanceID uint, audience Audience) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*Client
	for c := range h.instances[instanceID] {
		if audience.matches(c.Role) {
			out = append(out, c)
		}
	}
	return out
}

// ConnectedUsers lists participant ids holding at least one connection.
func (h *Hub) ConnectedUsers(instanceID uint) []uint {
	seen := make(map[uint]bool)
	var ids []uint
	for _, c := range h.Clients(instanceID, Participants) {
		if !seen[c.UserID] {
			seen[c.UserID] = true
			ids = append(ids, c.UserID)
		}
	}
	return ids
}

// CloseInstance sends a final message to every connection of an instance and closes them.
func (h *Hub) CloseInstance(instanceID uint, final Message) {
	h.Broadcast(instanceID, Everyone, final)
	for _, c := range h.Clients(instanceID, Everyone) {
		h.Unregister(c)
	}
}
