package connections

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// TimeoutConfig holds the various timeout settings for WebSocket connections
type TimeoutConfig struct {
	PongWait   time.Duration
	PingPeriod time.Duration
	WriteWait  time.Duration
}

// DefaultTimeouts provides sensible default timeout values
var DefaultTimeouts = TimeoutConfig{
	PongWait:   30 * time.Second,
	PingPeriod: 27 * time.Second, // (PongWait * 9) / 10
	WriteWait:  10 * time.Second,
}

// Event is the envelope for every message on the channel, both directions.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client is one authenticated WebSocket connection. The write mutex keeps
// concurrent event emitters from interleaving frames.
type Client struct {
	conn    *websocket.Conn
	subject string

	writeMu   sync.Mutex
	writeWait time.Duration
}

// Subject returns the token subject the connection authenticated as.
func (c *Client) Subject() string {
	return c.subject
}

// SendEvent marshals the payload and writes a typed event to the connection.
func (c *Client) SendEvent(eventType string, payload interface{}) error {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		raw = data
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.conn.WriteJSON(Event{Type: eventType, Payload: raw})
}

// Ping writes a control ping frame.
func (c *Client) Ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait))
}

// Manager handles WebSocket connection lifecycle
type Manager struct {
	connections sync.Map
	timeouts    TimeoutConfig
}

// NewManager creates a new connection manager with the specified timeouts
func NewManager(timeouts TimeoutConfig) *Manager {
	return &Manager{
		timeouts: timeouts,
	}
}

// AddConnection registers a new WebSocket connection for a token subject.
func (m *Manager) AddConnection(conn *websocket.Conn, subject string) *Client {
	client := &Client{
		conn:      conn,
		subject:   subject,
		writeWait: m.timeouts.WriteWait,
	}
	m.connections.Store(conn, client)
	return client
}

// RemoveConnection removes a WebSocket connection
func (m *Manager) RemoveConnection(conn *websocket.Conn) {
	m.connections.Delete(conn)
}

// GetClient returns the client registered for a connection, if any.
func (m *Manager) GetClient(conn *websocket.Conn) (*Client, bool) {
	value, exists := m.connections.Load(conn)
	if !exists {
		return nil, false
	}
	return value.(*Client), true
}

// GetConnectionCount returns the current number of active connections
func (m *Manager) GetConnectionCount() int {
	count := 0
	m.connections.Range(func(key, value interface{}) bool {
		count++
		return true
	})
	return count
}

// GetTimeouts returns the current timeout configuration
func (m *Manager) GetTimeouts() TimeoutConfig {
	return m.timeouts
}
