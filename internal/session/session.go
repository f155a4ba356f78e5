// Package session holds runtime state for the active control connection.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/frudas24/remotectl/internal/device"
	"github.com/google/uuid"
)

// Transport names.
const (
	TransportWebSocket = "ws"
	TransportTCP       = "tcp"
)

// ErrBusy is returned when a control connection is already active.
var ErrBusy = errors.New("session: control connection already active")

// Connection describes the active control connection.
type Connection struct {
	ID          string    `json:"id"`
	Transport   string    `json:"transport"`
	RemoteAddr  string    `json:"remoteAddr"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Snapshot represents a read-only view of the current session state.
type Snapshot struct {
	InputEnabled bool        `json:"inputEnabled"`
	Connected    bool        `json:"connected"`
	Connection   *Connection `json:"connection,omitempty"`
	Connections  int         `json:"connections"`
}

// Session holds runtime state for the active control connection.
type Session struct {
	mu           sync.RWMutex
	inputEnabled bool
	active       *Connection
	connections  int
	now          func() time.Time
}

// New returns an initialized session with input enabled.
func New() *Session {
	return &Session{
		inputEnabled: true,
		now:          time.Now,
	}
}

// Begin registers a new control connection, failing with ErrBusy when one is active.
func (s *Session) Begin(transport, remoteAddr string) (Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return Connection{}, ErrBusy
	}
	conn := Connection{
		ID:          uuid.NewString(),
		Transport:   transport,
		RemoteAddr:  remoteAddr,
		ConnectedAt: s.now(),
	}
	s.active = &conn
	s.connections++
	return conn, nil
}

// End clears the active connection if it matches id.
func (s *Session) End(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && s.active.ID == id {
		s.active = nil
	}
}

// Active returns the active connection, if any.
func (s *Session) Active() (Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return Connection{}, false
	}
	return *s.active, true
}

// SetInputEnabled toggles whether inputs are forwarded to the device.
func (s *Session) SetInputEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputEnabled = enabled
}

// InputEnabled reports whether inputs are forwarded to the device.
func (s *Session) InputEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inputEnabled
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		InputEnabled: s.inputEnabled,
		Connected:    s.active != nil,
		Connections:  s.connections,
	}
	if s.active != nil {
		conn := *s.active
		snap.Connection = &conn
	}
	return snap
}

// Gate wraps dev so input injection is refused while input is disabled.
func (s *Session) Gate(dev device.Device) device.Device {
	return &gatedDevice{Device: dev, session: s}
}

type gatedDevice struct {
	device.Device
	session *Session
}

// SupportsInputEvents reports false while the session kill switch is off.
func (g *gatedDevice) SupportsInputEvents() bool {
	return g.session.InputEnabled() && g.Device.SupportsInputEvents()
}
