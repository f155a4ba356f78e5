package session

import (
	"testing"
	"time"

	"github.com/frudas24/remotectl/internal/device"
)

// TestBegin_SingleActive verifies only one connection may be active.
func TestBegin_SingleActive(t *testing.T) {
	s := New()
	first, err := s.Begin(TransportWebSocket, "10.0.0.1:5000")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if first.ID == "" {
		t.Fatalf("expected connection id")
	}
	if _, err := s.Begin(TransportTCP, "10.0.0.2:5000"); err != ErrBusy {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	s.End(first.ID)
	if _, ok := s.Active(); ok {
		t.Fatalf("expected no active connection")
	}
	if _, err := s.Begin(TransportTCP, "10.0.0.2:5000"); err != nil {
		t.Fatalf("begin after end: %v", err)
	}
}

// TestEnd_IgnoresStaleID verifies a stale id does not clear a newer connection.
func TestEnd_IgnoresStaleID(t *testing.T) {
	s := New()
	conn, _ := s.Begin(TransportTCP, "a")
	s.End("stale")
	if active, ok := s.Active(); !ok || active.ID != conn.ID {
		t.Fatalf("expected %s to stay active", conn.ID)
	}
}

// TestInputEnabled_Toggle verifies input enabled toggle.
func TestInputEnabled_Toggle(t *testing.T) {
	s := New()
	s.SetInputEnabled(false)
	if s.InputEnabled() {
		t.Fatalf("expected input disabled")
	}
	s.SetInputEnabled(true)
	if !s.InputEnabled() {
		t.Fatalf("expected input enabled")
	}
}

// TestSnapshot verifies snapshot content.
func TestSnapshot(t *testing.T) {
	s := New()
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	s.SetInputEnabled(false)
	conn, _ := s.Begin(TransportWebSocket, "peer")
	snap := s.Snapshot()
	if snap.InputEnabled || !snap.Connected || snap.Connections != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Connection == nil || snap.Connection.ID != conn.ID || !snap.Connection.ConnectedAt.Equal(fixed) {
		t.Fatalf("unexpected connection: %+v", snap.Connection)
	}
}

// TestGate_FollowsKillSwitch verifies the gated device reports input support from both sides.
func TestGate_FollowsKillSwitch(t *testing.T) {
	s := New()
	dev := device.NewEmulated(device.EmulatedOptions{})
	gated := s.Gate(dev)
	if !gated.SupportsInputEvents() {
		t.Fatalf("expected input support")
	}
	s.SetInputEnabled(false)
	if gated.SupportsInputEvents() {
		t.Fatalf("expected input blocked by kill switch")
	}
}
