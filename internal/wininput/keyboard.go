// Package wininput drives the host keyboard with scancode input.
package wininput

import (
	"errors"
	"fmt"
	"sync"

	"github.com/frudas24/remotectl/internal/hexkey"
)

// ErrUnsupported indicates host keyboard injection is not available on this platform.
var ErrUnsupported = errors.New("wininput is only supported on Windows")

// KeyEvent is one scancode transition.
type KeyEvent struct {
	Scancode uint16
	Up       bool
}

// SendFunc delivers a batch of key events to the host.
type SendFunc func(events []KeyEvent) error

// ScancodeKeyboard implements hexkey.Keyboard on top of scancode injection.
// Key transitions are queued and delivered together on Flush.
type ScancodeKeyboard struct {
	mu       sync.Mutex
	send     SendFunc
	declared map[uint16]bool
	pending  []KeyEvent
}

var _ hexkey.Keyboard = (*ScancodeKeyboard)(nil)

// NewWithSender returns a keyboard that declares the hex-chord keys and delivers through send.
func NewWithSender(send SendFunc) *ScancodeKeyboard {
	declared := make(map[uint16]bool)
	for _, code := range hexkey.Keys() {
		declared[code] = true
	}
	return &ScancodeKeyboard{send: send, declared: declared}
}

// KeyDown queues a key press.
func (k *ScancodeKeyboard) KeyDown(code uint16) error {
	return k.queue(code, false)
}

// KeyUp queues a key release.
func (k *ScancodeKeyboard) KeyUp(code uint16) error {
	return k.queue(code, true)
}

// Flush delivers queued transitions.
func (k *ScancodeKeyboard) Flush() error {
	k.mu.Lock()
	events := k.pending
	k.pending = nil
	k.mu.Unlock()
	if len(events) == 0 {
		return nil
	}
	return k.send(events)
}

// queue records a transition for a declared key.
// Linux key codes of the declared keys equal their PC set 1 scancodes.
func (k *ScancodeKeyboard) queue(code uint16, up bool) error {
	if !k.declared[code] {
		return fmt.Errorf("wininput: key %d not declared", code)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pending = append(k.pending, KeyEvent{Scancode: code, Up: up})
	return nil
}
