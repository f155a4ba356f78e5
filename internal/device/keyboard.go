// Package device defines the target device capabilities consumed by the control engine.
package device

import (
	"fmt"
	"sync"
	"unicode/utf16"

	"github.com/frudas24/remotectl/internal/hexkey"
)

// EmulatedKeyboard decodes hex-chord key reports back into text.
type EmulatedKeyboard struct {
	mu      sync.Mutex
	pressed map[uint16]bool
	pending map[uint16]bool
	digits  []byte
	units   []uint16
	flushes int
}

// KeyDown records a key press; it becomes visible on the next flush.
func (k *EmulatedKeyboard) KeyDown(code uint16) error {
	return k.set(code, true)
}

// KeyUp records a key release; it becomes visible on the next flush.
func (k *EmulatedKeyboard) KeyUp(code uint16) error {
	return k.set(code, false)
}

// set stages a key state change.
func (k *EmulatedKeyboard) set(code uint16, down bool) error {
	if !isDeclared(code) {
		return fmt.Errorf("key %d not declared", code)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.pending == nil {
		k.pending = make(map[uint16]bool)
	}
	k.pending[code] = down
	return nil
}

// Flush applies the staged key changes and decodes completed chords.
func (k *EmulatedKeyboard) Flush() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.pressed == nil {
		k.pressed = make(map[uint16]bool)
	}
	k.flushes++
	for code, down := range k.pending {
		wasDown := k.pressed[code]
		k.pressed[code] = down
		if !down || wasDown {
			continue
		}
		k.onPress(code)
	}
	clear(k.pending)
	return nil
}

// onPress handles a fresh key press.
func (k *EmulatedKeyboard) onPress(code uint16) {
	if code == hexkey.KeyCommit && k.pressed[hexkey.KeyLeftShift] && k.pressed[hexkey.KeyLeftAlt] {
		var unit uint16
		for _, d := range k.digits {
			unit = unit<<4 | uint16(d)
		}
		if len(k.digits) > 0 {
			k.units = append(k.units, unit)
		}
		k.digits = k.digits[:0]
		return
	}
	for value, key := range hexkey.HexKeys {
		if key == code {
			k.digits = append(k.digits, byte(value))
			return
		}
	}
}

// Text returns the text typed so far.
func (k *EmulatedKeyboard) Text() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return string(utf16.Decode(k.units))
}

// Flushes returns the number of reports flushed.
func (k *EmulatedKeyboard) Flushes() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.flushes
}

// isDeclared reports whether code is one of the keys the keyboard exposes.
func isDeclared(code uint16) bool {
	for _, key := range hexkey.Keys() {
		if key == code {
			return true
		}
	}
	return false
}
