// Package hexkey types arbitrary text through a keyboard that only has hex digit keys and a commit chord.
//
// Every UTF-16 code unit is sent as its lowercase hexadecimal digits followed by
// Shift+Alt+X, which the target keyboard driver turns into the accumulated code unit.
package hexkey

import (
	"strconv"
	"unicode/utf16"
)

// Linux input key codes exposed by the virtual keyboard.
const (
	KeyLeftShift uint16 = 42
	KeyLeftAlt   uint16 = 56
	KeyX         uint16 = 45
	Key0         uint16 = 11
	Key1         uint16 = 2
	Key2         uint16 = 3
	Key3         uint16 = 4
	Key4         uint16 = 5
	Key5         uint16 = 6
	Key6         uint16 = 7
	Key7         uint16 = 8
	Key8         uint16 = 9
	Key9         uint16 = 10
	KeyA         uint16 = 30
	KeyB         uint16 = 48
	KeyC         uint16 = 46
	KeyD         uint16 = 32
	KeyE         uint16 = 18
	KeyF         uint16 = 33

	// KeyCommit completes a code unit together with Shift and Alt.
	KeyCommit = KeyX
)

// HexKeys maps a hex digit value to its key code.
var HexKeys = [16]uint16{Key0, Key1, Key2, Key3, Key4, Key5, Key6, Key7, Key8, Key9, KeyA, KeyB, KeyC, KeyD, KeyE, KeyF}

// Keys lists every key the virtual keyboard must declare.
func Keys() []uint16 {
	keys := []uint16{KeyLeftShift, KeyLeftAlt, KeyX}
	return append(keys, HexKeys[:]...)
}

// Keyboard is a virtual keyboard device with explicit report flushing.
type Keyboard interface {
	KeyDown(code uint16) error
	KeyUp(code uint16) error
	Flush() error
}

// Op is a single key transition; every op is followed by a flush.
type Op struct {
	Code uint16
	Down bool
}

var commitChord = []Op{
	{Code: KeyLeftShift, Down: true},
	{Code: KeyLeftAlt, Down: true},
	{Code: KeyCommit, Down: true},
	{Code: KeyLeftShift, Down: false},
	{Code: KeyLeftAlt, Down: false},
	{Code: KeyCommit, Down: false},
}

// Encode returns the key transitions that type text.
func Encode(text string) []Op {
	var ops []Op
	for _, unit := range utf16.Encode([]rune(text)) {
		ops = appendUnit(ops, unit)
	}
	return ops
}

// appendUnit appends the digit chords and the commit chord of one code unit.
func appendUnit(ops []Op, unit uint16) []Op {
	for _, digit := range strconv.FormatUint(uint64(unit), 16) {
		key := HexKeys[hexValue(digit)]
		ops = append(ops, Op{Code: key, Down: true}, Op{Code: key, Down: false})
	}
	return append(ops, commitChord...)
}

// hexValue converts a lowercase hex digit to its value.
func hexValue(digit rune) int {
	if digit >= 'a' {
		return int(digit-'a') + 10
	}
	return int(digit - '0')
}

// Type sends text to the keyboard and returns the number of code units typed.
func Type(kb Keyboard, text string) (int, error) {
	units := utf16.Encode([]rune(text))
	for i, unit := range units {
		for _, op := range appendUnit(nil, unit) {
			if err := apply(kb, op); err != nil {
				return i, err
			}
		}
	}
	return len(units), nil
}

// apply emits one key transition followed by a report flush.
func apply(kb Keyboard, op Op) error {
	var err error
	if op.Down {
		err = kb.KeyDown(op.Code)
	} else {
		err = kb.KeyUp(op.Code)
	}
	if err != nil {
		return err
	}
	return kb.Flush()
}
