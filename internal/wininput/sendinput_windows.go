//go:build windows

// Package wininput drives the host keyboard with scancode input.
package wininput

import (
	"fmt"
	"unsafe"

	"github.com/lxn/win"
)

// New returns a keyboard that injects scancodes with SendInput.
func New() (*ScancodeKeyboard, error) {
	return NewWithSender(sendScancodes), nil
}

// sendScancodes dispatches a batch of scancode events in one SendInput call.
func sendScancodes(events []KeyEvent) error {
	inputs := make([]win.KEYBD_INPUT, len(events))
	for i, ev := range events {
		flags := uint32(win.KEYEVENTF_SCANCODE)
		if ev.Up {
			flags |= win.KEYEVENTF_KEYUP
		}
		inputs[i] = win.KEYBD_INPUT{
			Type: win.INPUT_KEYBOARD,
			Ki:   win.KEYBDINPUT{WScan: ev.Scancode, DwFlags: flags},
		}
	}
	sent := win.SendInput(uint32(len(inputs)), unsafe.Pointer(&inputs[0]), int32(unsafe.Sizeof(inputs[0])))
	if int(sent) != len(inputs) {
		return fmt.Errorf("wininput: sent %d of %d events: error %d", sent, len(inputs), win.GetLastError())
	}
	return nil
}
