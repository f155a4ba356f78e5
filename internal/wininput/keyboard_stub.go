//go:build !windows

// Package wininput drives the host keyboard with scancode input.
package wininput

// New returns ErrUnsupported on non-Windows platforms.
func New() (*ScancodeKeyboard, error) {
	return nil, ErrUnsupported
}
