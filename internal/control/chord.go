// Package control decodes control messages and turns them into device input.
package control

import "github.com/frudas24/remotectl/internal/device"

// chordStep is one synthesized mouse event of a button transition.
type chordStep struct {
	Action       int
	ActionButton int
}

// mouseChord frames a mouse button transition as the events a mouse-aware consumer expects.
// The first pressed button also emits a primary down, and the last released button also emits a primary up.
// Other actions return a single raw step.
func mouseChord(action, actionButton, buttons int) []chordStep {
	switch action {
	case device.ActionDown:
		var steps []chordStep
		if actionButton == buttons {
			steps = append(steps, chordStep{Action: device.ActionDown})
		}
		return append(steps, chordStep{Action: device.ActionButtonPress, ActionButton: actionButton})
	case device.ActionUp:
		steps := []chordStep{{Action: device.ActionButtonRelease, ActionButton: actionButton}}
		if buttons == 0 {
			steps = append(steps, chordStep{Action: device.ActionUp})
		}
		return steps
	default:
		return []chordStep{{Action: action}}
	}
}
