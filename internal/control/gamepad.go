// Package control decodes control messages and turns them into device input.
package control

import (
	"github.com/frudas24/remotectl/internal/device"
	"github.com/sirupsen/logrus"
)

// gameController tracks one virtual controller and its last reported state.
type gameController struct {
	dev     device.GameController
	axes    map[int]int
	buttons map[int]int
}

// controllerRegistry owns the virtual game controllers of one dispatcher.
// A creation failure disables controllers until the registry is recreated.
type controllerRegistry struct {
	factory device.ControllerFactory
	enabled bool
	entries map[int]*gameController
	log     logrus.FieldLogger
}

// newControllerRegistry returns a registry; it is disabled when factory is nil.
func newControllerRegistry(factory device.ControllerFactory, log logrus.FieldLogger) *controllerRegistry {
	return &controllerRegistry{
		factory: factory,
		enabled: factory != nil,
		entries: make(map[int]*gameController),
		log:     log,
	}
}

// Enabled reports whether controller messages are processed.
func (r *controllerRegistry) Enabled() bool {
	return r.enabled
}

// Len returns the number of registered controllers.
func (r *controllerRegistry) Len() int {
	return len(r.entries)
}

// HandleDevice processes an added or removed event.
func (r *controllerRegistry) HandleDevice(id, event int) bool {
	if !r.enabled {
		return false
	}
	log := r.log.WithField("controller", id)
	switch event {
	case ControllerAdded:
		if old, ok := r.entries[id]; ok {
			_ = old.dev.Close()
			delete(r.entries, id)
		}
		dev, err := r.factory.NewGameController(id)
		if err != nil {
			log.WithError(err).Error("control: failed to add game controller, game controllers disabled")
			r.enabled = false
			return false
		}
		r.entries[id] = &gameController{dev: dev, axes: make(map[int]int), buttons: make(map[int]int)}
		return true
	case ControllerRemoved:
		gc, ok := r.entries[id]
		if !ok {
			log.Warn("control: unknown game controller removed")
			return false
		}
		if err := gc.dev.Close(); err != nil {
			log.WithError(err).Warn("control: close game controller")
		}
		delete(r.entries, id)
		return true
	default:
		log.WithField("event", event).Warn("control: unknown game controller event")
		return false
	}
}

// SetAxis applies an axis value to a registered controller.
func (r *controllerRegistry) SetAxis(id, axis, value int) bool {
	if !r.enabled {
		return false
	}
	gc, ok := r.entries[id]
	if !ok {
		r.log.WithField("controller", id).Warn("control: axis for unknown game controller")
		return false
	}
	if err := gc.dev.SetAxis(axis, value); err != nil {
		r.log.WithField("controller", id).WithError(err).Warn("control: set axis")
		return false
	}
	gc.axes[axis] = value
	return true
}

// SetButton applies a button state to a registered controller.
func (r *controllerRegistry) SetButton(id, button, state int) bool {
	if !r.enabled {
		return false
	}
	gc, ok := r.entries[id]
	if !ok {
		r.log.WithField("controller", id).Warn("control: button for unknown game controller")
		return false
	}
	if err := gc.dev.SetButton(button, state); err != nil {
		r.log.WithField("controller", id).WithError(err).Warn("control: set button")
		return false
	}
	gc.buttons[button] = state
	return true
}

// Close releases every registered controller.
func (r *controllerRegistry) Close() {
	for id, gc := range r.entries {
		if err := gc.dev.Close(); err != nil {
			r.log.WithField("controller", id).WithError(err).Warn("control: close game controller")
		}
		delete(r.entries, id)
	}
}
