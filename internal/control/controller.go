// Package control decodes control messages and turns them into device input.
package control

import (
	"context"
	"time"
	"unicode/utf16"

	"github.com/frudas24/remotectl/internal/device"
	"github.com/frudas24/remotectl/internal/hexkey"
	"github.com/sirupsen/logrus"
)

// DefaultPowerOnSettle is the delay after the startup POWER press before messages are read.
const DefaultPowerOnSettle = 500 * time.Millisecond

// Notifier queues device messages for the peer.
type Notifier interface {
	PushClipboardText(text string)
	PushAckClipboard(sequence uint64)
}

// Options configures a Controller.
type Options struct {
	MaxPointers       int
	ClipboardAutosync bool
	PowerOn           bool
	PowerOnSettle     time.Duration
	PowerOffDelay     time.Duration
}

// Controller dispatches control messages to a device.
// Handle and Run must be called from a single goroutine.
type Controller struct {
	dev         device.Device
	keyboard    hexkey.Keyboard
	notifier    Notifier
	opts        Options
	log         logrus.FieldLogger
	pointers    *PointerTable
	controllers *controllerRegistry
	powerOff    *powerOffTimer

	keepPowerModeOff bool
	lastTouchDown    time.Time
	now              func() time.Time
}

// New returns a controller. keyboard and factory may be nil.
func New(dev device.Device, keyboard hexkey.Keyboard, notifier Notifier, factory device.ControllerFactory, opts Options, log logrus.FieldLogger) *Controller {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.PowerOnSettle <= 0 {
		opts.PowerOnSettle = DefaultPowerOnSettle
	}
	c := &Controller{
		dev:         dev,
		keyboard:    keyboard,
		notifier:    notifier,
		opts:        opts,
		log:         log,
		pointers:    NewPointerTable(opts.MaxPointers),
		controllers: newControllerRegistry(factory, log),
		now:         time.Now,
	}
	c.powerOff = newPowerOffTimer(opts.PowerOffDelay, c.turnScreenOff)
	return c
}

// Run powers the device on if requested, then handles messages until the receiver fails or ctx ends.
// A receive failure is the normal end of a session and is not returned.
func (c *Controller) Run(ctx context.Context, rx Receiver) error {
	if c.opts.PowerOn && !c.dev.IsScreenOn() {
		c.dev.PressReleaseKeycode(device.KeycodePower, device.InjectAsync)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.opts.PowerOnSettle):
		}
	}
	for ctx.Err() == nil {
		msg, err := rx.Receive()
		if err != nil {
			c.log.WithError(err).Debug("control: receive ended")
			return nil
		}
		c.Handle(msg)
	}
	return nil
}

// Close cancels the pending power-off and releases pointers and game controllers.
func (c *Controller) Close() {
	c.powerOff.Stop()
	c.pointers.Reset()
	c.controllers.Close()
}

// Handle processes one message and reports whether it was applied.
// A panicking handler is logged and does not stop the dispatcher.
func (c *Controller) Handle(msg Message) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.log.WithField("type", msg.Type).Errorf("control: handler panic: %v", r)
			ok = false
		}
	}()
	switch msg.Type {
	case TypeInjectKeycode:
		return c.supportsInput() && c.injectKeycode(msg.Action, msg.Keycode, msg.Repeat, msg.MetaState)
	case TypeInjectText:
		return c.supportsInput() && c.injectText(msg.Text)
	case TypeInjectTouch:
		return c.supportsInput() && c.injectTouch(msg)
	case TypeInjectScroll:
		return c.supportsInput() && c.injectScroll(msg)
	case TypeBackOrScreenOn:
		return c.supportsInput() && c.pressBackOrTurnScreenOn(msg.Action)
	case TypeExpandNotificationPanel:
		c.dev.ExpandNotificationPanel()
		return true
	case TypeExpandSettingsPanel:
		c.dev.ExpandSettingsPanel()
		return true
	case TypeCollapsePanels:
		c.dev.CollapsePanels()
		return true
	case TypeGetClipboard:
		return c.getClipboard(msg.CopyKey)
	case TypeSetClipboard:
		return c.setClipboard(msg.Text, msg.Paste, msg.Sequence)
	case TypeSetScreenPowerMode:
		return c.supportsInput() && c.setScreenPowerMode(msg.PowerMode)
	case TypeRotateDevice:
		c.dev.RotateDevice()
		return true
	case TypeInjectControllerAxis:
		return c.controllers.SetAxis(msg.ControllerID, msg.Axis, msg.AxisValue)
	case TypeInjectControllerButton:
		return c.controllers.SetButton(msg.ControllerID, msg.Button, msg.ButtonState)
	case TypeInjectControllerDevice:
		return c.controllers.HandleDevice(msg.ControllerID, msg.ControllerEvent)
	default:
		c.log.WithField("type", msg.Type).Debug("control: ignore message")
		return false
	}
}

// KeepPowerModeOff reports whether the screen is latched off.
func (c *Controller) KeepPowerModeOff() bool {
	return c.keepPowerModeOff
}

// supportsInput reports whether input-producing commands may run.
func (c *Controller) supportsInput() bool {
	return c.dev.SupportsInputEvents()
}

// injectKeycode injects a key event, re-asserting screen off after a wake key.
func (c *Controller) injectKeycode(action, keycode, repeat, metaState int) bool {
	if c.keepPowerModeOff && action == device.KeyActionUp && (keycode == device.KeycodePower || keycode == device.KeycodeWakeup) {
		c.powerOff.Schedule()
	}
	ok := c.dev.InjectKeyEvent(action, keycode, repeat, metaState, device.InjectAsync)
	if !ok {
		c.log.WithField("keycode", keycode).Warn("control: inject key event failed")
	}
	return ok
}

// injectText types text through the hex-chord keyboard.
func (c *Controller) injectText(text string) bool {
	if c.keyboard == nil {
		c.log.Warn("control: no virtual keyboard, text dropped")
		return false
	}
	n, err := hexkey.Type(c.keyboard, text)
	if err != nil {
		total := len(utf16.Encode([]rune(text)))
		c.log.WithError(err).Warnf("control: typed %d/%d code units", n, total)
		return false
	}
	return true
}

// injectTouch synthesizes a touch or mouse event for one pointer.
func (c *Controller) injectTouch(msg Message) bool {
	now := c.now()
	point, ok := c.dev.PhysicalPoint(msg.Position)
	if !ok {
		c.log.WithField("pointer", msg.PointerID).Warn("control: touch position out of bounds, event dropped")
		return false
	}
	slot, err := c.pointers.Acquire(msg.PointerID)
	if err != nil {
		c.log.WithField("pointer", msg.PointerID).WithError(err).Warn("control: too many pointers, event dropped")
		return false
	}

	action := msg.Action
	buttons := msg.Buttons
	tool := device.ToolFinger
	source := device.SourceTouchscreen
	var up bool
	if msg.PointerID == PointerIDMouse || msg.PointerID == PointerIDVirtualMouse {
		tool = device.ToolMouse
		source = device.SourceMouse
		up = buttons == 0
	} else {
		buttons = 0
		up = action == device.ActionUp
	}
	if up {
		defer c.pointers.Release(slot)
	}

	live := c.pointers.Update(slot, point, msg.Pressure, tool, up)
	pointers, index := c.pointers.Pointers(slot)
	if live == 1 {
		if action == device.ActionDown {
			c.lastTouchDown = now
		}
	} else {
		switch action {
		case device.ActionUp:
			action = device.ActionPointerUp | index<<device.ActionPointerIndexShift
		case device.ActionDown:
			action = device.ActionPointerDown | index<<device.ActionPointerIndexShift
		}
	}

	event := device.MotionEvent{
		DownTime:  c.lastTouchDown,
		EventTime: now,
		Buttons:   buttons,
		Source:    source,
		Pointers:  pointers,
	}
	if tool != device.ToolMouse {
		event.Action = action
		return c.injectMotion(event)
	}
	for _, step := range mouseChord(action, msg.ActionButton, buttons) {
		event.Action = step.Action
		event.ActionButton = step.ActionButton
		if !c.injectMotion(event) {
			return false
		}
	}
	return true
}

// injectScroll synthesizes a single-pointer scroll event.
func (c *Controller) injectScroll(msg Message) bool {
	point, ok := c.dev.PhysicalPoint(msg.Position)
	if !ok {
		c.log.Warn("control: scroll position out of bounds, event dropped")
		return false
	}
	return c.injectMotion(device.MotionEvent{
		DownTime:  c.lastTouchDown,
		EventTime: c.now(),
		Action:    device.ActionScroll,
		Buttons:   msg.Buttons,
		Source:    device.SourceMouse,
		Pointers: []device.Pointer{{
			Tool:    device.ToolMouse,
			X:       point.X,
			Y:       point.Y,
			HScroll: msg.HScroll,
			VScroll: msg.VScroll,
		}},
	})
}

// injectMotion injects a motion event asynchronously and logs refusals.
func (c *Controller) injectMotion(ev device.MotionEvent) bool {
	if c.dev.InjectEvent(ev, device.InjectAsync) {
		return true
	}
	c.log.WithField("action", ev.Action).Warn("control: inject motion event failed")
	return false
}

// pressBackOrTurnScreenOn sends BACK when the screen is on, or POWER on the down edge when it is off.
func (c *Controller) pressBackOrTurnScreenOn(action int) bool {
	if c.dev.IsScreenOn() {
		return c.dev.InjectKeyEvent(action, device.KeycodeBack, 0, 0, device.InjectAsync)
	}
	if action != device.KeyActionDown {
		return true
	}
	if c.keepPowerModeOff {
		c.powerOff.Schedule()
	}
	return c.dev.PressReleaseKeycode(device.KeycodePower, device.InjectAsync)
}

// setScreenPowerMode changes the display power mode and latches the off state.
func (c *Controller) setScreenPowerMode(mode int) bool {
	if !c.dev.SetScreenPowerMode(mode) {
		c.log.WithField("mode", mode).Warn("control: set screen power mode failed")
		return false
	}
	c.keepPowerModeOff = mode == device.PowerModeOff
	if c.keepPowerModeOff {
		c.log.Info("control: device screen turned off")
	} else {
		c.log.Info("control: device screen turned on")
	}
	return true
}

// turnScreenOff runs on the power-off timer goroutine.
func (c *Controller) turnScreenOff() {
	if !c.dev.SetScreenPowerMode(device.PowerModeOff) {
		c.log.Warn("control: delayed screen off failed")
	}
}

// getClipboard optionally presses COPY or CUT and pushes the clipboard to the peer.
// With autosync enabled the push is skipped: the clipboard watcher already delivers changes.
func (c *Controller) getClipboard(copyKey int) bool {
	if copyKey != CopyKeyNone && c.supportsInput() {
		key := device.KeycodeCopy
		if copyKey == CopyKeyCut {
			key = device.KeycodeCut
		}
		c.dev.PressReleaseKeycode(key, device.InjectWaitForFinish)
	}
	if c.opts.ClipboardAutosync {
		return true
	}
	text, ok := c.dev.ClipboardText()
	if !ok {
		return false
	}
	if c.notifier != nil {
		c.notifier.PushClipboardText(text)
	}
	return true
}

// setClipboard writes the clipboard, optionally presses PASTE, and acknowledges the sequence.
// The acknowledgement does not depend on the write or the paste.
func (c *Controller) setClipboard(text string, paste bool, sequence uint64) bool {
	ok := c.dev.SetClipboardText(text)
	if ok {
		c.log.Info("control: device clipboard set")
	} else {
		c.log.Warn("control: set device clipboard failed")
	}
	if paste && c.supportsInput() {
		c.dev.PressReleaseKeycode(device.KeycodePaste, device.InjectAsync)
	}
	if sequence != SequenceInvalid && c.notifier != nil {
		c.notifier.PushAckClipboard(sequence)
	}
	return ok
}
