// Package device defines the target device capabilities consumed by the control engine.
package device

import (
	"errors"
	"fmt"
	"sync"
)

const defaultEventLogSize = 1024

// ErrNoControllerSlot is returned when every game controller slot is taken.
var ErrNoControllerSlot = errors.New("no game controller slot available")

// EmulatedOptions configures an Emulated device.
type EmulatedOptions struct {
	Display        DisplaySize
	MaxControllers int
	EventLogSize   int
	ScreenOn       bool
}

// Emulated is an in-memory target device.
// It keeps screen, clipboard, panel and controller state and records injected events.
type Emulated struct {
	mu          sync.Mutex
	display     DisplaySize
	rotation    int
	screenOn    bool
	powerMode   int
	clipboard   string
	panel       string
	motions     []MotionEvent
	keys        []KeyEvent
	logSize     int
	controllers map[int]*EmulatedController
	maxCtrl     int
	watchers    map[int]func(string)
	displayObs  map[int]func()
	nextWatchID int
	keyboard    *EmulatedKeyboard
}

// NewEmulated returns an emulated device.
func NewEmulated(opts EmulatedOptions) *Emulated {
	if opts.EventLogSize <= 0 {
		opts.EventLogSize = defaultEventLogSize
	}
	return &Emulated{
		display:     opts.Display,
		screenOn:    opts.ScreenOn,
		powerMode:   PowerModeNormal,
		logSize:     opts.EventLogSize,
		controllers: make(map[int]*EmulatedController),
		maxCtrl:     opts.MaxControllers,
		watchers:    make(map[int]func(string)),
		displayObs:  make(map[int]func()),
		keyboard:    &EmulatedKeyboard{},
	}
}

// SupportsInputEvents reports true: the emulated device accepts all input.
func (e *Emulated) SupportsInputEvents() bool {
	return true
}

// ScreenSize returns the current screen size, taking rotation into account.
func (e *Emulated) ScreenSize() Size {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.screenSizeLocked()
}

// screenSizeLocked returns the rotation-aware screen size.
func (e *Emulated) screenSizeLocked() Size {
	size := e.display.Size()
	if e.rotation%2 == 1 {
		return size.Rotate()
	}
	return size
}

// PhysicalPoint maps a client position to device pixels.
func (e *Emulated) PhysicalPoint(pos Position) (Point, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	size := e.screenSizeLocked()
	return MapPosition(pos, size, size)
}

// InjectEvent records a motion event.
func (e *Emulated) InjectEvent(ev MotionEvent, _ InjectMode) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ev.Pointers = append([]Pointer(nil), ev.Pointers...)
	e.motions = append(e.motions, ev)
	if len(e.motions) > e.logSize {
		e.motions = e.motions[len(e.motions)-e.logSize:]
	}
	return true
}

// InjectKeyEvent records a key event and applies POWER/WAKEUP semantics.
func (e *Emulated) InjectKeyEvent(action, keycode, repeat, metaState int, _ InjectMode) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recordKeyLocked(KeyEvent{Action: action, Keycode: keycode, Repeat: repeat, MetaState: metaState})
	return true
}

// PressReleaseKeycode records a key press and release.
func (e *Emulated) PressReleaseKeycode(keycode int, _ InjectMode) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recordKeyLocked(KeyEvent{Action: KeyActionDown, Keycode: keycode})
	e.recordKeyLocked(KeyEvent{Action: KeyActionUp, Keycode: keycode})
	return true
}

// recordKeyLocked appends a key event and toggles the screen on POWER/WAKEUP release.
func (e *Emulated) recordKeyLocked(ev KeyEvent) {
	e.keys = append(e.keys, ev)
	if len(e.keys) > e.logSize {
		e.keys = e.keys[len(e.keys)-e.logSize:]
	}
	if ev.Action != KeyActionUp {
		return
	}
	switch ev.Keycode {
	case KeycodePower:
		e.screenOn = !e.screenOn
		if e.screenOn {
			e.powerMode = PowerModeNormal
		}
	case KeycodeWakeup:
		e.screenOn = true
		e.powerMode = PowerModeNormal
	}
}

// ClipboardText returns the clipboard content.
func (e *Emulated) ClipboardText() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clipboard, true
}

// SetClipboardText replaces the clipboard content on behalf of the remote peer.
// Watchers are not notified: the peer already has this text.
func (e *Emulated) SetClipboardText(text string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clipboard = text
	return true
}

// SimulateClipboardChange changes the clipboard as a local app would and notifies watchers.
func (e *Emulated) SimulateClipboardChange(text string) {
	e.mu.Lock()
	e.clipboard = text
	watchers := make([]func(string), 0, len(e.watchers))
	for _, fn := range e.watchers {
		watchers = append(watchers, fn)
	}
	e.mu.Unlock()
	for _, fn := range watchers {
		fn(text)
	}
}

// WatchClipboard registers fn for local clipboard changes.
func (e *Emulated) WatchClipboard(fn func(text string)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextWatchID
	e.nextWatchID++
	e.watchers[id] = fn
	return func() {
		e.mu.Lock()
		delete(e.watchers, id)
		e.mu.Unlock()
	}
}

// OnVirtualDisplayEmpty registers fn for empty virtual display notices.
func (e *Emulated) OnVirtualDisplayEmpty(fn func()) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextWatchID
	e.nextWatchID++
	e.displayObs[id] = fn
	return func() {
		e.mu.Lock()
		delete(e.displayObs, id)
		e.mu.Unlock()
	}
}

// SimulateVirtualDisplayEmpty notifies observers that the virtual display has no content.
func (e *Emulated) SimulateVirtualDisplayEmpty() {
	e.mu.Lock()
	observers := make([]func(), 0, len(e.displayObs))
	for _, fn := range e.displayObs {
		observers = append(observers, fn)
	}
	e.mu.Unlock()
	for _, fn := range observers {
		fn()
	}
}

// SetScreenPowerMode sets the display power mode.
func (e *Emulated) SetScreenPowerMode(mode int) bool {
	if mode != PowerModeOff && mode != PowerModeNormal {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.powerMode = mode
	return true
}

// PowerMode returns the current display power mode.
func (e *Emulated) PowerMode() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.powerMode
}

// IsScreenOn reports whether the device is interactive.
func (e *Emulated) IsScreenOn() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.screenOn
}

// ExpandNotificationPanel opens the notification panel.
func (e *Emulated) ExpandNotificationPanel() {
	e.setPanel("notifications")
}

// ExpandSettingsPanel opens the quick settings panel.
func (e *Emulated) ExpandSettingsPanel() {
	e.setPanel("settings")
}

// CollapsePanels closes any open panel.
func (e *Emulated) CollapsePanels() {
	e.setPanel("")
}

// setPanel stores the open panel name.
func (e *Emulated) setPanel(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.panel = name
}

// Panel returns the open panel name, empty when collapsed.
func (e *Emulated) Panel() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.panel
}

// RotateDevice rotates the screen by 90 degrees.
func (e *Emulated) RotateDevice() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rotation = (e.rotation + 1) % 4
}

// Rotation returns the rotation in quarter turns.
func (e *Emulated) Rotation() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rotation
}

// MotionEvents returns a copy of the recorded motion events.
func (e *Emulated) MotionEvents() []MotionEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]MotionEvent(nil), e.motions...)
}

// KeyEvents returns a copy of the recorded key events.
func (e *Emulated) KeyEvents() []KeyEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]KeyEvent(nil), e.keys...)
}

// Keyboard returns the emulated hex-chord virtual keyboard.
func (e *Emulated) Keyboard() *EmulatedKeyboard {
	return e.keyboard
}

// NewGameController creates a controller when a slot is available.
func (e *Emulated) NewGameController(id int) (GameController, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.maxCtrl > 0 && len(e.controllers) >= e.maxCtrl {
		return nil, fmt.Errorf("controller %d: %w", id, ErrNoControllerSlot)
	}
	c := &EmulatedController{
		id:      id,
		axes:    make(map[int]int),
		buttons: make(map[int]int),
		release: e.releaseController,
	}
	e.controllers[id] = c
	return c, nil
}

// Controllers returns the number of open controllers.
func (e *Emulated) Controllers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.controllers)
}

// releaseController frees a controller slot.
func (e *Emulated) releaseController(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.controllers, id)
}

// EmulatedController is a game controller owned by an Emulated device.
type EmulatedController struct {
	mu      sync.Mutex
	id      int
	axes    map[int]int
	buttons map[int]int
	closed  bool
	release func(id int)
}

// SetAxis stores an axis value.
func (c *EmulatedController) SetAxis(axis, value int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("controller %d closed", c.id)
	}
	c.axes[axis] = value
	return nil
}

// SetButton stores a button state.
func (c *EmulatedController) SetButton(button, state int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("controller %d closed", c.id)
	}
	c.buttons[button] = state
	return nil
}

// Axis returns the last value set for axis.
func (c *EmulatedController) Axis(axis int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.axes[axis]
}

// Button returns the last state set for button.
func (c *EmulatedController) Button(button int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buttons[button]
}

// Close releases the controller slot.
func (c *EmulatedController) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	if c.release != nil {
		c.release(c.id)
	}
	return nil
}
