// Package device defines the target device capabilities consumed by the control engine.
package device

// InjectMode selects how long an injection call waits for the device.
type InjectMode int

const (
	// InjectAsync returns as soon as the event is queued.
	InjectAsync InjectMode = iota
	// InjectWaitForResult waits until the event has been dispatched.
	InjectWaitForResult
	// InjectWaitForFinish waits until the event has been fully handled.
	InjectWaitForFinish
)

// Key actions.
const (
	KeyActionDown = 0
	KeyActionUp   = 1
)

// Keycodes used by the controller.
const (
	KeycodeBack   = 4
	KeycodePower  = 26
	KeycodeWakeup = 224
	KeycodeCut    = 277
	KeycodeCopy   = 278
	KeycodePaste  = 279
)

// Screen power modes.
const (
	PowerModeOff    = 0
	PowerModeNormal = 2
)

// Device is the set of capabilities the controller drives.
//
// Implementations must be safe for concurrent use: the delayed power-off
// timer calls SetScreenPowerMode from its own goroutine.
type Device interface {
	SupportsInputEvents() bool
	PhysicalPoint(pos Position) (Point, bool)
	InjectEvent(ev MotionEvent, mode InjectMode) bool
	InjectKeyEvent(action, keycode, repeat, metaState int, mode InjectMode) bool
	PressReleaseKeycode(keycode int, mode InjectMode) bool
	ClipboardText() (string, bool)
	SetClipboardText(text string) bool
	SetScreenPowerMode(mode int) bool
	IsScreenOn() bool
	ExpandNotificationPanel()
	ExpandSettingsPanel()
	CollapsePanels()
	RotateDevice()
}

// ClipboardWatcher is implemented by devices that report local clipboard changes.
type ClipboardWatcher interface {
	WatchClipboard(fn func(text string)) (stop func())
}

// DisplayObserver is implemented by devices that report an empty virtual display.
type DisplayObserver interface {
	OnVirtualDisplayEmpty(fn func()) (stop func())
}

// GameController is one virtual controller instance on the device.
type GameController interface {
	SetAxis(axis, value int) error
	SetButton(button, state int) error
	Close() error
}

// ControllerFactory creates virtual game controllers, limited by device slots.
type ControllerFactory interface {
	NewGameController(id int) (GameController, error)
}
