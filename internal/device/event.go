// Package device defines the target device capabilities consumed by the control engine.
package device

import "time"

// Motion actions.
const (
	ActionDown          = 0
	ActionUp            = 1
	ActionMove          = 2
	ActionCancel        = 3
	ActionPointerDown   = 5
	ActionPointerUp     = 6
	ActionHoverMove     = 7
	ActionScroll        = 8
	ActionHoverEnter    = 9
	ActionHoverExit     = 10
	ActionButtonPress   = 11
	ActionButtonRelease = 12

	// ActionPointerIndexShift positions the pointer index in secondary pointer actions.
	ActionPointerIndexShift = 8
)

// Mouse buttons.
const (
	ButtonPrimary   = 1 << 0
	ButtonSecondary = 1 << 1
	ButtonTertiary  = 1 << 2
	ButtonBack      = 1 << 3
	ButtonForward   = 1 << 4
)

// ToolType identifies what produced a pointer.
type ToolType int

const (
	// ToolFinger is a touchscreen contact.
	ToolFinger ToolType = iota + 1
	// ToolMouse is a mouse pointer.
	ToolMouse
)

// String returns a readable tool name.
func (t ToolType) String() string {
	switch t {
	case ToolFinger:
		return "finger"
	case ToolMouse:
		return "mouse"
	default:
		return "unknown"
	}
}

// Source identifies the input device class of an event.
type Source int

const (
	// SourceTouchscreen marks finger events.
	SourceTouchscreen Source = iota + 1
	// SourceMouse marks mouse and scroll events.
	SourceMouse
)

// Size is a width/height pair in pixels.
type Size struct {
	Width  int
	Height int
}

// Rotate returns the size with width and height swapped.
func (s Size) Rotate() Size {
	return Size{Width: s.Height, Height: s.Width}
}

// Point is a device pixel coordinate.
type Point struct {
	X int
	Y int
}

// Position is a point expressed relative to the screen size the client saw.
type Position struct {
	Point      Point
	ScreenSize Size
}

// Pointer is one pointer entry of a motion event.
type Pointer struct {
	ID       int
	Tool     ToolType
	X        int
	Y        int
	Pressure float32
	HScroll  float32
	VScroll  float32
}

// MotionEvent is a synthesized pointer event.
type MotionEvent struct {
	DownTime     time.Time
	EventTime    time.Time
	Action       int
	ActionButton int
	Buttons      int
	Source       Source
	Pointers     []Pointer
}

// ActionMasked returns the action without the pointer index bits.
func (e MotionEvent) ActionMasked() int {
	return e.Action & 0xff
}

// ActionIndex returns the pointer index encoded in a secondary pointer action.
func (e MotionEvent) ActionIndex() int {
	return (e.Action >> ActionPointerIndexShift) & 0xff
}

// KeyEvent is a synthesized key event.
type KeyEvent struct {
	Action    int
	Keycode   int
	Repeat    int
	MetaState int
}
