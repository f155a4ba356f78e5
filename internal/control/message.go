// Package control decodes control messages and turns them into device input.
package control

import (
	"fmt"

	"github.com/frudas24/remotectl/internal/device"
)

// Type identifies a control message variant on the wire.
type Type uint8

// Control message types.
const (
	TypeInjectKeycode Type = iota
	TypeInjectText
	TypeInjectTouch
	TypeInjectScroll
	TypeBackOrScreenOn
	TypeExpandNotificationPanel
	TypeExpandSettingsPanel
	TypeCollapsePanels
	TypeGetClipboard
	TypeSetClipboard
	TypeSetScreenPowerMode
	TypeRotateDevice
	TypeInjectControllerAxis
	TypeInjectControllerButton
	TypeInjectControllerDevice
)

var typeNames = map[Type]string{
	TypeInjectKeycode:           "inject_keycode",
	TypeInjectText:              "inject_text",
	TypeInjectTouch:             "inject_touch",
	TypeInjectScroll:            "inject_scroll",
	TypeBackOrScreenOn:          "back_or_screen_on",
	TypeExpandNotificationPanel: "expand_notification_panel",
	TypeExpandSettingsPanel:     "expand_settings_panel",
	TypeCollapsePanels:          "collapse_panels",
	TypeGetClipboard:            "get_clipboard",
	TypeSetClipboard:            "set_clipboard",
	TypeSetScreenPowerMode:      "set_screen_power_mode",
	TypeRotateDevice:            "rotate_device",
	TypeInjectControllerAxis:    "inject_controller_axis",
	TypeInjectControllerButton:  "inject_controller_button",
	TypeInjectControllerDevice:  "inject_controller_device",
}

// String returns the message type name.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// Reserved pointer ids.
const (
	PointerIDMouse         int64 = -1
	PointerIDGenericFinger int64 = -2
	PointerIDVirtualMouse  int64 = -3
	PointerIDVirtualFinger int64 = -4
)

// Copy keys requested with a clipboard get.
const (
	CopyKeyNone = 0
	CopyKeyCopy = 1
	CopyKeyCut  = 2
)

// Game controller device events.
const (
	ControllerAdded   = 0
	ControllerRemoved = 1
)

// SequenceInvalid marks a clipboard set that does not want an acknowledgement.
const SequenceInvalid uint64 = 0

// Text size limits.
const (
	MaxInjectTextLength = 300
	MaxClipboardLength  = 1<<18 - 14
)

// Message is one decoded control message. Type selects which fields are meaningful.
type Message struct {
	Type Type

	// Action is the key action, motion action or back-or-screen-on action.
	Action    int
	Keycode   int
	Repeat    int
	MetaState int

	Text string

	PointerID    int64
	Position     device.Position
	Pressure     float32
	ActionButton int
	Buttons      int
	HScroll      float32
	VScroll      float32

	CopyKey  int
	Sequence uint64
	Paste    bool

	PowerMode int

	ControllerID    int
	Axis            int
	AxisValue       int
	Button          int
	ButtonState     int
	ControllerEvent int
}

// Receiver yields decoded control messages until the connection closes.
type Receiver interface {
	Receive() (Message, error)
}
