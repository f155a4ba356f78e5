package testutil

import (
	"sync"

	"github.com/frudas24/remotectl/internal/device"
)

// Call records a single device capability call.
type Call struct {
	Name    string
	Keycode int
	Action  int
	Mode    device.InjectMode
	Value   int
	Text    string
}

// FakeDevice implements device.Device and records calls for tests.
// Screen is the size positions must match; physical points equal logical points.
type FakeDevice struct {
	mu sync.Mutex

	Supports        bool
	ScreenOn        bool
	Screen          device.Size
	Clipboard       string
	HasClipboard    bool
	RefuseInject    bool
	RefuseClipboard bool
	RefusePower     bool

	Calls   []Call
	Motions []device.MotionEvent
}

// Ensure FakeDevice implements the interface.
var _ device.Device = (*FakeDevice)(nil)

// NewFakeDevice returns a device that supports input, has its screen on and a 1080x1920 screen.
func NewFakeDevice() *FakeDevice {
	return &FakeDevice{
		Supports:     true,
		ScreenOn:     true,
		Screen:       device.Size{Width: 1080, Height: 1920},
		HasClipboard: true,
	}
}

// record appends a call under the lock.
func (f *FakeDevice) record(c Call) {
	f.Calls = append(f.Calls, c)
}

// SupportsInputEvents returns Supports.
func (f *FakeDevice) SupportsInputEvents() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Supports
}

// PhysicalPoint maps positions generated for Screen.
func (f *FakeDevice) PhysicalPoint(pos device.Position) (device.Point, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return device.MapPosition(pos, f.Screen, f.Screen)
}

// InjectEvent records a motion event.
func (f *FakeDevice) InjectEvent(ev device.MotionEvent, mode device.InjectMode) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev.Pointers = append([]device.Pointer(nil), ev.Pointers...)
	f.Motions = append(f.Motions, ev)
	f.record(Call{Name: "InjectEvent", Action: ev.Action, Mode: mode})
	return !f.RefuseInject
}

// InjectKeyEvent records a key event.
func (f *FakeDevice) InjectKeyEvent(action, keycode, _, _ int, mode device.InjectMode) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Name: "InjectKeyEvent", Action: action, Keycode: keycode, Mode: mode})
	return !f.RefuseInject
}

// PressReleaseKeycode records a key press and release.
func (f *FakeDevice) PressReleaseKeycode(keycode int, mode device.InjectMode) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Name: "PressReleaseKeycode", Keycode: keycode, Mode: mode})
	return !f.RefuseInject
}

// ClipboardText returns Clipboard.
func (f *FakeDevice) ClipboardText() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Name: "ClipboardText"})
	return f.Clipboard, f.HasClipboard
}

// SetClipboardText records and stores text unless RefuseClipboard is set.
func (f *FakeDevice) SetClipboardText(text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Name: "SetClipboardText", Text: text})
	if f.RefuseClipboard {
		return false
	}
	f.Clipboard = text
	f.HasClipboard = true
	return true
}

// SetScreenPowerMode records the mode.
func (f *FakeDevice) SetScreenPowerMode(mode int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Name: "SetScreenPowerMode", Value: mode})
	return !f.RefusePower
}

// IsScreenOn returns ScreenOn.
func (f *FakeDevice) IsScreenOn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ScreenOn
}

// ExpandNotificationPanel records the call.
func (f *FakeDevice) ExpandNotificationPanel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Name: "ExpandNotificationPanel"})
}

// ExpandSettingsPanel records the call.
func (f *FakeDevice) ExpandSettingsPanel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Name: "ExpandSettingsPanel"})
}

// CollapsePanels records the call.
func (f *FakeDevice) CollapsePanels() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Name: "CollapsePanels"})
}

// RotateDevice records the call.
func (f *FakeDevice) RotateDevice() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(Call{Name: "RotateDevice"})
}

// SetSupports changes the input capability flag.
func (f *FakeDevice) SetSupports(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Supports = v
}

// Snapshot returns copies of the recorded calls and motion events.
func (f *FakeDevice) Snapshot() ([]Call, []device.MotionEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.Calls...), append([]device.MotionEvent(nil), f.Motions...)
}

// CallsNamed returns the recorded calls with the given name.
func (f *FakeDevice) CallsNamed(name string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.Calls {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}
