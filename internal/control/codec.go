// Package control decodes control messages and turns them into device input.
package control

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/frudas24/remotectl/internal/device"
	"github.com/lunixbochs/struc"
)

// ErrMessageTooLarge is returned when a string field exceeds its limit.
var ErrMessageTooLarge = errors.New("control message too large")

// UnknownTypeError reports a message type this decoder does not know.
type UnknownTypeError struct {
	Type Type
}

// Error implements error.
func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown control message type %d", uint8(e.Type))
}

var structOptions = &struc.Options{Order: binary.BigEndian}

type positionBody struct {
	X      int32
	Y      int32
	Width  uint16
	Height uint16
}

type keycodeBody struct {
	Action    uint8
	Keycode   int32
	Repeat    int32
	MetaState int32
}

type touchBody struct {
	Action       uint8
	PointerID    int64
	Position     positionBody
	Pressure     uint16
	ActionButton int32
	Buttons      int32
}

type scrollBody struct {
	Position positionBody
	HScroll  int16
	VScroll  int16
	Buttons  int32
}

type clipboardHeader struct {
	Sequence uint64
	Paste    uint8
}

type controllerAxisBody struct {
	ID    uint16
	Axis  uint8
	Value int16
}

type controllerButtonBody struct {
	ID     uint16
	Button uint8
	State  uint8
}

type controllerDeviceBody struct {
	ID    uint16
	Event uint8
}

// Decode reads one control message from r.
// An UnknownTypeError is returned after consuming only the type byte.
func Decode(r io.Reader) (Message, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return Message{}, err
	}
	msg := Message{Type: Type(tag[0])}
	var err error
	switch msg.Type {
	case TypeInjectKeycode:
		var b keycodeBody
		if err = unpack(r, &b); err == nil {
			msg.Action = int(b.Action)
			msg.Keycode = int(b.Keycode)
			msg.Repeat = int(b.Repeat)
			msg.MetaState = int(b.MetaState)
		}
	case TypeInjectText:
		msg.Text, err = readString(r, MaxInjectTextLength)
	case TypeInjectTouch:
		var b touchBody
		if err = unpack(r, &b); err == nil {
			msg.Action = int(b.Action)
			msg.PointerID = b.PointerID
			msg.Position = b.Position.position()
			msg.Pressure = u16FixedToFloat(b.Pressure)
			msg.ActionButton = int(b.ActionButton)
			msg.Buttons = int(b.Buttons)
		}
	case TypeInjectScroll:
		var b scrollBody
		if err = unpack(r, &b); err == nil {
			msg.Position = b.Position.position()
			msg.HScroll = i16FixedToFloat(b.HScroll) * 16
			msg.VScroll = i16FixedToFloat(b.VScroll) * 16
			msg.Buttons = int(b.Buttons)
		}
	case TypeBackOrScreenOn:
		msg.Action, err = readUint8(r)
	case TypeGetClipboard:
		msg.CopyKey, err = readUint8(r)
	case TypeSetClipboard:
		var h clipboardHeader
		if err = unpack(r, &h); err == nil {
			msg.Sequence = h.Sequence
			msg.Paste = h.Paste != 0
			msg.Text, err = readString(r, MaxClipboardLength)
		}
	case TypeSetScreenPowerMode:
		msg.PowerMode, err = readUint8(r)
	case TypeInjectControllerAxis:
		var b controllerAxisBody
		if err = unpack(r, &b); err == nil {
			msg.ControllerID = int(b.ID)
			msg.Axis = int(b.Axis)
			msg.AxisValue = int(b.Value)
		}
	case TypeInjectControllerButton:
		var b controllerButtonBody
		if err = unpack(r, &b); err == nil {
			msg.ControllerID = int(b.ID)
			msg.Button = int(b.Button)
			msg.ButtonState = int(b.State)
		}
	case TypeInjectControllerDevice:
		var b controllerDeviceBody
		if err = unpack(r, &b); err == nil {
			msg.ControllerID = int(b.ID)
			msg.ControllerEvent = int(b.Event)
		}
	case TypeExpandNotificationPanel, TypeExpandSettingsPanel, TypeCollapsePanels, TypeRotateDevice:
	default:
		return msg, &UnknownTypeError{Type: msg.Type}
	}
	if err != nil {
		return Message{}, fmt.Errorf("decode %s: %w", msg.Type, err)
	}
	return msg, nil
}

// DecodeBytes decodes a single framed control message.
func DecodeBytes(frame []byte) (Message, error) {
	return Decode(bytes.NewReader(frame))
}

// Encode serializes msg in the wire format read by Decode.
func Encode(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(msg.Type))
	var err error
	switch msg.Type {
	case TypeInjectKeycode:
		err = pack(&buf, &keycodeBody{
			Action:    uint8(msg.Action),
			Keycode:   int32(msg.Keycode),
			Repeat:    int32(msg.Repeat),
			MetaState: int32(msg.MetaState),
		})
	case TypeInjectText:
		err = writeString(&buf, msg.Text, MaxInjectTextLength)
	case TypeInjectTouch:
		err = pack(&buf, &touchBody{
			Action:       uint8(msg.Action),
			PointerID:    msg.PointerID,
			Position:     newPositionBody(msg.Position),
			Pressure:     floatToU16Fixed(msg.Pressure),
			ActionButton: int32(msg.ActionButton),
			Buttons:      int32(msg.Buttons),
		})
	case TypeInjectScroll:
		err = pack(&buf, &scrollBody{
			Position: newPositionBody(msg.Position),
			HScroll:  floatToI16Fixed(msg.HScroll / 16),
			VScroll:  floatToI16Fixed(msg.VScroll / 16),
			Buttons:  int32(msg.Buttons),
		})
	case TypeBackOrScreenOn:
		buf.WriteByte(uint8(msg.Action))
	case TypeGetClipboard:
		buf.WriteByte(uint8(msg.CopyKey))
	case TypeSetClipboard:
		h := clipboardHeader{Sequence: msg.Sequence}
		if msg.Paste {
			h.Paste = 1
		}
		if err = pack(&buf, &h); err == nil {
			err = writeString(&buf, msg.Text, MaxClipboardLength)
		}
	case TypeSetScreenPowerMode:
		buf.WriteByte(uint8(msg.PowerMode))
	case TypeInjectControllerAxis:
		err = pack(&buf, &controllerAxisBody{ID: uint16(msg.ControllerID), Axis: uint8(msg.Axis), Value: int16(msg.AxisValue)})
	case TypeInjectControllerButton:
		err = pack(&buf, &controllerButtonBody{ID: uint16(msg.ControllerID), Button: uint8(msg.Button), State: uint8(msg.ButtonState)})
	case TypeInjectControllerDevice:
		err = pack(&buf, &controllerDeviceBody{ID: uint16(msg.ControllerID), Event: uint8(msg.ControllerEvent)})
	case TypeExpandNotificationPanel, TypeExpandSettingsPanel, TypeCollapsePanels, TypeRotateDevice:
	default:
		return nil, &UnknownTypeError{Type: msg.Type}
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	return buf.Bytes(), nil
}

// position converts a wire position to a device position.
func (p positionBody) position() device.Position {
	return device.Position{
		Point:      device.Point{X: int(p.X), Y: int(p.Y)},
		ScreenSize: device.Size{Width: int(p.Width), Height: int(p.Height)},
	}
}

// newPositionBody converts a device position to its wire form.
func newPositionBody(p device.Position) positionBody {
	return positionBody{
		X:      int32(p.Point.X),
		Y:      int32(p.Point.Y),
		Width:  uint16(p.ScreenSize.Width),
		Height: uint16(p.ScreenSize.Height),
	}
}

// unpack reads a fixed layout body.
func unpack(r io.Reader, v any) error {
	return struc.UnpackWithOptions(r, v, structOptions)
}

// pack writes a fixed layout body.
func pack(w io.Writer, v any) error {
	return struc.PackWithOptions(w, v, structOptions)
}

// readUint8 reads a single unsigned byte.
func readUint8(r io.Reader) (int, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int(b[0]), nil
}

// readString reads a u32 length-prefixed string, rejecting lengths above limit.
func readString(r io.Reader, limit int) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	if int64(n) > int64(limit) {
		return "", fmt.Errorf("string of %d bytes: %w", n, ErrMessageTooLarge)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return "", err
	}
	return string(data), nil
}

// writeString writes a u32 length-prefixed string.
func writeString(buf *bytes.Buffer, s string, limit int) error {
	if len(s) > limit {
		return fmt.Errorf("string of %d bytes: %w", len(s), ErrMessageTooLarge)
	}
	_ = binary.Write(buf, binary.BigEndian, uint32(len(s)))
	buf.WriteString(s)
	return nil
}

// u16FixedToFloat converts an unsigned 16-bit fixed-point value to [0, 1].
func u16FixedToFloat(v uint16) float32 {
	if v == math.MaxUint16 {
		return 1
	}
	return float32(v) / (1 << 16)
}

// i16FixedToFloat converts a signed 16-bit fixed-point value to [-1, 1].
func i16FixedToFloat(v int16) float32 {
	if v == math.MaxInt16 {
		return 1
	}
	return float32(v) / (1 << 15)
}

// floatToU16Fixed converts a value in [0, 1] to unsigned 16-bit fixed point.
func floatToU16Fixed(f float32) uint16 {
	if f >= 1 {
		return math.MaxUint16
	}
	if f <= 0 {
		return 0
	}
	return uint16(f * (1 << 16))
}

// floatToI16Fixed converts a value in [-1, 1] to signed 16-bit fixed point.
func floatToI16Fixed(f float32) int16 {
	if f >= 1 {
		return math.MaxInt16
	}
	if f <= -1 {
		return math.MinInt16
	}
	return int16(f * (1 << 15))
}
