// Package outbound coalesces device notifications and sends them to the peer.
package outbound

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/lunixbochs/struc"
)

// Type identifies a device message variant on the wire.
type Type uint8

// Device message types.
const (
	TypeClipboard Type = iota
	TypeAckClipboard
	TypeVirtualDisplayEmpty
)

// String returns the message type name.
func (t Type) String() string {
	switch t {
	case TypeClipboard:
		return "clipboard"
	case TypeAckClipboard:
		return "ack_clipboard"
	case TypeVirtualDisplayEmpty:
		return "virtual_display_empty"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// MaxClipboardTextLength bounds the encoded clipboard text in bytes.
const MaxClipboardTextLength = 1<<18 - 5

// Message is one device message.
type Message struct {
	Type     Type
	Text     string
	Sequence uint64
}

// ClipboardMessage returns a clipboard content message.
func ClipboardMessage(text string) Message {
	return Message{Type: TypeClipboard, Text: text}
}

// AckClipboardMessage returns a clipboard acknowledgement.
func AckClipboardMessage(sequence uint64) Message {
	return Message{Type: TypeAckClipboard, Sequence: sequence}
}

// VirtualDisplayEmptyMessage returns the empty virtual display notice.
func VirtualDisplayEmptyMessage() Message {
	return Message{Type: TypeVirtualDisplayEmpty}
}

type clipboardBody struct {
	Length uint32 `struc:"uint32,sizeof=Text"`
	Text   []byte
}

type ackBody struct {
	Sequence uint64
}

var structOptions = &struc.Options{Order: binary.BigEndian}

// MarshalBinary encodes the message; clipboard text is truncated on a rune boundary.
func (m Message) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(m.Type))
	var err error
	switch m.Type {
	case TypeClipboard:
		text := []byte(truncateUTF8(m.Text, MaxClipboardTextLength))
		err = struc.PackWithOptions(&buf, &clipboardBody{Text: text}, structOptions)
	case TypeAckClipboard:
		err = struc.PackWithOptions(&buf, &ackBody{Sequence: m.Sequence}, structOptions)
	case TypeVirtualDisplayEmpty:
	default:
		return nil, fmt.Errorf("encode device message: unknown type %d", uint8(m.Type))
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Type, err)
	}
	return buf.Bytes(), nil
}

// Decode reads one device message from r.
func Decode(r io.Reader) (Message, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return Message{}, err
	}
	msg := Message{Type: Type(tag[0])}
	switch msg.Type {
	case TypeClipboard:
		var n uint32
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return Message{}, fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		if n > MaxClipboardTextLength {
			return Message{}, fmt.Errorf("decode %s: length %d exceeds limit", msg.Type, n)
		}
		text := make([]byte, n)
		if _, err := io.ReadFull(r, text); err != nil {
			return Message{}, fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		msg.Text = string(text)
	case TypeAckClipboard:
		var b ackBody
		if err := struc.UnpackWithOptions(r, &b, structOptions); err != nil {
			return Message{}, fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		msg.Sequence = b.Sequence
	case TypeVirtualDisplayEmpty:
	default:
		return Message{}, fmt.Errorf("decode device message: unknown type %d", uint8(msg.Type))
	}
	return msg, nil
}

// truncateUTF8 cuts s to at most limit bytes without splitting a rune.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
