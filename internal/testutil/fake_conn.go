package testutil

import (
	"io"
	"sync"

	"github.com/frudas24/remotectl/internal/control"
	"github.com/frudas24/remotectl/internal/outbound"
)

// ScriptedReceiver yields a fixed list of messages, then io.EOF.
type ScriptedReceiver struct {
	mu       sync.Mutex
	Messages []control.Message
}

// Receive returns the next scripted message.
func (r *ScriptedReceiver) Receive() (control.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Messages) == 0 {
		return control.Message{}, io.EOF
	}
	msg := r.Messages[0]
	r.Messages = r.Messages[1:]
	return msg, nil
}

// BlockingReceiver yields queued messages and blocks until Close when empty.
type BlockingReceiver struct {
	ch     chan control.Message
	closed chan struct{}
	once   sync.Once
}

// NewBlockingReceiver returns an open receiver.
func NewBlockingReceiver() *BlockingReceiver {
	return &BlockingReceiver{ch: make(chan control.Message, 64), closed: make(chan struct{})}
}

// Push queues a message.
func (r *BlockingReceiver) Push(msg control.Message) {
	r.ch <- msg
}

// Receive returns the next message or io.EOF once closed.
func (r *BlockingReceiver) Receive() (control.Message, error) {
	select {
	case msg := <-r.ch:
		return msg, nil
	case <-r.closed:
		return control.Message{}, io.EOF
	}
}

// Close unblocks pending and future receives.
func (r *BlockingReceiver) Close() error {
	r.once.Do(func() { close(r.closed) })
	return nil
}

// RecordingTransmitter records sent device messages.
type RecordingTransmitter struct {
	mu   sync.Mutex
	Sent []outbound.Message
	Err  error
	// Notify receives a value after every send when non-nil.
	Notify chan struct{}
}

// SendDeviceMessage records msg.
func (t *RecordingTransmitter) SendDeviceMessage(msg outbound.Message) error {
	t.mu.Lock()
	t.Sent = append(t.Sent, msg)
	err := t.Err
	t.mu.Unlock()
	if t.Notify != nil {
		t.Notify <- struct{}{}
	}
	return err
}

// Messages returns a copy of the sent messages.
func (t *RecordingTransmitter) Messages() []outbound.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]outbound.Message(nil), t.Sent...)
}

// RecordingNotifier records pushed notifications without a background sender.
type RecordingNotifier struct {
	mu         sync.Mutex
	Clipboards []string
	Acks       []uint64
}

// PushClipboardText records text.
func (n *RecordingNotifier) PushClipboardText(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Clipboards = append(n.Clipboards, text)
}

// PushAckClipboard records sequence.
func (n *RecordingNotifier) PushAckClipboard(sequence uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Acks = append(n.Acks, sequence)
}
