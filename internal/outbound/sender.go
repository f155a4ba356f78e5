// Package outbound coalesces device notifications and sends them to the peer.
package outbound

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Transmitter writes device messages to the connection.
type Transmitter interface {
	SendDeviceMessage(msg Message) error
}

// Sender holds at most one pending value per notification kind.
// Setters never block; Run owns the outbound direction of the connection.
type Sender struct {
	tx  Transmitter
	log logrus.FieldLogger

	mu           sync.Mutex
	clipboard    string
	hasClipboard bool
	ack          uint64
	hasAck       bool
	displayEmpty bool
	wake         chan struct{}
}

// NewSender returns a sender writing to tx.
func NewSender(tx Transmitter, log logrus.FieldLogger) *Sender {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sender{tx: tx, log: log, wake: make(chan struct{}, 1)}
}

// PushClipboardText replaces the pending clipboard text.
func (s *Sender) PushClipboardText(text string) {
	s.mu.Lock()
	s.clipboard = text
	s.hasClipboard = true
	s.mu.Unlock()
	s.signal()
}

// PushAckClipboard replaces the pending clipboard acknowledgement.
func (s *Sender) PushAckClipboard(sequence uint64) {
	s.mu.Lock()
	s.ack = sequence
	s.hasAck = true
	s.mu.Unlock()
	s.signal()
}

// PushVirtualDisplayEmpty sets the pending empty virtual display notice.
func (s *Sender) PushVirtualDisplayEmpty() {
	s.mu.Lock()
	s.displayEmpty = true
	s.mu.Unlock()
	s.signal()
}

// signal wakes Run without blocking.
func (s *Sender) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run sends pending notifications until ctx is done or a send fails.
// Each cycle drains every field at once and sends ack, then clipboard, then the display notice.
func (s *Sender) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
		}
		for _, msg := range s.drain() {
			if err := s.tx.SendDeviceMessage(msg); err != nil {
				s.log.WithError(err).WithField("type", msg.Type).Debug("outbound: send failed")
				return err
			}
		}
	}
}

// drain takes every pending value in one critical section.
func (s *Sender) drain() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Message
	if s.hasAck {
		out = append(out, AckClipboardMessage(s.ack))
		s.hasAck = false
	}
	if s.hasClipboard {
		out = append(out, ClipboardMessage(s.clipboard))
		s.clipboard = ""
		s.hasClipboard = false
	}
	if s.displayEmpty {
		out = append(out, VirtualDisplayEmptyMessage())
		s.displayEmpty = false
	}
	return out
}
