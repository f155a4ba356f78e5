// Package audio captures PCM audio, timestamps it and packetizes it for RTP.
package audio

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/pion/rtp"
)

// PacketWriter consumes RTP packets.
type PacketWriter interface {
	WriteRTP(pkt *rtp.Packet) error
}

// UDPSink sends RTP packets to a UDP address.
type UDPSink struct {
	conn net.Conn
	buf  []byte
}

// DialUDP returns a sink sending to addr.
func DialUDP(addr string) (*UDPSink, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial rtp sink %s: %w", addr, err)
	}
	return &UDPSink{conn: conn, buf: make([]byte, 1600)}, nil
}

// WriteRTP marshals and sends pkt.
func (s *UDPSink) WriteRTP(pkt *rtp.Packet) error {
	n, err := pkt.MarshalTo(s.buf)
	if err != nil {
		return err
	}
	_, err = s.conn.Write(s.buf[:n])
	return err
}

// Close closes the socket.
func (s *UDPSink) Close() error {
	return s.conn.Close()
}

// MultiWriter fans packets out to several writers.
type MultiWriter struct {
	mu      sync.RWMutex
	writers []PacketWriter
}

// NewMultiWriter returns a writer sending to every w.
func NewMultiWriter(writers ...PacketWriter) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Add registers another writer.
func (m *MultiWriter) Add(w PacketWriter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writers = append(m.writers, w)
}

// Len returns the number of writers.
func (m *MultiWriter) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.writers)
}

// WriteRTP writes pkt to every writer; a failing writer does not stop the others.
func (m *MultiWriter) WriteRTP(pkt *rtp.Packet) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var errs []error
	for _, w := range m.writers {
		if err := w.WriteRTP(pkt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
