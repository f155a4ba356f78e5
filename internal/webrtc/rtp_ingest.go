// Package webrtc publishes the device audio stream to WebRTC peers.
package webrtc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/frudas24/remotectl/internal/audio"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// debugRTP enables per-packet ingest logs.
var debugRTP atomic.Bool

// SetDebugLogging toggles per-packet RTP ingest debug logs.
func SetDebugLogging(enabled bool) {
	debugRTP.Store(enabled)
}

type rtpListener struct {
	mu      sync.Mutex
	conn    *net.UDPConn
	log     logrus.FieldLogger
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// newRTPListener binds a UDP address for RTP ingestion.
func newRTPListener(address string, log logrus.FieldLogger) (*rtpListener, error) {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	return &rtpListener{conn: conn, log: log}, nil
}

// addr returns the bound address.
func (l *rtpListener) addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return ""
	}
	return l.conn.LocalAddr().String()
}

// start begins forwarding RTP packets into out.
func (l *rtpListener) start(out audio.PacketWriter) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return fmt.Errorf("rtp listener not initialized")
	}
	if l.running {
		return nil
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.running = true
	go l.loop(l.ctx, l.conn, out)
	return nil
}

// stop cancels the forward loop.
func (l *rtpListener) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
	l.running = false
}

// close stops forwarding and closes the UDP socket.
func (l *rtpListener) close() {
	l.stop()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
}

// loop reads RTP packets and forwards them to out.
func (l *rtpListener) loop(ctx context.Context, conn *net.UDPConn, out audio.PacketWriter) {
	buf := make([]byte, 1600)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			l.log.WithError(err).Debug("webrtc: rtp ingest stopped")
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			continue
		}
		if debugRTP.Load() {
			l.log.WithFields(logrus.Fields{
				"seq": pkt.SequenceNumber,
				"ts":  pkt.Timestamp,
				"len": len(pkt.Payload),
			}).Debug("webrtc: rtp ingest packet")
		}
		if err := out.WriteRTP(&pkt); err != nil {
			l.log.WithError(err).Debug("webrtc: forward rtp packet")
		}
	}
}
