// Package audio captures PCM audio, timestamps it and packetizes it for RTP.
package audio

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// Streamer moves chunks from a capture through a packetizer to a writer.
type Streamer struct {
	capture    *Capture
	packetizer *Packetizer
	out        PacketWriter
	log        logrus.FieldLogger
}

// NewStreamer returns a streamer.
func NewStreamer(capture *Capture, packetizer *Packetizer, out PacketWriter, log logrus.FieldLogger) *Streamer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Streamer{capture: capture, packetizer: packetizer, out: out, log: log}
}

// Run starts the capture and streams until ctx is done or the recorder fails.
// A start failure is returned as a *StartError.
func (s *Streamer) Run(ctx context.Context) error {
	if err := s.capture.Start(ctx); err != nil {
		return err
	}
	stopped := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-stopped:
		}
		_ = s.capture.Stop()
	}()
	defer close(stopped)

	s.log.WithField("format", s.capture.Format()).Info("audio: streaming started")
	for {
		if ctx.Err() != nil {
			s.log.Info("audio: streaming stopped")
			return nil
		}
		chunk, err := s.capture.Read()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrRecorderStopped) {
				s.log.Info("audio: streaming stopped")
				return nil
			}
			return err
		}
		if len(chunk.Data) == 0 {
			continue
		}
		for _, pkt := range s.packetizer.Packetize(chunk) {
			if err := s.out.WriteRTP(pkt); err != nil {
				s.log.WithError(err).Debug("audio: write rtp")
			}
		}
	}
}
