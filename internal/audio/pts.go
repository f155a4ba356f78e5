// Package audio captures PCM audio, timestamps it and packetizes it for RTP.
package audio

import "github.com/sirupsen/logrus"

// Timestamp is an optional hardware timestamp in microseconds.
type Timestamp struct {
	Micros int64
	Valid  bool
}

// HardwareTimestamp returns a valid timestamp.
func HardwareTimestamp(micros int64) Timestamp {
	return Timestamp{Micros: micros, Valid: true}
}

// Timestamper assigns strictly ordered presentation timestamps to captured chunks.
// It prefers the hardware clock and extrapolates from the previous chunk when the clock is unavailable.
type Timestamper struct {
	format   Format
	log      logrus.FieldLogger
	previous int64
	next     int64
}

// NewTimestamper returns a timestamper for format.
func NewTimestamper(format Format, log logrus.FieldLogger) *Timestamper {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Timestamper{format: format, log: log}
}

// Next returns the pts of a chunk of n bytes.
func (t *Timestamper) Next(n int, hw Timestamp) int64 {
	var pts int64
	if hw.Valid {
		pts = hw.Micros
	} else {
		if t.next == 0 {
			t.log.Warn("audio: could not get any audio timestamp")
		}
		pts = t.next
	}

	t.next = pts + t.format.DurationMicros(n)

	if t.previous != 0 && pts < t.previous {
		pts = t.previous + 1
	}
	t.previous = pts
	return pts
}

// Reset forgets the stream history; call it when capture restarts.
func (t *Timestamper) Reset() {
	t.previous = 0
	t.next = 0
}
