// Package audio captures PCM audio, timestamps it and packetizes it for RTP.
package audio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Capture start defaults.
const (
	DefaultStartAttempts   = 3
	DefaultStartRetryDelay = 100 * time.Millisecond
	DefaultChunkMillis     = 20
)

// ErrNotForeground is returned by recorders that may only start while the capturing process is in the foreground.
var ErrNotForeground = errors.New("audio capture requires foreground")

// Recorder is a PCM source.
// Read fills p with whole frames and reports the hardware timestamp of the data when the clock is available.
// Stop must unblock a pending Read.
type Recorder interface {
	Start() error
	Stop() error
	Read(p []byte) (int, Timestamp, error)
}

// StartError reports a recorder that could not be started.
type StartError struct {
	Attempts int
	Err      error
}

// Error implements error.
func (e *StartError) Error() string {
	return fmt.Sprintf("start audio capture after %d attempt(s): %v", e.Attempts, e.Err)
}

// Unwrap returns the last start failure.
func (e *StartError) Unwrap() error {
	return e.Err
}

// CaptureOptions configures a Capture.
type CaptureOptions struct {
	Format          Format
	StartAttempts   int
	StartRetryDelay time.Duration
	ChunkMillis     int
}

// Chunk is one timestamped block of PCM data.
type Chunk struct {
	Data     []byte
	PTS      int64
	Duration int64
}

// Capture reads timestamped chunks from a Recorder.
type Capture struct {
	rec  Recorder
	opts CaptureOptions
	ts   *Timestamper
	log  logrus.FieldLogger
	buf  []byte
}

// NewCapture returns a capture reading from rec.
func NewCapture(rec Recorder, opts CaptureOptions, log logrus.FieldLogger) (*Capture, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.Format == (Format{}) {
		opts.Format = DefaultFormat
	}
	if err := opts.Format.Validate(); err != nil {
		return nil, err
	}
	if opts.StartAttempts <= 0 {
		opts.StartAttempts = DefaultStartAttempts
	}
	if opts.StartRetryDelay <= 0 {
		opts.StartRetryDelay = DefaultStartRetryDelay
	}
	if opts.ChunkMillis <= 0 {
		opts.ChunkMillis = DefaultChunkMillis
	}
	size := opts.Format.MillisToBytes(opts.ChunkMillis)
	size -= size % opts.Format.FrameSize()
	if size == 0 {
		size = opts.Format.FrameSize()
	}
	return &Capture{
		rec:  rec,
		opts: opts,
		ts:   NewTimestamper(opts.Format, log),
		log:  log,
		buf:  make([]byte, size),
	}, nil
}

// Format returns the capture format.
func (c *Capture) Format() Format {
	return c.opts.Format
}

// Start starts the recorder and resets the timestamp history.
// A recorder refusing with ErrNotForeground is retried after a delay; other failures are not retried.
func (c *Capture) Start(ctx context.Context) error {
	c.ts.Reset()
	var err error
	for attempt := 1; attempt <= c.opts.StartAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return &StartError{Attempts: attempt - 1, Err: ctx.Err()}
		case <-time.After(c.opts.StartRetryDelay):
		}
		err = c.rec.Start()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNotForeground) {
			return &StartError{Attempts: attempt, Err: err}
		}
		if attempt < c.opts.StartAttempts {
			c.log.WithError(err).Debug("audio: failed to start capture, retrying")
		}
	}
	c.log.WithError(err).Error("audio: failed to start capture, the device must be unlocked and in the foreground")
	return &StartError{Attempts: c.opts.StartAttempts, Err: err}
}

// Stop stops the recorder.
func (c *Capture) Stop() error {
	return c.rec.Stop()
}

// Read returns the next chunk. An empty chunk means the recorder had no data.
func (c *Capture) Read() (Chunk, error) {
	n, hw, err := c.rec.Read(c.buf)
	if err != nil {
		return Chunk{}, err
	}
	if n <= 0 {
		return Chunk{}, nil
	}
	data := make([]byte, n)
	copy(data, c.buf[:n])
	return Chunk{
		Data:     data,
		PTS:      c.ts.Next(n, hw),
		Duration: c.opts.Format.DurationMicros(n),
	}, nil
}
