// Package audio captures PCM audio, timestamps it and packetizes it for RTP.
package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"time"
)

// ErrRecorderStopped is returned by Read after Stop.
var ErrRecorderStopped = errors.New("audio recorder stopped")

// ToneOptions configures a ToneRecorder.
type ToneOptions struct {
	Format    Format
	Frequency float64
	Amplitude float64
	// Paced makes Read wait until the chunk would have been captured in real time.
	Paced bool
	// ForegroundRefusals is the number of Start calls that fail with ErrNotForeground.
	ForegroundRefusals int
	// TimestampGap drops the hardware timestamp of every n-th chunk when positive.
	TimestampGap int
}

// ToneRecorder is a synthetic recorder producing a 16-bit sine wave with a monotonic clock.
type ToneRecorder struct {
	opts ToneOptions
	now  func() time.Time

	mu       sync.Mutex
	refusals int
	started  bool
	stop     chan struct{}
	start    time.Time
	frames   int64
	chunks   int
}

// NewToneRecorder returns a tone recorder.
func NewToneRecorder(opts ToneOptions) *ToneRecorder {
	if opts.Format == (Format{}) {
		opts.Format = DefaultFormat
	}
	opts.Format.BytesPerSample = 2
	if opts.Frequency <= 0 {
		opts.Frequency = 440
	}
	if opts.Amplitude <= 0 || opts.Amplitude > 1 {
		opts.Amplitude = 0.2
	}
	return &ToneRecorder{opts: opts, now: time.Now}
}

// Start begins a new recording.
func (r *ToneRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refusals < r.opts.ForegroundRefusals {
		r.refusals++
		return ErrNotForeground
	}
	r.started = true
	r.stop = make(chan struct{})
	r.start = r.now()
	r.frames = 0
	r.chunks = 0
	return nil
}

// Stop ends the recording and unblocks Read.
func (r *ToneRecorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		close(r.stop)
		r.started = false
	}
	return nil
}

// Read fills p with whole frames of the tone.
func (r *ToneRecorder) Read(p []byte) (int, Timestamp, error) {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return 0, Timestamp{}, ErrRecorderStopped
	}
	f := r.opts.Format
	frameSize := f.FrameSize()
	count := len(p) / frameSize
	first := r.frames
	r.frames += int64(count)
	r.chunks++
	chunk := r.chunks
	startedAt := r.start
	stop := r.stop
	r.mu.Unlock()

	offset := time.Duration(first) * time.Second / time.Duration(f.SampleRate)
	if r.opts.Paced {
		end := time.Duration(first+int64(count)) * time.Second / time.Duration(f.SampleRate)
		wait := time.Until(startedAt.Add(end))
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-stop:
				timer.Stop()
				return 0, Timestamp{}, ErrRecorderStopped
			case <-timer.C:
			}
		}
	}

	for i := 0; i < count; i++ {
		t := float64(first+int64(i)) / float64(f.SampleRate)
		v := int16(r.opts.Amplitude * math.MaxInt16 * math.Sin(2*math.Pi*r.opts.Frequency*t))
		for ch := 0; ch < f.Channels; ch++ {
			pos := i*frameSize + ch*f.BytesPerSample
			binary.LittleEndian.PutUint16(p[pos:], uint16(v))
		}
	}

	if r.opts.TimestampGap > 0 && chunk%r.opts.TimestampGap == 0 {
		return count * frameSize, Timestamp{}, nil
	}
	// The clock starts at one second so a valid timestamp is never zero.
	micros := int64(time.Second/time.Microsecond) + int64(offset/time.Microsecond)
	return count * frameSize, HardwareTimestamp(micros), nil
}
