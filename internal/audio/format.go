// Package audio captures PCM audio, timestamps it and packetizes it for RTP.
package audio

import "fmt"

// Format describes interleaved signed PCM audio.
type Format struct {
	SampleRate     int
	Channels       int
	BytesPerSample int
}

// DefaultFormat is 48 kHz stereo 16-bit PCM.
var DefaultFormat = Format{SampleRate: 48000, Channels: 2, BytesPerSample: 2}

// Validate checks that every field is positive.
func (f Format) Validate() error {
	if f.SampleRate <= 0 || f.Channels <= 0 || f.BytesPerSample <= 0 {
		return fmt.Errorf("invalid audio format %+v", f)
	}
	return nil
}

// FrameSize returns the byte size of one sample for every channel.
func (f Format) FrameSize() int {
	return f.Channels * f.BytesPerSample
}

// BytesPerSecond returns the PCM data rate.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.FrameSize()
}

// DurationMicros returns the playback duration of n bytes.
func (f Format) DurationMicros(n int) int64 {
	return int64(n) * 1_000_000 / int64(f.BytesPerSecond())
}

// MillisToBytes returns the byte size of ms milliseconds of audio.
func (f Format) MillisToBytes(ms int) int {
	return f.BytesPerSecond() * ms / 1000
}
