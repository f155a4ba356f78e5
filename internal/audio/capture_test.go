package audio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenRecorder struct {
	starts int
}

func (b *brokenRecorder) Start() error {
	b.starts++
	return errors.New("no audio device")
}
func (b *brokenRecorder) Stop() error                           { return nil }
func (b *brokenRecorder) Read([]byte) (int, Timestamp, error) { return 0, Timestamp{}, nil }

func fastCaptureOptions() CaptureOptions {
	return CaptureOptions{StartRetryDelay: time.Millisecond, ChunkMillis: 10}
}

// TestCapture_RetriesForeground verifies foreground refusals are retried within the attempt budget.
func TestCapture_RetriesForeground(t *testing.T) {
	rec := NewToneRecorder(ToneOptions{ForegroundRefusals: 2})
	c, err := NewCapture(rec, fastCaptureOptions(), nil)
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	chunk, err := c.Read()
	require.NoError(t, err)
	assert.Len(t, chunk.Data, DefaultFormat.MillisToBytes(10))
	assert.Equal(t, int64(10_000), chunk.Duration)
	assert.Equal(t, int64(1_000_000), chunk.PTS)
}

// TestCapture_StartErrorAfterAttempts verifies the typed error once retries are exhausted.
func TestCapture_StartErrorAfterAttempts(t *testing.T) {
	rec := NewToneRecorder(ToneOptions{ForegroundRefusals: 5})
	c, err := NewCapture(rec, fastCaptureOptions(), nil)
	require.NoError(t, err)

	err = c.Start(context.Background())
	var startErr *StartError
	require.True(t, errors.As(err, &startErr))
	assert.Equal(t, DefaultStartAttempts, startErr.Attempts)
	assert.ErrorIs(t, err, ErrNotForeground)
}

// TestCapture_OtherErrorsNotRetried verifies only foreground refusals are retried.
func TestCapture_OtherErrorsNotRetried(t *testing.T) {
	rec := &brokenRecorder{}
	c, err := NewCapture(rec, fastCaptureOptions(), nil)
	require.NoError(t, err)
	err = c.Start(context.Background())
	var startErr *StartError
	require.True(t, errors.As(err, &startErr))
	assert.Equal(t, 1, startErr.Attempts)
	assert.Equal(t, 1, rec.starts)
}

// TestCapture_TimestampGapsExtrapolate verifies chunks without a hardware clock keep advancing.
func TestCapture_TimestampGapsExtrapolate(t *testing.T) {
	rec := NewToneRecorder(ToneOptions{TimestampGap: 2})
	c, err := NewCapture(rec, fastCaptureOptions(), nil)
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	var pts []int64
	for i := 0; i < 4; i++ {
		chunk, err := c.Read()
		require.NoError(t, err)
		pts = append(pts, chunk.PTS)
	}
	assert.Equal(t, []int64{1_000_000, 1_010_000, 1_020_000, 1_030_000}, pts)
}

// TestToneRecorder_StopUnblocksRead verifies a paced read returns once stopped.
func TestToneRecorder_StopUnblocksRead(t *testing.T) {
	rec := NewToneRecorder(ToneOptions{Paced: true})
	require.NoError(t, rec.Start())
	buf := make([]byte, DefaultFormat.MillisToBytes(5000))
	done := make(chan error, 1)
	go func() {
		_, _, err := rec.Read(buf)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, rec.Stop())
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrRecorderStopped)
	case <-time.After(2 * time.Second):
		t.Fatal("read did not return")
	}
}
