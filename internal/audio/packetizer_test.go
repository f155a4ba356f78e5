package audio

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestL16Payloader_SwapsAndSplits verifies byte order and frame-aligned splitting.
func TestL16Payloader_SwapsAndSplits(t *testing.T) {
	p := L16Payloader{FrameSize: 4}
	out := p.Payload(10, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	require.Len(t, out, 2)
	assert.Equal(t, []byte{2, 1, 4, 3, 6, 5, 8, 7}, out[0])
	assert.Equal(t, []byte{10, 9, 12, 11}, out[1])
	assert.Nil(t, p.Payload(3, []byte{1, 2, 3, 4}))
}

// TestPacketizer_TimestampsFollowPTS verifies RTP timestamps derive from the chunk pts.
func TestPacketizer_TimestampsFollowPTS(t *testing.T) {
	p := NewPacketizer(PacketizerOptions{
		MTU:       12 + 400,
		SSRC:      7,
		Sequencer: rtp.NewFixedSequencer(100),
	})
	chunk := Chunk{Data: make([]byte, 1000), PTS: 1_000_000}
	packets := p.Packetize(chunk)
	require.Len(t, packets, 3)

	assert.Equal(t, uint32(48_000), packets[0].Timestamp)
	assert.Equal(t, uint32(48_100), packets[1].Timestamp)
	assert.Equal(t, uint32(48_200), packets[2].Timestamp)
	assert.Len(t, packets[2].Payload, 200)
	for i, pkt := range packets {
		assert.Equal(t, uint16(100+i), pkt.SequenceNumber)
		assert.Equal(t, uint32(7), pkt.SSRC)
		assert.Equal(t, uint8(DefaultPayloadType), pkt.PayloadType)
		assert.Equal(t, uint8(2), pkt.Version)
	}
	assert.Equal(t, uint32(48000), p.ClockRate())
}

type collectWriter struct {
	mu      sync.Mutex
	packets []*rtp.Packet
	err     error
}

func (c *collectWriter) WriteRTP(pkt *rtp.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packets = append(c.packets, pkt)
	return c.err
}

func (c *collectWriter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.packets)
}

// TestMultiWriter_ContinuesAfterFailure verifies every writer receives packets even when one fails.
func TestMultiWriter_ContinuesAfterFailure(t *testing.T) {
	bad := &collectWriter{err: errors.New("closed")}
	good := &collectWriter{}
	m := NewMultiWriter(bad)
	m.Add(good)
	err := m.WriteRTP(&rtp.Packet{})
	assert.Error(t, err)
	assert.Equal(t, 1, good.count())
	assert.Equal(t, 2, m.Len())
}

// TestUDPSink_SendsPackets verifies packets arrive intact on a UDP listener.
func TestUDPSink_SendsPackets(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer conn.Close()

	sink, err := DialUDP(conn.LocalAddr().String())
	require.NoError(t, err)
	defer sink.Close()

	sent := &rtp.Packet{Header: rtp.Header{Version: 2, SequenceNumber: 9, Timestamp: 480, SSRC: 3}, Payload: []byte{1, 2, 3, 4}}
	require.NoError(t, sink.WriteRTP(sent))

	buf := make([]byte, 1500)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)
	var got rtp.Packet
	require.NoError(t, got.Unmarshal(buf[:n]))
	assert.Equal(t, uint16(9), got.SequenceNumber)
	assert.Equal(t, []byte{1, 2, 3, 4}, got.Payload)
}

// TestStreamer_StreamsUntilCancelled verifies packets flow and cancellation stops the stream cleanly.
func TestStreamer_StreamsUntilCancelled(t *testing.T) {
	rec := NewToneRecorder(ToneOptions{Paced: true})
	capture, err := NewCapture(rec, fastCaptureOptions(), nil)
	require.NoError(t, err)
	out := &collectWriter{}
	s := NewStreamer(capture, NewPacketizer(PacketizerOptions{}), out, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return out.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("streamer did not stop")
	}

	out.mu.Lock()
	defer out.mu.Unlock()
	for i := 1; i < len(out.packets); i++ {
		assert.GreaterOrEqual(t, out.packets[i].Timestamp, out.packets[i-1].Timestamp)
	}
}

// endlessRecorder returns data on every Read, even after Stop.
type endlessRecorder struct {
	mu    sync.Mutex
	stops int
}

func (e *endlessRecorder) Start() error { return nil }
func (e *endlessRecorder) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stops++
	return nil
}
func (e *endlessRecorder) Read(p []byte) (int, Timestamp, error) {
	return len(p), Timestamp{}, nil
}

// TestStreamer_StopsWhenRecorderNeverFails verifies cancellation ends the stream without a read error.
func TestStreamer_StopsWhenRecorderNeverFails(t *testing.T) {
	rec := &endlessRecorder{}
	capture, err := NewCapture(rec, fastCaptureOptions(), nil)
	require.NoError(t, err)
	out := &collectWriter{}
	s := NewStreamer(capture, NewPacketizer(PacketizerOptions{}), out, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return out.count() > 0 }, 2*time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("streamer kept running after cancel")
	}
	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.stops == 1
	}, time.Second, time.Millisecond)
}

// TestStreamer_StartFailure verifies the start error reaches the caller.
func TestStreamer_StartFailure(t *testing.T) {
	capture, err := NewCapture(NewToneRecorder(ToneOptions{ForegroundRefusals: 10}), fastCaptureOptions(), nil)
	require.NoError(t, err)
	s := NewStreamer(capture, NewPacketizer(PacketizerOptions{}), &collectWriter{}, nil)
	var startErr *StartError
	assert.True(t, errors.As(s.Run(context.Background()), &startErr))
}
