package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/frudas24/remotectl/internal/audio"
	"github.com/frudas24/remotectl/internal/config"
	"github.com/frudas24/remotectl/internal/control"
	"github.com/frudas24/remotectl/internal/device"
	"github.com/frudas24/remotectl/internal/outbound"
	"github.com/frudas24/remotectl/internal/session"
	"github.com/frudas24/remotectl/internal/signaling"
	"github.com/frudas24/remotectl/internal/webrtc"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig returns a validated default configuration.
func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	return cfg
}

// newTestApp builds an app on an emulated device.
func newTestApp(t *testing.T, cfg config.Config, deps Deps) (*App, *device.Emulated, *session.Session) {
	t.Helper()
	log, _ := test.NewNullLogger()
	dev := device.NewEmulated(device.EmulatedOptions{Display: cfg.Display, MaxControllers: cfg.MaxControllers, ScreenOn: true})
	deps.Device = dev
	deps.Keyboard = dev.Keyboard()
	deps.Log = log
	sess := session.New()
	a, err := New(cfg, sess, deps)
	require.NoError(t, err)
	return a, dev, sess
}

// TestRoutes_HealthAndState verifies the read-only endpoints.
func TestRoutes_HealthAndState(t *testing.T) {
	a, _, _ := newTestApp(t, testConfig(t), Deps{})
	mux := http.NewServeMux()
	a.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var state map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, true, state["inputEnabled"])
	assert.Equal(t, false, state["connected"])
	assert.Equal(t, true, state["screenOn"])
	assert.Equal(t, false, state["audioEnabled"])
}

// TestHandleInput_TogglesKillSwitch verifies the input endpoint updates the session.
func TestHandleInput_TogglesKillSwitch(t *testing.T) {
	a, _, sess := newTestApp(t, testConfig(t), Deps{})

	rec := httptest.NewRecorder()
	a.handleInput(rec, httptest.NewRequest(http.MethodPost, "/api/input", bytes.NewBufferString(`{"enabled":false}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, sess.InputEnabled())

	rec = httptest.NewRecorder()
	a.handleInput(rec, httptest.NewRequest(http.MethodPost, "/api/input", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	a.handleInput(rec, httptest.NewRequest(http.MethodGet, "/api/input", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	a.handleAudioRestart(rec, httptest.NewRequest(http.MethodPost, "/api/audio/restart", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// writeControl encodes msg onto conn.
func writeControl(t *testing.T, conn net.Conn, msg control.Message) {
	t.Helper()
	data, err := control.Encode(msg)
	require.NoError(t, err)
	_, err = conn.Write(data)
	require.NoError(t, err)
}

// TestTCPControl_EndToEnd verifies a raw stream session dispatches messages and honors the kill switch.
func TestTCPControl_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	cfg.ControlTCPAddr = "127.0.0.1:0"
	a, dev, sess := newTestApp(t, cfg, Deps{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))
	defer func() { assert.NoError(t, a.Stop()) }()

	conn, err := net.Dial("tcp", a.ControlAddr())
	require.NoError(t, err)
	defer conn.Close()

	sess.SetInputEnabled(false)
	writeControl(t, conn, control.Message{Type: control.TypeInjectKeycode, Action: device.KeyActionDown, Keycode: 29})
	writeControl(t, conn, control.Message{Type: control.TypeSetClipboard, Text: "from peer", Sequence: 3})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	ack, err := outbound.Decode(conn)
	require.NoError(t, err)
	assert.Equal(t, outbound.AckClipboardMessage(3), ack)
	assert.Empty(t, dev.KeyEvents())
	text, _ := dev.ClipboardText()
	assert.Equal(t, "from peer", text)

	snap := sess.Snapshot()
	require.True(t, snap.Connected)
	assert.Equal(t, session.TransportTCP, snap.Connection.Transport)

	sess.SetInputEnabled(true)
	writeControl(t, conn, control.Message{Type: control.TypeInjectKeycode, Action: device.KeyActionDown, Keycode: 29})
	require.Eventually(t, func() bool { return len(dev.KeyEvents()) == 1 }, 2*time.Second, 5*time.Millisecond)
}

// TestAudio_StreamsToUDPSink verifies captured audio reaches the configured RTP address.
func TestAudio_StreamsToUDPSink(t *testing.T) {
	udp, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer udp.Close()

	cfg := testConfig(t)
	cfg.AudioEnabled = true
	cfg.AudioRTPAddr = udp.LocalAddr().String()
	log, _ := test.NewNullLogger()
	publisher, err := webrtc.NewPublisher(webrtc.Options{Log: log})
	require.NoError(t, err)
	a, _, _ := newTestApp(t, cfg, Deps{
		Publisher: publisher,
		Recorder:  audio.NewToneRecorder(audio.ToneOptions{Paced: true}),
	})
	require.NoError(t, a.Start(context.Background()))
	defer func() { assert.NoError(t, a.Stop()) }()

	buf := make([]byte, 1500)
	require.NoError(t, udp.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := udp.ReadFromUDP(buf)
	require.NoError(t, err)
	var pkt rtp.Packet
	require.NoError(t, pkt.Unmarshal(buf[:n]))
	assert.Equal(t, uint8(audio.DefaultPayloadType), pkt.PayloadType)
	assert.NotEmpty(t, pkt.Payload)
}

// TestAudio_StartFailureIsReported verifies a recorder that never starts surfaces a StartError.
func TestAudio_StartFailureIsReported(t *testing.T) {
	cfg := testConfig(t)
	cfg.AudioEnabled = true
	cfg.AudioStartAttempts = 2
	cfg.AudioStartRetryMs = 1
	log, _ := test.NewNullLogger()
	publisher, err := webrtc.NewPublisher(webrtc.Options{Log: log})
	require.NoError(t, err)
	a, _, _ := newTestApp(t, cfg, Deps{
		Publisher: publisher,
		Recorder:  audio.NewToneRecorder(audio.ToneOptions{ForegroundRefusals: 10}),
	})
	require.NoError(t, a.Start(context.Background()))
	defer func() { _ = a.Stop() }()

	select {
	case err := <-a.Errors():
		var startErr *audio.StartError
		require.True(t, errors.As(err, &startErr))
		assert.Equal(t, 2, startErr.Attempts)
		assert.Equal(t, signaling.AudioFailed, a.Signaling().AudioState())
	case <-time.After(2 * time.Second):
		t.Fatal("start failure not reported")
	}
}

// countingRecorder never fails a Read and counts starts and stops.
type countingRecorder struct {
	starts atomic.Int32
	stops  atomic.Int32
}

func (r *countingRecorder) Start() error {
	r.starts.Add(1)
	return nil
}

func (r *countingRecorder) Stop() error {
	r.stops.Add(1)
	return nil
}

func (r *countingRecorder) Read(p []byte) (int, audio.Timestamp, error) {
	time.Sleep(time.Millisecond)
	return len(p), audio.Timestamp{}, nil
}

// TestRestartAudio_ConcurrentRestartsStopEveryPipeline verifies overlapping restarts leave no pipeline behind.
func TestRestartAudio_ConcurrentRestartsStopEveryPipeline(t *testing.T) {
	cfg := testConfig(t)
	cfg.AudioEnabled = true
	cfg.AudioStartRetryMs = 1
	log, _ := test.NewNullLogger()
	publisher, err := webrtc.NewPublisher(webrtc.Options{Log: log})
	require.NoError(t, err)
	rec := &countingRecorder{}
	a, _, _ := newTestApp(t, cfg, Deps{Publisher: publisher, Recorder: rec})
	require.NoError(t, a.Start(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, a.RestartAudio("api"))
		}()
	}
	wg.Wait()

	stopped := make(chan error, 1)
	go func() { stopped <- a.Stop() }()
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not return")
	}
	assert.Eventually(t, func() bool { return rec.starts.Load() == rec.stops.Load() }, 2*time.Second, 5*time.Millisecond)
	assert.Positive(t, rec.starts.Load())
}

// TestNew_RequiresAudioDeps verifies audio needs a recorder and a publisher.
func TestNew_RequiresAudioDeps(t *testing.T) {
	cfg := testConfig(t)
	cfg.AudioEnabled = true
	_, err := New(cfg, session.New(), Deps{Device: device.NewEmulated(device.EmulatedOptions{})})
	assert.Error(t, err)
}
