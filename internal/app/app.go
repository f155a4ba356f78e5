// Package app wires HTTP, control sessions, signaling and the audio pipeline together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/frudas24/remotectl/internal/audio"
	"github.com/frudas24/remotectl/internal/config"
	"github.com/frudas24/remotectl/internal/control"
	"github.com/frudas24/remotectl/internal/device"
	"github.com/frudas24/remotectl/internal/engine"
	"github.com/frudas24/remotectl/internal/hexkey"
	"github.com/frudas24/remotectl/internal/session"
	"github.com/frudas24/remotectl/internal/signaling"
	"github.com/frudas24/remotectl/internal/transport"
	"github.com/frudas24/remotectl/internal/webrtc"
	"github.com/sirupsen/logrus"
)

// Deps are the runtime collaborators of an App. Keyboard, Publisher and Recorder are optional.
type Deps struct {
	Device    device.Device
	Keyboard  hexkey.Keyboard
	Publisher *webrtc.Publisher
	Recorder  audio.Recorder
	Log       logrus.FieldLogger
}

// App coordinates the HTTP API, control sessions and the audio pipeline.
type App struct {
	cfg       config.Config
	session   *session.Session
	dev       device.Device
	keyboard  hexkey.Keyboard
	publisher *webrtc.Publisher
	recorder  audio.Recorder
	log       logrus.FieldLogger

	control   *transport.Server
	signaling *signaling.Server
	audioOut  *audio.MultiWriter
	udpSink   *audio.UDPSink

	restartMu sync.Mutex

	mu          sync.Mutex
	ctx         context.Context
	audioCancel context.CancelFunc
	audioDone   chan struct{}
	listener    net.Listener
	wg          sync.WaitGroup
	errCh       chan error
}

// New creates a new application with its dependencies wired.
func New(cfg config.Config, sess *session.Session, deps Deps) (*App, error) {
	if sess == nil {
		return nil, errors.New("session is required")
	}
	if deps.Device == nil {
		return nil, errors.New("device is required")
	}
	if cfg.AudioEnabled && deps.Recorder == nil {
		return nil, errors.New("audio recorder is required when audio is enabled")
	}
	if (cfg.AudioEnabled || cfg.AudioIngestAddr != "") && deps.Publisher == nil {
		return nil, errors.New("webrtc publisher is required for audio")
	}
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	a := &App{
		cfg:       cfg,
		session:   sess,
		dev:       deps.Device,
		keyboard:  deps.Keyboard,
		publisher: deps.Publisher,
		recorder:  deps.Recorder,
		log:       log,
		errCh:     make(chan error, 4),
	}
	a.control = transport.NewServer(sess, a.runSession, log.WithField("component", "transport"))
	if a.publisher != nil {
		a.signaling = signaling.NewServer(a.publisher, signaling.ListenerReplace, log.WithField("component", "signaling"))
		a.audioOut = audio.NewMultiWriter(a.publisher)
	}
	return a, nil
}

// Start opens the optional TCP control listener and the audio pipeline.
// Fatal runtime errors are reported on Errors.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()

	if a.cfg.AudioRTPAddr != "" && a.audioOut != nil {
		sink, err := audio.DialUDP(a.cfg.AudioRTPAddr)
		if err != nil {
			return fmt.Errorf("audio rtp sink: %w", err)
		}
		a.udpSink = sink
		a.audioOut.Add(sink)
	}
	if a.cfg.AudioIngestAddr != "" {
		if err := a.publisher.AttachRTP(a.cfg.AudioIngestAddr); err != nil {
			return fmt.Errorf("audio ingest: %w", err)
		}
		if err := a.publisher.StartForwarding(); err != nil {
			return err
		}
		a.log.WithField("addr", a.publisher.RTPAddr()).Info("app: audio ingest listening")
	}

	if a.cfg.ControlTCPAddr != "" {
		ln, err := net.Listen("tcp", a.cfg.ControlTCPAddr)
		if err != nil {
			return fmt.Errorf("control listener: %w", err)
		}
		a.mu.Lock()
		a.listener = ln
		a.mu.Unlock()
		a.log.WithField("addr", ln.Addr().String()).Info("app: tcp control listening")
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.control.ServeListener(ctx, ln); err != nil {
				a.report(fmt.Errorf("control listener: %w", err))
			}
		}()
	}

	if a.cfg.AudioEnabled {
		return a.RestartAudio("startup")
	}
	return nil
}

// Errors reports fatal runtime failures such as an audio capture that could not start.
func (a *App) Errors() <-chan error {
	return a.errCh
}

// ControlAddr returns the TCP control listener address, empty when disabled.
func (a *App) ControlAddr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Stop closes the active session, the audio pipeline and the listeners.
func (a *App) Stop() error {
	a.restartMu.Lock()
	a.stopAudio()
	a.restartMu.Unlock()
	a.control.CloseActive()
	a.mu.Lock()
	ln := a.listener
	a.listener = nil
	a.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
	a.wg.Wait()
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.udpSink != nil {
		return a.udpSink.Close()
	}
	return nil
}

// RestartAudio restarts the capture pipeline and asks listeners to renegotiate.
// Concurrent restarts are serialized so only one pipeline runs at a time.
func (a *App) RestartAudio(reason string) error {
	if !a.cfg.AudioEnabled {
		return errors.New("audio is disabled")
	}
	a.restartMu.Lock()
	defer a.restartMu.Unlock()
	a.stopAudio()

	capture, err := audio.NewCapture(a.recorder, audio.CaptureOptions{
		StartAttempts:   a.cfg.AudioStartAttempts,
		StartRetryDelay: time.Duration(a.cfg.AudioStartRetryMs) * time.Millisecond,
		ChunkMillis:     a.cfg.AudioChunkMs,
	}, a.log.WithField("component", "audio"))
	if err != nil {
		return err
	}
	packetizer := audio.NewPacketizer(audio.PacketizerOptions{Format: capture.Format()})
	streamer := audio.NewStreamer(capture, packetizer, a.audioOut, a.log.WithField("component", "audio"))

	a.mu.Lock()
	parent := a.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	a.audioCancel = cancel
	a.audioDone = done
	a.mu.Unlock()

	a.signaling.NotifyAudio(signaling.AudioStarted, nil)
	go func() {
		defer close(done)
		if err := streamer.Run(ctx); err != nil && ctx.Err() == nil {
			a.log.WithError(err).Error("app: audio pipeline failed")
			a.signaling.NotifyAudio(signaling.AudioFailed, err)
			a.report(err)
		}
	}()
	a.log.WithField("reason", reason).Info("app: audio pipeline started")
	a.signaling.NotifyRestart()
	return nil
}

// stopAudio cancels the running audio pipeline and waits for it.
func (a *App) stopAudio() {
	a.mu.Lock()
	cancel, done := a.audioCancel, a.audioDone
	a.audioCancel, a.audioDone = nil, nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// report forwards a fatal error without blocking.
func (a *App) report(err error) {
	select {
	case a.errCh <- err:
	default:
	}
}

// runSession drives one control connection through a session engine.
func (a *App) runSession(ctx context.Context, conn transport.Conn, info session.Connection) error {
	deps := engine.Deps{
		Device:      a.session.Gate(a.dev),
		Keyboard:    a.keyboard,
		Receiver:    conn,
		Transmitter: conn,
		Closer:      conn,
		Log:         a.log.WithFields(logrus.Fields{"component": "control", "session": info.ID}),
	}
	if factory, ok := a.dev.(device.ControllerFactory); ok {
		deps.Controllers = factory
	}
	if watcher, ok := a.dev.(device.ClipboardWatcher); ok {
		deps.Clipboard = watcher
	}
	if observer, ok := a.dev.(device.DisplayObserver); ok {
		deps.Display = observer
	}
	return engine.Run(ctx, engine.Options{Control: a.controlOptions()}, deps)
}

// controlOptions maps configuration onto dispatcher options.
func (a *App) controlOptions() control.Options {
	return control.Options{
		MaxPointers:       a.cfg.MaxPointers,
		ClipboardAutosync: a.cfg.ClipboardAutosync,
		PowerOn:           a.cfg.PowerOn,
		PowerOnSettle:     time.Duration(a.cfg.PowerOnSettleMs) * time.Millisecond,
		PowerOffDelay:     time.Duration(a.cfg.PowerOffDelayMs) * time.Millisecond,
	}
}

// Control returns the control websocket handler.
func (a *App) Control() *transport.Server {
	return a.control
}

// Signaling returns the signaling websocket handler, nil without a publisher.
func (a *App) Signaling() *signaling.Server {
	return a.signaling
}
