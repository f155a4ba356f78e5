// Package main starts the remotectl server.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/frudas24/remotectl/internal/app"
	"github.com/frudas24/remotectl/internal/audio"
	"github.com/frudas24/remotectl/internal/config"
	"github.com/frudas24/remotectl/internal/device"
	"github.com/frudas24/remotectl/internal/hexkey"
	"github.com/frudas24/remotectl/internal/logging"
	"github.com/frudas24/remotectl/internal/session"
	"github.com/frudas24/remotectl/internal/webrtc"
	"github.com/frudas24/remotectl/internal/wininput"
	"github.com/sirupsen/logrus"
)

// run wires the application and blocks until shutdown.
func run(parent context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	log, err := logging.New(logging.Options{Level: level, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	webrtc.SetDebugLogging(debug)
	logStartup(log, cfg)

	dev := device.NewEmulated(device.EmulatedOptions{
		Display:        cfg.Display,
		MaxControllers: cfg.MaxControllers,
		ScreenOn:       !cfg.PowerOn,
	})
	keyboard, err := selectKeyboard(cfg, dev, log)
	if err != nil {
		return err
	}

	deps := app.Deps{Device: dev, Keyboard: keyboard, Log: log}
	if cfg.AudioEnabled || cfg.AudioIngestAddr != "" {
		publisher, err := webrtc.NewPublisher(webrtc.Options{Log: logging.Component(log, "webrtc")})
		if err != nil {
			return err
		}
		deps.Publisher = publisher
	}
	if cfg.AudioEnabled {
		deps.Recorder = audio.NewToneRecorder(audio.ToneOptions{Paced: true})
	}

	appInstance, err := app.New(cfg, session.New(), deps)
	if err != nil {
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := appInstance.Start(ctx); err != nil {
		_ = appInstance.Stop()
		return err
	}
	defer func() {
		if err := appInstance.Stop(); err != nil {
			log.WithError(err).Warn("shutdown: stop app")
		}
	}()

	mux := http.NewServeMux()
	appInstance.RegisterRoutes(mux)
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown: signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	case err := <-appInstance.Errors():
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// selectKeyboard returns the configured text injection keyboard.
func selectKeyboard(cfg config.Config, dev *device.Emulated, log logrus.FieldLogger) (hexkey.Keyboard, error) {
	if cfg.KeyboardBackend != config.KeyboardHost {
		return dev.Keyboard(), nil
	}
	kb, err := wininput.New()
	if err != nil {
		return nil, err
	}
	log.Info("keyboard: host scancode injection enabled")
	return kb, nil
}

// logStartup prints startup checks and connection info.
func logStartup(log logrus.FieldLogger, cfg config.Config) {
	log.WithField("version", version).Info("remotectl starting")
	logEnvStatus(log, cfg)
	log.WithFields(logrus.Fields{
		"display":   cfg.DisplaySize,
		"pointers":  cfg.MaxPointers,
		"autosync":  cfg.ClipboardAutosync,
		"audio":     cfg.AudioEnabled,
		"keyboard":  cfg.KeyboardBackend,
		"tcp":       cfg.ControlTCPAddr,
		"rtpOutput": cfg.AudioRTPAddr,
	}).Info("config loaded")
	logListenStatus(log, cfg.ListenAddr)
}

// logEnvStatus reports which configuration files were found.
func logEnvStatus(log logrus.FieldLogger, cfg config.Config) {
	envPath := filepath.Join(cfg.DataDir, ".env")
	if fileExists(envPath) {
		log.Infof("env check: ok (%s)", envPath)
	} else {
		log.Infof("env check: missing (%s)", envPath)
	}
	if cfg.ConfigPath != "" {
		log.Infof("config file: %s", cfg.ConfigPath)
	}
}

// logListenStatus reports the listen address and a local URL helper.
func logListenStatus(log logrus.FieldLogger, addr string) {
	log.Infof("listen addr: %s", addr)
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	log.Infof("control url: ws://%s/ws/control", net.JoinHostPort(host, port))
}

// fileExists reports whether a path exists and is a file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
