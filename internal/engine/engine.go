// Package engine runs one control session: dispatcher, outbound sender and device observers.
package engine

import (
	"context"
	"io"
	"sync"

	"github.com/frudas24/remotectl/internal/control"
	"github.com/frudas24/remotectl/internal/device"
	"github.com/frudas24/remotectl/internal/hexkey"
	"github.com/frudas24/remotectl/internal/outbound"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Options configures a session engine.
type Options struct {
	Control control.Options
}

// Deps are the collaborators of a session engine.
// Keyboard, Controllers, Clipboard and Display are optional.
type Deps struct {
	Device      device.Device
	Keyboard    hexkey.Keyboard
	Controllers device.ControllerFactory
	Clipboard   device.ClipboardWatcher
	Display     device.DisplayObserver
	Receiver    control.Receiver
	Transmitter outbound.Transmitter
	// Closer unblocks Receiver when the session stops.
	Closer io.Closer
	Log    logrus.FieldLogger
}

// Engine owns the goroutines of one control session.
type Engine struct {
	opts Options
	deps Deps
	log  logrus.FieldLogger

	controller *control.Controller
	sender     *outbound.Sender

	cancel   context.CancelFunc
	group    *errgroup.Group
	stops    []func()
	waitOnce sync.Once
	waitErr  error
}

// New builds an engine; nothing runs until Start.
func New(opts Options, deps Deps) *Engine {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	if deps.Clipboard == nil {
		opts.Control.ClipboardAutosync = false
	}
	sender := outbound.NewSender(deps.Transmitter, log)
	return &Engine{
		opts:       opts,
		deps:       deps,
		log:        log,
		sender:     sender,
		controller: control.New(deps.Device, deps.Keyboard, sender, deps.Controllers, opts.Control, log),
	}
}

// Controller exposes the dispatcher.
func (e *Engine) Controller() *control.Controller {
	return e.controller
}

// Sender exposes the outbound coalescer.
func (e *Engine) Sender() *outbound.Sender {
	return e.sender
}

// Start launches the dispatcher, the sender and the device observers.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)
	e.group = group

	if e.opts.Control.ClipboardAutosync {
		e.stops = append(e.stops, e.deps.Clipboard.WatchClipboard(e.sender.PushClipboardText))
	}
	if e.deps.Display != nil {
		e.stops = append(e.stops, e.deps.Display.OnVirtualDisplayEmpty(e.sender.PushVirtualDisplayEmpty))
	}

	group.Go(func() error {
		defer e.cancel()
		return e.controller.Run(gctx, e.deps.Receiver)
	})
	group.Go(func() error {
		return e.sender.Run(gctx)
	})
	group.Go(func() error {
		<-gctx.Done()
		if e.deps.Closer != nil {
			if err := e.deps.Closer.Close(); err != nil {
				e.log.WithError(err).Debug("engine: close connection")
			}
		}
		return nil
	})
	e.log.Debug("engine: started")
}

// Wait blocks until the session ends and releases its resources.
// It returns the first goroutine error, such as a failed send.
func (e *Engine) Wait() error {
	e.waitOnce.Do(func() {
		if e.group == nil {
			return
		}
		e.waitErr = e.group.Wait()
		for _, stop := range e.stops {
			stop()
		}
		e.controller.Close()
		e.log.Debug("engine: stopped")
	})
	return e.waitErr
}

// Stop ends the session and waits for it.
func (e *Engine) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	return e.Wait()
}

// Run starts the engine and waits for it.
func Run(ctx context.Context, opts Options, deps Deps) error {
	e := New(opts, deps)
	e.Start(ctx)
	return e.Wait()
}
