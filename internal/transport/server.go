// Package transport carries control and device messages over websocket frames or a raw TCP stream.
package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/frudas24/remotectl/internal/session"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Handler runs one control session until the connection ends.
type Handler func(ctx context.Context, conn Conn, info session.Connection) error

// Server accepts control connections and keeps at most one active.
type Server struct {
	mu       sync.Mutex
	upgrader websocket.Upgrader
	session  *session.Session
	handler  Handler
	log      logrus.FieldLogger
	conn     Conn
}

// NewServer creates a control server.
func NewServer(sess *session.Session, handler Handler, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		session: sess,
		handler: handler,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and runs a control session over websocket frames.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := NewWSConn(ws, s.log)
	info, err := s.acceptConn(conn)
	if err != nil {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "busy"), time.Now().Add(writeTimeout))
		_ = conn.Close()
		return
	}
	defer s.cleanupConn(conn, info)
	s.run(r.Context(), conn, info)
}

// ServeListener accepts raw stream control connections until ctx ends or ln fails.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		raw, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.serveStream(ctx, raw)
	}
}

// serveStream runs a session on one accepted stream.
func (s *Server) serveStream(ctx context.Context, raw net.Conn) {
	conn := NewStreamConn(raw)
	info, err := s.acceptConn(conn)
	if err != nil {
		s.log.WithField("remote", conn.RemoteAddr()).Warn("transport: reject control connection, already active")
		_ = conn.Close()
		return
	}
	defer s.cleanupConn(conn, info)
	s.run(ctx, conn, info)
}

// run invokes the handler and logs the session outcome.
func (s *Server) run(ctx context.Context, conn Conn, info session.Connection) {
	log := s.log.WithFields(logrus.Fields{"session": info.ID, "transport": info.Transport, "remote": info.RemoteAddr})
	log.Info("transport: control session started")
	if err := s.handler(ctx, conn, info); err != nil {
		log.WithError(err).Warn("transport: control session ended with error")
		return
	}
	log.Info("transport: control session ended")
}

// acceptConn ensures only one active control connection exists.
func (s *Server) acceptConn(conn Conn) (session.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, err := s.session.Begin(conn.Transport(), conn.RemoteAddr())
	if err != nil {
		return session.Connection{}, err
	}
	s.conn = conn
	return info, nil
}

// cleanupConn clears the active connection when closed.
func (s *Server) cleanupConn(conn Conn, info session.Connection) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	s.session.End(info.ID)
	_ = conn.Close()
}

// CloseActive closes the active control connection, if any.
func (s *Server) CloseActive() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}
