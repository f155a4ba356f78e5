// Package transport carries control and device messages over websocket frames or a raw TCP stream.
package transport

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/frudas24/remotectl/internal/control"
	"github.com/frudas24/remotectl/internal/outbound"
	"github.com/frudas24/remotectl/internal/session"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const writeTimeout = 5 * time.Second

// Conn is one control connection.
type Conn interface {
	control.Receiver
	outbound.Transmitter
	Close() error
	RemoteAddr() string
	Transport() string
}

// WSConn reads one control message per binary websocket frame.
type WSConn struct {
	conn *websocket.Conn
	log  logrus.FieldLogger
	wmu  sync.Mutex
}

// NewWSConn wraps an upgraded websocket connection.
func NewWSConn(conn *websocket.Conn, log logrus.FieldLogger) *WSConn {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &WSConn{conn: conn, log: log}
}

// Receive returns the next decodable control message.
// Frames that fail to decode are skipped because frame boundaries stay intact.
func (c *WSConn) Receive() (control.Message, error) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return control.Message{}, err
		}
		if kind != websocket.BinaryMessage {
			c.log.WithField("kind", kind).Debug("transport: ignore non-binary frame")
			continue
		}
		msg, err := control.DecodeBytes(data)
		if err != nil {
			var unknown *control.UnknownTypeError
			if errors.As(err, &unknown) {
				c.log.WithField("type", int(unknown.Type)).Warn("transport: skip unknown control message")
			} else {
				c.log.WithError(err).Warn("transport: skip malformed control frame")
			}
			continue
		}
		return msg, nil
	}
}

// SendDeviceMessage writes msg as one binary frame.
func (c *WSConn) SendDeviceMessage(msg outbound.Message) error {
	data, err := msg.MarshalBinary()
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Close closes the underlying websocket.
func (c *WSConn) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the peer address.
func (c *WSConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Transport returns the transport name.
func (c *WSConn) Transport() string {
	return session.TransportWebSocket
}

// StreamConn reads back-to-back control messages from a byte stream.
// Any decode error ends the session since the stream cannot be resynchronized.
type StreamConn struct {
	conn net.Conn
	r    *bufio.Reader
	wmu  sync.Mutex
}

// NewStreamConn wraps a raw stream connection.
func NewStreamConn(conn net.Conn) *StreamConn {
	return &StreamConn{conn: conn, r: bufio.NewReader(conn)}
}

// Receive decodes the next control message from the stream.
func (c *StreamConn) Receive() (control.Message, error) {
	return control.Decode(c.r)
}

// SendDeviceMessage writes msg to the stream.
func (c *StreamConn) SendDeviceMessage(msg outbound.Message) error {
	data, err := msg.MarshalBinary()
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err = c.conn.Write(data)
	return err
}

// Close closes the stream.
func (c *StreamConn) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the peer address.
func (c *StreamConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Transport returns the transport name.
func (c *StreamConn) Transport() string {
	return session.TransportTCP
}
