package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/frudas24/remotectl/internal/control"
	"github.com/frudas24/remotectl/internal/outbound"
	"github.com/frudas24/remotectl/internal/session"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoAckHandler acknowledges every received message with its type as the sequence.
func echoAckHandler(received chan<- control.Message) Handler {
	return func(_ context.Context, conn Conn, _ session.Connection) error {
		for {
			msg, err := conn.Receive()
			if err != nil {
				return err
			}
			received <- msg
			if err := conn.SendDeviceMessage(outbound.AckClipboardMessage(uint64(msg.Type))); err != nil {
				return err
			}
		}
	}
}

// dialWS connects a websocket client to srv.
func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return ws
}

// TestWebSocket_SkipsUnknownFrames verifies an unknown tag drops only its frame.
func TestWebSocket_SkipsUnknownFrames(t *testing.T) {
	log, hook := test.NewNullLogger()
	received := make(chan control.Message, 4)
	sess := session.New()
	srv := httptest.NewServer(NewServer(sess, echoAckHandler(received), log))
	defer srv.Close()

	ws := dialWS(t, srv)
	defer ws.Close()
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, []byte{0xff, 1, 2}))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("hello")))
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, []byte{byte(control.TypeCollapsePanels)}))

	select {
	case msg := <-received:
		assert.Equal(t, control.TypeCollapsePanels, msg.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)
	assert.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 0, byte(control.TypeCollapsePanels)}, data)

	var warned bool
	for _, entry := range hook.AllEntries() {
		warned = warned || strings.Contains(entry.Message, "unknown control message")
	}
	assert.True(t, warned)
	snap := sess.Snapshot()
	assert.True(t, snap.Connected)
	assert.Equal(t, session.TransportWebSocket, snap.Connection.Transport)
}

// TestWebSocket_RejectsSecondConnection verifies only one control connection is active.
func TestWebSocket_RejectsSecondConnection(t *testing.T) {
	log, _ := test.NewNullLogger()
	received := make(chan control.Message, 4)
	sess := session.New()
	srv := httptest.NewServer(NewServer(sess, echoAckHandler(received), log))
	defer srv.Close()

	first := dialWS(t, srv)
	defer first.Close()
	require.Eventually(t, func() bool { return sess.Snapshot().Connected }, 2*time.Second, 2*time.Millisecond)

	second := dialWS(t, srv)
	defer second.Close()
	require.NoError(t, second.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := second.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))

	require.NoError(t, first.Close())
	require.Eventually(t, func() bool { return !sess.Snapshot().Connected }, 2*time.Second, 2*time.Millisecond)
}

// TestStream_UnknownTagIsFatal verifies a raw stream ends on an unknown tag.
func TestStream_UnknownTagIsFatal(t *testing.T) {
	log, _ := test.NewNullLogger()
	sess := session.New()
	results := make(chan error, 1)
	handler := func(_ context.Context, conn Conn, info session.Connection) error {
		assert.Equal(t, session.TransportTCP, info.Transport)
		msg, err := conn.Receive()
		if err != nil {
			results <- err
			return err
		}
		assert.Equal(t, control.TypeRotateDevice, msg.Type)
		_, err = conn.Receive()
		results <- err
		return err
	}
	srv := NewServer(sess, handler, log)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.ServeListener(ctx, ln) }()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()
	_, err = client.Write([]byte{byte(control.TypeRotateDevice), 0xfe, 0, 0})
	require.NoError(t, err)

	select {
	case err := <-results:
		var unknown *control.UnknownTypeError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, control.Type(0xfe), unknown.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not finish")
	}

	require.Eventually(t, func() bool { return !sess.Snapshot().Connected }, 2*time.Second, 2*time.Millisecond)
	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}

// TestStream_SendsDeviceMessages verifies device messages are written back-to-back.
func TestStream_SendsDeviceMessages(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	conn := NewStreamConn(server)
	defer conn.Close()

	go func() {
		_ = conn.SendDeviceMessage(outbound.VirtualDisplayEmptyMessage())
		_ = conn.SendDeviceMessage(outbound.ClipboardMessage("hi"))
	}()

	buf := make([]byte, 1+1+4+2)
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := io.ReadFull(client, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 0, 0, 0, 0, 2, 'h', 'i'}, buf)
}
