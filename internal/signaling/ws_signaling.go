// Package signaling negotiates WebRTC audio peers over a websocket.
package signaling

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
)

// ListenerPolicy controls how additional listeners are handled.
type ListenerPolicy int

const (
	// ListenerReject rejects new connections when one is active.
	ListenerReject ListenerPolicy = iota
	// ListenerReplace closes the active connection when a new one arrives.
	ListenerReplace
)

var (
	errListenerBusy     = errors.New("listener already connected")
	errListenerInactive = errors.New("listener no longer active")
)

// PeerFactory creates a peer connection carrying the published audio track.
type PeerFactory interface {
	NewPeer() (*webrtc.PeerConnection, error)
}

// listener is one connected audio consumer.
type listener struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	peer    *webrtc.PeerConnection
	log     logrus.FieldLogger
}

// send writes msg to the listener websocket.
func (l *listener) send(msg Message) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return l.ws.WriteJSON(msg)
}

// Server negotiates audio peers and relays audio source state to the listener.
type Server struct {
	mu       sync.Mutex
	upgrader websocket.Upgrader
	peers    PeerFactory
	policy   ListenerPolicy
	log      logrus.FieldLogger
	active   *listener
	audio    Message
}

// NewServer creates a signaling server with the chosen listener policy.
func NewServer(peers PeerFactory, policy ListenerPolicy, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		peers:  peers,
		policy: policy,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and negotiates one audio peer.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	l := &listener{ws: ws, log: s.log.WithField("remote", r.RemoteAddr)}
	state, err := s.claim(l)
	if err != nil {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = ws.Close()
		return
	}
	defer s.release(l)
	l.log.Info("signaling: listener connected")
	if state.T != "" {
		_ = l.send(state)
	}

	peer, err := s.peers.NewPeer()
	if err != nil {
		l.log.WithError(err).Warn("signaling: create peer")
		return
	}
	if err := s.bindPeer(l, peer); err != nil {
		_ = peer.Close()
		return
	}
	peer.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		candidate := c.ToJSON()
		_ = s.sendIfActive(l, Message{T: TypeICE, Candidate: &candidate})
	})
	peer.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		l.log.WithField("state", state.String()).Debug("signaling: peer state")
	})

	for {
		var msg Message
		if err := ws.ReadJSON(&msg); err != nil {
			return
		}
		if err := s.handle(l, msg); err != nil {
			l.log.WithError(err).WithField("t", msg.T).Warn("signaling: message failed")
			return
		}
	}
}

// NotifyRestart asks the active listener to renegotiate after the audio source restarted.
func (s *Server) NotifyRestart() {
	s.broadcast(Message{T: TypeRestart})
}

// NotifyAudio records the audio source state and forwards it to the active listener.
// Listeners connecting later receive the last recorded state first.
func (s *Server) NotifyAudio(state string, cause error) {
	msg := Message{T: TypeAudio, State: state}
	if cause != nil {
		msg.Error = cause.Error()
	}
	s.mu.Lock()
	s.audio = msg
	s.mu.Unlock()
	s.broadcast(msg)
}

// AudioState returns the last recorded audio source state, empty before any notice.
func (s *Server) AudioState() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audio.State
}

// Active reports whether a listener is connected.
func (s *Server) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// broadcast sends msg to the active listener, if any.
func (s *Server) broadcast(msg Message) {
	s.mu.Lock()
	l := s.active
	s.mu.Unlock()
	if l == nil {
		return
	}
	if err := l.send(msg); err != nil {
		l.log.WithError(err).Debug("signaling: send notice")
	}
}

// claim makes l the active listener and returns the audio state to greet it with.
func (s *Server) claim(l *listener) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev := s.active; prev != nil {
		if s.policy != ListenerReplace {
			return Message{}, errListenerBusy
		}
		prev.log.Info("signaling: listener replaced")
		_ = prev.ws.Close()
	}
	s.active = l
	return s.audio, nil
}

// bindPeer attaches peer to l while l is still the active listener.
func (s *Server) bindPeer(l *listener, peer *webrtc.PeerConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != l {
		return errListenerInactive
	}
	l.peer = peer
	return nil
}

// release drops l and closes its peer.
func (s *Server) release(l *listener) {
	s.mu.Lock()
	if s.active == l {
		s.active = nil
	}
	peer := l.peer
	l.peer = nil
	s.mu.Unlock()
	if peer != nil {
		_ = peer.Close()
	}
	_ = l.ws.Close()
	l.log.Info("signaling: listener disconnected")
}

// sendIfActive writes msg only while l is the active listener.
func (s *Server) sendIfActive(l *listener, msg Message) error {
	s.mu.Lock()
	active := s.active == l
	s.mu.Unlock()
	if !active {
		return errListenerInactive
	}
	return l.send(msg)
}

// handle dispatches one signaling message from l.
func (s *Server) handle(l *listener, msg Message) error {
	switch msg.T {
	case TypeOffer:
		return s.answer(l, msg.SDP)
	case TypeICE:
		if msg.Candidate == nil {
			return nil
		}
		return l.peer.AddICECandidate(*msg.Candidate)
	default:
		return nil
	}
}

// answer applies an SDP offer and replies with a fully gathered answer.
func (s *Server) answer(l *listener, sdp string) error {
	if sdp == "" {
		return errors.New("empty offer")
	}
	peer := l.peer
	if err := peer.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		return err
	}
	answer, err := peer.CreateAnswer(nil)
	if err != nil {
		return err
	}
	gathered := webrtc.GatheringCompletePromise(peer)
	if err := peer.SetLocalDescription(answer); err != nil {
		return err
	}
	<-gathered
	local := peer.LocalDescription()
	if local == nil {
		return errors.New("missing local description")
	}
	return s.sendIfActive(l, Message{T: TypeAnswer, SDP: local.SDP})
}
