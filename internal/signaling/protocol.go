// Package signaling negotiates WebRTC audio peers over a websocket.
package signaling

import "github.com/pion/webrtc/v3"

// Message kinds.
const (
	TypeOffer   = "offer"
	TypeAnswer  = "answer"
	TypeICE     = "ice"
	TypeRestart = "restart"
	TypeAudio   = "audio"
)

// Audio source states carried by TypeAudio messages.
const (
	AudioStarted = "started"
	AudioFailed  = "failed"
	AudioStopped = "stopped"
)

// Message is a websocket signaling payload.
type Message struct {
	T         string                   `json:"t"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	State     string                   `json:"state,omitempty"`
	Error     string                   `json:"error,omitempty"`
}
