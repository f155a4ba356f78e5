package signaling

import (
	"encoding/json"
	"testing"
)

// TestProtocol_Offer verifies decoding an offer message.
func TestProtocol_Offer(t *testing.T) {
	var msg Message
	if err := json.Unmarshal([]byte(`{"t":"offer","sdp":"v=0"}`), &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if msg.T != TypeOffer || msg.SDP != "v=0" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

// TestProtocol_ICE verifies decoding an ICE candidate message.
func TestProtocol_ICE(t *testing.T) {
	var msg Message
	payload := `{"t":"ice","candidate":{"candidate":"candidate:1 1 UDP 2122252543 192.0.2.3 54400 typ host"}}`
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if msg.T != TypeICE || msg.Candidate == nil || msg.Candidate.Candidate == "" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

// TestProtocol_RestartOmitsEmpty verifies a restart notice encodes only its kind.
func TestProtocol_RestartOmitsEmpty(t *testing.T) {
	data, err := json.Marshal(Message{T: TypeRestart})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"t":"restart"}` {
		t.Fatalf("unexpected payload: %s", data)
	}
}

// TestProtocol_AudioFailure verifies an audio failure carries its state and reason.
func TestProtocol_AudioFailure(t *testing.T) {
	data, err := json.Marshal(Message{T: TypeAudio, State: AudioFailed, Error: "no device"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"t":"audio","state":"failed","error":"no device"}` {
		t.Fatalf("unexpected payload: %s", data)
	}
}
