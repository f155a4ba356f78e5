// Package webrtc publishes the device audio stream to WebRTC peers.
package webrtc

import "github.com/pion/rtp"

// Timestamp deltas above this are treated as a source restart.
const maxTimestampJump = 48000 * 2

// defaultTimestampStep is 20 ms at 48 kHz.
const defaultTimestampStep = 960

type rtpWriteParams struct {
	payloadType  uint8
	ssrc         uint32
	fallbackStep uint32
}

// rtpRewriter keeps outgoing sequence numbers and timestamps continuous across source restarts.
type rtpRewriter struct {
	started bool
	seq     uint16
	lastIn  uint32
	lastOut uint32
}

// Apply rewrites p in place.
func (r *rtpRewriter) Apply(p *rtp.Packet, params rtpWriteParams) {
	if !r.started {
		r.started = true
		r.seq = p.SequenceNumber
		r.lastIn = p.Timestamp
		r.lastOut = p.Timestamp
	} else {
		r.seq++
		if p.Timestamp != r.lastIn {
			delta := p.Timestamp - r.lastIn
			if delta > maxTimestampJump {
				delta = params.fallbackStep
				if delta == 0 {
					delta = defaultTimestampStep
				}
			}
			r.lastOut += delta
			r.lastIn = p.Timestamp
		}
	}
	p.SequenceNumber = r.seq
	p.Timestamp = r.lastOut
	if params.payloadType != 0 {
		p.PayloadType = params.payloadType
	}
	if params.ssrc != 0 {
		p.SSRC = params.ssrc
	}
}
