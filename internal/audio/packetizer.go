// Package audio captures PCM audio, timestamps it and packetizes it for RTP.
package audio

import (
	"math/rand"

	"github.com/pion/rtp"
)

// RTP packetization defaults.
const (
	DefaultMTU         = 1200
	DefaultPayloadType = 96
	rtpHeaderSize      = 12
)

// L16Payloader splits little-endian 16-bit PCM into network byte order payloads on frame boundaries.
type L16Payloader struct {
	FrameSize int
}

var _ rtp.Payloader = L16Payloader{}

// Payload implements rtp.Payloader.
func (l L16Payloader) Payload(mtu uint16, payload []byte) [][]byte {
	frame := l.FrameSize
	if frame <= 0 {
		frame = 2
	}
	limit := int(mtu) - int(mtu)%frame
	if limit <= 0 || len(payload) == 0 {
		return nil
	}
	var out [][]byte
	for start := 0; start < len(payload); start += limit {
		end := start + limit
		if end > len(payload) {
			end = len(payload)
		}
		part := make([]byte, end-start)
		for i := 0; i+1 < len(part); i += 2 {
			part[i], part[i+1] = payload[start+i+1], payload[start+i]
		}
		out = append(out, part)
	}
	return out
}

// PacketizerOptions configures a Packetizer.
type PacketizerOptions struct {
	Format      Format
	MTU         int
	PayloadType uint8
	SSRC        uint32
	Sequencer   rtp.Sequencer
}

// Packetizer turns timestamped chunks into RTP packets whose timestamps follow the chunk pts.
type Packetizer struct {
	format      Format
	mtu         uint16
	payloadType uint8
	ssrc        uint32
	sequencer   rtp.Sequencer
	payloader   L16Payloader
}

// NewPacketizer returns a packetizer; zero options use the defaults and a random SSRC and sequence.
func NewPacketizer(opts PacketizerOptions) *Packetizer {
	if opts.Format == (Format{}) {
		opts.Format = DefaultFormat
	}
	if opts.MTU <= rtpHeaderSize {
		opts.MTU = DefaultMTU
	}
	if opts.PayloadType == 0 {
		opts.PayloadType = DefaultPayloadType
	}
	if opts.SSRC == 0 {
		opts.SSRC = rand.Uint32()
	}
	if opts.Sequencer == nil {
		opts.Sequencer = rtp.NewRandomSequencer()
	}
	return &Packetizer{
		format:      opts.Format,
		mtu:         uint16(opts.MTU - rtpHeaderSize),
		payloadType: opts.PayloadType,
		ssrc:        opts.SSRC,
		sequencer:   opts.Sequencer,
		payloader:   L16Payloader{FrameSize: opts.Format.FrameSize()},
	}
}

// ClockRate returns the RTP clock rate.
func (p *Packetizer) ClockRate() uint32 {
	return uint32(p.format.SampleRate)
}

// Packetize returns the packets of chunk; packets after the first advance by their sample offset.
func (p *Packetizer) Packetize(chunk Chunk) []*rtp.Packet {
	base := uint32(chunk.PTS * int64(p.format.SampleRate) / 1_000_000)
	frame := p.format.FrameSize()
	var packets []*rtp.Packet
	var offset uint32
	for _, payload := range p.payloader.Payload(p.mtu, chunk.Data) {
		packets = append(packets, &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				PayloadType:    p.payloadType,
				SequenceNumber: p.sequencer.NextSequenceNumber(),
				Timestamp:      base + offset,
				SSRC:           p.ssrc,
			},
			Payload: payload,
		})
		offset += uint32(len(payload) / frame)
	}
	return packets
}
