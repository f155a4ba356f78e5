// Package webrtc publishes the device audio stream to WebRTC peers.
package webrtc

import (
	"fmt"
	"sync"

	"github.com/frudas24/remotectl/internal/audio"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
)

// MimeTypeL16 is linear 16-bit PCM in network byte order.
const MimeTypeL16 = "audio/L16"

// Options configures a Publisher.
type Options struct {
	Format      audio.Format
	PayloadType uint8
	Log         logrus.FieldLogger
}

// Publisher manages the WebRTC peer connection and audio track.
type Publisher struct {
	mu    sync.Mutex
	api   *webrtc.API
	codec webrtc.RTPCodecParameters
	peer  *webrtc.PeerConnection
	track *webrtc.TrackLocalStaticRTP
	log   logrus.FieldLogger

	writeMu  sync.Mutex
	rewriter rtpRewriter
	step     uint32

	rtpListener *rtpListener
}

// NewPublisher initializes a WebRTC publisher with the L16 codec and default interceptors.
func NewPublisher(opts Options) (*Publisher, error) {
	if opts.Format == (audio.Format{}) {
		opts.Format = audio.DefaultFormat
	}
	if opts.PayloadType == 0 {
		opts.PayloadType = audio.DefaultPayloadType
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	codec := webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:  MimeTypeL16,
			ClockRate: uint32(opts.Format.SampleRate),
			Channels:  uint16(opts.Format.Channels),
		},
		PayloadType: webrtc.PayloadType(opts.PayloadType),
	}

	media := &webrtc.MediaEngine{}
	if err := media.RegisterCodec(codec, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	interceptors := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(media, interceptors); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(media),
		webrtc.WithInterceptorRegistry(interceptors),
	)

	return &Publisher{
		api:   api,
		codec: codec,
		log:   opts.Log,
		step:  uint32(opts.Format.SampleRate / 50),
	}, nil
}

// Codec returns the negotiated audio codec.
func (p *Publisher) Codec() webrtc.RTPCodecParameters {
	return p.codec
}

// API returns the pion API configured with the publisher codecs.
func (p *Publisher) API() *webrtc.API {
	return p.api
}

// Track returns the audio RTP track, creating it if needed.
func (p *Publisher) Track() (*webrtc.TrackLocalStaticRTP, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ensureTrack()
}

// NewPeer creates a new peer connection and attaches the audio track.
// A previous peer is closed.
func (p *Publisher) NewPeer() (*webrtc.PeerConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.peer != nil {
		_ = p.peer.Close()
		p.peer = nil
	}

	peer, err := p.api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, err
	}

	track, err := p.ensureTrack()
	if err != nil {
		_ = peer.Close()
		return nil, err
	}

	sender, err := peer.AddTrack(track)
	if err != nil {
		_ = peer.Close()
		return nil, err
	}

	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, rtcpErr := sender.Read(buf); rtcpErr != nil {
				return
			}
		}
	}()

	p.peer = peer
	p.log.Debug("webrtc: peer created")
	return peer, nil
}

// ClosePeer closes the current peer connection.
func (p *Publisher) ClosePeer() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.peer != nil {
		_ = p.peer.Close()
		p.peer = nil
	}
}

// WriteRTP forwards a packet to the track with continuous sequence numbers and timestamps.
// pkt is not modified.
func (p *Publisher) WriteRTP(pkt *rtp.Packet) error {
	track, err := p.Track()
	if err != nil {
		return err
	}
	out := pkt.Clone()
	p.writeMu.Lock()
	p.rewriter.Apply(out, rtpWriteParams{
		payloadType:  uint8(p.codec.PayloadType),
		fallbackStep: p.step,
	})
	p.writeMu.Unlock()
	return track.WriteRTP(out)
}

// AttachRTP binds a local UDP address for external RTP ingest.
func (p *Publisher) AttachRTP(addr string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rtpListener != nil {
		p.rtpListener.close()
		p.rtpListener = nil
	}

	listener, err := newRTPListener(addr, p.log)
	if err != nil {
		return err
	}
	p.rtpListener = listener
	return nil
}

// RTPAddr returns the bound ingest address, empty when none.
func (p *Publisher) RTPAddr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rtpListener == nil {
		return ""
	}
	return p.rtpListener.addr()
}

// StartForwarding begins forwarding ingested RTP packets into the audio track.
func (p *Publisher) StartForwarding() error {
	p.mu.Lock()
	listener := p.rtpListener
	p.mu.Unlock()

	if listener == nil {
		return fmt.Errorf("rtp listener not ready")
	}
	return listener.start(p)
}

// StopForwarding stops RTP forwarding without closing the listener.
func (p *Publisher) StopForwarding() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rtpListener != nil {
		p.rtpListener.stop()
	}
}

// Close closes the peer and the ingest listener.
func (p *Publisher) Close() {
	p.ClosePeer()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rtpListener != nil {
		p.rtpListener.close()
		p.rtpListener = nil
	}
}

// ensureTrack initializes the track if it does not already exist.
func (p *Publisher) ensureTrack() (*webrtc.TrackLocalStaticRTP, error) {
	if p.track != nil {
		return p.track, nil
	}
	track, err := webrtc.NewTrackLocalStaticRTP(p.codec.RTPCodecCapability, "audio", "remotectl")
	if err != nil {
		return nil, err
	}
	p.track = track
	return track, nil
}
