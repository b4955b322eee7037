// Package webrtc provides the self-contained WebRTC frame streamer: peer
// connection management plus the data channel carrying viewport frames.
package webrtc

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Default STUN servers for ICE candidate gathering
var defaultICEServers = []webrtc.ICEServer{
	{URLs: []string{
		"stun:stun.l.google.com:19302",
		"stun:stun1.l.google.com:19302",
	}},
}

// Config holds peer connection configuration
type Config struct {
	ICEServers []webrtc.ICEServer

	// UDPPort pins ICE to a single UDP port so the media port advertised
	// in the session descriptor is the one actually used. 0 leaves the
	// port ephemeral.
	UDPPort int
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		ICEServers: defaultICEServers,
	}
}

// Peer wraps a WebRTC peer connection with helpers for frame streaming
type Peer struct {
	pc *webrtc.PeerConnection
}

// NewPeer creates a new WebRTC peer connection
func NewPeer(config Config) (*Peer, error) {
	if len(config.ICEServers) == 0 {
		config.ICEServers = defaultICEServers
	}

	se := webrtc.SettingEngine{}
	if config.UDPPort > 0 {
		if err := se.SetEphemeralUDPPortRange(uint16(config.UDPPort), uint16(config.UDPPort)); err != nil {
			return nil, fmt.Errorf("failed to pin media port %d: %w", config.UDPPort, err)
		}
	}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(se))

	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: config.ICEServers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	return &Peer{pc: pc}, nil
}

// CreateDataChannel creates an ordered data channel (offerer side).
func (p *Peer) CreateDataChannel(label string) (*webrtc.DataChannel, error) {
	ordered := true
	dc, err := p.pc.CreateDataChannel(label, &webrtc.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create data channel: %w", err)
	}
	return dc, nil
}

// OnDataChannel sets the callback for when a data channel is received
// (answerer side; the browser creates the viewport channel).
func (p *Peer) OnDataChannel(handler func(*webrtc.DataChannel)) {
	p.pc.OnDataChannel(handler)
}

// CreateOffer creates an SDP offer and waits for ICE gathering to complete
func (p *Peer) CreateOffer(ctx context.Context) (string, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create offer: %w", err)
	}

	if err := p.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("failed to set local description: %w", err)
	}

	if err := p.waitForICEGathering(ctx); err != nil {
		return "", err
	}

	return p.pc.LocalDescription().SDP, nil
}

// CreateAnswer creates an SDP answer after receiving an offer
func (p *Peer) CreateAnswer(ctx context.Context) (string, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create answer: %w", err)
	}

	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("failed to set local description: %w", err)
	}

	if err := p.waitForICEGathering(ctx); err != nil {
		return "", err
	}

	return p.pc.LocalDescription().SDP, nil
}

// SetRemoteDescription sets the remote SDP (offer or answer)
func (p *Peer) SetRemoteDescription(sdpType webrtc.SDPType, sdp string) error {
	desc := webrtc.SessionDescription{
		Type: sdpType,
		SDP:  sdp,
	}
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	return nil
}

// waitForICEGathering waits for ICE candidate gathering to complete
func (p *Peer) waitForICEGathering(ctx context.Context) error {
	gatherComplete := webrtc.GatheringCompletePromise(p.pc)

	select {
	case <-gatherComplete:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("ICE gathering interrupted: %w", ctx.Err())
	}
}

// OnConnectionStateChange sets a callback for connection state changes
func (p *Peer) OnConnectionStateChange(handler func(webrtc.PeerConnectionState)) {
	p.pc.OnConnectionStateChange(handler)
}

// Close closes the peer connection
func (p *Peer) Close() error {
	return p.pc.Close()
}
