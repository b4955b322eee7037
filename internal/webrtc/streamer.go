package webrtc

import (
	"context"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/simhost/remote-viewer/internal/stream"
)

// Streamer answers browser offers and serves hub frames over the resulting
// data channels. One peer per negotiation; peers are independent.
type Streamer struct {
	cfg Config
	hub *stream.Hub
	log zerolog.Logger
}

// NewStreamer creates a streamer feeding from the given hub.
func NewStreamer(cfg Config, hub *stream.Hub, log zerolog.Logger) *Streamer {
	return &Streamer{
		cfg: cfg,
		hub: hub,
		log: log.With().Str("component", "webrtc").Logger(),
	}
}

// Answer performs one offer/answer exchange. The browser is the offerer and
// creates the viewport data channel; frames start flowing once it opens.
func (s *Streamer) Answer(ctx context.Context, offer string) (string, error) {
	peer, err := NewPeer(s.cfg)
	if err != nil {
		return "", err
	}

	peer.OnDataChannel(func(dc *webrtc.DataChannel) {
		dc.OnOpen(func() {
			s.log.Info().Str("label", dc.Label()).Msg("data channel open")
			go s.serve(peer, dc)
		})
	})

	peer.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			s.log.Info().Str("state", state.String()).Msg("peer finished")
			peer.Close()
		}
	})

	if err := peer.SetRemoteDescription(webrtc.SDPTypeOffer, offer); err != nil {
		peer.Close()
		return "", err
	}

	answer, err := peer.CreateAnswer(ctx)
	if err != nil {
		peer.Close()
		return "", err
	}

	return answer, nil
}

// serve pumps hub frames into the data channel until the viewer goes away.
func (s *Streamer) serve(peer *Peer, dc *webrtc.DataChannel) {
	ch := NewFrameChannel(dc)
	frames, cancel := s.hub.Subscribe()

	defer func() {
		cancel()
		ch.StopKeepalive()
		ch.Close()
		peer.Close()
	}()

	if info := s.hub.Info(); info != nil {
		if err := ch.SendInfo(info); err != nil {
			return
		}
	}

	timedOut := ch.StartKeepalive()

	for {
		select {
		case frame := <-frames:
			if err := ch.SendFrame(frame); err != nil {
				return
			}
		case <-timedOut:
			s.log.Warn().Msg("viewer keepalive timed out")
			return
		case <-ch.Done():
			return
		}
	}
}
