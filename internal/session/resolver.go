// Package session computes the connection descriptor returned to a browser
// client negotiating a remote viewer session.
package session

import (
	"net"
	"strconv"

	"github.com/simhost/remote-viewer/internal/config"
)

// loopbackHost is the last-resort host when no other source is available.
const loopbackHost = "127.0.0.1"

// Hint carries per-request information extracted by the HTTP layer.
type Hint struct {
	// ForwardedHost is the original host reported by a fronting proxy
	// (X-Forwarded-Host), already stripped of any port.
	ForwardedHost string
}

// Descriptor tells the browser how and where to connect. Field names and
// casing are a compatibility contract with the web client.
type Descriptor struct {
	StreamSignalingHost string `json:"streamSignalingHost"`
	SignalingPort       int    `json:"signalingPort"`
	MediaPort           int    `json:"mediaPort"`
	BackendURL          string `json:"backendUrl"`
	StreamingMode       string `json:"streamingMode"`
}

// Resolve builds a Descriptor from the process configuration and an optional
// per-request hint.
//
// It is pure and total: no I/O, no retained state, and identical inputs
// always produce identical output. Missing optional fields take their
// documented defaults rather than failing, so a client can always attempt a
// connection and report its own failure.
//
// Resolve is only meaningful for the webrtc and websocket modes; the server
// never mounts the session endpoint in other modes.
func Resolve(cfg config.Config, hint Hint) Descriptor {
	host := resolveHost(cfg, hint)
	httpPort := externalPort(cfg.ExternalHTTPPort, cfg.HTTPPort)

	var signalingPort, mediaPort int
	switch cfg.Mode {
	case config.ModeWebSocket:
		// Everything is multiplexed over the single HTTP/WebSocket port;
		// signaling and media port configuration is ignored in this mode.
		signalingPort = httpPort
		mediaPort = httpPort
	default:
		// WebRTC: each channel resolves independently from its own
		// internal port, never from the HTTP channel.
		signalingPort = externalPort(cfg.ExternalSignalingPort, cfg.SignalingPort)
		mediaPort = externalPort(cfg.ExternalMediaPort, cfg.MediaPort)
	}

	return Descriptor{
		StreamSignalingHost: host,
		SignalingPort:       signalingPort,
		MediaPort:           mediaPort,
		BackendURL:          "http://" + net.JoinHostPort(host, strconv.Itoa(httpPort)),
		StreamingMode:       string(cfg.Mode),
	}
}

// resolveHost applies the fixed precedence: explicit operator override, then
// the proxy-supplied forwarded host, then the locally detected fallback, then
// loopback. Exactly one source wins.
func resolveHost(cfg config.Config, hint Hint) string {
	if cfg.PublicHost != "" {
		return cfg.PublicHost
	}
	if hint.ForwardedHost != "" {
		return hint.ForwardedHost
	}
	if cfg.FallbackHost != "" {
		return cfg.FallbackHost
	}
	return loopbackHost
}

// externalPort resolves one channel's externally reachable port: the
// override when set, otherwise the internal port (1:1 mapping).
func externalPort(override, internal int) int {
	if override != 0 {
		return override
	}
	return internal
}
