// Package config holds the process-wide streaming configuration.
//
// Configuration is read from the environment exactly once at startup and
// handed around as an immutable snapshot; nothing else in the program reads
// ambient environment state.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Mode selects the transport used to deliver frames to the browser.
type Mode string

const (
	// ModeDisabled turns remote viewing off entirely.
	ModeDisabled Mode = "disabled"
	// ModeWebRTC streams via WebRTC (separate signaling and media ports).
	ModeWebRTC Mode = "webrtc"
	// ModeWebSocket streams MJPEG frames over the HTTP/WebSocket port.
	ModeWebSocket Mode = "websocket"
	// ModeNative defers to an external native streaming client.
	ModeNative Mode = "native"
)

// ParseMode parses a mode string. Unrecognized values are a configuration
// error; they are rejected here so they never reach the resolver.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeDisabled:
		return ModeDisabled, nil
	case ModeWebRTC:
		return ModeWebRTC, nil
	case ModeWebSocket:
		return ModeWebSocket, nil
	case ModeNative:
		return ModeNative, nil
	default:
		return "", fmt.Errorf("unknown streaming mode %q", s)
	}
}

// Streamable reports whether the session endpoint may be exposed in this
// mode. Disabled and native deployments never mount it.
func (m Mode) Streamable() bool {
	return m == ModeWebRTC || m == ModeWebSocket
}

// Internal port defaults. External ports default to their internal
// counterpart (1:1 mapping) unless explicitly overridden.
const (
	DefaultHTTPPort      = 8211
	DefaultSignalingPort = 49100
	DefaultMediaPort     = 47998
)

// Environment variable names. The EXTERNAL_* and PUBLIC_IP names are an
// operator-facing contract carried over from earlier deployments.
const (
	EnvMode          = "RV_STREAMING_MODE"
	EnvHTTPPort      = "RV_HTTP_PORT"
	EnvSignalingPort = "RV_STREAM_SIGNALING_PORT"
	EnvMediaPort     = "RV_STREAM_MEDIA_PORT"

	EnvPublicHost            = "PUBLIC_IP"
	EnvExternalHTTPPort      = "EXTERNAL_HTTP_PORT"
	EnvExternalSignalingPort = "EXTERNAL_STREAM_SIGNALING_PORT"
	EnvExternalMediaPort     = "EXTERNAL_STREAM_MEDIA_PORT"
)

// Config is the process-wide streaming configuration snapshot.
//
// A zero value for any External* port means "same as the internal port".
// FallbackHost is the last-resort host used when neither PublicHost nor a
// request-derived host is available; it is detected by the caller at startup
// (the server's own outbound address) and may be left empty, in which case
// the resolver falls back to loopback.
type Config struct {
	Mode Mode

	HTTPPort      int
	SignalingPort int
	MediaPort     int

	ExternalHTTPPort      int
	ExternalSignalingPort int
	ExternalMediaPort     int

	PublicHost   string
	FallbackHost string
}

// ValidPort reports whether n is a usable TCP or UDP port number.
func ValidPort(n int) bool {
	return n >= 1 && n <= 65535
}

// Default returns the built-in configuration: WebRTC mode with the standard
// internal ports and 1:1 external mapping.
func Default() Config {
	return Config{
		Mode:          ModeWebRTC,
		HTTPPort:      DefaultHTTPPort,
		SignalingPort: DefaultSignalingPort,
		MediaPort:     DefaultMediaPort,
	}
}

// FromEnv builds a Config from the environment. Unset, malformed, or
// out-of-range values silently take their documented defaults; an unknown
// mode string is the only hard error.
func FromEnv() (Config, error) {
	cfg := Default()

	if raw := strings.TrimSpace(os.Getenv(EnvMode)); raw != "" {
		mode, err := ParseMode(raw)
		if err != nil {
			return Config{}, err
		}
		cfg.Mode = mode
	}

	cfg.HTTPPort = envPort(EnvHTTPPort, cfg.HTTPPort)
	cfg.SignalingPort = envPort(EnvSignalingPort, cfg.SignalingPort)
	cfg.MediaPort = envPort(EnvMediaPort, cfg.MediaPort)

	cfg.ExternalHTTPPort = envPort(EnvExternalHTTPPort, 0)
	cfg.ExternalSignalingPort = envPort(EnvExternalSignalingPort, 0)
	cfg.ExternalMediaPort = envPort(EnvExternalMediaPort, 0)

	cfg.PublicHost = strings.TrimSpace(os.Getenv(EnvPublicHost))

	return cfg, nil
}

// envPort reads a port number from the environment. Values outside
// [1, 65535] are treated as unset.
func envPort(name string, def int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || !ValidPort(n) {
		return def
	}
	return n
}
