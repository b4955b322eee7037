package config

import "testing"

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"webrtc", ModeWebRTC, false},
		{"websocket", ModeWebSocket, false},
		{"disabled", ModeDisabled, false},
		{"native", ModeNative, false},
		{"WebRTC", ModeWebRTC, false},
		{"  websocket ", ModeWebSocket, false},
		{"mjpeg", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseMode(%q) expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMode(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestModeStreamable(t *testing.T) {
	if !ModeWebRTC.Streamable() {
		t.Error("webrtc should be streamable")
	}
	if !ModeWebSocket.Streamable() {
		t.Error("websocket should be streamable")
	}
	if ModeDisabled.Streamable() {
		t.Error("disabled should not be streamable")
	}
	if ModeNative.Streamable() {
		t.Error("native should not be streamable")
	}
}

func TestValidPort(t *testing.T) {
	tests := []struct {
		n    int
		want bool
	}{
		{1, true},
		{8211, true},
		{65535, true},
		{0, false},
		{-1, false},
		{65536, false},
		{70000, false},
	}

	for _, tt := range tests {
		if got := ValidPort(tt.n); got != tt.want {
			t.Errorf("ValidPort(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

// clearEnv blanks every configuration variable so FromEnv tests see a
// deterministic environment regardless of the invoking shell.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		EnvMode,
		EnvHTTPPort,
		EnvSignalingPort,
		EnvMediaPort,
		EnvPublicHost,
		EnvExternalHTTPPort,
		EnvExternalSignalingPort,
		EnvExternalMediaPort,
	} {
		t.Setenv(name, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}

	if cfg.Mode != ModeWebRTC {
		t.Errorf("mode = %q, want %q", cfg.Mode, ModeWebRTC)
	}
	if cfg.HTTPPort != DefaultHTTPPort {
		t.Errorf("http port = %d, want %d", cfg.HTTPPort, DefaultHTTPPort)
	}
	if cfg.SignalingPort != DefaultSignalingPort {
		t.Errorf("signaling port = %d, want %d", cfg.SignalingPort, DefaultSignalingPort)
	}
	if cfg.MediaPort != DefaultMediaPort {
		t.Errorf("media port = %d, want %d", cfg.MediaPort, DefaultMediaPort)
	}
	if cfg.ExternalHTTPPort != 0 || cfg.ExternalSignalingPort != 0 || cfg.ExternalMediaPort != 0 {
		t.Error("external ports should default to unset")
	}
	if cfg.PublicHost != "" {
		t.Errorf("public host = %q, want empty", cfg.PublicHost)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvMode, "websocket")
	t.Setenv(EnvHTTPPort, "9000")
	t.Setenv(EnvExternalMediaPort, "47000")
	t.Setenv(EnvPublicHost, "203.0.113.5")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}

	if cfg.Mode != ModeWebSocket {
		t.Errorf("mode = %q, want websocket", cfg.Mode)
	}
	if cfg.HTTPPort != 9000 {
		t.Errorf("http port = %d, want 9000", cfg.HTTPPort)
	}
	if cfg.ExternalMediaPort != 47000 {
		t.Errorf("external media port = %d, want 47000", cfg.ExternalMediaPort)
	}
	if cfg.ExternalSignalingPort != 0 {
		t.Errorf("external signaling port = %d, want unset", cfg.ExternalSignalingPort)
	}
	if cfg.PublicHost != "203.0.113.5" {
		t.Errorf("public host = %q, want 203.0.113.5", cfg.PublicHost)
	}
}

func TestFromEnvBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvHTTPPort, "not-a-port")
	t.Setenv(EnvSignalingPort, "0")
	t.Setenv(EnvMediaPort, "70000")
	t.Setenv(EnvExternalHTTPPort, "-1")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}

	if cfg.HTTPPort != DefaultHTTPPort {
		t.Errorf("http port = %d, want default %d", cfg.HTTPPort, DefaultHTTPPort)
	}
	if cfg.SignalingPort != DefaultSignalingPort {
		t.Errorf("signaling port = %d, want default %d", cfg.SignalingPort, DefaultSignalingPort)
	}
	if cfg.MediaPort != DefaultMediaPort {
		t.Errorf("media port = %d, want default %d", cfg.MediaPort, DefaultMediaPort)
	}
	if cfg.ExternalHTTPPort != 0 {
		t.Errorf("external http port = %d, want unset", cfg.ExternalHTTPPort)
	}
}

func TestFromEnvUnknownMode(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvMode, "hls")

	_, err := FromEnv()
	if err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
