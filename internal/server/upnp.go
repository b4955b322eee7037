package server

import (
	"context"
	"fmt"
	"time"

	"github.com/huin/goupnp/dcps/internetgateway2"

	"github.com/simhost/remote-viewer/internal/config"
)

// igdClient is the subset of the goupnp gateway clients we use.
type igdClient interface {
	GetExternalIPAddressCtx(ctx context.Context) (string, error)
	AddPortMappingCtx(ctx context.Context, remoteHost string, externalPort uint16, protocol string, internalPort uint16, internalClient string, enabled bool, description string, leaseDuration uint32) error
	DeletePortMapping(remoteHost string, externalPort uint16, protocol string) error
}

// portMapping is one active gateway mapping.
type portMapping struct {
	externalPort uint16
	protocol     string
}

// UPnPMapping holds the gateway mappings for the streaming ports.
type UPnPMapping struct {
	// ExternalIP is the gateway-reported public address; callers may use
	// it as the public host when none was configured.
	ExternalIP string

	client   igdClient
	mappings []portMapping
}

// MapStreamingPorts maps the externally resolved streaming ports on a UPnP
// gateway: HTTP over TCP always, plus signaling (TCP) and media (UDP) in
// webrtc mode. External ports follow the configured overrides, so the
// gateway mapping matches what the resolver advertises.
func MapStreamingPorts(cfg config.Config) (*UPnPMapping, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := discoverGateway(ctx)
	if err != nil {
		return nil, err
	}

	externalIP, err := client.GetExternalIPAddressCtx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get external IP: %w", err)
	}

	localIP, err := LocalIP()
	if err != nil {
		localIP = "0.0.0.0"
	}

	m := &UPnPMapping{
		ExternalIP: externalIP,
		client:     client,
	}

	type channel struct {
		name     string
		proto    string
		internal int
		external int
	}
	channels := []channel{
		{"http", "TCP", cfg.HTTPPort, cfg.ExternalHTTPPort},
	}
	if cfg.Mode == config.ModeWebRTC {
		channels = append(channels,
			channel{"signaling", "TCP", cfg.SignalingPort, cfg.ExternalSignalingPort},
			channel{"media", "UDP", cfg.MediaPort, cfg.ExternalMediaPort},
		)
	}

	for _, ch := range channels {
		external := ch.external
		if external == 0 {
			external = ch.internal
		}
		err := client.AddPortMappingCtx(
			ctx,
			"", // NewRemoteHost (empty = any)
			uint16(external),
			ch.proto,
			uint16(ch.internal),
			localIP,
			true,
			"Remote Viewer "+ch.name,
			0, // NewLeaseDuration (0 = permanent)
		)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("failed to map %s port %d/%s: %w", ch.name, external, ch.proto, err)
		}
		m.mappings = append(m.mappings, portMapping{uint16(external), ch.proto})
	}

	return m, nil
}

// Close removes all gateway mappings.
func (m *UPnPMapping) Close() error {
	if m.client == nil {
		return nil
	}
	var firstErr error
	for _, pm := range m.mappings {
		if err := m.client.DeletePortMapping("", pm.externalPort, pm.protocol); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.mappings = nil
	return firstErr
}

// discoverGateway finds an IGD client, preferring WANIPConnection2.
func discoverGateway(ctx context.Context) (igdClient, error) {
	clients2, _, err := internetgateway2.NewWANIPConnection2ClientsCtx(ctx)
	if err == nil && len(clients2) > 0 {
		return clients2[0], nil
	}

	clients1, _, err := internetgateway2.NewWANIPConnection1ClientsCtx(ctx)
	if err == nil && len(clients1) > 0 {
		return clients1[0], nil
	}

	return nil, fmt.Errorf("no UPnP gateway found")
}
