package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/simhost/remote-viewer/internal/config"
	"github.com/simhost/remote-viewer/internal/server"
	"github.com/simhost/remote-viewer/internal/session"
	"github.com/simhost/remote-viewer/internal/signaling"
	"github.com/simhost/remote-viewer/internal/stream"
	rvwebrtc "github.com/simhost/remote-viewer/internal/webrtc"
)

var (
	version = "0.1.0"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rv",
	Short: "Remote viewer gateway for headless simulation hosts",
	Long: `Remote Viewer (rv) exposes a headless simulator's viewport to a browser.

It serves the session negotiation API that tells the browser how to connect,
relays MJPEG frames over WebSocket, and answers WebRTC offers with a
self-contained data-channel streamer.

Example:
  rv serve                          # Serve with configuration from the environment
  rv serve --mode websocket --upnp  # MJPEG mode with gateway port mapping
  rv resolve --forwarded-host proxy.example.net`,
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the remote viewer gateway",
	Long: `Run the remote viewer gateway.

Configuration is read from the environment once at startup; flags override
individual values. The session endpoint is only exposed in the webrtc and
websocket modes.`,
	RunE: runServe,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Print the session descriptor for the current configuration",
	Long: `Print the session descriptor a browser would receive, without starting
the server. Useful for checking what a proxy-fronted or port-forwarded
deployment will advertise.`,
	RunE: runResolve,
}

var (
	// Serve/resolve flags
	flagMode          string
	flagHTTPPort      int
	flagSignalingPort int
	flagMediaPort     int
	flagPublicHost    string
	flagUPnP          bool

	// Resolve flags
	flagForwardedHost string
	flagShare         bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(resolveCmd)

	for _, cmd := range []*cobra.Command{serveCmd, resolveCmd} {
		addConfigFlags(cmd)
	}

	serveCmd.Flags().BoolVar(&flagUPnP, "upnp", false, "Map the streaming ports on a UPnP gateway")

	resolveCmd.Flags().StringVar(&flagForwardedHost, "forwarded-host", "", "Simulate a proxy-supplied X-Forwarded-Host")
	resolveCmd.Flags().BoolVar(&flagShare, "share", false, "Also print a compact share URL for the descriptor")
}

// addConfigFlags registers the configuration flags shared by serve and
// resolve.
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagMode, "mode", "", "Streaming mode: webrtc or websocket (default from environment)")
	cmd.Flags().IntVar(&flagHTTPPort, "http-port", 0, "Internal HTTP port")
	cmd.Flags().IntVar(&flagSignalingPort, "signaling-port", 0, "Internal WebRTC signaling port")
	cmd.Flags().IntVar(&flagMediaPort, "media-port", 0, "Internal WebRTC media (UDP) port")
	cmd.Flags().StringVar(&flagPublicHost, "public-host", "", "Explicit public host/IP override")
}

// loadConfig reads the environment and applies flag overrides. Unlike
// environment values, an out-of-range port flag is a hard error, not a
// silent fallback to the default.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, err
	}

	for _, f := range []struct {
		name  string
		value int
	}{
		{"http-port", flagHTTPPort},
		{"signaling-port", flagSignalingPort},
		{"media-port", flagMediaPort},
	} {
		if cmd.Flags().Changed(f.name) && !config.ValidPort(f.value) {
			return config.Config{}, fmt.Errorf("invalid --%s %d: port must be in [1, 65535]", f.name, f.value)
		}
	}

	if cmd.Flags().Changed("mode") {
		mode, err := config.ParseMode(flagMode)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Mode = mode
	}
	if cmd.Flags().Changed("http-port") {
		cfg.HTTPPort = flagHTTPPort
	}
	if cmd.Flags().Changed("signaling-port") {
		cfg.SignalingPort = flagSignalingPort
	}
	if cmd.Flags().Changed("media-port") {
		cfg.MediaPort = flagMediaPort
	}
	if cmd.Flags().Changed("public-host") {
		cfg.PublicHost = flagPublicHost
	}

	if ip, err := server.LocalIP(); err == nil {
		cfg.FallbackHost = ip
	}

	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if !cfg.Mode.Streamable() {
		return fmt.Errorf("streaming mode %q does not expose the session endpoint; use webrtc or websocket", cfg.Mode)
	}

	if flagUPnP {
		mapping, err := server.MapStreamingPorts(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("UPnP not available, relying on manual port forwarding")
		} else {
			defer mapping.Close()
			log.Info().Str("external_ip", mapping.ExternalIP).Msg("UPnP port mapping successful")
			if cfg.PublicHost == "" {
				cfg.PublicHost = mapping.ExternalIP
			}
		}
	}

	hub := stream.NewHub(log)

	if cfg.Mode == config.ModeWebRTC {
		streamer := rvwebrtc.NewStreamer(rvwebrtc.Config{UDPPort: cfg.MediaPort}, hub, log)
		sig, err := signaling.NewServer(cfg.SignalingPort, streamer.Answer, log)
		if err != nil {
			return err
		}
		if err := sig.Start(); err != nil {
			return err
		}
		defer sig.Close()
		log.Info().Int("port", sig.Port()).Msg("signaling listening")
	}

	srv := server.New(cfg, hub, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	printBanner(cfg)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// printBanner shows the viewer URL and a QR code for it.
func printBanner(cfg config.Config) {
	desc := session.Resolve(cfg, session.Hint{})
	url := desc.BackendURL

	fmt.Printf("\n")
	fmt.Printf("═══════════════════════════════════════════════════\n")
	fmt.Printf("  Remote Viewer Ready\n")
	fmt.Printf("═══════════════════════════════════════════════════\n")
	fmt.Printf("\n")
	fmt.Printf("  Viewer URL: %s\n", url)
	fmt.Printf("  Mode:       %s\n", desc.StreamingMode)
	fmt.Printf("\n")

	qr, err := qrcode.New(url, qrcode.Low)
	if err == nil {
		fmt.Print(qr.ToSmallString(false))
	}
	fmt.Printf("\n")
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if !cfg.Mode.Streamable() {
		return fmt.Errorf("streaming mode %q has no session descriptor", cfg.Mode)
	}

	desc := session.Resolve(cfg, session.Hint{ForwardedHost: flagForwardedHost})

	out, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if flagShare {
		url, err := session.ShareURL(desc)
		if err != nil {
			return err
		}
		fmt.Println(url)
	}

	return nil
}
