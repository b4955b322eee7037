// Package signaling exposes the HTTP offer/answer exchange used by browsers
// to negotiate a WebRTC viewer connection.
package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ExchangeFunc turns a browser SDP offer into an SDP answer.
type ExchangeFunc func(ctx context.Context, offer string) (string, error)

// Server handles WebRTC signaling over HTTP on the dedicated signaling port.
type Server struct {
	listener net.Listener
	server   *http.Server
	exchange ExchangeFunc
	log      zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// OfferPayload is the JSON structure for offer submission and the answer
// response.
type OfferPayload struct {
	SDP string `json:"sdp"`
}

// NewServer creates a signaling server listening on the given port. Port 0
// picks an ephemeral port (tests).
func NewServer(port int, exchange ExchangeFunc, log zerolog.Logger) (*Server, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on signaling port %d: %w", port, err)
	}

	s := &Server{
		listener: listener,
		exchange: exchange,
		log:      log.With().Str("component", "signaling").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/offer", s.handleOffer)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s, nil
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	go s.server.Serve(s.listener)
	return nil
}

// Port returns the port the server is listening on
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Close shuts down the signaling server
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// handleOffer receives the browser's SDP offer and responds with the answer
func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request) {
	// Handle CORS preflight
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	var payload OfferPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if payload.SDP == "" {
		http.Error(w, "Offer SDP is required", http.StatusBadRequest)
		return
	}

	answer, err := s.exchange(r.Context(), payload.SDP)
	if err != nil {
		s.log.Error().Err(err).Msg("offer exchange failed")
		http.Error(w, "Failed to negotiate", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(OfferPayload{SDP: answer})
}

// handleHealth is a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}
