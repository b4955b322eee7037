// Package stream fans viewport frames out from a single publisher to any
// number of attached viewers.
package stream

import (
	"sync"

	"github.com/rs/zerolog"
)

// Hub relays JPEG frames from the simulator-side publisher to WebSocket
// viewers and in-process subscribers. Slow consumers skip frames: every
// consumer sees the latest frame it can keep up with, never a growing
// backlog.
type Hub struct {
	log zerolog.Logger

	mu        sync.RWMutex
	viewers   map[string]*viewer
	subs      map[chan []byte]struct{}
	info      []byte
	publisher string // id of the active publisher, empty if none
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:     log.With().Str("component", "stream").Logger(),
		viewers: make(map[string]*viewer),
		subs:    make(map[chan []byte]struct{}),
	}
}

// Publish delivers a frame to every attached viewer and subscriber. The hub
// takes ownership of the slice; callers must not reuse it.
func (h *Hub) Publish(frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, v := range h.viewers {
		v.offerFrame(frame)
	}
	for ch := range h.subs {
		offerLatest(ch, frame)
	}
}

// SetInfo stores the stream metadata and replays it to attached viewers.
// New viewers and subscribers receive it on attach.
func (h *Hub) SetInfo(info []byte) {
	h.mu.Lock()
	h.info = info
	viewers := make([]*viewer, 0, len(h.viewers))
	for _, v := range h.viewers {
		viewers = append(viewers, v)
	}
	h.mu.Unlock()

	for _, v := range viewers {
		v.offerInfo(info)
	}
}

// Info returns the most recent stream metadata, or nil.
func (h *Hub) Info() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.info
}

// Subscribe attaches an in-process frame consumer. The returned channel
// carries the latest frame only; the cancel func detaches it.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 1)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

// ViewerCount returns the number of attached WebSocket viewers.
func (h *Hub) ViewerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

func (h *Hub) addViewer(v *viewer) {
	h.mu.Lock()
	h.viewers[v.id] = v
	n := len(h.viewers)
	h.mu.Unlock()

	h.log.Info().Str("viewer_id", v.id).Int("viewers", n).Msg("viewer connected")
}

func (h *Hub) removeViewer(v *viewer) {
	h.mu.Lock()
	delete(h.viewers, v.id)
	n := len(h.viewers)
	h.mu.Unlock()

	h.log.Info().Str("viewer_id", v.id).Int("viewers", n).Msg("viewer disconnected")
}

// claimPublisher registers a publisher if none is active.
func (h *Hub) claimPublisher(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.publisher != "" {
		return false
	}
	h.publisher = id
	return true
}

func (h *Hub) releasePublisher(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.publisher == id {
		h.publisher = ""
	}
}

// offerLatest places a frame in a capacity-1 channel, displacing any frame
// the consumer has not collected yet.
func offerLatest(ch chan []byte, frame []byte) {
	for {
		select {
		case ch <- frame:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
