package stream

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// writeWait is the deadline for a single WebSocket write.
const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The viewer page may be fronted by a proxy on another origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// viewer is one attached WebSocket consumer. Frames and metadata are handed
// to it through capacity-1 channels so a stalled connection only costs it
// frames, never the hub.
type viewer struct {
	id     string
	conn   *websocket.Conn
	frames chan []byte
	infos  chan []byte
	done   chan struct{}
}

func (v *viewer) offerFrame(frame []byte) {
	offerLatest(v.frames, frame)
}

func (v *viewer) offerInfo(info []byte) {
	offerLatest(v.infos, info)
}

// writePump sends queued metadata and frames until the connection dies.
// Metadata goes out as text messages, frames as binary.
func (v *viewer) writePump() {
	for {
		select {
		case info := <-v.infos:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.TextMessage, info); err != nil {
				return
			}
		case frame := <-v.frames:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case <-v.done:
			return
		}
	}
}

// ServeViewer upgrades the request and streams frames to the client until it
// disconnects. Clients are view-only; inbound messages are discarded.
func (h *Hub) ServeViewer(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("viewer upgrade failed")
		return
	}

	v := &viewer{
		id:     uuid.NewString(),
		conn:   conn,
		frames: make(chan []byte, 1),
		infos:  make(chan []byte, 1),
		done:   make(chan struct{}),
	}

	if info := h.Info(); info != nil {
		v.offerInfo(info)
	}
	h.addViewer(v)
	go v.writePump()

	defer func() {
		h.removeViewer(v)
		close(v.done)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Str("viewer_id", v.id).Msg("viewer closed unexpectedly")
			}
			return
		}
	}
}

// ServePublisher accepts the frame producer connection. Binary messages are
// frames, text messages are stream metadata. Only one publisher may be
// attached at a time; a second connection is rejected with 409.
func (h *Hub) ServePublisher(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	if !h.claimPublisher(id) {
		http.Error(w, "publisher already connected", http.StatusConflict)
		return
	}
	defer h.releasePublisher(id)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("publisher upgrade failed")
		return
	}
	defer conn.Close()

	h.log.Info().Str("publisher_id", id).Msg("publisher connected")
	defer h.log.Info().Str("publisher_id", id).Msg("publisher disconnected")

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Str("publisher_id", id).Msg("publisher closed unexpectedly")
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			h.Publish(data)
		case websocket.TextMessage:
			h.SetInfo(data)
		}
	}
}
