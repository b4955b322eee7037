package stream

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func testHub() *Hub {
	return NewHub(zerolog.Nop())
}

func TestHubSubscribeReceivesFrames(t *testing.T) {
	h := testHub()

	frames, cancel := h.Subscribe()
	defer cancel()

	h.Publish([]byte("frame-1"))

	select {
	case frame := <-frames:
		if !bytes.Equal(frame, []byte("frame-1")) {
			t.Errorf("frame = %q, want frame-1", frame)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for frame")
	}
}

func TestHubSubscribeDropsStaleFrames(t *testing.T) {
	h := testHub()

	frames, cancel := h.Subscribe()
	defer cancel()

	// Publish without consuming: only the newest frame survives.
	h.Publish([]byte("frame-1"))
	h.Publish([]byte("frame-2"))
	h.Publish([]byte("frame-3"))

	select {
	case frame := <-frames:
		if !bytes.Equal(frame, []byte("frame-3")) {
			t.Errorf("frame = %q, want frame-3", frame)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for frame")
	}

	select {
	case frame := <-frames:
		t.Errorf("unexpected extra frame %q", frame)
	default:
	}
}

func TestHubSubscribeCancel(t *testing.T) {
	h := testHub()

	frames, cancel := h.Subscribe()
	cancel()

	h.Publish([]byte("frame-1"))

	select {
	case frame := <-frames:
		t.Errorf("cancelled subscriber received %q", frame)
	default:
	}
}

func TestHubInfoRetained(t *testing.T) {
	h := testHub()

	if h.Info() != nil {
		t.Error("info should start empty")
	}

	h.SetInfo([]byte(`{"width":1280,"height":720}`))

	if got := h.Info(); !bytes.Equal(got, []byte(`{"width":1280,"height":720}`)) {
		t.Errorf("info = %q", got)
	}
}

func TestViewerReceivesFramesOverWebSocket(t *testing.T) {
	h := testHub()

	srv := httptest.NewServer(http.HandlerFunc(h.ServeViewer))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// Wait for the viewer to attach before publishing.
	waitFor(t, func() bool { return h.ViewerCount() == 1 })

	h.Publish([]byte("jpeg-frame"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Errorf("message type = %d, want binary", msgType)
	}
	if !bytes.Equal(data, []byte("jpeg-frame")) {
		t.Errorf("frame = %q, want jpeg-frame", data)
	}
}

func TestViewerReceivesRetainedInfoFirst(t *testing.T) {
	h := testHub()
	h.SetInfo([]byte(`{"width":640,"height":480}`))

	srv := httptest.NewServer(http.HandlerFunc(h.ServeViewer))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Errorf("message type = %d, want text", msgType)
	}
	if !bytes.Equal(data, []byte(`{"width":640,"height":480}`)) {
		t.Errorf("info = %q", data)
	}
}

func TestPublisherFramesReachViewers(t *testing.T) {
	h := testHub()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/streaming/publisher":
			h.ServePublisher(w, r)
		default:
			h.ServeViewer(w, r)
		}
	}))
	defer srv.Close()

	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	viewerConn, _, err := websocket.DefaultDialer.Dial(base+"/streaming/client/", nil)
	if err != nil {
		t.Fatalf("viewer dial failed: %v", err)
	}
	defer viewerConn.Close()
	waitFor(t, func() bool { return h.ViewerCount() == 1 })

	pubConn, _, err := websocket.DefaultDialer.Dial(base+"/streaming/publisher", nil)
	if err != nil {
		t.Fatalf("publisher dial failed: %v", err)
	}
	defer pubConn.Close()

	if err := pubConn.WriteMessage(websocket.BinaryMessage, []byte("frame-from-pub")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	viewerConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := viewerConn.ReadMessage()
	if err != nil {
		t.Fatalf("viewer read failed: %v", err)
	}
	if !bytes.Equal(data, []byte("frame-from-pub")) {
		t.Errorf("frame = %q, want frame-from-pub", data)
	}
}

func TestSecondPublisherRejected(t *testing.T) {
	h := testHub()

	srv := httptest.NewServer(http.HandlerFunc(h.ServePublisher))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("first publisher dial failed: %v", err)
	}
	defer first.Close()

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("second publisher should be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 rejection, got %+v", resp)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
