package webrtc

import (
	"io"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/simhost/remote-viewer/internal/protocol"
)

// Keepalive timing: a ping goes out every interval, and the connection is
// declared dead when no pong arrives within the timeout.
const (
	keepaliveInterval = 15 * time.Second
	keepaliveTimeout  = 45 * time.Second
)

// FrameChannel wraps a WebRTC DataChannel with the viewer frame protocol.
type FrameChannel struct {
	dc *webrtc.DataChannel

	pingEvery time.Duration
	pongWait  time.Duration

	mu        sync.Mutex
	closed    bool
	lastPong  time.Time
	stopKeep  chan struct{}
	keepAlive bool

	done chan struct{}
}

// NewFrameChannel wraps a DataChannel. Incoming pings are answered, pongs
// feed the keepalive, and a close message tears the channel down.
func NewFrameChannel(dc *webrtc.DataChannel) *FrameChannel {
	fc := &FrameChannel{
		dc:        dc,
		pingEvery: keepaliveInterval,
		pongWait:  keepaliveTimeout,
		lastPong:  time.Now(),
		done:      make(chan struct{}),
	}

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		fc.handleMessage(msg.Data)
	})

	dc.OnClose(func() {
		fc.markClosed()
	})

	return fc
}

func (fc *FrameChannel) handleMessage(data []byte) {
	msg, err := protocol.DecodeMessage(data)
	if err != nil {
		return
	}

	switch msg.Type {
	case protocol.MsgPing:
		fc.sendMessage(protocol.NewPongMessage())
	case protocol.MsgPong:
		fc.mu.Lock()
		fc.lastPong = time.Now()
		fc.mu.Unlock()
	case protocol.MsgClose:
		fc.Close()
	}
}

func (fc *FrameChannel) sendMessage(msg *protocol.Message) error {
	fc.mu.Lock()
	if fc.closed {
		fc.mu.Unlock()
		return io.ErrClosedPipe
	}
	fc.mu.Unlock()

	encoded, err := msg.Encode()
	if err != nil {
		return err
	}
	return fc.dc.Send(encoded)
}

// SendFrame sends one JPEG frame.
func (fc *FrameChannel) SendFrame(jpeg []byte) error {
	return fc.sendMessage(protocol.NewFrameMessage(jpeg))
}

// SendInfo sends stream metadata.
func (fc *FrameChannel) SendInfo(info []byte) error {
	return fc.sendMessage(protocol.NewInfoMessage(info))
}

// StartKeepalive begins pinging the client. The returned channel receives a
// value when no pong arrives within the timeout.
func (fc *FrameChannel) StartKeepalive() <-chan struct{} {
	timedOut := make(chan struct{}, 1)

	fc.mu.Lock()
	if fc.keepAlive {
		fc.mu.Unlock()
		return timedOut
	}
	fc.keepAlive = true
	fc.stopKeep = make(chan struct{})
	fc.lastPong = time.Now()
	stop := fc.stopKeep
	fc.mu.Unlock()

	go func() {
		ticker := time.NewTicker(fc.pingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				fc.mu.Lock()
				silent := time.Since(fc.lastPong)
				fc.mu.Unlock()

				if silent > fc.pongWait {
					select {
					case timedOut <- struct{}{}:
					default:
					}
					return
				}
				fc.sendMessage(protocol.NewPingMessage())
			case <-stop:
				return
			case <-fc.done:
				return
			}
		}
	}()

	return timedOut
}

// StopKeepalive stops the keepalive loop.
func (fc *FrameChannel) StopKeepalive() {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if fc.keepAlive {
		fc.keepAlive = false
		close(fc.stopKeep)
	}
}

// Done is closed when the channel has shut down.
func (fc *FrameChannel) Done() <-chan struct{} {
	return fc.done
}

func (fc *FrameChannel) markClosed() {
	fc.mu.Lock()
	if fc.closed {
		fc.mu.Unlock()
		return
	}
	fc.closed = true
	fc.mu.Unlock()
	close(fc.done)
}

// Close sends a graceful close message and closes the data channel.
func (fc *FrameChannel) Close() error {
	fc.mu.Lock()
	if fc.closed {
		fc.mu.Unlock()
		return nil
	}
	fc.mu.Unlock()

	fc.sendMessage(protocol.NewCloseMessage())
	fc.markClosed()
	return fc.dc.Close()
}
