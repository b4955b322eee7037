// Package protocol defines the message format carried over the viewer data
// channel.
package protocol

import (
	"encoding/binary"
	"errors"
)

// MsgType represents the type of a viewer message.
type MsgType byte

const (
	MsgFrame MsgType = 0x01 // JPEG-encoded viewport frame
	MsgInfo  MsgType = 0x02 // JSON stream metadata (dimensions, fps)
	MsgPing  MsgType = 0x03 // Keepalive ping
	MsgPong  MsgType = 0x04 // Keepalive pong
	MsgClose MsgType = 0x05 // Graceful close
)

// Header size: 1 byte type + 4 bytes length. Encoded frames routinely exceed
// 64KB, so the length field is 32-bit.
const headerSize = 5

// MaxPayloadSize bounds a single message payload. A full-HD JPEG at high
// quality stays well under this.
const MaxPayloadSize = 8 << 20

var (
	ErrMessageTooShort = errors.New("message too short")
	ErrInvalidLength   = errors.New("invalid message length")
	ErrPayloadTooLarge = errors.New("payload too large")
)

// Message represents a viewer protocol message.
type Message struct {
	Type    MsgType
	Payload []byte
}

// Encode serializes a message to wire format.
// Format: [1 byte type][4 byte length (big-endian)][payload]
func (m *Message) Encode() ([]byte, error) {
	if len(m.Payload) > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}
	buf := make([]byte, headerSize+len(m.Payload))
	buf[0] = byte(m.Type)
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(m.Payload)))
	copy(buf[headerSize:], m.Payload)
	return buf, nil
}

// DecodeMessage parses a wire format message.
func DecodeMessage(data []byte) (*Message, error) {
	if len(data) < headerSize {
		return nil, ErrMessageTooShort
	}

	msgType := MsgType(data[0])
	length := binary.BigEndian.Uint32(data[1:5])

	if length > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}
	if len(data) < headerSize+int(length) {
		return nil, ErrInvalidLength
	}

	payload := make([]byte, length)
	copy(payload, data[headerSize:headerSize+int(length)])

	return &Message{
		Type:    msgType,
		Payload: payload,
	}, nil
}

// NewFrameMessage creates a frame message carrying a JPEG image.
func NewFrameMessage(jpeg []byte) *Message {
	return &Message{
		Type:    MsgFrame,
		Payload: jpeg,
	}
}

// NewInfoMessage creates a metadata message carrying JSON.
func NewInfoMessage(info []byte) *Message {
	return &Message{
		Type:    MsgInfo,
		Payload: info,
	}
}

// NewPingMessage creates a keepalive ping.
func NewPingMessage() *Message {
	return &Message{Type: MsgPing}
}

// NewPongMessage creates a keepalive pong.
func NewPongMessage() *Message {
	return &Message{Type: MsgPong}
}

// NewCloseMessage creates a graceful close message.
func NewCloseMessage() *Message {
	return &Message{Type: MsgClose}
}
