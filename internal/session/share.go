package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

var (
	shareEncoder *zstd.Encoder
	shareDecoder *zstd.Decoder
)

func init() {
	var err error
	shareEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		panic(fmt.Sprintf("failed to create zstd encoder: %v", err))
	}
	shareDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
	}
}

// shareVersion is the current share-string format version.
const shareVersion byte = 0x01

// EncodeShare packs a descriptor into a compact URL-safe string so connection
// info can be handed to a viewer out of band (QR code, chat paste) when the
// session endpoint is not reachable from the viewer's network path.
// Format: [1 byte version][zstd-compressed descriptor JSON], base64url.
func EncodeShare(d Descriptor) (string, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to marshal descriptor: %w", err)
	}

	payload := append([]byte{shareVersion}, shareEncoder.EncodeAll(raw, nil)...)
	return base64.RawURLEncoding.EncodeToString(payload), nil
}

// DecodeShare unpacks a share string produced by EncodeShare.
func DecodeShare(encoded string) (Descriptor, error) {
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to decode base64: %w", err)
	}

	if len(payload) < 2 {
		return Descriptor{}, fmt.Errorf("share payload too short: %d bytes", len(payload))
	}
	if payload[0] != shareVersion {
		return Descriptor{}, fmt.Errorf("unsupported share version: %d", payload[0])
	}

	raw, err := shareDecoder.DecodeAll(payload[1:], nil)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to decompress descriptor: %w", err)
	}

	var d Descriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return Descriptor{}, fmt.Errorf("failed to unmarshal descriptor: %w", err)
	}
	return d, nil
}

// ShareURL builds the viewer URL carrying the descriptor in the fragment, so
// it never reaches server logs on the way in.
func ShareURL(d Descriptor) (string, error) {
	encoded, err := EncodeShare(d)
	if err != nil {
		return "", err
	}
	return d.BackendURL + "/#s=" + encoded, nil
}
