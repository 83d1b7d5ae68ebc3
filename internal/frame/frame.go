// Package frame implements the fixed-header plaintext envelope that gets
// encrypted into a single on-chain transaction: encoding a string into one
// or more chunks bounded by the transaction payload ceiling, and decoding
// frame bytes back into their header fields and payload.
package frame

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/unicode/norm"
)

const (
	// HeaderSize is the fixed frame header length in bytes.
	HeaderSize = 13

	// MaxPayloadSize is the largest payload a single frame may carry.
	// A sent transaction's total payload and account overhead leave ~900
	// bytes for ciphertext; after the 16-byte Poly1305 tag and the
	// 13-byte frame header, 661 is the largest chunk that guarantees fit.
	MaxPayloadSize = 661

	// FlagStandalone marks a frame that is not part of a multi-chunk message.
	FlagStandalone = 0x00

	// FlagChunked marks a frame that is one chunk of a multi-chunk message.
	FlagChunked = 0x01

	// MessageIDSize is the size of the random per-message identifier.
	MessageIDSize = 8
)

// ErrFrameTooShort is returned when decoding fewer than HeaderSize bytes.
var ErrFrameTooShort = errors.New("frame: fewer than 13 bytes")

// MessageID is the random identifier shared by every chunk of one logical
// message.
type MessageID [MessageIDSize]byte

// Frame is the 13-byte-header-plus-payload plaintext unit that gets
// encrypted into one transaction's payload.
type Frame struct {
	Flags       uint8
	MessageID   MessageID
	ChunkIndex  uint16
	TotalChunks uint16
	Payload     []byte
}

// Encode serializes the frame to its wire bytes. The decoder does not
// validate payload length, but Encode enforces MaxPayloadSize so callers
// never produce a frame the network will reject.
func (f *Frame) Encode() ([]byte, error) {
	if len(f.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("frame: payload %d exceeds max %d", len(f.Payload), MaxPayloadSize)
	}

	buf := make([]byte, HeaderSize+len(f.Payload))
	buf[0] = f.Flags
	copy(buf[1:9], f.MessageID[:])
	binary.BigEndian.PutUint16(buf[9:11], f.ChunkIndex)
	binary.BigEndian.PutUint16(buf[11:13], f.TotalChunks)
	copy(buf[HeaderSize:], f.Payload)

	return buf, nil
}

// Decode deserializes frame bytes. It fails only if fewer than HeaderSize
// bytes are supplied; a payload longer than MaxPayloadSize is accepted,
// tolerant to future format revisions.
func Decode(buf []byte) (*Frame, error) {
	if len(buf) < HeaderSize {
		return nil, ErrFrameTooShort
	}

	f := &Frame{
		Flags:       buf[0],
		ChunkIndex:  binary.BigEndian.Uint16(buf[9:11]),
		TotalChunks: binary.BigEndian.Uint16(buf[11:13]),
	}
	copy(f.MessageID[:], buf[1:9])

	payload := make([]byte, len(buf)-HeaderSize)
	copy(payload, buf[HeaderSize:])
	f.Payload = payload

	return f, nil
}

// Encode splits text into one or more frames. Plaintext is first
// NFC-normalized so two clients on different platforms frame identical
// glyphs identically; this never changes ASCII payloads. If the resulting
// UTF-8 bytes fit in one frame, a single standalone frame (flags 0x00,
// total_chunks 1, chunk_index 0) is emitted. Otherwise the payload is split
// into ceil(len/MaxPayloadSize) chunks sharing one random message_id, with
// chunk_index running 0..n-1.
func Encode(text string) ([]*Frame, error) {
	payload := norm.NFC.String(text)
	payloadBytes := []byte(payload)

	var id MessageID
	if _, err := io.ReadFull(rand.Reader, id[:]); err != nil {
		return nil, fmt.Errorf("frame: generate message id: %w", err)
	}

	if len(payloadBytes) <= MaxPayloadSize {
		return []*Frame{{
			Flags:       FlagStandalone,
			MessageID:   id,
			ChunkIndex:  0,
			TotalChunks: 1,
			Payload:     payloadBytes,
		}}, nil
	}

	totalChunks := (len(payloadBytes) + MaxPayloadSize - 1) / MaxPayloadSize
	if totalChunks > 0xFFFF {
		return nil, fmt.Errorf("frame: message requires %d chunks, exceeds uint16 range", totalChunks)
	}

	frames := make([]*Frame, 0, totalChunks)
	for i := 0; i < totalChunks; i++ {
		start := i * MaxPayloadSize
		end := start + MaxPayloadSize
		if end > len(payloadBytes) {
			end = len(payloadBytes)
		}

		chunk := make([]byte, end-start)
		copy(chunk, payloadBytes[start:end])

		frames = append(frames, &Frame{
			Flags:       FlagChunked,
			MessageID:   id,
			ChunkIndex:  uint16(i),
			TotalChunks: uint16(totalChunks),
			Payload:     chunk,
		})
	}

	return frames, nil
}
