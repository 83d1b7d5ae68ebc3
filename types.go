package messenger

import (
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/sabersally/solana-messenger-go/internal/frame"
)

// Message is the caller-visible reassembled object returned by Read and
// delivered to Listen's callback.
type Message struct {
	// Sender and Recipient are 32-byte Ed25519 identity public keys.
	Sender    [32]byte
	Recipient [32]byte

	// Text is the decoded UTF-8 plaintext.
	Text string

	// Timestamp is the block-assigned unix time of the transaction that
	// delivered the message's first-observed chunk. Block-assigned
	// timestamps are only weakly monotonic; do not rely on them for
	// causality.
	Timestamp int64

	// MessageID is the random 8-byte id shared by every chunk of this
	// logical message.
	MessageID frame.MessageID

	// Signatures lists the contributing transaction signatures, one per
	// chunk, in chunk_index order.
	Signatures []string
}

// ReadOptions bounds a history read.
type ReadOptions struct {
	// Since discards events whose own embedded timestamp is strictly
	// earlier than this unix-second timestamp. Zero means no lower bound.
	Since int64

	// Limit is the maximum number of logical messages to return. Zero
	// defaults to 10.
	Limit int
}

// ParseIdentity decodes a base58-encoded 32-byte Ed25519 public key.
func ParseIdentity(base58Addr string) ([32]byte, error) {
	var id [32]byte
	raw, err := base58.Decode(base58Addr)
	if err != nil {
		return id, fmt.Errorf("messenger: decode identity %q: %w", base58Addr, err)
	}
	if len(raw) != 32 {
		return id, fmt.Errorf("messenger: identity %q decodes to %d bytes, want 32", base58Addr, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// FormatIdentity base58-encodes a 32-byte Ed25519 public key.
func FormatIdentity(id [32]byte) string {
	return base58.Encode(id[:])
}
