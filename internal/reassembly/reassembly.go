// Package reassembly buffers chunked frames until every chunk of a logical
// message has arrived, then hands back the concatenated plaintext in
// chunk_index order. It is used by both the historical read path (fed in a
// single batch) and the live listen path (fed incrementally as log
// notifications arrive).
package reassembly

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sabersally/solana-messenger-go/internal/frame"
	"github.com/sabersally/solana-messenger-go/internal/logging"
)

// Key identifies one logical message's reassembly buffer.
type Key struct {
	Sender    [32]byte
	MessageID frame.MessageID
}

// Completed is a fully reassembled logical message, ready to be delivered
// to the caller as a messenger.Message.
type Completed struct {
	Sender     [32]byte
	MessageID  frame.MessageID
	Text       []byte
	Timestamp  int64
	Signatures []string
}

type chunkEntry struct {
	payload   []byte
	signature string
}

type buffer struct {
	totalChunks uint16
	chunks      map[uint16]chunkEntry
	timestamp   int64
	firstSeen   time.Time
}

// Config bounds the reassembly buffer's memory footprint. Both fields are
// zero-valued (disabled) by default; set either to cap a buffer exposed
// to an adversarial or otherwise hostile sender population.
type Config struct {
	// MaxBuffers caps the number of distinct in-flight (sender, message_id)
	// buffers. 0 means unbounded. When exceeded, the oldest incomplete
	// buffer is evicted and logged.
	MaxBuffers int

	// TTL evicts an incomplete buffer once it has been open longer than
	// this duration. 0 means buffers never expire on their own.
	TTL time.Duration

	Logger *slog.Logger

	// OnDrop and OnEvict, if set, are called once per conflicting-chunk
	// drop and once per capacity/TTL eviction, respectively. This package
	// has no metrics dependency of its own; callers that want counters
	// wire them in through these hooks instead.
	OnDrop  func()
	OnEvict func()
}

// Manager is a mutex-guarded map of in-flight reassembly buffers, one per
// (sender, message_id) pair.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	buffers map[Key]*buffer
}

// NewManager creates an empty reassembly Manager.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	if cfg.OnDrop == nil {
		cfg.OnDrop = func() {}
	}
	if cfg.OnEvict == nil {
		cfg.OnEvict = func() {}
	}
	return &Manager{
		cfg:     cfg,
		logger:  logger,
		buffers: make(map[Key]*buffer),
	}
}

// Add presents one decrypted, decoded frame to the reassembly buffer for
// its (sender, message_id) pair. It returns the completed message once
// every chunk 0..total_chunks-1 has arrived; until then it returns nil.
// A conflicting total_chunks value for an already-open buffer drops the
// whole logical message and returns nil after logging. A frame whose
// chunk_index is not below its total_chunks is ignored and returns nil.
func (m *Manager) Add(sender [32]byte, f *frame.Frame, signature string, timestamp int64) *Completed {
	if f.ChunkIndex >= f.TotalChunks {
		return nil
	}
	key := Key{Sender: sender, MessageID: f.MessageID}

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buffers[key]
	if !ok {
		b = &buffer{
			totalChunks: f.TotalChunks,
			chunks:      make(map[uint16]chunkEntry, f.TotalChunks),
			timestamp:   timestamp,
			firstSeen:   time.Now(),
		}
		m.buffers[key] = b
		m.evictIfOverCapacity(key)
	} else if b.totalChunks != f.TotalChunks {
		m.logger.Warn("reassembly: conflicting total_chunks, dropping message",
			logging.KeyMessageID, messageIDHex(f.MessageID),
			logging.KeyChunks, f.TotalChunks)
		delete(m.buffers, key)
		m.cfg.OnDrop()
		return nil
	}

	// Idempotent: a repeated chunk_index replaces the existing payload
	// rather than erroring, since a non-adversarial sender's retries carry
	// equivalent bytes.
	b.chunks[f.ChunkIndex] = chunkEntry{payload: f.Payload, signature: signature}

	if len(b.chunks) < int(b.totalChunks) {
		return nil
	}

	text := make([]byte, 0, int(b.totalChunks)*frame.MaxPayloadSize)
	signatures := make([]string, 0, b.totalChunks)
	for i := uint16(0); i < b.totalChunks; i++ {
		c := b.chunks[i]
		text = append(text, c.payload...)
		signatures = append(signatures, c.signature)
	}

	delete(m.buffers, key)
	return &Completed{
		Sender:     sender,
		MessageID:  f.MessageID,
		Text:       text,
		Timestamp:  b.timestamp,
		Signatures: signatures,
	}
}

// evictIfOverCapacity drops the oldest incomplete buffer (other than the
// one just inserted) when the manager exceeds cfg.MaxBuffers. Caller must
// hold m.mu.
func (m *Manager) evictIfOverCapacity(justInserted Key) {
	if m.cfg.MaxBuffers <= 0 || len(m.buffers) <= m.cfg.MaxBuffers {
		return
	}

	var oldestKey Key
	var oldestTime time.Time
	found := false
	for k, b := range m.buffers {
		if k == justInserted {
			continue
		}
		if !found || b.firstSeen.Before(oldestTime) {
			oldestKey, oldestTime = k, b.firstSeen
			found = true
		}
	}
	if found {
		m.logger.Warn("reassembly: evicting oldest incomplete buffer over capacity",
			logging.KeyMessageID, messageIDHex(oldestKey.MessageID),
			logging.KeyCount, len(m.buffers))
		delete(m.buffers, oldestKey)
		m.cfg.OnEvict()
	}
}

// EvictExpired removes every incomplete buffer whose TTL (if configured)
// has elapsed. Callers on the live listen path run this periodically;
// history reads never need it since they present every chunk in one pass.
func (m *Manager) EvictExpired() {
	if m.cfg.TTL <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for k, b := range m.buffers {
		if now.Sub(b.firstSeen) > m.cfg.TTL {
			m.logger.Warn("reassembly: evicting expired buffer",
				logging.KeyMessageID, messageIDHex(k.MessageID))
			delete(m.buffers, k)
			m.cfg.OnEvict()
		}
	}
}

// Count reports the number of in-flight reassembly buffers, for metrics.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buffers)
}

// Reset discards every in-flight buffer. listen's cancellation tears the
// buffer map down by calling this before returning.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffers = make(map[Key]*buffer)
}

func messageIDHex(id frame.MessageID) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(id)*2)
	for i, b := range id {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0F]
	}
	return string(out)
}
