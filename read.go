package messenger

import (
	"context"
	"sort"
	"sync"

	"github.com/sabersally/solana-messenger-go/internal/cryptobox"
	"github.com/sabersally/solana-messenger-go/internal/frame"
	"github.com/sabersally/solana-messenger-go/internal/logging"
	"github.com/sabersally/solana-messenger-go/internal/reassembly"
	"github.com/sabersally/solana-messenger-go/internal/rpcclient"
	"github.com/sabersally/solana-messenger-go/internal/wire"
)

const (
	historyPageSize        = 1000
	historyFetchConcurrent = 20
	historyFetchBudget     = 10
)

// Read fetches historical messages addressed to this identity, newest
// transactions scanned first, returning logical messages sorted ascending
// by timestamp and truncated to opts.Limit (default 10).
//
// Signatures mentioning the program id are paginated backwards in pages of
// historyPageSize until either the provider has no more results or
// historyFetchBudget times the requested limit worth of signatures has
// been accumulated, so a caller asking for the last few messages never
// walks the program's entire history. Transaction
// bodies are then fetched with bounded concurrency, their logs decoded and
// filtered to events addressed to this identity, decrypted with the
// fallback chain in decryptSecrets, and reassembled.
func (m *Messenger) Read(ctx context.Context, opts ReadOptions) ([]Message, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	programAddr := FormatIdentity(m.programID)
	var signatures []rpcclient.SignatureInfo
	before := ""
	for len(signatures) < limit*historyFetchBudget {
		page, err := m.gw.GetSignaturesForAddress(ctx, programAddr, before, historyPageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		signatures = append(signatures, page...)
		before = page[len(page)-1].Signature
		if len(page) < historyPageSize {
			break
		}
	}

	type txResult struct {
		tx  *rpcclient.TransactionInfo
		err error
	}
	results := make([]txResult, len(signatures))

	sem := make(chan struct{}, historyFetchConcurrent)
	var wg sync.WaitGroup
	for i, info := range signatures {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, signature string) {
			defer wg.Done()
			defer func() { <-sem }()
			tx, err := m.gw.GetTransaction(ctx, signature)
			results[i] = txResult{tx: tx, err: err}
		}(i, info.Signature)
	}
	wg.Wait()

	mgr := reassembly.NewManager(reassembly.Config{
		Logger:  m.logger,
		OnDrop:  m.metrics.ReassemblyDropped.Inc,
		OnEvict: m.metrics.ReassemblyEvicted.Inc,
	})

	var out []Message
	// results (and signatures) arrived newest-first from pagination; walk
	// them oldest-first so a stable sort below preserves arrival order
	// among events that share a block-assigned timestamp.
	for i := len(results) - 1; i >= 0; i-- {
		r := results[i]
		if r.err != nil || r.tx == nil || r.tx.Meta == nil {
			continue
		}
		events := wire.DecodeEvents(r.tx.Meta.LogMessages)
		m.metrics.EventsParsed.Add(float64(len(events)))

		for _, ev := range events {
			if [32]byte(ev.Recipient) != m.identity {
				continue
			}
			if opts.Since > 0 && ev.Timestamp < opts.Since {
				continue
			}

			plaintext, ok := m.tryDecrypt(ev.Ciphertext, ev.Nonce, [32]byte(ev.Sender))
			if !ok {
				continue
			}

			f, err := frame.Decode(plaintext)
			if err != nil {
				continue
			}

			if completed := mgr.Add([32]byte(ev.Sender), f, signatures[i].Signature, ev.Timestamp); completed != nil {
				out = append(out, Message{
					Sender:     completed.Sender,
					Recipient:  m.identity,
					Text:       string(completed.Text),
					Timestamp:  completed.Timestamp,
					MessageID:  completed.MessageID,
					Signatures: completed.Signatures,
				})
			}
		}
	}

	m.metrics.MessagesRead.Add(float64(len(out)))
	// Block-assigned timestamps are only weakly monotonic; a stable sort
	// preserves submission order among ties instead of reshuffling them.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}

	m.logger.Info("read: complete", logging.KeyCount, len(out))
	return out, nil
}

// tryDecrypt attempts every candidate secret in decryptSecrets, in order,
// returning the first successful plaintext.
func (m *Messenger) tryDecrypt(ciphertext, nonce []byte, sender [32]byte) ([]byte, bool) {
	for _, secret := range m.decryptSecrets() {
		m.metrics.DecryptAttempts.Inc()
		if plaintext, ok := cryptobox.Decrypt(ciphertext, nonce, sender[:], secret); ok {
			return plaintext, true
		}
		m.metrics.DecryptFailures.Inc()
	}
	return nil, false
}
