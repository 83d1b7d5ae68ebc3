package messenger

import (
	"context"
	"errors"
	"sync"

	"github.com/sabersally/solana-messenger-go/internal/frame"
	"github.com/sabersally/solana-messenger-go/internal/logging"
	"github.com/sabersally/solana-messenger-go/internal/reassembly"
	"github.com/sabersally/solana-messenger-go/internal/wire"
)

// Listen subscribes to program log notifications and delivers each fully
// reassembled message addressed to this identity to callback, in arrival
// order, until the returned unsubscribe func is called or ctx is
// cancelled. The reassembly buffer is bounded by opts.MaxReassemblyBuffers
// and opts.ReassemblyTTL (both zero means unbounded), since a live
// subscription can run indefinitely and must not accumulate abandoned
// partial messages forever.
//
// unsubscribe blocks until the background read loop has exited, so no
// callback invocation can happen after it returns.
func (m *Messenger) Listen(ctx context.Context, callback func(Message)) (unsubscribe func(), err error) {
	programAddr := FormatIdentity(m.programID)
	sub, err := m.gw.SubscribeLogs(ctx, programAddr, "confirmed")
	if err != nil {
		return nil, err
	}

	listenCtx, cancel := context.WithCancel(ctx)
	mgr := reassembly.NewManager(reassembly.Config{
		MaxBuffers: m.opts.MaxReassemblyBuffers,
		TTL:        m.opts.ReassemblyTTL,
		Logger:     m.logger,
		OnDrop:     m.metrics.ReassemblyDropped.Inc,
		OnEvict:    m.metrics.ReassemblyEvicted.Inc,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer mgr.Reset()
		m.listenLoop(listenCtx, sub, mgr, callback)
	}()

	var once sync.Once
	unsubscribe = func() {
		once.Do(func() {
			cancel()
			sub.Close()
			<-done
		})
	}
	return unsubscribe, nil
}

func (m *Messenger) listenLoop(ctx context.Context, sub Subscription, mgr *reassembly.Manager, callback func(Message)) {
	for {
		mgr.EvictExpired()

		notif, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			m.logger.Warn("listen: subscription read failed", logging.KeyError, err)
			return
		}
		if notif.Err != nil {
			continue
		}

		events := wire.DecodeEvents(notif.Logs)
		m.metrics.EventsParsed.Add(float64(len(events)))

		for _, ev := range events {
			if [32]byte(ev.Recipient) != m.identity {
				continue
			}

			plaintext, ok := m.tryDecrypt(ev.Ciphertext, ev.Nonce, [32]byte(ev.Sender))
			if !ok {
				continue
			}

			f, decErr := frame.Decode(plaintext)
			if decErr != nil {
				continue
			}

			completed := mgr.Add([32]byte(ev.Sender), f, notif.Signature, ev.Timestamp)
			m.metrics.ReassemblyOccupancy.Set(float64(mgr.Count()))
			if completed != nil {
				m.metrics.MessagesLive.Inc()
				callback(Message{
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
}
