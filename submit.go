package messenger

import (
	"context"
	"time"

	"github.com/sabersally/solana-messenger-go/internal/wire"
)

// submit builds, signs, and submits a transaction carrying instructions,
// then polls for confirmation (up to ConfirmPollAttempts polls at
// ConfirmPollInterval spacing, accepting
// "confirmed" or "finalized"). Returns the signature regardless of
// confirmation outcome so callers can reconcile partial progress.
func (m *Messenger) submit(ctx context.Context, instructions []wire.Instruction) (string, error) {
	blockhash, err := m.gw.GetLatestBlockhash(ctx)
	if err != nil {
		return "", err
	}

	signedTx, err := m.signer.SignTransaction(ctx, instructions, blockhash)
	if err != nil {
		return "", err
	}

	signature, err := m.gw.SendTransaction(ctx, signedTx)
	if err != nil {
		return "", err
	}

	start := time.Now()
	err = m.confirm(ctx, signature)
	m.metrics.ConfirmLatency.Observe(time.Since(start).Seconds())
	return signature, err
}

// confirm polls get_signature_statuses for signature up to
// ConfirmPollAttempts times, ConfirmPollInterval apart, accepting
// "confirmed" or "finalized". Returns a *ConfirmTimeoutError carrying the
// signature if the budget is exhausted without confirmation.
func (m *Messenger) confirm(ctx context.Context, signature string) error {
	for attempt := 0; attempt < m.opts.ConfirmPollAttempts; attempt++ {
		statuses, err := m.gw.GetSignatureStatuses(ctx, []string{signature})
		if err == nil && len(statuses) > 0 && statuses[0] != nil && statuses[0].Confirmed() {
			return nil
		}

		if attempt < m.opts.ConfirmPollAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.opts.ConfirmPollInterval):
			}
		}
	}

	m.metrics.ConfirmTimeouts.Inc()
	return &ConfirmTimeoutError{Signature: signature}
}
