package messenger

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/sabersally/solana-messenger-go/internal/cryptobox"
	"github.com/sabersally/solana-messenger-go/internal/frame"
	"github.com/sabersally/solana-messenger-go/internal/logging"
	"github.com/sabersally/solana-messenger-go/internal/wire"
)

// Send encrypts text to recipient and submits one transaction per chunk,
// returning the ordered list of transaction signatures (one per chunk).
//
// Recipient key resolution: if explicitEncryptionKey is non-nil, it is
// used as-is. Otherwise, if the messenger has completed Init, the
// recipient's registry entry is looked up and used if present. In every
// other case, including when no registry entry exists or the messenger
// has never been initialized, the message is encrypted directly to the
// recipient's identity key, which they can always decrypt with their
// signing secret.
//
// Chunks are submitted sequentially in chunk_index order. A per-chunk
// failure aborts the remainder; the returned error is a
// *SendPartialFailureError carrying every signature that landed and the
// index of the chunk that failed.
func (m *Messenger) Send(ctx context.Context, recipient [32]byte, text string, explicitEncryptionKey *[32]byte) ([]string, error) {
	recipientKey := recipient
	switch {
	case explicitEncryptionKey != nil:
		recipientKey = *explicitEncryptionKey
	case m.initialized:
		if key, found := m.LookupEncryptionKey(ctx, recipient); found {
			recipientKey = key
		}
	}

	senderSecret, err := m.encryptSecret()
	if err != nil {
		m.metrics.SendsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	frames, err := frame.Encode(text)
	if err != nil {
		m.metrics.SendsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("messenger: encode frames: %w", err)
	}

	accounts := wire.SendMessageAccounts{Sender: m.identity}
	if m.variant == wire.VariantFeeExtended {
		recipientRegistryPDA, _, err := derivePDA(m.programID, recipient)
		if err != nil {
			m.metrics.SendsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("messenger: derive recipient registry address: %w", err)
		}
		accounts.Config = wire.Address(m.opts.FeeAccounts.Config)
		accounts.FeeVault = wire.Address(m.opts.FeeAccounts.FeeVault)
		accounts.RecipientRegistry = recipientRegistryPDA
		accounts.RecipientWallet = wire.Address(recipient)
		accounts.SystemProgram = wire.Address(SystemProgramID)
	}

	signatures := make([]string, 0, len(frames))
	totalBytes := 0
	for _, f := range frames {
		totalBytes += len(f.Payload)
	}
	for _, f := range frames {
		raw, err := f.Encode()
		if err != nil {
			return signatures, m.sendFailure(signatures, fmt.Errorf("encode frame: %w", err))
		}

		ciphertext, nonce, err := cryptobox.Encrypt(raw, senderSecret, recipientKey[:])
		if err != nil {
			return signatures, m.sendFailure(signatures, fmt.Errorf("encrypt chunk: %w", err))
		}

		ix, err := wire.BuildSendMessage(m.programID, m.variant, accounts, wire.Address(recipient), ciphertext, nonce)
		if err != nil {
			return signatures, m.sendFailure(signatures, fmt.Errorf("build instruction: %w", err))
		}

		sig, err := m.submit(ctx, []wire.Instruction{ix})
		if err != nil {
			m.metrics.ChunkSendErrors.Inc()
			return signatures, m.sendFailure(signatures, err)
		}

		signatures = append(signatures, sig)
		m.metrics.ChunksSubmitted.Inc()
	}

	m.metrics.SendsTotal.WithLabelValues("ok").Inc()
	m.logger.Info("send: delivered",
		logging.KeyRecipient, FormatIdentity(recipient),
		logging.KeyChunks, len(signatures),
		"plaintext_size", humanize.Bytes(uint64(totalBytes)),
	)
	return signatures, nil
}

func (m *Messenger) sendFailure(landed []string, err error) error {
	m.metrics.SendsTotal.WithLabelValues("partial_failure").Inc()
	sigs := append([]string(nil), landed...)
	return &SendPartialFailureError{Signatures: sigs, FailedChunkIndex: len(sigs), Err: err}
}
