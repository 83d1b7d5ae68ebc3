package messenger

import (
	"context"
	"fmt"

	"github.com/sabersally/solana-messenger-go/internal/keystore"
	"github.com/sabersally/solana-messenger-go/internal/logging"
	"github.com/sabersally/solana-messenger-go/internal/wire"
)

// register publishes m.encryptionPublic as this identity's registry entry.
func (m *Messenger) register(ctx context.Context) (string, error) {
	ix := wire.BuildRegister(m.programID, m.registryPDA, m.identity, wire.Address(SystemProgramID), m.encryptionPublic)
	sig, err := m.submit(ctx, []wire.Instruction{ix})
	if err != nil {
		return "", err
	}
	m.metrics.RegistryWrites.WithLabelValues("register").Inc()
	m.logger.Info("registry: registered", logging.KeyIdentity, m.Identity(), logging.KeySignature, sig)
	return sig, nil
}

// update republishes m.encryptionPublic, replacing whatever key is
// currently on-chain for this identity.
func (m *Messenger) update(ctx context.Context) (string, error) {
	ix := wire.BuildUpdateEncryptionKey(m.programID, m.registryPDA, m.identity, m.encryptionPublic)
	sig, err := m.submit(ctx, []wire.Instruction{ix})
	if err != nil {
		return "", err
	}
	m.metrics.RegistryWrites.WithLabelValues("update").Inc()
	m.logger.Info("registry: updated", logging.KeyIdentity, m.Identity(), logging.KeySignature, sig)
	return sig, nil
}

// Register builds, signs, submits, and confirms a register instruction
// for the local encryption key, returning the confirmed signature. Most
// callers should use Init instead, which only writes when needed.
func (m *Messenger) Register(ctx context.Context) (string, error) {
	if m.encryptionPublic == ([32]byte{}) {
		return "", ErrNotInitialized
	}
	return m.register(ctx)
}

// Update generates a fresh local encryption keypair, archives the current
// one to the key store's rotation history, and republishes the new public
// key as this identity's registry entry. The superseded private key stays
// loaded in m.historicalEncryptionSeeds (and on disk, via the key file's
// history) so messages encrypted before the rotation keep decrypting
// afterward.
func (m *Messenger) Update(ctx context.Context) (newEncryptionPublic [32]byte, signature string, err error) {
	if m.encryptionPublic == ([32]byte{}) {
		return [32]byte{}, "", ErrNotInitialized
	}

	newPub, newSeed, err := keystore.Rotate(m.Identity(), m.keysDir)
	if err != nil {
		return [32]byte{}, "", fmt.Errorf("messenger: rotate encryption key: %w", err)
	}

	ix := wire.BuildUpdateEncryptionKey(m.programID, m.registryPDA, m.identity, newPub)
	sig, err := m.submit(ctx, []wire.Instruction{ix})
	if err != nil {
		return [32]byte{}, "", err
	}

	m.historicalEncryptionSeeds = append(m.historicalEncryptionSeeds, m.encryptionSeed)
	m.encryptionPublic = newPub
	copy(m.encryptionSeed[:], newSeed[:32])

	m.metrics.RegistryWrites.WithLabelValues("update").Inc()
	m.logger.Info("registry: updated", logging.KeyIdentity, m.Identity(), logging.KeySignature, sig)
	return newPub, sig, nil
}

// Deregister closes this identity's registry entry. After it confirms,
// LookupEncryptionKey(identity) returns found=false.
func (m *Messenger) Deregister(ctx context.Context) (string, error) {
	ix := wire.BuildDeregister(m.programID, m.registryPDA, m.identity)
	sig, err := m.submit(ctx, []wire.Instruction{ix})
	if err != nil {
		return "", err
	}
	m.metrics.RegistryWrites.WithLabelValues("deregister").Inc()
	m.logger.Info("registry: deregistered", logging.KeyIdentity, m.Identity(), logging.KeySignature, sig)
	return sig, nil
}

// LookupEncryptionKey fetches and decodes the registry entry for identity.
// found is false if the account does not exist, or if any RPC error
// occurs; absence and transport failure look the same to the caller.
func (m *Messenger) LookupEncryptionKey(ctx context.Context, identity [32]byte) (encryptionPublic [32]byte, found bool) {
	m.metrics.RegistryLookups.Inc()

	pda, _, err := derivePDA(m.programID, identity)
	if err != nil {
		m.metrics.RegistryMisses.Inc()
		return [32]byte{}, false
	}

	acc, err := m.gw.GetAccountInfo(ctx, FormatIdentity(pda))
	if err != nil || acc == nil {
		m.metrics.RegistryMisses.Inc()
		return [32]byte{}, false
	}

	reg, err := wire.DecodeRegistryAccount(acc.Data)
	if err != nil {
		m.metrics.RegistryMisses.Inc()
		return [32]byte{}, false
	}

	return [32]byte(reg.EncryptionKey), true
}
