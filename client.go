// Package messenger is a client library for encrypted, peer-to-peer
// messaging whose durable substrate is a public blockchain. Any two
// identities, addressed by 32-byte Ed25519 public signing keys, can
// exchange confidential messages without a relay, mailbox service, or
// trusted intermediary; the chain sees only ciphertext, sender,
// recipient, a nonce, and a block-assigned timestamp.
package messenger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sabersally/solana-messenger-go/internal/keystore"
	"github.com/sabersally/solana-messenger-go/internal/logging"
	"github.com/sabersally/solana-messenger-go/internal/metrics"
	"github.com/sabersally/solana-messenger-go/internal/rpcclient"
	"github.com/sabersally/solana-messenger-go/internal/signer"
	"github.com/sabersally/solana-messenger-go/internal/wire"
)

// Messenger is the entry point for the encrypted peer-to-peer messaging
// client. Construct one with New.
type Messenger struct {
	opts    Options
	signer  signer.Signer
	gw      gateway
	metrics *metrics.Metrics
	logger  *slog.Logger

	programID   wire.Address
	identity    [32]byte
	registryPDA wire.Address
	variant     wire.ProgramVariant

	// encryptionPublic/encryptionSeed are the local encryption keypair,
	// loaded or generated at Init time. encryptionSeed is the 32-byte
	// Ed25519 seed (cryptobox's secret input shape). historicalEncryptionSeeds
	// holds the seed half of every keypair this identity has superseded by
	// rotation, oldest first: messages encrypted to a prior key must keep
	// decrypting after an Update.
	encryptionPublic          [32]byte
	encryptionSeed            [32]byte
	historicalEncryptionSeeds [][32]byte
	keysDir                   string

	// identitySeed is set only in local-signer mode. It doubles as the
	// encrypt-side secret for sends and as a decrypt fallback for
	// messages encrypted to the raw identity key.
	identitySeed     [32]byte
	haveIdentitySeed bool

	initialized bool
}

// New constructs a Messenger. Exactly one of {IdentitySecret} or
// {WalletAddress, SignerCallback} must be set in opts.
func New(opts Options) (*Messenger, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	var s signer.Signer
	if len(opts.IdentitySecret) > 0 {
		var secretKey [64]byte
		copy(secretKey[:], opts.IdentitySecret)
		s = signer.NewLocalSigner(secretKey)
	} else {
		local, err := signer.NewExternalSigner(opts.WalletAddress, opts.SignerCallback)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
		}
		s = local
	}

	keysDir := opts.KeysDir
	if keysDir == "" {
		dir, err := keystore.DefaultKeysDir()
		if err != nil {
			return nil, fmt.Errorf("messenger: resolve default keys directory: %w", err)
		}
		keysDir = dir
	}

	mx := metrics.Default()
	if opts.MetricsRegistry != nil {
		mx = metrics.NewMetricsWithRegistry(opts.MetricsRegistry)
	}
	observe := func(method string, callErr error, latency time.Duration) {
		mx.RPCRequests.WithLabelValues(method).Inc()
		mx.RPCLatency.WithLabelValues(method).Observe(latency.Seconds())
		if callErr != nil {
			mx.RPCErrors.WithLabelValues(method).Inc()
		}
	}

	rcOpts := []rpcclient.Option{
		rpcclient.WithHTTPTimeout(opts.HTTPTimeout),
		rpcclient.WithObserver(observe),
	}
	if opts.WSURL != "" {
		rcOpts = append(rcOpts, rpcclient.WithWSURL(opts.WSURL))
	}
	if opts.RPCRequestsPerSecond > 0 {
		rcOpts = append(rcOpts, rpcclient.WithRequestsPerSecond(opts.RPCRequestsPerSecond))
	}
	rc := rpcclient.New(opts.RPCURL, rcOpts...)

	m := &Messenger{
		opts:      opts,
		signer:    s,
		gw:        liveGateway{rc},
		metrics:   mx,
		logger:    opts.Logger,
		programID: wire.Address(opts.ProgramID),
		identity:  s.PublicKey(),
		variant:   opts.ProgramVariant,
		keysDir:   keysDir,
	}

	pda, _, err := derivePDA(m.programID, m.identity)
	if err != nil {
		return nil, fmt.Errorf("messenger: derive registry address: %w", err)
	}
	m.registryPDA = pda

	if len(opts.IdentitySecret) == 64 {
		var seed [32]byte
		copy(seed[:], opts.IdentitySecret[:32])
		m.identitySeed = seed
		m.haveIdentitySeed = true
	}

	return m, nil
}

// withGateway swaps in a test double for the chain RPC gateway. Used only
// by tests in this package; unexported to keep the public surface
// small.
func (m *Messenger) withGateway(gw gateway) *Messenger {
	m.gw = gw
	return m
}

// Identity returns the messenger's base58-encoded identity address.
func (m *Messenger) Identity() string {
	return FormatIdentity(m.identity)
}

// RegistryAddress returns the base58-encoded address of this identity's
// registry account (deterministic, no network call).
func (m *Messenger) RegistryAddress() string {
	return FormatIdentity(m.registryPDA)
}

// Initialized reports whether Init has completed successfully at least
// once in this process.
func (m *Messenger) Initialized() bool {
	return m.initialized
}

// Init resolves the identity address, loads or generates the local
// encryption key, and reconciles it against the on-chain registry entry:
// (a) on-chain matches local → no write; (b) no on-chain entry → register;
// (c) on-chain differs → update. Idempotent across restarts: calling Init
// twice with the same key file produces wrote=false the second time and at
// most one on-chain write total across the pair.
func (m *Messenger) Init(ctx context.Context) (encryptionPublicKey [32]byte, wrote bool, err error) {
	pub, seed, _, _, err := keystore.LoadOrGenerate(m.Identity(), m.keysDir)
	if err != nil {
		return [32]byte{}, false, fmt.Errorf("messenger: load or generate encryption key: %w", err)
	}
	m.encryptionPublic = pub
	copy(m.encryptionSeed[:], seed[:32])

	history, err := keystore.LoadHistory(m.Identity(), m.keysDir)
	if err != nil {
		return [32]byte{}, false, fmt.Errorf("messenger: load encryption key history: %w", err)
	}
	m.historicalEncryptionSeeds = m.historicalEncryptionSeeds[:0]
	for _, h := range history {
		var s [32]byte
		copy(s[:], h[:32])
		m.historicalEncryptionSeeds = append(m.historicalEncryptionSeeds, s)
	}

	acc, err := m.gw.GetAccountInfo(ctx, m.RegistryAddress())
	if err != nil {
		return [32]byte{}, false, fmt.Errorf("messenger: fetch registry account: %w", err)
	}

	switch {
	case acc == nil:
		if _, err := m.register(ctx); err != nil {
			return [32]byte{}, false, err
		}
		wrote = true
	default:
		reg, decErr := wire.DecodeRegistryAccount(acc.Data)
		if decErr != nil {
			return [32]byte{}, false, fmt.Errorf("messenger: decode registry account: %w", decErr)
		}
		if reg.EncryptionKey != wire.Address(m.encryptionPublic) {
			if _, err := m.update(ctx); err != nil {
				return [32]byte{}, false, err
			}
			wrote = true
		}
	}

	m.initialized = true
	m.logger.Info("messenger initialized",
		logging.KeyIdentity, m.Identity(),
		logging.KeyRegistry, m.RegistryAddress(),
		"wrote", wrote,
	)
	return m.encryptionPublic, wrote, nil
}

// encryptSecret returns the 32-byte Ed25519 seed used as the sender-side
// secret for Encrypt: the identity secret in local-signer mode (one key,
// one artefact on disk), otherwise the locally generated encryption
// secret: external-signer mode never holds the identity secret.
func (m *Messenger) encryptSecret() ([]byte, error) {
	if m.haveIdentitySeed {
		return m.identitySeed[:], nil
	}
	if m.encryptionPublic == ([32]byte{}) {
		return nil, ErrNotInitialized
	}
	return m.encryptionSeed[:], nil
}

// decryptSecrets returns the candidate secrets to attempt decryption with,
// in priority order: the current local encryption secret first, then any
// secrets it has superseded by rotation (newest-superseded first, since a
// message is far more likely to predate a rotation by a little than by a
// lot), then (if held) the identity secret, so messages encrypted to
// the raw identity key by unregistered-aware senders still decrypt.
func (m *Messenger) decryptSecrets() [][]byte {
	var secrets [][]byte
	if m.encryptionPublic != ([32]byte{}) {
		secrets = append(secrets, append([]byte(nil), m.encryptionSeed[:]...))
	}
	for i := len(m.historicalEncryptionSeeds) - 1; i >= 0; i-- {
		secrets = append(secrets, append([]byte(nil), m.historicalEncryptionSeeds[i][:]...))
	}
	if m.haveIdentitySeed {
		secrets = append(secrets, append([]byte(nil), m.identitySeed[:]...))
	}
	return secrets
}
