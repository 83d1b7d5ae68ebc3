package messenger

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sabersally/solana-messenger-go/internal/logging"
	"github.com/sabersally/solana-messenger-go/internal/signer"
	"github.com/sabersally/solana-messenger-go/internal/wire"
)

// DefaultProgramID is the library-provided program id used when Options
// does not override one.
var DefaultProgramID = [32]byte{
	0x16, 0x18, 0x01, 0xC9, 0x39, 0xFE, 0xD4, 0xF0, 0xB2, 0xFF, 0x51, 0x68, 0x44, 0x2C, 0xD7, 0x6A,
	0x01, 0x46, 0x7B, 0x2A, 0xE1, 0x28, 0xF3, 0xA6, 0x17, 0xAC, 0x62, 0x40, 0x48, 0x30, 0xEE, 0x38,
}

// FeeAccounts names the fixed accounts a fee-extended deployment's
// send_message instruction needs beyond the sender and recipient. There
// is no derivation rule for these (fee-vault/platform governance is out
// of scope); callers targeting such a deployment supply them directly.
type FeeAccounts struct {
	Config   [32]byte
	FeeVault [32]byte
}

// SystemProgramID is the host chain's well-known system program account
// (32 zero bytes), required by the register instruction's account list.
var SystemProgramID = [32]byte{}

const (
	// defaultConfirmPollAttempts is the hard cap on confirmation polls.
	defaultConfirmPollAttempts = 30
	// defaultConfirmPollInterval is the spacing between confirmation polls.
	defaultConfirmPollInterval = time.Second
	// defaultHTTPTimeout is the default per-request RPC HTTP timeout.
	defaultHTTPTimeout = 30 * time.Second
)

// Options configures a Messenger at construction. Exactly one of
// {IdentitySecret} or {WalletAddress, SignerCallback} must be supplied.
type Options struct {
	// RPCURL is the HTTP RPC endpoint. Required.
	RPCURL string

	// WSURL overrides the WebSocket endpoint derived from RPCURL
	// (https→wss, http→ws).
	WSURL string

	// ProgramID overrides DefaultProgramID.
	ProgramID [32]byte

	// ProgramVariant selects which send_message account list the deployed
	// program expects. The client is always told which variant to target;
	// it never probes the network to infer it.
	ProgramVariant wire.ProgramVariant

	// KeysDir overrides the encryption-key storage directory
	// (default `<home>/.solana-messenger/keys`).
	KeysDir string

	// FeeAccounts supplies the config/fee_vault accounts required when
	// ProgramVariant is VariantFeeExtended. Unused for VariantMinimal.
	FeeAccounts FeeAccounts

	// IdentitySecret is the 64-byte Ed25519 private key (self-custody
	// mode). The process holds it in memory for the Messenger's lifetime.
	IdentitySecret []byte

	// WalletAddress is the identity's 32-byte Ed25519 public key
	// (external-signer mode). Paired with SignerCallback.
	WalletAddress [32]byte

	// SignerCallback signs a compiled transaction on behalf of
	// WalletAddress. Never receives the encryption private key: the
	// identity key's holder can pay and sign, but cannot read traffic.
	SignerCallback signer.Callback

	// Logger defaults to a JSON handler on os.Stderr. Pass
	// logging.NopLogger() to silence.
	Logger *slog.Logger

	// MetricsRegistry overrides where metrics are registered. When nil,
	// every Messenger shares one process-wide Metrics instance registered
	// against prometheus.DefaultRegisterer, so repeated constructions
	// never double-register. Pass a fresh prometheus.NewRegistry() in
	// tests to keep counters isolated per case.
	MetricsRegistry prometheus.Registerer

	// HTTPTimeout overrides the RPC gateway's per-request HTTP timeout.
	HTTPTimeout time.Duration

	// RPCRequestsPerSecond caps outbound JSON-RPC calls across all
	// operations. 0 keeps the gateway's built-in limit.
	RPCRequestsPerSecond float64

	// ConfirmPollInterval overrides the spacing between confirmation polls.
	ConfirmPollInterval time.Duration

	// ConfirmPollAttempts overrides the hard cap on confirmation polls.
	ConfirmPollAttempts int

	// MaxReassemblyBuffers caps in-flight (sender, message_id)
	// reassembly buffers. 0 (default) is unbounded.
	MaxReassemblyBuffers int

	// ReassemblyTTL evicts an incomplete reassembly buffer once it has
	// been open longer than this duration. 0 (default) disables TTL eviction.
	ReassemblyTTL time.Duration
}

func (o Options) validate() error {
	if o.RPCURL == "" {
		return fmt.Errorf("%w: rpc_url is required", ErrConfigInvalid)
	}

	haveSecret := len(o.IdentitySecret) > 0
	haveWallet := o.WalletAddress != [32]byte{} || o.SignerCallback != nil
	if haveSecret == haveWallet {
		return fmt.Errorf("%w: exactly one of identity_secret or (wallet_address, signer_callback) must be set", ErrConfigInvalid)
	}
	if haveWallet && o.SignerCallback == nil {
		return fmt.Errorf("%w: wallet_address requires a signer_callback", ErrConfigInvalid)
	}
	if haveSecret && len(o.IdentitySecret) != 64 {
		return fmt.Errorf("%w: identity_secret must be 64 bytes, got %d", ErrConfigInvalid, len(o.IdentitySecret))
	}

	return nil
}

func (o Options) withDefaults() Options {
	if o.ProgramID == ([32]byte{}) {
		o.ProgramID = DefaultProgramID
	}
	if o.Logger == nil {
		o.Logger = logging.NewLogger("info", "json")
	}
	if o.HTTPTimeout <= 0 {
		o.HTTPTimeout = defaultHTTPTimeout
	}
	if o.ConfirmPollInterval <= 0 {
		o.ConfirmPollInterval = defaultConfirmPollInterval
	}
	if o.ConfirmPollAttempts <= 0 {
		o.ConfirmPollAttempts = defaultConfirmPollAttempts
	}
	return o
}
