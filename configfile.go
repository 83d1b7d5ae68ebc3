package messenger

import (
	"fmt"

	"github.com/sabersally/solana-messenger-go/internal/config"
	"github.com/sabersally/solana-messenger-go/internal/keystore"
	"github.com/sabersally/solana-messenger-go/internal/logging"
	"github.com/sabersally/solana-messenger-go/internal/wire"
)

// LoadOptions reads a YAML configuration file and maps it onto Options:
// base58 addresses are decoded, identity_secret_file is loaded from its
// keystore-format JSON, program_variant selects the send_message account
// layout, and log_level/log_format build the Logger.
//
// A signer callback cannot be expressed in YAML, so a config naming
// wallet_address yields Options that still need SignerCallback attached
// before New accepts them.
func LoadOptions(path string) (Options, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return Options{}, err
	}
	return optionsFromConfig(cfg)
}

func optionsFromConfig(cfg config.Config) (Options, error) {
	opts := Options{
		RPCURL:               cfg.RPCURL,
		WSURL:                cfg.WSURL,
		KeysDir:              cfg.KeysDir,
		HTTPTimeout:          cfg.HTTPTimeout(),
		ConfirmPollInterval:  cfg.ConfirmPollInterval(),
		ConfirmPollAttempts:  cfg.ConfirmPollAttempts,
		MaxReassemblyBuffers: cfg.MaxReassemblyBuffers,
		ReassemblyTTL:        cfg.ReassemblyTTL(),
		RPCRequestsPerSecond: cfg.RPCRequestsPerSecond,
	}

	if cfg.ProgramID != "" {
		id, err := ParseIdentity(cfg.ProgramID)
		if err != nil {
			return Options{}, fmt.Errorf("%w: program_id: %v", ErrConfigInvalid, err)
		}
		opts.ProgramID = id
	}

	if cfg.ProgramVariant == "fee_extended" {
		opts.ProgramVariant = wire.VariantFeeExtended
	}

	if cfg.IdentitySecretFile != "" {
		_, secret, err := keystore.LoadFile(cfg.IdentitySecretFile)
		if err != nil {
			return Options{}, fmt.Errorf("%w: identity_secret_file: %v", ErrConfigInvalid, err)
		}
		opts.IdentitySecret = secret[:]
	}

	if cfg.WalletAddress != "" {
		addr, err := ParseIdentity(cfg.WalletAddress)
		if err != nil {
			return Options{}, fmt.Errorf("%w: wallet_address: %v", ErrConfigInvalid, err)
		}
		opts.WalletAddress = addr
	}

	if cfg.LogLevel != "" || cfg.LogFormat != "" {
		opts.Logger = logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	return opts, nil
}

// NewFromConfig constructs a Messenger from a YAML configuration file in
// self-custody mode. External-signer deployments load Options with
// LoadOptions, attach their SignerCallback, and call New directly.
func NewFromConfig(path string) (*Messenger, error) {
	opts, err := LoadOptions(path)
	if err != nil {
		return nil, err
	}
	return New(opts)
}
