// Package config provides YAML configuration loading for the messenger
// client, mirroring the root package's Options fields by name. This is
// strictly a convenience on top of programmatic Options{} construction,
// which remains the primary supported path.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the YAML-loadable mirror of the root package's Options.
type Config struct {
	// RPCURL is the HTTP RPC endpoint. Required.
	RPCURL string `yaml:"rpc_url"`

	// WSURL overrides the WebSocket endpoint derived from RPCURL.
	WSURL string `yaml:"ws_url"`

	// ProgramID overrides the default program id, base58-encoded.
	ProgramID string `yaml:"program_id"`

	// ProgramVariant selects the deployed send_message account layout:
	// "minimal" or "fee_extended". Defaults to "minimal".
	ProgramVariant string `yaml:"program_variant"`

	// KeysDir overrides the encryption-key storage directory.
	KeysDir string `yaml:"keys_dir"`

	// IdentitySecretFile points at a keystore-format JSON file holding the
	// local identity's Ed25519 keypair (self-custody mode). Mutually
	// exclusive with WalletAddress: a signer_callback for external-signer
	// mode cannot be expressed in YAML and must be supplied programmatically
	// via Options.
	IdentitySecretFile string `yaml:"identity_secret_file"`

	// WalletAddress is the identity's base58 public address, for
	// external-signer mode. The matching signer_callback is supplied
	// programmatically; this field alone only identifies the wallet.
	WalletAddress string `yaml:"wallet_address"`

	// HTTPTimeoutSeconds overrides the default per-request HTTP timeout.
	HTTPTimeoutSeconds int `yaml:"http_timeout_seconds"`

	// RPCRequestsPerSecond caps outbound JSON-RPC calls. 0 (default) keeps
	// the gateway's built-in limit.
	RPCRequestsPerSecond float64 `yaml:"rpc_requests_per_second"`

	// ConfirmPollIntervalSeconds overrides the default 1s confirmation poll interval.
	ConfirmPollIntervalSeconds int `yaml:"confirm_poll_interval_seconds"`

	// ConfirmPollAttempts overrides the default 30-attempt confirmation poll budget.
	ConfirmPollAttempts int `yaml:"confirm_poll_attempts"`

	// MaxReassemblyBuffers caps in-flight chunk-reassembly buffers. 0 (default) is unbounded.
	MaxReassemblyBuffers int `yaml:"max_reassembly_buffers"`

	// ReassemblyTTLSeconds evicts an incomplete reassembly buffer after this
	// many seconds. 0 (default) disables TTL eviction.
	ReassemblyTTLSeconds int `yaml:"reassembly_ttl_seconds"`

	// LogLevel and LogFormat configure the default logger (debug/info/warn/error, text/json).
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads and parses a YAML configuration file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration is self-consistent: rpc_url is
// required, and exactly one identity source is named.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("config: rpc_url is required")
	}

	haveSecret := c.IdentitySecretFile != ""
	haveWallet := c.WalletAddress != ""
	if haveSecret == haveWallet {
		return fmt.Errorf("config: exactly one of identity_secret_file or wallet_address must be set")
	}

	switch c.ProgramVariant {
	case "", "minimal", "fee_extended":
	default:
		return fmt.Errorf("config: program_variant must be %q or %q, got %q", "minimal", "fee_extended", c.ProgramVariant)
	}

	return nil
}

// ConfirmPollInterval returns ConfirmPollIntervalSeconds as a Duration,
// falling back to 1s when unset.
func (c Config) ConfirmPollInterval() time.Duration {
	if c.ConfirmPollIntervalSeconds <= 0 {
		return time.Second
	}
	return time.Duration(c.ConfirmPollIntervalSeconds) * time.Second
}

// HTTPTimeout returns HTTPTimeoutSeconds as a Duration, falling back to 30s when unset.
func (c Config) HTTPTimeout() time.Duration {
	if c.HTTPTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// ReassemblyTTL returns ReassemblyTTLSeconds as a Duration, or 0 (disabled) when unset.
func (c Config) ReassemblyTTL() time.Duration {
	if c.ReassemblyTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.ReassemblyTTLSeconds) * time.Second
}
