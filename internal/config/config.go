// Package config supplies the defaults for the daemon's CLI surface on a
// github.com/spf13/viper instance (which merges flags, env vars and an
// optional TOML file; the cobra flag definitions themselves live in
// cmd/lightanchord), then translates the merged values into the typed
// structures the rest of the daemon consumes.
package config

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/lightanchor/lightanchor/types"
)

// Config is the fully-parsed, validated set of daemon inputs.
type Config struct {
	ChainID         string
	Primary         string
	Witnesses       []string
	TrustedHeight   int64
	TrustedHash     []byte
	SignatureScheme types.SchemeName

	ListenAddr string
	Verbosity  int

	Params types.TrustParameters
}

// Flag defaults, in seconds.
const (
	defaultTrustingPeriod     = 1209600
	defaultMaxClockDrift      = 5
	defaultMaxBlockLag        = 5
	defaultFreshnessThreshold = 10
	defaultKeepWarmInterval   = 300
	defaultHaltDurationOnFork = 3600
	defaultAPITimeout         = 5
)

// Defaults sets every optional flag's default value on v.
func Defaults(v *viper.Viper) {
	v.SetDefault("listen-addr", "127.0.0.1:8080")
	v.SetDefault("trust-threshold", "2/3")
	v.SetDefault("trusting-period", defaultTrustingPeriod)
	v.SetDefault("max-clock-drift", defaultMaxClockDrift)
	v.SetDefault("max-block-lag", defaultMaxBlockLag)
	v.SetDefault("freshness-threshold", defaultFreshnessThreshold)
	v.SetDefault("keep-warm-interval", defaultKeepWarmInterval)
	v.SetDefault("halt-duration-on-fork", defaultHaltDurationOnFork)
	v.SetDefault("api-timeout", defaultAPITimeout)
	v.SetDefault("signature-scheme", "ed25519")
	v.SetDefault("verbosity", 0)
}

// FromViper reads every bound key off v and produces a validated Config.
// Configuration errors (malformed flags, trust_threshold out of range) are
// fatal at startup and are returned here for the caller to report and
// exit on.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		ChainID:         v.GetString("chain-id"),
		Primary:         v.GetString("primary"),
		TrustedHeight:   v.GetInt64("trusted-height"),
		SignatureScheme: types.SchemeName(v.GetString("signature-scheme")),
		ListenAddr:      v.GetString("listen-addr"),
		Verbosity:       v.GetInt("verbosity"),
	}

	if cfg.ChainID == "" {
		return nil, errors.New("--chain-id is required")
	}
	if cfg.Primary == "" {
		return nil, errors.New("--primary is required")
	}
	if cfg.TrustedHeight <= 0 {
		return nil, errors.New("--trusted-height must be positive")
	}

	hashHex := v.GetString("trusted-hash")
	if hashHex == "" {
		return nil, errors.New("--trusted-hash is required")
	}
	hash, err := hex.DecodeString(strings.TrimPrefix(hashHex, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "--trusted-hash must be hex")
	}
	cfg.TrustedHash = hash

	if w := v.GetString("witnesses"); w != "" {
		for _, addr := range strings.Split(w, ",") {
			addr = strings.TrimSpace(addr)
			if addr != "" {
				cfg.Witnesses = append(cfg.Witnesses, addr)
			}
		}
	}

	threshold, err := parseTrustThreshold(v.GetString("trust-threshold"))
	if err != nil {
		return nil, err
	}

	cfg.Params = types.TrustParameters{
		TrustThreshold:     threshold,
		TrustingPeriod:     time.Duration(v.GetInt64("trusting-period")) * time.Second,
		MaxClockDrift:      time.Duration(v.GetInt64("max-clock-drift")) * time.Second,
		MaxBlockLag:        time.Duration(v.GetInt64("max-block-lag")) * time.Second,
		FreshnessThreshold: time.Duration(v.GetInt64("freshness-threshold")) * time.Second,
		KeepWarmInterval:   time.Duration(v.GetInt64("keep-warm-interval")) * time.Second,
		HaltDurationOnFork: time.Duration(v.GetInt64("halt-duration-on-fork")) * time.Second,
		APITimeout:         time.Duration(v.GetInt64("api-timeout")) * time.Second,
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid trust parameters")
	}

	switch cfg.SignatureScheme {
	case types.SchemeEd25519, types.SchemeBLS:
	default:
		return nil, fmt.Errorf("unknown --signature-scheme %q: must be ed25519 or bls", cfg.SignatureScheme)
	}

	return cfg, nil
}

// Checkpoint extracts the bootstrap trust anchor from the config.
func (c *Config) Checkpoint() types.Checkpoint {
	return types.Checkpoint{
		ChainID:       c.ChainID,
		TrustedHeight: c.TrustedHeight,
		TrustedHash:   c.TrustedHash,
	}
}

func parseTrustThreshold(s string) (types.TrustThreshold, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return types.TrustThreshold{}, fmt.Errorf("--trust-threshold must be N/D, got %q", s)
	}
	num, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return types.TrustThreshold{}, errors.Wrap(err, "--trust-threshold numerator")
	}
	den, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return types.TrustThreshold{}, errors.Wrap(err, "--trust-threshold denominator")
	}
	t := types.TrustThreshold{Numerator: num, Denominator: den}
	if err := t.Validate(); err != nil {
		return types.TrustThreshold{}, err
	}
	return t, nil
}
