package types

import (
	"fmt"
	"time"
)

// TrustThreshold is the minimum fraction of a validator set's voting power
// that must sign a header for it to be trusted via the skip rule, expressed
// as Numerator/Denominator to avoid floating point in a security-critical
// comparison.
type TrustThreshold struct {
	Numerator   int64
	Denominator int64
}

// Validate checks 1/3 <= Numerator/Denominator <= 1.
func (t TrustThreshold) Validate() error {
	if t.Denominator <= 0 {
		return fmt.Errorf("trust threshold denominator must be positive, got %d", t.Denominator)
	}
	if 3*t.Numerator < t.Denominator || t.Numerator > t.Denominator {
		return fmt.Errorf("trust threshold %d/%d must be within [1/3, 1]", t.Numerator, t.Denominator)
	}
	return nil
}

// IsMet reports whether signedPower/totalPower meets the threshold, using
// cross multiplication to avoid floating point division.
func (t TrustThreshold) IsMet(signedPower, totalPower int64) bool {
	if totalPower <= 0 {
		return false
	}
	return signedPower*t.Denominator >= t.Numerator*totalPower
}

// DefaultTrustThreshold is 2/3, CometBFT's consensus fault-tolerance bound.
var DefaultTrustThreshold = TrustThreshold{Numerator: 2, Denominator: 3}

// TrustParameters are the immutable-for-process-lifetime knobs governing
// verification, detection, and sync cadence.
type TrustParameters struct {
	TrustThreshold TrustThreshold

	TrustingPeriod     time.Duration
	MaxClockDrift      time.Duration
	MaxBlockLag        time.Duration
	FreshnessThreshold time.Duration
	KeepWarmInterval   time.Duration
	HaltDurationOnFork time.Duration
	APITimeout         time.Duration
}

// Validate checks that every duration is non-negative and the trust
// threshold is well-formed.
func (p TrustParameters) Validate() error {
	if err := p.TrustThreshold.Validate(); err != nil {
		return err
	}
	durations := map[string]time.Duration{
		"trusting_period":       p.TrustingPeriod,
		"max_clock_drift":       p.MaxClockDrift,
		"max_block_lag":         p.MaxBlockLag,
		"freshness_threshold":   p.FreshnessThreshold,
		"keep_warm_interval":    p.KeepWarmInterval,
		"halt_duration_on_fork": p.HaltDurationOnFork,
		"api_timeout":           p.APITimeout,
	}
	for name, d := range durations {
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, d)
		}
	}
	return nil
}

// Checkpoint is the externally-supplied bootstrap trust anchor.
type Checkpoint struct {
	ChainID       string
	TrustedHeight int64
	TrustedHash   []byte
}
