package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrustThreshold_ExactlyAtBoundarySucceeds(t *testing.T) {
	th := DefaultTrustThreshold // 2/3
	assert.True(t, th.IsMet(2, 3))
	assert.True(t, th.IsMet(20, 30))
}

func TestTrustThreshold_JustBelowBoundaryFails(t *testing.T) {
	th := DefaultTrustThreshold
	assert.False(t, th.IsMet(19, 30))
}

func TestTrustThreshold_ZeroTotalPowerNeverMet(t *testing.T) {
	th := DefaultTrustThreshold
	assert.False(t, th.IsMet(0, 0))
}

func TestTrustThreshold_ValidateRejectsBelowOneThird(t *testing.T) {
	th := TrustThreshold{Numerator: 1, Denominator: 4}
	assert.Error(t, th.Validate())
}

func TestTrustThreshold_ValidateRejectsAboveOne(t *testing.T) {
	th := TrustThreshold{Numerator: 4, Denominator: 3}
	assert.Error(t, th.Validate())
}

func TestTrustThreshold_ValidateAcceptsOneThird(t *testing.T) {
	th := TrustThreshold{Numerator: 1, Denominator: 3}
	assert.NoError(t, th.Validate())
}

func TestTrustThreshold_ValidateAcceptsFull(t *testing.T) {
	th := TrustThreshold{Numerator: 1, Denominator: 1}
	assert.NoError(t, th.Validate())
}

func TestTrustParameters_ValidateRejectsNegativeDuration(t *testing.T) {
	p := TrustParameters{TrustThreshold: DefaultTrustThreshold, MaxClockDrift: -time.Second}
	assert.Error(t, p.Validate())
}

func TestTrustParameters_ValidateAcceptsZeroFreshnessThreshold(t *testing.T) {
	p := TrustParameters{TrustThreshold: DefaultTrustThreshold}
	assert.NoError(t, p.Validate())
}
