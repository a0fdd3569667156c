package light

import (
	"context"
	"time"

	bz "github.com/lightanchor/lightanchor/libs/bytes"
	"github.com/lightanchor/lightanchor/types"
)

// twoThirds is the adjacent-step and intra-block commit threshold fixed by
// CometBFT consensus safety, independent of the configured trust_threshold,
// which only governs the skip step's overlap requirement.
var twoThirds = types.TrustThreshold{Numerator: 2, Denominator: 3}

// VerifyToHeight advances trust from root to target using skip
// verification. On success every block in the returned trace is trusted,
// either as the root itself or against an earlier block in the same trace;
// on failure no partial trace is returned.
func (c *Client) VerifyToHeight(ctx context.Context, root *types.LightBlock, target int64, now time.Time) (types.Trace, error) {
	if target < root.Height() {
		target = root.Height()
	}
	if target == root.Height() {
		return types.Trace{root}, nil
	}
	return c.verifyStep(ctx, root, target, now, types.Trace{root})
}

// verifyStep attempts to verify directly from a to target; if the gap is
// too large to trust in one step it bisects at the midpoint, verifies
// a->mid, then recurses mid->target. Recursion terminates because each
// bisection strictly shrinks the remaining gap, bottoming out at the
// adjacent step (target == a.Height()+1), which is never further
// bisectable and so either succeeds or returns definitively.
func (c *Client) verifyStep(ctx context.Context, a *types.LightBlock, target int64, now time.Time, trace types.Trace) (types.Trace, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	b, err := c.fetchBlock(ctx, target)
	if err != nil {
		return nil, err
	}
	if err := c.checkBlockClock(b, now); err != nil {
		return nil, err
	}
	if b.SignedHeader.Header.ChainID != c.chainID {
		return nil, ErrChainIDMismatch(c.chainID, b.SignedHeader.Header.ChainID)
	}
	if err := c.checkValidatorSetHashes(b); err != nil {
		return nil, err
	}

	trusted, trustErr := c.checkTrust(a, b)
	if trusted {
		return append(trace, b), nil
	}
	if trustErr != nil && !IsErrInsufficientTrust(trustErr) {
		// A cryptographic failure (bad commit, etc.) is not bisectable:
		// more intermediate blocks wouldn't change a malformed signature.
		return nil, trustErr
	}

	mid := a.Height() + (target-a.Height())/2
	if mid <= a.Height() || mid >= target {
		// Already at the adjacent step and it failed to trust: definitive.
		return nil, trustErr
	}

	trace, err = c.verifyStep(ctx, a, mid, now, trace)
	if err != nil {
		return nil, err
	}
	return c.verifyStep(ctx, trace.Last(), target, now, trace)
}

// checkTrust applies the adjacent or skip rule depending on the gap
// between a and b, returning (true, nil) if b is trusted given a.
func (c *Client) checkTrust(a, b *types.LightBlock) (bool, error) {
	if b.Height() == a.Height()+1 {
		return c.checkAdjacent(a, b)
	}
	return c.checkSkip(a, b)
}

// checkAdjacent implements the adjacent step: b.header.validators_hash must
// equal a.next_validator_set_hash, and b.commit must carry >= 2/3 of
// a.next_validator_set's voting power.
func (c *Client) checkAdjacent(a, b *types.LightBlock) (bool, error) {
	if !b.ValidatorsHash().Equal(a.NextValidatorSet.Hash()) {
		return false, ErrValidatorSetMismatch(b.Height(), a.NextValidatorSet.Hash().String(), b.ValidatorsHash().String())
	}

	total := a.NextValidatorSet.TotalVotingPower()
	signed, err := c.scheme.VotingPowerSigned(a.NextValidatorSet, c.chainID, b.Hash(), b.SignedHeader.Commit)
	if err != nil {
		return false, ErrInvalidCommit(err)
	}
	if !twoThirds.IsMet(signed, total) {
		required := (total*twoThirds.Numerator + twoThirds.Denominator - 1) / twoThirds.Denominator
		return false, ErrInsufficientTrust(b.Height(), signed, required, total)
	}
	return true, nil
}

// checkSkip implements the skip step: validators common to
// a.next_validator_set and b.validator_set must contribute at least
// trust_threshold of a.next_validator_set's voting power via signatures in
// b.commit, AND b.commit must itself carry >= 2/3 of b.validator_set.
func (c *Client) checkSkip(a, b *types.LightBlock) (bool, error) {
	totalA := a.NextValidatorSet.TotalVotingPower()
	overlapSigned, err := c.scheme.VotingPowerSigned(a.NextValidatorSet, c.chainID, b.Hash(), b.SignedHeader.Commit)
	if err != nil {
		return false, ErrInvalidCommit(err)
	}
	if !c.params.TrustThreshold.IsMet(overlapSigned, totalA) {
		required := (totalA*c.params.TrustThreshold.Numerator + c.params.TrustThreshold.Denominator - 1) / c.params.TrustThreshold.Denominator
		return false, ErrInsufficientTrust(b.Height(), overlapSigned, required, totalA)
	}

	totalB := b.ValidatorSet.TotalVotingPower()
	selfSigned, err := c.scheme.VotingPowerSigned(b.ValidatorSet, c.chainID, b.Hash(), b.SignedHeader.Commit)
	if err != nil {
		return false, ErrInvalidCommit(err)
	}
	if !twoThirds.IsMet(selfSigned, totalB) {
		required := (totalB*twoThirds.Numerator + twoThirds.Denominator - 1) / twoThirds.Denominator
		return false, ErrInsufficientTrust(b.Height(), selfSigned, required, totalB)
	}
	return true, nil
}

// checkBlockClock applies the two time-bound obligations every candidate
// block must satisfy relative to the verification clock.
func (c *Client) checkBlockClock(b *types.LightBlock, now time.Time) error {
	age := now.Sub(b.Time())
	if age > c.params.TrustingPeriod {
		return ErrExpiredTrust(b.Height(), age)
	}
	if b.Time().After(now.Add(c.params.MaxClockDrift)) {
		return ErrClockDrift(b.Height(), b.Time().Sub(now))
	}
	return nil
}

// checkValidatorSetHashes cross-checks that the validator sets an RPC
// response supplied alongside b actually hash to what b's header claims,
// so a tampered-with or stale validators response fails loudly rather than
// silently corrupting a verification decision.
func (c *Client) checkValidatorSetHashes(b *types.LightBlock) error {
	if !b.ValidatorSet.Hash().Equal(b.ValidatorsHash()) {
		return ErrValidatorSetMismatch(b.Height(), b.ValidatorsHash().String(), b.ValidatorSet.Hash().String())
	}
	if !b.NextValidatorSet.Hash().Equal(b.NextValidatorsHash()) {
		return ErrValidatorSetMismatch(b.Height(), b.NextValidatorsHash().String(), b.NextValidatorSet.Hash().String())
	}
	return nil
}

// fetchBlock retrieves the light block at height from the primary,
// translating transport failures into ErrPrimaryUnavailable.
func (c *Client) fetchBlock(ctx context.Context, height int64) (*types.LightBlock, error) {
	lb, err := c.primary.LightBlock(ctx, height)
	if err != nil {
		return nil, ErrPrimaryUnavailable(err)
	}
	return lb, nil
}

// Bootstrap fetches the light block at the checkpoint height from the
// primary and validates it against the externally-supplied trust anchor.
// Failure here is always fatal to the process: there is no prior trusted
// state to fall back to.
func (c *Client) Bootstrap(ctx context.Context, cp types.Checkpoint) (*types.LightBlock, error) {
	lb, err := c.fetchBlock(ctx, cp.TrustedHeight)
	if err != nil {
		return nil, err
	}
	if lb.SignedHeader.Header.ChainID != cp.ChainID {
		return nil, ErrChainIDMismatch(cp.ChainID, lb.SignedHeader.Header.ChainID)
	}
	got := lb.Hash()
	want := bz.HexBytes(cp.TrustedHash)
	if !got.Equal(want) {
		return nil, ErrHeaderHashMismatch(want.String(), got.String())
	}
	if err := c.checkValidatorSetHashes(lb); err != nil {
		return nil, err
	}
	return lb, nil
}
