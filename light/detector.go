package light

import (
	"context"
	"time"

	"github.com/lightanchor/lightanchor/internal/rpcclient"
	"github.com/lightanchor/lightanchor/types"
)

// The detector is a second wall of defense for the light client. More info:
// tendermint/docs/architecture/adr-047-handling-evidence-from-light-client.md
//
// It takes the trace the verification engine just produced and compares its
// target header with the same-height header returned by each witness the
// daemon is connected to. A conflicting header is bisected against the trace
// to find the first divergent height, evidence is built from the two
// conflicting signed headers, and that evidence is sent to both providers
// before the coordinator halts.

// DetectOutcome is the result of one detection pass: either no witness
// irreconcilably diverged, or at least one did and Evidence carries the
// conflicting header pairs.
type DetectOutcome struct {
	Forked   bool
	Evidence []*types.Evidence
}

// witnessCompareResult tags the outcome of comparing one witness's header
// against the target; exactly one of ok/fork/bad is set.
type witnessCompareResult struct {
	idx  int
	ok   bool
	fork *errConflictingHeaders
	bad  *errBadWitness
}

// Detect runs one detection pass per witness in parallel. An empty witness
// set returns ErrNoWitnesses, which callers running without witnesses must
// treat as detection-skipped. A pass where every witness is unreachable is
// logged and treated as Ok: only a confirmed divergence on a verified
// height is a fork.
func (c *Client) Detect(ctx context.Context, trace types.Trace, now time.Time) (DetectOutcome, error) {
	if len(trace) == 0 {
		return DetectOutcome{}, ErrInvalidCommit(nil)
	}
	target := trace.Last()

	witnesses := c.Witnesses()
	if len(witnesses) == 0 {
		return DetectOutcome{}, ErrNoWitnesses
	}

	c.logger.Debug("running detector against trace",
		"height", target.Height(), "hash", target.Hash(), "witnesses", len(witnesses))

	resc := make(chan witnessCompareResult, len(witnesses))
	for i, w := range witnesses {
		go func(i int, w rpcclient.Client) {
			resc <- c.compareWithWitness(ctx, target, w, i, now)
		}(i, w)
	}

	var (
		toRemove []int
		outcome  DetectOutcome
	)
	for range witnesses {
		r := <-resc
		switch {
		case r.ok:
			continue
		case r.fork != nil:
			ev, err := c.buildEvidence(ctx, trace, witnesses[r.idx], *r.fork)
			if err != nil {
				// A witness that hands out a conflicting header but can't
				// back it up when bisected is removed.
				c.logger.Error("failed to build evidence from conflicting header", "witness", witnesses[r.idx].Addr(), "err", err)
				toRemove = append(toRemove, r.idx)
				continue
			}
			outcome.Forked = true
			outcome.Evidence = append(outcome.Evidence, ev)
		case r.bad != nil:
			// Unreachable, lagging, or clock-skewed: reported and skipped,
			// kept in the set. The witness may simply be behind on its own
			// sync and useful again once caught up.
			c.logger.Info("witness unreliable, skipping comparison", "witness", witnesses[r.idx].Addr(), "reason", r.bad.Reason)
		}
	}

	c.removeWitnesses(toRemove)

	if outcome.Forked {
		c.submitEvidence(ctx, outcome.Evidence)
	}
	return outcome, nil
}

var errLaggingWitness = errLagging{}
var errSkewedWitness = errSkewed{}

type errLagging struct{}

func (errLagging) Error() string { return "witness lags beyond max_block_lag" }

type errSkewed struct{}

func (errSkewed) Error() string { return "witness clock skew beyond max_clock_drift" }

// compareWithWitness fetches w's light block at target.Height() and
// compares its hash against target's. It tags its outcome rather than
// returning an error, so Detect can fan results in over a channel without
// a bespoke error hierarchy.
func (c *Client) compareWithWitness(ctx context.Context, target *types.LightBlock, w rpcclient.Client, idx int, now time.Time) witnessCompareResult {
	wLatest, err := w.LatestHeight(ctx)
	if err != nil {
		return witnessCompareResult{idx: idx, bad: &errBadWitness{WitnessAddr: w.Addr(), Reason: err}}
	}

	if wLatest < target.Height() {
		// The witness's head is below the primary's. Distinguish "merely
		// lagging" from "suspiciously behind" by the witness's own block
		// time: if its latest block is older than max_block_lag it is just
		// slow, not conflicting.
		lb, err := w.LightBlock(ctx, wLatest)
		if err != nil {
			return witnessCompareResult{idx: idx, bad: &errBadWitness{WitnessAddr: w.Addr(), Reason: err}}
		}
		if now.Sub(lb.Time()) > c.params.MaxBlockLag {
			return witnessCompareResult{idx: idx, bad: &errBadWitness{WitnessAddr: w.Addr(), Reason: errLaggingWitness}}
		}
		return witnessCompareResult{idx: idx, ok: true}
	}

	lb, err := w.LightBlock(ctx, target.Height())
	if err != nil {
		return witnessCompareResult{idx: idx, bad: &errBadWitness{WitnessAddr: w.Addr(), Reason: err}}
	}
	if drift := lb.Time().Sub(now); drift > c.params.MaxClockDrift {
		return witnessCompareResult{idx: idx, bad: &errBadWitness{WitnessAddr: w.Addr(), Reason: errSkewedWitness}}
	}

	if lb.Hash().Equal(target.Hash()) {
		c.logger.Debug("matching header received by witness", "witness", w.Addr(), "height", target.Height())
		return witnessCompareResult{idx: idx, ok: true}
	}

	return witnessCompareResult{idx: idx, fork: &errConflictingHeaders{WitnessAddr: w.Addr(), Height: target.Height()}}
}

// buildEvidence isolates the first divergent height between the primary
// trace and witness w by bisecting down through the heights the trace
// already visited, then pairs the two conflicting signed headers at that
// height into Evidence.
func (c *Client) buildEvidence(ctx context.Context, trace types.Trace, w rpcclient.Client, conflict errConflictingHeaders) (*types.Evidence, error) {
	lo, hi := 0, len(trace)-1 // trace[lo]: trusted root (agreed); trace[hi]: conflicting height
	for lo < hi-1 {
		mid := lo + (hi-lo)/2
		primaryAtMid := trace[mid]
		witnessAtMid, err := w.LightBlock(ctx, primaryAtMid.Height())
		if err != nil {
			break // narrowest bracket found so far is the best we can do
		}
		if witnessAtMid.Hash().Equal(primaryAtMid.Hash()) {
			lo = mid
		} else {
			hi = mid
		}
	}

	divergentPrimary := trace[hi]
	divergentWitness, err := w.LightBlock(ctx, divergentPrimary.Height())
	if err != nil {
		return nil, err
	}

	return &types.Evidence{
		Height:           divergentPrimary.Height(),
		ConflictingBlock: divergentWitness.SignedHeader,
		TrustedBlock:     divergentPrimary.SignedHeader,
		WitnessAddr:      w.Addr(),
	}, nil
}

// submitEvidence reports each piece of evidence to both the primary and the
// witness it came from, on a best effort basis, skipping anything already
// submitted earlier in this process's lifetime.
func (c *Client) submitEvidence(ctx context.Context, evidence []*types.Evidence) {
	for _, ev := range evidence {
		if c.evidenceSeen.seenOrMark(ev) {
			continue
		}
		if err := c.primary.SubmitEvidence(ctx, ev); err != nil {
			c.logger.Error("failed to report evidence to primary", "height", ev.Height, "err", err)
		}
		for _, w := range c.Witnesses() {
			if w.Addr() != ev.WitnessAddr {
				continue
			}
			if err := w.SubmitEvidence(ctx, ev); err != nil {
				c.logger.Error("failed to report evidence to witness", "witness", w.Addr(), "height", ev.Height, "err", err)
			}
		}
	}
}
