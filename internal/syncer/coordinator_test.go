package syncer

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lightanchor/lightanchor/crypto"
	"github.com/lightanchor/lightanchor/internal/clock"
	"github.com/lightanchor/lightanchor/internal/log"
	"github.com/lightanchor/lightanchor/internal/metrics"
	"github.com/lightanchor/lightanchor/internal/rpcclient"
	"github.com/lightanchor/lightanchor/internal/store"
	bz "github.com/lightanchor/lightanchor/libs/bytes"
	"github.com/lightanchor/lightanchor/light"
	"github.com/lightanchor/lightanchor/types"
)

const testChainID = "test-chain"

// testChain is a static single-validator chain: every height shares the same
// validator set, so adjacent verification always succeeds trivially and
// these tests can focus on coordinator state-machine behavior rather than
// skip-verification mechanics (already covered in package light).
type testChain struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
	vs   *types.ValidatorSet
}

func newTestChain() *testChain {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	val := &types.Validator{PubKey: bz.HexBytes(pub), VotingPower: 10}
	return &testChain{pub: pub, priv: priv, vs: &types.ValidatorSet{Validators: []*types.Validator{val}}}
}

func (c *testChain) block(height int64, at time.Time) *types.LightBlock {
	header := &types.Header{
		ChainID:            testChainID,
		Height:             height,
		Time:               at,
		ValidatorsHash:     c.vs.Hash(),
		NextValidatorsHash: c.vs.Hash(),
	}
	hash := header.Hash()
	sig := ed25519.Sign(c.priv, append([]byte(testChainID+"|"), hash...))
	commit := &types.Commit{
		Height:    height,
		BlockHash: hash,
		Sigs:      []types.CommitSig{{ValidatorAddress: c.vs.Validators[0].Address(), Signature: sig}},
	}
	return &types.LightBlock{
		SignedHeader:     &types.SignedHeader{Header: header, Commit: commit},
		ValidatorSet:     c.vs,
		NextValidatorSet: c.vs,
	}
}

// fakeRPC is a minimal rpcclient.Client over an in-memory block map, with
// optional artificial latency and call counting to drive coalescing tests.
type fakeRPC struct {
	addr   string
	blocks map[int64]*types.LightBlock
	latest int64

	delay chan struct{} // if non-nil, LatestHeight blocks until closed
	calls int32
}

func (f *fakeRPC) Addr() string { return f.addr }

func (f *fakeRPC) LatestHeight(ctx context.Context) (int64, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay != nil {
		<-f.delay
	}
	return f.latest, nil
}

func (f *fakeRPC) LightBlock(ctx context.Context, height int64) (*types.LightBlock, error) {
	if height == 0 {
		height = f.latest
	}
	lb, ok := f.blocks[height]
	if !ok {
		return nil, fmt.Errorf("no block at height %d", height)
	}
	return lb, nil
}

func (f *fakeRPC) SubmitEvidence(ctx context.Context, ev *types.Evidence) error { return nil }

func testParams() types.TrustParameters {
	return types.TrustParameters{
		TrustThreshold:     types.DefaultTrustThreshold,
		TrustingPeriod:     14 * 24 * time.Hour,
		MaxClockDrift:      5 * time.Second,
		MaxBlockLag:        5 * time.Second,
		FreshnessThreshold: 10 * time.Second,
		KeepWarmInterval:   time.Hour,
		HaltDurationOnFork: time.Hour,
		APITimeout:         5 * time.Second,
	}
}

// fakeClock is a mutable Clock for driving halt-expiry boundaries.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func newCoordinator(primary rpcclient.Client, witnesses []rpcclient.Client, clk clock.Clock) *Coordinator {
	cl := light.NewClient(testChainID, crypto.Ed25519Scheme{}, testParams(), primary, witnesses, log.NewNopLogger())
	return New(&store.Store{}, cl, clk, testParams(), metrics.NewMetrics("test"), log.NewNopLogger())
}

func TestCoordinator_BootstrapThenTriggerCommits(t *testing.T) {
	defer leaktest.Check(t)()

	c := newTestChain()
	now := time.Now()
	primary := &fakeRPC{addr: "primary", blocks: map[int64]*types.LightBlock{
		1: c.block(1, now),
		2: c.block(2, now.Add(time.Minute)),
	}, latest: 2}

	clk := &fakeClock{t: now.Add(time.Minute)}
	coord := newCoordinator(primary, nil, clk)

	require.NoError(t, coord.Bootstrap(context.Background(), types.Checkpoint{
		ChainID: testChainID, TrustedHeight: 1, TrustedHash: c.block(1, now).Hash(),
	}))
	assert.Equal(t, types.StateIdle, coord.Status().State)

	outcome := <-coord.Trigger(context.Background())
	require.NoError(t, outcome.Err)
	assert.False(t, outcome.Forked)
	assert.Equal(t, types.StateIdle, coord.Status().State)
}

func TestCoordinator_CoalescesConcurrentTriggers(t *testing.T) {
	defer leaktest.Check(t)()

	c := newTestChain()
	now := time.Now()
	delay := make(chan struct{})
	primary := &fakeRPC{addr: "primary", blocks: map[int64]*types.LightBlock{
		1: c.block(1, now),
		2: c.block(2, now.Add(time.Minute)),
	}, latest: 2, delay: delay}

	clk := &fakeClock{t: now.Add(time.Minute)}
	coord := newCoordinator(primary, nil, clk)
	require.NoError(t, coord.Bootstrap(context.Background(), types.Checkpoint{
		ChainID: testChainID, TrustedHeight: 1, TrustedHash: c.block(1, now).Hash(),
	}))

	ctx := context.Background()
	first := coord.Trigger(ctx)
	assert.Equal(t, types.StateInFlight, coord.Status().State)

	// Fire several more triggers while the first run is blocked in
	// LatestHeight: per the at-most-one rule these must coalesce onto the
	// in-flight run rather than starting new ones.
	const nWaiters = 5
	var waiters []<-chan Outcome
	for i := 0; i < nWaiters; i++ {
		waiters = append(waiters, coord.Trigger(ctx))
	}
	assert.Equal(t, nWaiters, coord.Status().Waiters)

	close(delay)

	out := <-first
	require.NoError(t, out.Err)
	for _, w := range waiters {
		got := <-w
		assert.Equal(t, out, got, "every coalesced waiter must observe the same outcome")
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&primary.calls), "coalesced triggers must execute exactly one run")
}

func TestCoordinator_HaltsOnForkAndRejectsTriggersUntilExpiry(t *testing.T) {
	defer leaktest.Check(t)()

	primaryChain := newTestChain()
	witnessChain := newTestChain()
	now := time.Now()

	primary := &fakeRPC{addr: "primary", blocks: map[int64]*types.LightBlock{
		1: primaryChain.block(1, now),
		2: primaryChain.block(2, now.Add(time.Minute)),
	}, latest: 2}
	witness := &fakeRPC{addr: "witness", blocks: map[int64]*types.LightBlock{
		1: witnessChain.block(1, now),
		2: witnessChain.block(2, now.Add(time.Minute)),
	}, latest: 2}

	clk := &fakeClock{t: now.Add(time.Minute)}
	coord := newCoordinator(primary, []rpcclient.Client{witness}, clk)
	require.NoError(t, coord.Bootstrap(context.Background(), types.Checkpoint{
		ChainID: testChainID, TrustedHeight: 1, TrustedHash: primaryChain.block(1, now).Hash(),
	}))

	outcome := <-coord.Trigger(context.Background())
	require.NoError(t, outcome.Err)
	assert.True(t, outcome.Forked)
	assert.Equal(t, types.StateHalted, coord.Status().State)

	calls := atomic.LoadInt32(&primary.calls)
	rejected := <-coord.Trigger(context.Background())
	assert.ErrorIs(t, rejected.Err, ErrHalted)
	assert.Equal(t, calls, atomic.LoadInt32(&primary.calls), "a trigger during a live halt must not start a run")

	// Advance past halt_duration_on_fork: the next trigger should resume.
	clk.set(clk.Now().Add(2 * time.Hour))
	resumed := <-coord.Trigger(context.Background())
	assert.True(t, atomic.LoadInt32(&primary.calls) > calls, "a trigger after halt expiry must start a new run")
	_ = resumed
}

func TestCoordinator_PrimaryRegressionIsTransient(t *testing.T) {
	defer leaktest.Check(t)()

	c := newTestChain()
	now := time.Now()
	primary := &fakeRPC{addr: "primary", blocks: map[int64]*types.LightBlock{
		5: c.block(5, now),
	}, latest: 3} // behind the trusted root

	clk := &fakeClock{t: now}
	coord := newCoordinator(primary, nil, clk)
	require.NoError(t, coord.Bootstrap(context.Background(), types.Checkpoint{
		ChainID: testChainID, TrustedHeight: 5, TrustedHash: c.block(5, now).Hash(),
	}))

	outcome := <-coord.Trigger(context.Background())
	assert.ErrorIs(t, outcome.Err, ErrPrimaryRegressed)
	assert.False(t, outcome.Forked)
	assert.Equal(t, types.StateIdle, coord.Status().State, "a transient error returns to Idle, not Halted")
}
