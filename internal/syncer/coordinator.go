// Package syncer implements the sync coordinator: the single-writer state
// machine that drives verification and detection forward, enforces the
// at-most-one-run guarantee, merges the periodic, on-demand, and bootstrap
// trigger sources, and governs the halted state after a detected fork.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/Workiva/go-datastructures/queue"
	"github.com/pkg/errors"
	"github.com/sasha-s/go-deadlock"

	"github.com/lightanchor/lightanchor/internal/clock"
	"github.com/lightanchor/lightanchor/internal/log"
	"github.com/lightanchor/lightanchor/internal/metrics"
	"github.com/lightanchor/lightanchor/internal/store"
	"github.com/lightanchor/lightanchor/light"
	"github.com/lightanchor/lightanchor/types"
)

// ErrHalted is returned to a trigger that arrives while the coordinator is
// Halted: the request is rejected without starting a run.
var ErrHalted = errors.New("sync coordinator is halted")

// ErrPrimaryRegressed indicates the primary reported a latest height lower
// than the current trusted root. A single node's reported height can regress
// after a restart from snapshot without any consensus-level problem, so this
// is a transient error, not a fork: the next trigger simply retries.
var ErrPrimaryRegressed = errors.New("primary height regressed below trusted root")

// Outcome is what a Trigger's channel is eventually sent: either the run
// succeeded (zero value), failed transiently (Err set), or detected a fork
// (Forked set, trusted state left untouched).
type Outcome struct {
	Err    error
	Forked bool
}

// Coordinator owns SyncStatus and is the sole writer of the trusted state
// store. Its mutex is held only across short state transitions, never
// across network I/O.
type Coordinator struct {
	mu     deadlock.Mutex
	status types.SyncStatus

	// waiters is the FIFO queue backing the "attach as waiter, released
	// when the run finishes" coalescing mechanism. A trigger enqueues a
	// completion channel and the coordinator drains the queue on the next
	// state transition, so the API layer and the coordinator never hold
	// references to each other.
	waiters *queue.Queue

	store   *store.Store
	client  *light.Client
	clock   clock.Clock
	params  types.TrustParameters
	metrics *metrics.Metrics
	logger  log.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Coordinator. Bootstrap must be called exactly once
// before Start.
func New(
	st *store.Store,
	client *light.Client,
	clk clock.Clock,
	params types.TrustParameters,
	m *metrics.Metrics,
	logger log.Logger,
) *Coordinator {
	return &Coordinator{
		waiters: queue.New(16),
		store:   st,
		client:  client,
		clock:   clk,
		params:  params,
		metrics: m,
		logger:  logger,
	}
}

// Bootstrap runs the one sync whose failure is fatal to the process: it
// fetches and validates the checkpoint block, stores it directly (there is
// no prior state to be monotonic against), and leaves the coordinator Idle.
func (c *Coordinator) Bootstrap(ctx context.Context, cp types.Checkpoint) error {
	lb, err := c.client.Bootstrap(ctx, cp)
	if err != nil {
		return errors.Wrap(err, "bootstrap")
	}
	now := c.clock.Now()
	c.store.Bootstrap(lb, now)

	c.mu.Lock()
	c.status = types.SyncStatus{State: types.StateIdle, Since: now}
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.CurrentHeight.Set(float64(lb.Height()))
		c.metrics.Halted.Set(0)
	}
	c.logger.Info("bootstrap succeeded", "height", lb.Height(), "hash", lb.Hash())
	return nil
}

// Start launches the periodic keep-warm ticker. ctx bounds the lifetime of
// the ticker goroutine and of every sync run the ticker starts; cancel it
// (or call Stop) to shut down. Cancelling it also cancels such a run if one
// is in flight; the store is written only at the end of a run that
// completes, so a run cut short leaves it unchanged.
func (c *Coordinator) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.params.KeepWarmInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				c.Trigger(runCtx)
			}
		}
	}()
}

// Stop cancels the run context and waits for the ticker goroutine to exit.
// It does not wait for any in-flight run.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// Status returns a snapshot of the current sync state.
func (c *Coordinator) Status() types.SyncStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Trigger implements the at-most-one rule. If Idle, it starts a run and
// returns a channel that
// receives that run's Outcome. If InFlight, it attaches as a waiter on the
// current run and returns a channel released when that run completes. If
// Halted and the halt hasn't expired, it returns a channel that immediately
// receives ErrHalted without starting anything. If Halted and the halt has
// expired, it transitions to Idle and starts a run, same as the Idle case.
func (c *Coordinator) Trigger(ctx context.Context) <-chan Outcome {
	ch := make(chan Outcome, 1)
	now := c.clock.Now()

	c.mu.Lock()
	switch c.status.State {
	case types.StateHalted:
		if now.Before(c.status.Until) {
			c.mu.Unlock()
			ch <- Outcome{Err: ErrHalted}
			return ch
		}
		c.logger.Info("halt expired, resuming from pre-fork root")
		if c.metrics != nil {
			c.metrics.Halted.Set(0)
		}
		fallthrough
	case types.StateIdle:
		c.status = types.SyncStatus{State: types.StateInFlight, StartedAt: now}
		c.mu.Unlock()
		// Deliberately not tracked by c.wg: a run in flight at shutdown
		// is abandoned, not awaited, so Stop returns promptly.
		go c.run(ctx, ch)
		return ch
	default: // types.StateInFlight
		c.status.Waiters++
		_ = c.waiters.Put(ch)
		c.mu.Unlock()
		return ch
	}
}

// run executes one verification+detection cycle and notifies every
// attached waiter, including the trigger that started it.
func (c *Coordinator) run(ctx context.Context, firstCh chan Outcome) {
	start := c.clock.Now()
	outcome := c.doRun(ctx)
	if c.metrics != nil {
		c.metrics.SyncDuration.Observe(c.clock.Now().Sub(start).Seconds())
	}
	c.finishRun(outcome, firstCh)
}

// doRun performs one cycle: snapshot root, query primary latest height,
// verify, detect, commit. It never mutates the sync status; that is
// finishRun's job, under the coordinator's single mutex.
func (c *Coordinator) doRun(ctx context.Context) Outcome {
	now := c.clock.Now()
	root, _ := c.store.Read()

	target, err := c.client.Primary().LatestHeight(ctx)
	if err != nil {
		c.observeRunOutcome("error")
		c.logger.Error("primary unreachable, run failed", "err", err)
		return Outcome{Err: err}
	}
	if target < root.Height() {
		c.observeRunOutcome("error")
		c.logger.Error("primary height regressed below trusted root, treating as transient",
			"primary_latest", target, "trusted_root", root.Height())
		return Outcome{Err: ErrPrimaryRegressed}
	}

	trace, err := c.client.VerifyToHeight(ctx, root, target, now)
	if err != nil {
		c.observeRunOutcome("error")
		c.logger.Error("verification failed, run failed", "err", err)
		return Outcome{Err: err}
	}

	detected, err := c.client.Detect(ctx, trace, now)
	switch {
	case errors.Is(err, light.ErrNoWitnesses):
		c.logger.Debug("detection skipped, no witnesses configured", "height", trace.Last().Height())
	case err != nil:
		c.observeRunOutcome("error")
		c.logger.Error("detection failed, run failed", "err", err)
		return Outcome{Err: err}
	}
	if detected.Forked {
		c.observeRunOutcome("fork")
		if c.metrics != nil {
			c.metrics.WitnessDivergences.Add(float64(len(detected.Evidence)))
		}
		c.logger.Error("fork detected, entering halted state",
			"height", trace.Last().Height(), "evidence_count", len(detected.Evidence))
		return Outcome{Forked: true}
	}

	if err := c.store.Commit(trace.Last(), now); err != nil {
		// ErrMonotonicityViolation is a programming error in this very
		// state machine. Abort rather than serve a regressed view.
		c.logger.Error("FATAL: trusted state monotonicity violation", "err", err)
		panic(err)
	}

	c.observeRunOutcome("success")
	if c.metrics != nil {
		c.metrics.CurrentHeight.Set(float64(trace.Last().Height()))
	}
	c.logger.Info("sync run committed", "height", trace.Last().Height(), "hash", trace.Last().Hash())
	return Outcome{}
}

func (c *Coordinator) observeRunOutcome(label string) {
	if c.metrics != nil {
		c.metrics.SyncRunsTotal.WithLabelValues(label).Inc()
	}
}

// finishRun transitions the state machine (Idle on success/transient
// failure, Halted on fork) and wakes every waiter that attached during this
// run, including firstCh.
func (c *Coordinator) finishRun(outcome Outcome, firstCh chan Outcome) {
	now := c.clock.Now()

	c.mu.Lock()
	n := c.status.Waiters
	if outcome.Forked {
		c.status = types.SyncStatus{
			State:  types.StateHalted,
			Until:  now.Add(c.params.HaltDurationOnFork),
			Reason: "fork_detected",
		}
		if c.metrics != nil {
			c.metrics.Halted.Set(1)
		}
	} else {
		c.status = types.SyncStatus{State: types.StateIdle, Since: now}
	}
	c.mu.Unlock()

	var released []interface{}
	if n > 0 {
		released, _ = c.waiters.Get(int64(n))
	}

	firstCh <- outcome
	for _, w := range released {
		w.(chan Outcome) <- outcome
	}
}
