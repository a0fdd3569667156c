// Package store implements the single-writer, many-reader trusted state
// cell. Only the sync coordinator (internal/syncer) ever calls Commit; every
// other component only ever Reads.
package store

import (
	"time"

	"github.com/sasha-s/go-deadlock"

	"github.com/pkg/errors"

	"github.com/lightanchor/lightanchor/types"
)

// Store holds exactly one LightBlock designated the current trust root,
// plus the wall time of the most recent successful advance. Reads always
// observe a consistent (block, last_sync_at) pair, because Commit replaces
// both fields atomically under a single mutex held only across the
// replacement itself, never across I/O.
type Store struct {
	mu deadlock.Mutex

	block      *types.LightBlock
	lastSyncAt time.Time
}

// ErrMonotonicityViolation indicates a Commit would move height or
// block_time backwards. This is a programming error: the sync coordinator
// must never attempt it, and the process should abort rather than silently
// accept a regression.
var ErrMonotonicityViolation = errors.New("trusted state store: monotonicity violation")

// Read returns the current trusted block and the time of its last sync.
// Read never blocks on Commit for longer than the trivial mutex hold.
func (s *Store) Read() (*types.LightBlock, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.block, s.lastSyncAt
}

// Bootstrap sets the initial trusted state. It is distinct from Commit only
// in that it skips the monotonicity check (there is no prior state to be
// monotonic with respect to), so callers must only call it once, before any
// Commit.
func (s *Store) Bootstrap(block *types.LightBlock, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.block = block
	s.lastSyncAt = at
}

// Commit atomically replaces the trusted state. It is restricted to the
// Sync Coordinator by convention only: the type does not enforce this, and
// cmd/lightanchord hands the same Store to both the coordinator and the HTTP
// server, of which only the coordinator calls Commit.
//
// Commit rejects, with ErrMonotonicityViolation, any block whose height or
// block_time would move the trusted state backwards.
func (s *Store) Commit(block *types.LightBlock, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.block != nil {
		if block.Height() < s.block.Height() {
			return errors.Wrapf(ErrMonotonicityViolation, "height %d < current %d", block.Height(), s.block.Height())
		}
		if block.Time().Before(s.block.Time()) {
			return errors.Wrapf(ErrMonotonicityViolation, "block_time %s < current %s", block.Time(), s.block.Time())
		}
	}
	s.block = block
	s.lastSyncAt = at
	return nil
}

// Bootstrapped reports whether Bootstrap has ever succeeded. The HTTP
// layer uses it to distinguish "before first bootstrap" (503) from a
// legitimately served state.
func (s *Store) Bootstrapped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.block != nil
}
