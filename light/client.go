// Package light implements skip verification and cross-witness divergence
// detection: the light client core the rest of the daemon orchestrates.
package light

import (
	"crypto/rand"
	"sync"

	"github.com/minio/highwayhash"

	"github.com/lightanchor/lightanchor/internal/log"
	"github.com/lightanchor/lightanchor/internal/rpcclient"
	"github.com/lightanchor/lightanchor/types"
)

// Client bundles the verification engine and the fork detector behind a
// single primary/witness RPC client set, since both operate over the same
// trace and the same notion of "witness".
type Client struct {
	chainID string
	scheme  types.SignatureScheme
	params  types.TrustParameters

	primary rpcclient.Client

	providerMutex sync.Mutex
	witnesses     []rpcclient.Client

	evidenceSeen *evidenceDedup

	logger log.Logger
}

// NewClient constructs a Client. scheme is the signature verification
// scheme appropriate to the configured chain (ed25519 or bls, see
// crypto.Ed25519Scheme / crypto.BLSScheme).
func NewClient(
	chainID string,
	scheme types.SignatureScheme,
	params types.TrustParameters,
	primary rpcclient.Client,
	witnesses []rpcclient.Client,
	logger log.Logger,
) *Client {
	return &Client{
		chainID:      chainID,
		scheme:       scheme,
		params:       params,
		primary:      primary,
		witnesses:    witnesses,
		evidenceSeen: newEvidenceDedup(),
		logger:       logger,
	}
}

// Primary returns the primary RPC client.
func (c *Client) Primary() rpcclient.Client { return c.primary }

// Witnesses returns a snapshot of the current witness set.
func (c *Client) Witnesses() []rpcclient.Client {
	c.providerMutex.Lock()
	defer c.providerMutex.Unlock()
	out := make([]rpcclient.Client, len(c.witnesses))
	copy(out, c.witnesses)
	return out
}

// removeWitnesses drops witnesses at the given indices (into the snapshot
// taken at the start of the detection pass that is calling this), logging
// each removal. A witness is removed for misbehavior, never for being
// merely unreachable or slow; those are logged and skipped instead.
func (c *Client) removeWitnesses(idxs []int) {
	if len(idxs) == 0 {
		return
	}
	c.providerMutex.Lock()
	defer c.providerMutex.Unlock()

	drop := make(map[int]bool, len(idxs))
	for _, i := range idxs {
		drop[i] = true
	}
	kept := c.witnesses[:0:0]
	for i, w := range c.witnesses {
		if drop[i] {
			c.logger.Info("removing misbehaving witness", "witness", w.Addr())
			continue
		}
		kept = append(kept, w)
	}
	c.witnesses = kept
}

// evidenceDedup keys a set of already-submitted evidence pairs with
// highwayhash so a confirmed divergence isn't resubmitted to the same peers
// when a later run, after the halt has expired, detects it again. The set
// lives for the whole process and is never cleared.
type evidenceDedup struct {
	key [32]byte
	mu  sync.Mutex
	set map[[highwayhash.Size]byte]struct{}
}

func newEvidenceDedup() *evidenceDedup {
	var key [32]byte
	_, _ = rand.Read(key[:])
	return &evidenceDedup{key: key, set: make(map[[highwayhash.Size]byte]struct{})}
}

// seenOrMark reports whether this (height, conflicting-hash, trusted-hash)
// triple has already been submitted, and records it if not.
func (d *evidenceDedup) seenOrMark(ev *types.Evidence) bool {
	h, err := highwayhash.New(d.key[:])
	if err != nil {
		return false // never dedup on a hashing failure: prefer a duplicate submission to a dropped one
	}
	_, _ = h.Write(ev.ConflictingBlock.Hash())
	_, _ = h.Write(ev.TrustedBlock.Hash())
	var sum [highwayhash.Size]byte
	copy(sum[:], h.Sum(nil))

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.set[sum]; ok {
		return true
	}
	d.set[sum] = struct{}{}
	return false
}
