package rpcclient

import (
	"encoding/json"
	"fmt"
	"sync"

	dbm "github.com/tendermint/tm-db"

	"github.com/lightanchor/lightanchor/types"
)

// validatorCache is a process-lifetime-only cache of validator sets keyed by
// (remote address, height), backed by tm-db's in-memory store. It is never
// opened from disk and never written to disk, so it carries no risk to the
// "restart re-bootstraps trust from the checkpoint" non-goal: a restart
// simply starts with an empty cache, same as an empty process.
//
// The cache exists because a single sync run, and successive runs within
// keep_warm_interval, frequently re-request the validator set at a height
// already seen (adjacent-step verification reuses the previous step's
// next_validator_set, and the fork detector re-fetches heights already
// present in the primary trace).
type validatorCache struct {
	db dbm.DB
	mu sync.Mutex
}

func newValidatorCache() *validatorCache {
	return &validatorCache{db: dbm.NewMemDB()}
}

func cacheKey(addr string, height int64) []byte {
	return []byte(fmt.Sprintf("%s/%d", addr, height))
}

func (c *validatorCache) get(addr string, height int64) (*types.ValidatorSet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.db.Get(cacheKey(addr, height))
	if err != nil || raw == nil {
		return nil, false
	}
	var vs types.ValidatorSet
	if err := json.Unmarshal(raw, &vs); err != nil {
		return nil, false
	}
	return &vs, true
}

func (c *validatorCache) put(addr string, height int64, vs *types.ValidatorSet) {
	raw, err := json.Marshal(vs)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.db.Set(cacheKey(addr, height), raw)
}
