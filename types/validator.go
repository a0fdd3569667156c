package types

import (
	"crypto/sha256"
	"fmt"
	"sort"

	bz "github.com/lightanchor/lightanchor/libs/bytes"
)

// Validator is a single member of a validator set: a public key and the
// voting power it carries at the height the set was captured.
type Validator struct {
	PubKey      bz.HexBytes `json:"pub_key"`
	VotingPower int64       `json:"voting_power"`
}

// ValidatorSet is the list of validators for a given height; TotalVotingPower
// derives the power it carries. Order matters neither for Hash (which sorts
// by public key) nor for the voting-power arithmetic performed during
// verification.
type ValidatorSet struct {
	Validators []*Validator `json:"validators"`
}

// TotalVotingPower sums the voting power of every validator in the set.
func (vs *ValidatorSet) TotalVotingPower() int64 {
	var total int64
	for _, v := range vs.Validators {
		total += v.VotingPower
	}
	return total
}

// ByAddress returns the validator whose derived address matches addr, or
// nil. Commit signatures identify the signer by address (a digest of the
// public key) rather than carrying the public key itself.
func (vs *ValidatorSet) ByAddress(addr bz.HexBytes) *Validator {
	for _, v := range vs.Validators {
		if v.Address().Equal(addr) {
			return v
		}
	}
	return nil
}

// Address derives the validator's address: the first 20 bytes of
// SHA-256(pub_key), the usual Tendermint-family convention.
func (v *Validator) Address() bz.HexBytes {
	sum := sha256.Sum256(v.PubKey.Bytes())
	return bz.HexBytes(sum[:20])
}

// Hash returns a content-addressed digest of the validator set, stable under
// reordering so that a header's validators_hash can be recomputed by any
// party fetching the set in any order.
func (vs *ValidatorSet) Hash() bz.HexBytes {
	if vs == nil {
		return nil
	}
	keys := make([]string, len(vs.Validators))
	byKey := make(map[string]*Validator, len(vs.Validators))
	for i, v := range vs.Validators {
		k := v.PubKey.String()
		keys[i] = k
		byKey[k] = v
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		v := byKey[k]
		fmt.Fprintf(h, "%s:%d|", v.PubKey, v.VotingPower)
	}
	return bz.HexBytes(h.Sum(nil))
}
