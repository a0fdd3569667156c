package types

import (
	"crypto/sha256"
	"fmt"
	"time"

	bz "github.com/lightanchor/lightanchor/libs/bytes"
)

// Header is the subset of a CometBFT/Tendermint block header the light
// client cares about: enough to chain trust from one height to the next.
type Header struct {
	ChainID string    `json:"chain_id"`
	Height  int64     `json:"height"`
	Time    time.Time `json:"time"`

	// ValidatorsHash is the hash of the validator set active at Height.
	ValidatorsHash bz.HexBytes `json:"validators_hash"`
	// NextValidatorsHash is the hash of the validator set that will be
	// active at Height+1; a header's commit at Height+1 must be signed by
	// the set this hash commits to.
	NextValidatorsHash bz.HexBytes `json:"next_validators_hash"`
}

// Hash returns the header's content-addressed digest. It intentionally
// hashes only the fields that participate in verification: a real chain's
// header hash is computed by the consensus engine and delivered over RPC,
// but tests construct headers directly and need a consistent digest.
func (h *Header) Hash() bz.HexBytes {
	if h == nil {
		return nil
	}
	s := fmt.Sprintf("%s|%d|%d|%s|%s", h.ChainID, h.Height, h.Time.UnixNano(), h.ValidatorsHash, h.NextValidatorsHash)
	sum := sha256.Sum256([]byte(s))
	return bz.HexBytes(sum[:])
}

// CommitSig is one validator's vote (or absence) over a header hash. The
// signer is identified by address, not public key: verification must look
// the address up in the applicable ValidatorSet to recover the key.
type CommitSig struct {
	ValidatorAddress bz.HexBytes `json:"validator_address"`
	Signature        []byte      `json:"signature,omitempty"`
	Absent           bool        `json:"absent,omitempty"`
}

// Commit is the set of signatures a header carries, committing to its hash.
type Commit struct {
	Height    int64       `json:"height"`
	BlockHash bz.HexBytes `json:"block_hash"`
	Sigs      []CommitSig `json:"sigs"`
}

// SignedHeader pairs a header with the commit that finalizes it.
type SignedHeader struct {
	Header *Header `json:"header"`
	Commit *Commit `json:"commit"`
}

// Height is a convenience accessor for Header.Height.
func (sh *SignedHeader) Height() int64 {
	return sh.Header.Height
}

// Hash returns the signed header's header hash.
func (sh *SignedHeader) Hash() bz.HexBytes {
	return sh.Header.Hash()
}

// Time returns the header's block time.
func (sh *SignedHeader) Time() time.Time {
	return sh.Header.Time
}

// LightBlock is a verified header plus the validator sets needed to extend
// trust from it: the set that signed it, and the set that will sign the
// next header.
type LightBlock struct {
	SignedHeader     *SignedHeader `json:"signed_header"`
	ValidatorSet     *ValidatorSet `json:"validator_set"`
	NextValidatorSet *ValidatorSet `json:"next_validator_set"`
}

// Height returns the light block's height.
func (lb *LightBlock) Height() int64 {
	return lb.SignedHeader.Height()
}

// Hash returns the light block's header hash.
func (lb *LightBlock) Hash() bz.HexBytes {
	return lb.SignedHeader.Hash()
}

// Time returns the light block's block time.
func (lb *LightBlock) Time() time.Time {
	return lb.SignedHeader.Time()
}

// ValidatorsHash returns the hash of ValidatorSet as recorded on the header,
// used to check that a fetched validator set matches what the header commits
// to rather than trusting the RPC response blindly.
func (lb *LightBlock) ValidatorsHash() bz.HexBytes {
	return lb.SignedHeader.Header.ValidatorsHash
}

// NextValidatorsHash returns the hash of the next validator set as recorded
// on the header.
func (lb *LightBlock) NextValidatorsHash() bz.HexBytes {
	return lb.SignedHeader.Header.NextValidatorsHash
}
