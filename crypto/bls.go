package crypto

import (
	"fmt"

	bls "github.com/dashpay/bls-signatures/go-bindings"

	"github.com/lightanchor/lightanchor/types"
)

// BLSScheme verifies commits signed the tenderdash way: validators sign the
// block hash with individual BLS keys on the BLS12-381 curve, under the
// augmented scheme (AugSchemeMPL), so signatures over the same message by
// different keys aggregate safely.
//
// Aggregate verification is all or nothing: either every key folded into the
// aggregate signed, or the check fails outright. Partial voting power still
// matters here (a skip step only needs the threshold fraction of the set to
// sign), so this scheme first tries one aggregate check over all present
// signatures and falls back to per-signature verification when that fails.
// A single bad signature then costs only its own validator's power instead
// of zeroing out an otherwise valid supermajority.
type BLSScheme struct{}

var _ types.SignatureScheme = BLSScheme{}

// Name implements types.SignatureScheme.
func (BLSScheme) Name() string { return string(types.SchemeBLS) }

// VotingPowerSigned implements types.SignatureScheme.
func (BLSScheme) VotingPowerSigned(vals *types.ValidatorSet, chainID string, blockHash []byte, commit *types.Commit) (int64, error) {
	if commit == nil {
		return 0, fmt.Errorf("nil commit")
	}
	if !commit.BlockHash.Equal(blockHash) {
		return 0, fmt.Errorf("commit signs block hash %s, want %X", commit.BlockHash, blockHash)
	}

	msg := signBytes(chainID, blockHash)
	scheme := bls.NewAugSchemeMPL()

	var (
		pubKeys []*bls.G1Element
		sigs    []*bls.G2Element
		signers []*types.Validator
	)
	for _, sig := range commit.Sigs {
		if sig.Absent || len(sig.Signature) == 0 {
			continue
		}
		val := vals.ByAddress(sig.ValidatorAddress)
		if val == nil {
			continue
		}
		pk, err := bls.G1ElementFromBytes(val.PubKey)
		if err != nil {
			continue // malformed key in the set: ignore, don't fail the whole check
		}
		sg, err := bls.G2ElementFromBytes(sig.Signature)
		if err != nil {
			continue
		}
		pubKeys = append(pubKeys, pk)
		sigs = append(sigs, sg)
		signers = append(signers, val)
	}
	if len(signers) == 0 {
		return 0, nil
	}

	// Fast path: one AggregateVerify over every present signature.
	if aggSig, err := scheme.Aggregate(sigs...); err == nil {
		msgs := make([][]byte, len(pubKeys))
		for i := range msgs {
			msgs[i] = msg
		}
		if scheme.AggregateVerify(pubKeys, msgs, aggSig) {
			var total int64
			for _, v := range signers {
				total += v.VotingPower
			}
			return total, nil
		}
	}

	// Slow path: check each signature individually.
	var signed int64
	for i, val := range signers {
		if scheme.Verify(pubKeys[i], msg, sigs[i]) {
			signed += val.VotingPower
		}
	}
	return signed, nil
}
