package crypto

import (
	"fmt"

	"golang.org/x/crypto/ed25519"

	"github.com/lightanchor/lightanchor/types"
)

// Ed25519Scheme verifies commits signed the vanilla CometBFT/Tendermint way:
// one ed25519 signature per validator, summed individually.
type Ed25519Scheme struct{}

var _ types.SignatureScheme = Ed25519Scheme{}

// Name implements types.SignatureScheme.
func (Ed25519Scheme) Name() string { return string(types.SchemeEd25519) }

// VotingPowerSigned implements types.SignatureScheme by checking each
// commit signature individually against the validator holding that public
// key, and summing the voting power of validators whose signature verifies
// against blockHash.
func (Ed25519Scheme) VotingPowerSigned(vals *types.ValidatorSet, chainID string, blockHash []byte, commit *types.Commit) (int64, error) {
	if commit == nil {
		return 0, fmt.Errorf("nil commit")
	}
	if !commit.BlockHash.Equal(blockHash) {
		return 0, fmt.Errorf("commit signs block hash %s, want %X", commit.BlockHash, blockHash)
	}

	seen := make(map[string]bool, len(commit.Sigs))
	var signed int64
	for _, sig := range commit.Sigs {
		if sig.Absent || len(sig.Signature) == 0 {
			continue
		}
		key := sig.ValidatorAddress.String()
		if seen[key] {
			continue // no double counting the same validator
		}

		val := vals.ByAddress(sig.ValidatorAddress)
		if val == nil {
			continue // signature from a non-member is simply ignored
		}
		if !ed25519.Verify(ed25519.PublicKey(val.PubKey), signBytes(chainID, blockHash), sig.Signature) {
			continue
		}
		seen[key] = true
		signed += val.VotingPower
	}
	return signed, nil
}

// signBytes is the canonical message a validator signs: the chain ID
// domain-separates signatures across chains sharing a key.
func signBytes(chainID string, blockHash []byte) []byte {
	return append([]byte(chainID+"|"), blockHash...)
}
