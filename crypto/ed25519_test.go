package crypto

import (
	"crypto/rand"
	"testing"

	"golang.org/x/crypto/ed25519"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bz "github.com/lightanchor/lightanchor/libs/bytes"
	"github.com/lightanchor/lightanchor/types"
)

func genVal(t *testing.T, power int64) (*types.Validator, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return &types.Validator{PubKey: bz.HexBytes(pub), VotingPower: power}, priv
}

func TestEd25519Scheme_AllSigned(t *testing.T) {
	v1, p1 := genVal(t, 10)
	v2, p2 := genVal(t, 20)
	vs := &types.ValidatorSet{Validators: []*types.Validator{v1, v2}}

	blockHash := []byte("block-hash")
	msg := signBytes("chain-a", blockHash)
	commit := &types.Commit{
		BlockHash: blockHash,
		Sigs: []types.CommitSig{
			{ValidatorAddress: v1.Address(), Signature: ed25519.Sign(p1, msg)},
			{ValidatorAddress: v2.Address(), Signature: ed25519.Sign(p2, msg)},
		},
	}

	power, err := Ed25519Scheme{}.VotingPowerSigned(vs, "chain-a", blockHash, commit)
	require.NoError(t, err)
	assert.Equal(t, int64(30), power)
}

func TestEd25519Scheme_PartialSigned(t *testing.T) {
	v1, p1 := genVal(t, 10)
	v2, _ := genVal(t, 20)
	vs := &types.ValidatorSet{Validators: []*types.Validator{v1, v2}}

	blockHash := []byte("block-hash")
	msg := signBytes("chain-a", blockHash)
	commit := &types.Commit{
		BlockHash: blockHash,
		Sigs: []types.CommitSig{
			{ValidatorAddress: v1.Address(), Signature: ed25519.Sign(p1, msg)},
			{ValidatorAddress: v2.Address(), Absent: true},
		},
	}

	power, err := Ed25519Scheme{}.VotingPowerSigned(vs, "chain-a", blockHash, commit)
	require.NoError(t, err)
	assert.Equal(t, int64(10), power)
}

func TestEd25519Scheme_WrongChainIDSignatureRejected(t *testing.T) {
	v1, p1 := genVal(t, 10)
	vs := &types.ValidatorSet{Validators: []*types.Validator{v1}}

	blockHash := []byte("block-hash")
	// Signed for a different chain: the message is domain-separated by
	// chain ID, so this signature must not verify against "chain-a".
	commit := &types.Commit{
		BlockHash: blockHash,
		Sigs: []types.CommitSig{
			{ValidatorAddress: v1.Address(), Signature: ed25519.Sign(p1, signBytes("chain-b", blockHash))},
		},
	}

	power, err := Ed25519Scheme{}.VotingPowerSigned(vs, "chain-a", blockHash, commit)
	require.NoError(t, err)
	assert.Equal(t, int64(0), power)
}

func TestEd25519Scheme_NonMemberSignatureIgnored(t *testing.T) {
	v1, _ := genVal(t, 10)
	stranger, strangerPriv := genVal(t, 999)
	vs := &types.ValidatorSet{Validators: []*types.Validator{v1}}

	blockHash := []byte("block-hash")
	commit := &types.Commit{
		BlockHash: blockHash,
		Sigs: []types.CommitSig{
			{ValidatorAddress: stranger.Address(), Signature: ed25519.Sign(strangerPriv, signBytes("chain-a", blockHash))},
		},
	}

	power, err := Ed25519Scheme{}.VotingPowerSigned(vs, "chain-a", blockHash, commit)
	require.NoError(t, err)
	assert.Equal(t, int64(0), power)
}

func TestEd25519Scheme_CommitBlockHashMismatchErrors(t *testing.T) {
	v1, _ := genVal(t, 10)
	vs := &types.ValidatorSet{Validators: []*types.Validator{v1}}

	commit := &types.Commit{BlockHash: []byte("other-hash")}
	_, err := Ed25519Scheme{}.VotingPowerSigned(vs, "chain-a", []byte("block-hash"), commit)
	assert.Error(t, err)
}

func TestEd25519Scheme_Name(t *testing.T) {
	assert.Equal(t, "ed25519", Ed25519Scheme{}.Name())
}
