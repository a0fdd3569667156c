package light

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"time"

	bz "github.com/lightanchor/lightanchor/libs/bytes"
	"github.com/lightanchor/lightanchor/types"
)

// testChainID is used throughout this package's tests.
const testChainID = "test-chain"

// genValidator creates a validator with the given voting power and returns
// it alongside the ed25519 private key needed to sign on its behalf.
func genValidator(power int64) (*types.Validator, ed25519.PrivateKey) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	return &types.Validator{PubKey: bz.HexBytes(pub), VotingPower: power}, priv
}

// signBytes mirrors crypto.Ed25519Scheme's canonical signing message; the
// crypto package keeps its own copy unexported, so the tests that sign
// fixture commits carry this one.
func signBytes(chainID string, blockHash []byte) []byte {
	return append([]byte(chainID+"|"), blockHash...)
}

// valAndPriv pairs a validator set with the private keys of its members, in
// the same order, so a test can sign on behalf of any subset of it.
type valAndPriv struct {
	set   *types.ValidatorSet
	privs []ed25519.PrivateKey
}

func genValidatorSet(n int, power int64) valAndPriv {
	vals := make([]*types.Validator, n)
	privs := make([]ed25519.PrivateKey, n)
	for i := 0; i < n; i++ {
		vals[i], privs[i] = genValidator(power)
	}
	return valAndPriv{set: &types.ValidatorSet{Validators: vals}, privs: privs}
}

// sign produces a commit over header signed by the first signerCount
// members of vp (in order), so tests can dial in exactly how much voting
// power backs a candidate block.
func sign(header *types.Header, vp valAndPriv, signerCount int) *types.Commit {
	hash := header.Hash()
	sigs := make([]types.CommitSig, 0, signerCount)
	for i := 0; i < signerCount && i < len(vp.set.Validators); i++ {
		v := vp.set.Validators[i]
		sigs = append(sigs, types.CommitSig{
			ValidatorAddress: v.Address(),
			Signature:        ed25519.Sign(vp.privs[i], signBytes(testChainID, hash)),
		})
	}
	return &types.Commit{Height: header.Height, BlockHash: hash, Sigs: sigs}
}

// chain is a deterministic test fixture: heights 1..n, each block's
// validator set equal to the prior block's recorded next-validator-set
// (the standard adjacent-trustable chaining), fully signed unless a test
// overrides the signer count for a specific height via withPartialSigners.
type chain struct {
	blocks map[int64]*types.LightBlock
	vsets  map[int64]valAndPriv // validator set active AT height h
}

// newChain builds a fully-signed chain of n blocks, each with its own
// random validatorsPerHeight-member validator set, self-signed (the set
// active at height h signs h's own commit, which is also what a's
// next_validator_set is required to sign under the adjacent rule, since
// block h's active set IS block h-1's recorded next set).
func newChain(n int, validatorsPerHeight int, power int64, start time.Time, step time.Duration) *chain {
	c := &chain{blocks: make(map[int64]*types.LightBlock), vsets: make(map[int64]valAndPriv)}

	for h := int64(1); h <= int64(n)+1; h++ {
		c.vsets[h] = genValidatorSet(validatorsPerHeight, power)
	}

	for h := int64(1); h <= int64(n); h++ {
		vs := c.vsets[h]
		next := c.vsets[h+1]
		header := &types.Header{
			ChainID:            testChainID,
			Height:             h,
			Time:               start.Add(time.Duration(h-1) * step),
			ValidatorsHash:     vs.set.Hash(),
			NextValidatorsHash: next.set.Hash(),
		}
		commit := sign(header, vs, len(vs.set.Validators))

		c.blocks[h] = &types.LightBlock{
			SignedHeader:     &types.SignedHeader{Header: header, Commit: commit},
			ValidatorSet:     vs.set,
			NextValidatorSet: next.set,
		}
	}
	return c
}

// newStaticChain builds a chain whose validator set never changes, so any
// skip step finds full overlap and is directly trustable without bisection.
func newStaticChain(n int, validatorsPerHeight int, power int64, start time.Time, step time.Duration) *chain {
	c := &chain{blocks: make(map[int64]*types.LightBlock), vsets: make(map[int64]valAndPriv)}

	vs := genValidatorSet(validatorsPerHeight, power)
	for h := int64(1); h <= int64(n)+1; h++ {
		c.vsets[h] = vs
	}

	for h := int64(1); h <= int64(n); h++ {
		header := &types.Header{
			ChainID:            testChainID,
			Height:             h,
			Time:               start.Add(time.Duration(h-1) * step),
			ValidatorsHash:     vs.set.Hash(),
			NextValidatorsHash: vs.set.Hash(),
		}
		commit := sign(header, vs, len(vs.set.Validators))

		c.blocks[h] = &types.LightBlock{
			SignedHeader:     &types.SignedHeader{Header: header, Commit: commit},
			ValidatorSet:     vs.set,
			NextValidatorSet: vs.set,
		}
	}
	return c
}

// withPartialSigners replaces height h's commit with one signed by only
// signerCount of its validator set's members, to test insufficient-trust
// and skip-threshold boundaries.
func (c *chain) withPartialSigners(h int64, signerCount int) {
	lb := c.blocks[h]
	lb.SignedHeader.Commit = sign(lb.SignedHeader.Header, c.vsets[h], signerCount)
}

func (c *chain) block(h int64) *types.LightBlock { return c.blocks[h] }

// fakeRPCClient is a minimal in-memory rpcclient.Client backed by a chain.
type fakeRPCClient struct {
	addr   string
	c      *chain
	latest int64
	err    error

	submitted []*types.Evidence
}

func (f *fakeRPCClient) Addr() string { return f.addr }

func (f *fakeRPCClient) LatestHeight(ctx context.Context) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.latest, nil
}

func (f *fakeRPCClient) LightBlock(ctx context.Context, height int64) (*types.LightBlock, error) {
	if f.err != nil {
		return nil, f.err
	}
	if height == 0 {
		height = f.latest
	}
	lb, ok := f.c.blocks[height]
	if !ok {
		return nil, fmt.Errorf("no block at height %d", height)
	}
	return lb, nil
}

func (f *fakeRPCClient) SubmitEvidence(ctx context.Context, ev *types.Evidence) error {
	f.submitted = append(f.submitted, ev)
	return nil
}
