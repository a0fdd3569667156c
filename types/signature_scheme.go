package types

// SignatureScheme verifies the voting power behind a Commit against a given
// ValidatorSet and block hash. Two concrete schemes exist: ed25519
// (vanilla CometBFT/Tendermint, one signature per validator) and bls
// (tenderdash-style BLS12-381, one signature per validator, checked as an
// aggregate by the verifier). Which one a chain uses is a deployment fact supplied at
// bootstrap, not something the light client infers from wire data.
type SignatureScheme interface {
	// Name identifies the scheme, for logging and config validation.
	Name() string

	// VotingPowerSigned returns the total voting power of vals that
	// validly signed blockHash via commit. It must not panic on malformed
	// commits; a commit that fails to parse contributes zero power and a
	// non-nil error.
	VotingPowerSigned(vals *ValidatorSet, chainID string, blockHash []byte, commit *Commit) (int64, error)
}

// SchemeName identifies a configured SignatureScheme by name, used in CLI
// flags and config files.
type SchemeName string

const (
	SchemeEd25519 SchemeName = "ed25519"
	SchemeBLS     SchemeName = "bls"
)
