// Package rpcclient is the uniform handle the rest of the daemon uses to
// talk to the primary and each witness over CometBFT JSON-RPC. A client is
// a capability set rather than an interface hierarchy: whether a remote is
// the primary or a witness is decided by which Set field it sits in, never
// by a concrete "primary client" or "witness client" type.
package rpcclient

import (
	"context"

	"github.com/lightanchor/lightanchor/types"
)

// Client is the capability set the daemon needs from a remote node: latest
// height, light blocks (signed header plus validator sets), and evidence
// submission. Both the primary and every witness are accessed through this
// one interface.
type Client interface {
	// Addr is the client's remote endpoint, for logging.
	Addr() string

	// LatestHeight returns the height the remote node reports as its
	// current chain head.
	LatestHeight(ctx context.Context) (int64, error)

	// LightBlock fetches the signed header and both validator sets at
	// height. height == 0 means "latest".
	LightBlock(ctx context.Context, height int64) (*types.LightBlock, error)

	// SubmitEvidence reports a divergence to this peer's evidence endpoint
	// on a best-effort basis.
	SubmitEvidence(ctx context.Context, ev *types.Evidence) error
}

// Set is the uniform handle to the primary and all witnesses, constructed
// once per process so connections are reused across sync runs.
type Set struct {
	Primary   Client
	Witnesses []Client
}
