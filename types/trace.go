package types

// Trace is the ordered sequence of light blocks a single verification run
// produced, starting at the prior trusted root and ending at the target
// head. It is transient: owned by the run that produced it, never retained
// after the run commits or fails.
type Trace []*LightBlock

// Last returns the final, target-height block in the trace.
func (t Trace) Last() *LightBlock {
	if len(t) == 0 {
		return nil
	}
	return t[len(t)-1]
}

// Evidence pairs two conflicting signed headers observed at the same height,
// suitable for submission to a peer's evidence endpoint.
type Evidence struct {
	Height           int64
	ConflictingBlock *SignedHeader
	TrustedBlock     *SignedHeader
	// WitnessAddr identifies which peer the conflicting header was fetched
	// from, for logging; it is not part of the evidence's cryptographic
	// content.
	WitnessAddr string
}
