package light

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// The light client engine's failure modes. Each is a distinct type so
// callers can distinguish them with errors.As/errors.Is; construction always
// goes through the Err* helpers so every error carries a pkg/errors stack
// trace for logging.

type errPrimaryUnavailable struct{ cause error }

func (e errPrimaryUnavailable) Error() string {
	return fmt.Sprintf("primary unavailable: %v", e.cause)
}
func (e errPrimaryUnavailable) Unwrap() error { return e.cause }

// ErrPrimaryUnavailable wraps a transport-level failure reaching the primary.
func ErrPrimaryUnavailable(cause error) error {
	return errors.WithStack(errPrimaryUnavailable{cause: cause})
}

// IsErrPrimaryUnavailable reports whether err is an ErrPrimaryUnavailable.
func IsErrPrimaryUnavailable(err error) bool {
	var e errPrimaryUnavailable
	return errors.As(err, &e)
}

type errInsufficientTrust struct {
	height        int64
	signedPower   int64
	requiredPower int64
	totalPower    int64
}

func (e errInsufficientTrust) Error() string {
	return fmt.Sprintf("insufficient trust at height %d: %d/%d signed, need >= %d",
		e.height, e.signedPower, e.totalPower, e.requiredPower)
}

// ErrInsufficientTrust indicates a candidate block's commit did not carry
// enough voting power to satisfy the applicable rule (adjacent 2/3 or skip
// trust-threshold).
func ErrInsufficientTrust(height, signedPower, requiredPower, totalPower int64) error {
	return errors.WithStack(errInsufficientTrust{height, signedPower, requiredPower, totalPower})
}

// IsErrInsufficientTrust reports whether err is an ErrInsufficientTrust.
func IsErrInsufficientTrust(err error) bool {
	var e errInsufficientTrust
	return errors.As(err, &e)
}

type errInvalidCommit struct{ cause error }

func (e errInvalidCommit) Error() string { return fmt.Sprintf("invalid commit: %v", e.cause) }
func (e errInvalidCommit) Unwrap() error { return e.cause }

// ErrInvalidCommit wraps a malformed or unparseable commit.
func ErrInvalidCommit(cause error) error {
	return errors.WithStack(errInvalidCommit{cause: cause})
}

// IsErrInvalidCommit reports whether err is an ErrInvalidCommit.
func IsErrInvalidCommit(err error) bool {
	var e errInvalidCommit
	return errors.As(err, &e)
}

type errExpiredTrust struct {
	height   int64
	blockAge time.Duration
}

func (e errExpiredTrust) Error() string {
	return fmt.Sprintf("block at height %d is older than the trusting period (age %v)", e.height, e.blockAge)
}

// ErrExpiredTrust indicates now - block_time exceeded trusting_period.
func ErrExpiredTrust(height int64, age time.Duration) error {
	return errors.WithStack(errExpiredTrust{height: height, blockAge: age})
}

// IsErrExpiredTrust reports whether err is an ErrExpiredTrust.
func IsErrExpiredTrust(err error) bool {
	var e errExpiredTrust
	return errors.As(err, &e)
}

type errClockDrift struct {
	height int64
	drift  time.Duration
}

func (e errClockDrift) Error() string {
	return fmt.Sprintf("block at height %d is %v ahead of the verification clock", e.height, e.drift)
}

// ErrClockDrift indicates block_time exceeded now + max_clock_drift.
func ErrClockDrift(height int64, drift time.Duration) error {
	return errors.WithStack(errClockDrift{height: height, drift: drift})
}

// IsErrClockDrift reports whether err is an ErrClockDrift.
func IsErrClockDrift(err error) bool {
	var e errClockDrift
	return errors.As(err, &e)
}

type errChainIDMismatch struct {
	want, got string
}

func (e errChainIDMismatch) Error() string {
	return fmt.Sprintf("chain id mismatch: want %q, got %q", e.want, e.got)
}

// ErrChainIDMismatch indicates a header's chain_id didn't match configuration.
func ErrChainIDMismatch(want, got string) error {
	return errors.WithStack(errChainIDMismatch{want: want, got: got})
}

// IsErrChainIDMismatch reports whether err is an ErrChainIDMismatch.
func IsErrChainIDMismatch(err error) bool {
	var e errChainIDMismatch
	return errors.As(err, &e)
}

type errHeaderHashMismatch struct {
	want, got string
}

func (e errHeaderHashMismatch) Error() string {
	return fmt.Sprintf("header hash mismatch at bootstrap: want %s, got %s", e.want, e.got)
}

// ErrHeaderHashMismatch indicates the bootstrap checkpoint's hash did not
// match the header fetched at the checkpoint height. Bootstrap-only.
func ErrHeaderHashMismatch(want, got string) error {
	return errors.WithStack(errHeaderHashMismatch{want: want, got: got})
}

// IsErrHeaderHashMismatch reports whether err is an ErrHeaderHashMismatch.
func IsErrHeaderHashMismatch(err error) bool {
	var e errHeaderHashMismatch
	return errors.As(err, &e)
}

type errValidatorSetMismatch struct {
	height    int64
	want, got string
}

func (e errValidatorSetMismatch) Error() string {
	return fmt.Sprintf("validator set hash mismatch at height %d: header commits to %s, fetched set hashes to %s",
		e.height, e.want, e.got)
}

// ErrValidatorSetMismatch indicates a fetched validator set's hash does not
// match the hash recorded on the header that is supposed to commit to it:
// either the adjacent-step validators_hash check failed, or an RPC response
// supplied a set the header never committed to.
func ErrValidatorSetMismatch(height int64, want, got string) error {
	return errors.WithStack(errValidatorSetMismatch{height: height, want: want, got: got})
}

// IsErrValidatorSetMismatch reports whether err is an ErrValidatorSetMismatch.
func IsErrValidatorSetMismatch(err error) bool {
	var e errValidatorSetMismatch
	return errors.As(err, &e)
}

// ErrNoWitnesses is returned by Detect when the witness set is empty.
// Callers that allow running without witnesses must treat it as
// detection-skipped, not as a failure.
var ErrNoWitnesses = errors.New("no witnesses configured")

// errConflictingHeaders is returned internally by a single witness
// comparison when the witness's header at a height hashes differently than
// the primary's: a candidate fork, not yet confirmed.
type errConflictingHeaders struct {
	WitnessAddr string
	Height      int64
}

func (e errConflictingHeaders) Error() string {
	return fmt.Sprintf("witness %s returned a conflicting header at height %d", e.WitnessAddr, e.Height)
}

// errBadWitness is returned internally when a witness could not be
// meaningfully compared: unreachable, lagging beyond max_block_lag, or
// clock-skewed beyond max_clock_drift. Reported as unreliable, never fatal.
type errBadWitness struct {
	WitnessAddr string
	Reason      error
}

func (e errBadWitness) Error() string {
	return fmt.Sprintf("witness %s unreliable: %v", e.WitnessAddr, e.Reason)
}
func (e errBadWitness) Unwrap() error { return e.Reason }
