package types

import "time"

// SyncState enumerates the sync coordinator's state machine.
type SyncState int

const (
	// StateIdle means no run is active and none is halted.
	StateIdle SyncState = iota
	// StateInFlight means exactly one verification+detection run is active.
	StateInFlight
	// StateHalted means a fork was detected; trusted state is frozen
	// until Until.
	StateHalted
)

func (s SyncState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInFlight:
		return "in_flight"
	case StateHalted:
		return "halted"
	default:
		return "unknown"
	}
}

// SyncStatus is the single-writer state of the Sync Coordinator.
type SyncStatus struct {
	State SyncState

	// Since is populated when State == StateIdle: when the coordinator
	// last became idle.
	Since time.Time

	// StartedAt is populated when State == StateInFlight.
	StartedAt time.Time
	Waiters   int

	// Until and Reason are populated when State == StateHalted.
	Until  time.Time
	Reason string
}
