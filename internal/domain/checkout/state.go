package checkout

// State is the lifecycle state of the orchestrator.
//
//	Idle ──► InFlight ──► Succeeded ──► InFlight ...
//	            │
//	            └──────► Failed ──► InFlight ...
//
// Only InFlight rejects a new checkout.
type State int32

const (
	StateIdle State = iota
	StateInFlight
	StateFailed
	StateSucceeded
)

// IsTerminal reports whether a protocol run has ended in s.
func (s State) IsTerminal() bool {
	return s == StateFailed || s == StateSucceeded
}

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInFlight:
		return "in_flight"
	case StateFailed:
		return "failed"
	case StateSucceeded:
		return "succeeded"
	default:
		return "unknown"
	}
}
