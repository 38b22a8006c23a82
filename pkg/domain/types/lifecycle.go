package types

import "github.com/m-mizutani/goerr/v2"

// LifecycleState is the state of an alert or a breach
type LifecycleState string

const (
	LifecycleOpen         LifecycleState = "OPEN"
	LifecycleAcknowledged LifecycleState = "ACKNOWLEDGED"
	LifecycleResolved     LifecycleState = "RESOLVED"
	LifecycleDismissed    LifecycleState = "DISMISSED"
	// LifecycleAccepted is a board-accepted exception. Only breaches use it.
	LifecycleAccepted     LifecycleState = "ACCEPTED"
)

// AllLifecycleStates returns all valid lifecycle states
func AllLifecycleStates() []LifecycleState {
	return []LifecycleState{
		LifecycleOpen,
		LifecycleAcknowledged,
		LifecycleResolved,
		LifecycleDismissed,
		LifecycleAccepted,
	}
}

// IsValid checks if the lifecycle state is valid
func (s LifecycleState) IsValid() bool {
	switch s {
	case LifecycleOpen,
		LifecycleAcknowledged,
		LifecycleResolved,
		LifecycleDismissed,
		LifecycleAccepted:
		return true
	default:
		return false
	}
}

// IsActive reports whether the record still needs attention
func (s LifecycleState) IsActive() bool {
	return s == LifecycleOpen || s == LifecycleAcknowledged
}

// CanTransitionTo reports whether next is a legal successor of s
func (s LifecycleState) CanTransitionTo(next LifecycleState) bool {
	switch s {
	case LifecycleOpen:
		return next == LifecycleAcknowledged || next == LifecycleAccepted
	case LifecycleAcknowledged:
		return next == LifecycleResolved || next == LifecycleDismissed || next == LifecycleAccepted
	default:
		return false
	}
}

func (s LifecycleState) String() string {
	return string(s)
}

// ParseLifecycleState parses a string into a LifecycleState
func ParseLifecycleState(s string) (LifecycleState, error) {
	state := LifecycleState(s)
	if !state.IsValid() {
		return "", goerr.New("invalid lifecycle state", goerr.V("state", s))
	}
	return state, nil
}
