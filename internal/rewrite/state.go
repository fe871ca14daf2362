package rewrite

import "fmt"

// State is the lifecycle position of a Session.
type State string

const (
	// StateIdle is a session that has not written anything.
	StateIdle State = "idle"

	// StateBackedUp is a session whose backup branch exists and is confirmed.
	StateBackedUp State = "backed_up"

	// StateRewriting is a session applying its requests. Session.Current
	// holds the index of the request in flight.
	StateRewriting State = "rewriting"

	// StateDone is a session that applied every request.
	StateDone State = "done"

	// StateAborted is a session that stopped on an error. The backup
	// branch is the recovery path.
	StateAborted State = "aborted"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// IsTerminal returns true for done and aborted.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateAborted
}

var transitions = map[State][]State{
	StateIdle:      {StateBackedUp, StateAborted},
	StateBackedUp:  {StateRewriting, StateDone, StateAborted},
	StateRewriting: {StateRewriting, StateDone, StateAborted},
}

// CanTransition reports whether from → to is legal.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// transitionError is returned for an illegal state change.
func transitionError(from, to State) error {
	return fmt.Errorf("illegal session transition %s -> %s", from, to)
}
