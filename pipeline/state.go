package pipeline

import (
	"errors"
	"fmt"
)

// State is a step of a run.
type State string

// A run moves forward through these states one at a time. Failed is
// absorbing and reachable from every state before Reported.
const (
	StateInit            State = "init"
	StateSessionAcquired State = "session_acquired"
	StateExtracted       State = "extracted"
	StateTranslated      State = "translated"
	StateAnalyzed        State = "analyzed"
	StateReported        State = "reported"
	StateClosed          State = "closed"
	StateFailed          State = "failed"
)

var transitions = map[State]State{
	StateInit:            StateSessionAcquired,
	StateSessionAcquired: StateExtracted,
	StateExtracted:       StateTranslated,
	StateTranslated:      StateAnalyzed,
	StateAnalyzed:        StateReported,
	StateReported:        StateClosed,
}

// ErrInvalidTransition is returned for a move the state machine forbids.
var ErrInvalidTransition = errors.New("invalid state transition")

// Next returns the state that follows s on success.
func (s State) Next() (State, bool) {
	next, ok := transitions[s]
	return next, ok
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// CanTransition reports whether a run in state s may move to next.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFailed {
		return s != StateReported
	}
	want, ok := transitions[s]
	return ok && want == next
}

// StageError is a fatal error, tagged with the state the run was trying to
// reach.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("failed to %s: %v", stageAction(e.Stage), e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageAction(s State) string {
	switch s {
	case StateSessionAcquired:
		return "acquire browser session"
	case StateExtracted:
		return "extract articles"
	case StateTranslated:
		return "translate titles"
	case StateAnalyzed:
		return "analyze titles"
	case StateReported:
		return "report results"
	case StateClosed:
		return "close browser session"
	default:
		return string(s)
	}
}
