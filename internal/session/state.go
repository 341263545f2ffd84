package session

import (
	"fmt"

	"github.com/cvacare/gaitsession/internal/apperrors"
)

// State is the lifecycle stage of the recording session.
type State int

const (
	Idle State = iota
	Recording
	Validating
	Analyzing
	Complete
	Rejected
)

var stateNames = map[State]string{
	Idle:       "idle",
	Recording:  "recording",
	Validating: "validating",
	Analyzing:  "analyzing",
	Complete:   "complete",
	Rejected:   "rejected",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// transitions lists the allowed moves. Returning to Idle is always allowed
// and not listed.
var transitions = map[State][]State{
	Idle:       {Recording},
	Recording:  {Validating},
	Validating: {Analyzing, Rejected},
	Analyzing:  {Complete, Validating},
}

// canTransition reports whether from -> to is a legal move.
func canTransition(from, to State) bool {
	if to == Idle {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to State) error {
	if !canTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, from, to)
	}
	return nil
}
