package lifecycle

import "fmt"

// State is one of the closed set of lifecycle states an evaluation moves
// through. The zero value is StateUnknown.
type State int

const (
	// StateUnknown marks an evaluation whose dates cannot be resolved. It
	// is a terminal error value, never a scheduled state.
	StateUnknown State = iota
	// StatePartial marks an evaluation still being assembled by its owner.
	StatePartial
	// StateInQueue marks an evaluation waiting for its start date.
	StateInQueue
	// StateActive marks an evaluation open for responses.
	StateActive
	// StateDue marks the grace period between the due and stop dates.
	StateDue
	// StateClosed marks an evaluation that stopped taking responses but
	// whose results are not viewable yet.
	StateClosed
	// StateViewable marks an evaluation whose results are available.
	StateViewable
	// StateDeleted marks a logically removed evaluation.
	StateDeleted
)

var stateNames = map[State]string{
	StateUnknown:  "Unknown",
	StatePartial:  "Partial",
	StateInQueue:  "InQueue",
	StateActive:   "Active",
	StateDue:      "Due",
	StateClosed:   "Closed",
	StateViewable: "Viewable",
	StateDeleted:  "Deleted",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ParseState maps a wire identifier back to its State. The identifiers are
// case-sensitive.
func ParseState(name string) (State, error) {
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return StateUnknown, fmt.Errorf("lifecycle: unknown state %q", name)
}

// stateRank is the authoritative temporal ordering of the states. Unknown
// has no rank.
var stateRank = map[State]int{
	StatePartial:  0,
	StateInQueue:  1,
	StateActive:   2,
	StateDue:      3,
	StateClosed:   4,
	StateViewable: 5,
	StateDeleted:  6,
}

// AtOrAfter reports whether s is temporally at or after other in the
// canonical lifecycle order. It is false whenever either side is Unknown.
func (s State) AtOrAfter(other State) bool {
	a, ok := stateRank[s]
	if !ok {
		return false
	}
	b, ok := stateRank[other]
	if !ok {
		return false
	}
	return a >= b
}
