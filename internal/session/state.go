package session

import "fmt"

// State is the lifecycle state of a configuration session.
type State int

// Session states.
const (
	Empty State = iota
	Partial
	Complete
	Committed
	Abandoned
)

var stateNames = [...]string{
	Empty:     "empty",
	Partial:   "partial",
	Complete:  "complete",
	Committed: "committed",
	Abandoned: "abandoned",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Closed reports whether the session accepts no further mutations.
func (s State) Closed() bool {
	return s == Committed || s == Abandoned
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
