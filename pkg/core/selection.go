package core

import (
	"maps"
	"slices"
)

// Selection maps a parameter to its chosen option for one session.
// It is never persisted by the engine itself.
type Selection map[ParameterID]OptionID

// Clone returns an independent copy of the selection.
func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	maps.Copy(out, s)
	return out
}

// Equal reports whether two selections hold the same choices.
func (s Selection) Equal(other Selection) bool {
	return maps.Equal(s, other)
}

// Has reports whether the parameter has a confirmed choice.
func (s Selection) Has(id ParameterID) bool {
	_, ok := s[id]
	return ok
}

// ParameterIDs returns the selected parameter IDs in ascending order.
func (s Selection) ParameterIDs() []ParameterID {
	ids := slices.Collect(maps.Keys(s))
	slices.Sort(ids)
	return ids
}
