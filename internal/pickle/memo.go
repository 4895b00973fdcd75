package pickle

import "github.com/archipelago-mw/aprs-server/internal/value"

// memo is the back-reference table populated by the MEMOIZE opcode and
// consulted by BINGET/LONG_BINGET. Indices are assigned in
// MEMOIZE order (index == len(memo) at time of insertion), matching
// CPython's pickler.
type memo struct {
	byIndex []value.Value
}

func (m *memo) put(v value.Value) {
	m.byIndex = append(m.byIndex, v)
}

func (m *memo) get(index uint64) (value.Value, bool) {
	if index >= uint64(len(m.byIndex)) {
		return value.Value{}, false
	}
	return m.byIndex[index], true
}
