// Package storage implements the data-storage engine: a key/value table of
// value.Value, mutated only through the atomic fold-and-commit evaluation of
// a Set request, plus a handful of virtual `_read_*` keys answered from
// provider callbacks rather than the table itself.
//
// The engine is owned exclusively by the router task (see internal/router);
// it carries no internal locking of its own; the single-writer discipline is
// the caller's responsibility, matching this system's concurrency model.
package storage

import (
	"fmt"
	"strings"

	"github.com/archipelago-mw/aprs-server/internal/protocol"
	"github.com/archipelago-mw/aprs-server/internal/value"
)

// Engine is the Str -> Value table backing Get/Set/SetNotify.
type Engine struct {
	values   map[string]value.Value
	readers  map[string]ReadProvider
}

// ReadProvider answers one `_read_*` key family. ok is false when the
// provider has nothing for this exact key (e.g. an unknown slot/team
// suffix); the caller logs and treats that as absent.
type ReadProvider func(key string) (v value.Value, ok bool)

// New constructs an empty Engine with no registered read providers.
func New() *Engine {
	return &Engine{
		values:  make(map[string]value.Value),
		readers: make(map[string]ReadProvider),
	}
}

// RegisterReader binds a `_read_` key prefix (including the leading
// underscore, e.g. "_read_slot_data_") to the provider that answers it.
func (e *Engine) RegisterReader(prefix string, p ReadProvider) {
	e.readers[prefix] = p
}

// Get returns the value stored under key, or the result of its matching
// `_read_*` provider, or absent (false) if neither applies.
func (e *Engine) Get(key string) (value.Value, bool) {
	if strings.HasPrefix(key, "_read_") {
		for prefix, p := range e.readers {
			if strings.HasPrefix(key, prefix) {
				return p(key)
			}
		}
		return value.Value{}, false
	}
	v, ok := e.values[key]
	return v, ok
}

// Snapshot returns the full ordinary (non-virtual) table, for persistence.
// Callers must not mutate the returned map.
func (e *Engine) Snapshot() map[string]value.Value { return e.values }

// Restore replaces the ordinary table wholesale, used when loading a
// persisted snapshot at startup.
func (e *Engine) Restore(values map[string]value.Value) { e.values = values }

// SetResult is the (original, new) value pair an evaluated Set produces.
type SetResult struct {
	Original value.Value
	New      value.Value
}

// Apply evaluates a Set request's fold-and-commit contract: starting from
// the stored value (or def if absent), each operation is applied in order;
// if any operation fails the table is left untouched and the error is
// returned. On success the new value is committed and returned alongside
// the value it replaced.
func (e *Engine) Apply(key string, def value.Value, ops []protocol.SetOperation) (SetResult, error) {
	original, ok := e.values[key]
	if !ok {
		original = def
	}
	v := original
	for _, op := range ops {
		next, err := apply(v, op)
		if err != nil {
			return SetResult{}, fmt.Errorf("storage: Set %q: %w", key, err)
		}
		v = next
	}
	e.values[key] = v
	return SetResult{Original: original, New: v}, nil
}

func apply(v value.Value, op protocol.SetOperation) (value.Value, error) {
	switch op.Operation {
	case "replace":
		return op.Value, nil
	case "default":
		return v, nil
	case "add":
		return v.Add(op.Value)
	case "mul":
		return v.Mul(op.Value)
	case "pow":
		return v.Pow(op.Value)
	case "mod":
		return v.Mod(op.Value)
	case "floor":
		return v.Floor()
	case "ceil":
		return v.Ceil()
	case "max":
		return v.Max(op.Value)
	case "min":
		return v.Min(op.Value)
	case "and":
		return v.And(op.Value)
	case "or":
		return v.Or(op.Value)
	case "xor":
		return v.Xor(op.Value)
	case "left_shift":
		return v.LeftShift(op.Value)
	case "right_shift":
		return v.RightShift(op.Value)
	case "update":
		return v.Update(op.Value)
	case "pop":
		return v.Pop(op.Value)
	case "remove":
		return v.Remove(op.Value)
	default:
		return value.Value{}, fmt.Errorf("storage: unknown operation %q", op.Operation)
	}
}
