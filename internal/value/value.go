// Package value implements the dynamically-typed value tree materialized by
// the pickle decoder and later navigated, compared, hashed, and
// JSON-serialized by the server core.
package value

import (
	"fmt"
	"math/big"
)

// Kind discriminates the Value variants.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindStr
	KindTuple
	KindList
	KindDict
	KindSet
	KindCallable
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindStr:
		return "Str"
	case KindTuple:
		return "Tuple"
	case KindList:
		return "List"
	case KindDict:
		return "Dict"
	case KindSet:
		return "Set"
	case KindCallable:
		return "Callable"
	default:
		return "Unknown"
	}
}

// Value is the heterogeneous sum type that flows through the decoder, the
// data-storage engine and the protocol codec.
type Value struct {
	kind     Kind
	b        bool
	i        Int
	f        float64
	s        string
	tuple    []Value
	list     *List
	dict     *Dict
	set      *Set
	callable *Callable
}

// Null is the process-wide singleton absent-value.
var Null = Value{kind: KindNull}

// True and False are the two Bool values.
var (
	True  = Value{kind: KindBool, b: true}
	False = Value{kind: KindBool, b: false}
)

// Bool constructs a Bool Value.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// IntFromInt64 constructs an Int Value from a machine-word integer.
func IntFromInt64(n int64) Value { return Value{kind: KindInt, i: IntFrom64(n)} }

// IntFromBig constructs an Int Value from an arbitrary-precision integer.
func IntFromBig(n *big.Int) Value { return Value{kind: KindInt, i: IntFromBigInt(n)} }

// IntValue constructs an Int Value directly from an Int.
func IntValue(i Int) Value { return Value{kind: KindInt, i: i} }

// Float constructs a Float Value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Str constructs a Str Value.
func Str(s string) Value { return Value{kind: KindStr, s: s} }

// NewTuple constructs an immutable Tuple Value from zero or more elements.
func NewTuple(elems ...Value) Value {
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Value{kind: KindTuple, tuple: cp}
}

// NewList constructs an empty, mutable List Value.
func NewList() Value { return Value{kind: KindList, list: newList()} }

// NewDict constructs an empty, mutable, insertion-ordered Dict Value.
func NewDict() Value { return Value{kind: KindDict, dict: newDict()} }

// NewSet constructs an empty, mutable, insertion-ordered Set Value.
func NewSet() Value { return Value{kind: KindSet, set: newSet()} }

// NewCallable constructs an opaque Callable Value.
func NewCallable(c *Callable) Value { return Value{kind: KindCallable, callable: c} }

// Kind reports the dynamic variant of v.
func (v Value) Kind() Kind { return v.kind }

// TypeName returns a stable textual discriminator for error messages.
func (v Value) TypeName() string { return v.kind.String() }

// IsHashable reports whether v (and, transitively, everything it reaches)
// may be used as a Dict key or Set element.
func (v Value) IsHashable() bool {
	switch v.kind {
	case KindList, KindDict, KindSet:
		return false
	case KindTuple:
		for _, e := range v.tuple {
			if !e.IsHashable() {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// TypeMismatchError reports an operator applied to incompatible variants.
type TypeMismatchError struct {
	Op       string
	Variants []string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch in %s: %v", e.Op, e.Variants)
}

func typeMismatch(op string, vs ...Value) error {
	names := make([]string, len(vs))
	for i, v := range vs {
		names[i] = v.TypeName()
	}
	return &TypeMismatchError{Op: op, Variants: names}
}

// UnhashableError reports an attempt to hash a mutable container.
type UnhashableError struct{ Kind Kind }

func (e *UnhashableError) Error() string { return fmt.Sprintf("unhashable type: %s", e.Kind) }

// AsBool returns the boolean payload, failing with TypeMismatch otherwise.
func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, typeMismatch("as_bool", v)
	}
	return v.b, nil
}

// AsInt returns the Int payload, failing with TypeMismatch otherwise.
func (v Value) AsInt() (Int, error) {
	if v.kind != KindInt {
		return Int{}, typeMismatch("as_int", v)
	}
	return v.i, nil
}

// AsFloat returns the float payload, failing with TypeMismatch otherwise.
func (v Value) AsFloat() (float64, error) {
	if v.kind != KindFloat {
		return 0, typeMismatch("as_float", v)
	}
	return v.f, nil
}

// AsStr returns the string payload, failing with TypeMismatch otherwise.
func (v Value) AsStr() (string, error) {
	if v.kind != KindStr {
		return "", typeMismatch("as_str", v)
	}
	return v.s, nil
}

// AsTuple returns the tuple elements, failing with TypeMismatch otherwise.
func (v Value) AsTuple() ([]Value, error) {
	if v.kind != KindTuple {
		return nil, typeMismatch("as_tuple", v)
	}
	return v.tuple, nil
}

// AsList returns the shared List handle, failing with TypeMismatch otherwise.
func (v Value) AsList() (*List, error) {
	if v.kind != KindList {
		return nil, typeMismatch("as_list", v)
	}
	return v.list, nil
}

// AsDict returns the shared Dict handle, failing with TypeMismatch otherwise.
func (v Value) AsDict() (*Dict, error) {
	if v.kind != KindDict {
		return nil, typeMismatch("as_dict", v)
	}
	return v.dict, nil
}

// AsSet returns the shared Set handle, failing with TypeMismatch otherwise.
func (v Value) AsSet() (*Set, error) {
	if v.kind != KindSet {
		return nil, typeMismatch("as_set", v)
	}
	return v.set, nil
}

// AsCallable returns the Callable payload, failing with TypeMismatch otherwise.
func (v Value) AsCallable() (*Callable, error) {
	if v.kind != KindCallable {
		return nil, typeMismatch("as_callable", v)
	}
	return v.callable, nil
}

// ToUsize converts v to a non-negative machine index, or reports false if v
// is not an Int or is out of range.
func (v Value) ToUsize() (uint64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i.ToUsize()
}

// IsNull reports whether v is the Null singleton.
func (v Value) IsNull() bool { return v.kind == KindNull }
