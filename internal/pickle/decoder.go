// Package pickle implements a stack-based virtual machine that decodes
// Python pickle protocol streams (versions 0-5) into internal/value trees.
// It only understands the binary opcode subset emitted by pickle.dump with
// a DEFAULT_PROTOCOL of 2 or higher, which is what the multi-world seed
// format is written with; the legacy text opcodes (INT, FLOAT, STRING, ...)
// are intentionally unsupported and reported as UnsupportedOpError.
package pickle

import (
	"unicode/utf8"

	"github.com/archipelago-mw/aprs-server/internal/value"
)

// FindClassFunc resolves a (module, name) pair encountered at a
// STACK_GLOBAL opcode into an opaque Callable Value. The decoder never
// executes foreign code itself; FindClassFunc is the closed, enumerated
// set of reconstructable classes the caller provides.
type FindClassFunc func(module, name string) (value.Value, error)

// Decoder decodes one pickle stream into a single root Value.
type Decoder struct {
	r         *framedReader
	proto     int
	stack     []value.Value
	metaStack [][]value.Value
	memo      memo
	findClass FindClassFunc
}

// NewDecoder constructs a Decoder over data. findClass may be nil, in which
// case any STACK_GLOBAL opcode fails.
func NewDecoder(data []byte, findClass FindClassFunc) *Decoder {
	if findClass == nil {
		findClass = func(module, name string) (value.Value, error) {
			return value.Value{}, errNotCallable
		}
	}
	return &Decoder{r: newFramedReader(data), findClass: findClass}
}

// Load runs the VM to completion and returns the decoded root Value.
func (d *Decoder) Load() (value.Value, error) {
	for {
		offset := d.r.pos()
		b, err := d.r.readByte()
		if err != nil {
			return value.Value{}, d.fail(offset, 0, "truncated stream", errUnexpectedEOF)
		}
		op := opcode(b)

		done, result, err := d.dispatch(op, offset)
		if err != nil {
			return value.Value{}, err
		}
		if done {
			return result, nil
		}
	}
}

func (d *Decoder) fail(offset int64, op opcode, kind string, err error) error {
	name := ""
	if op != 0 {
		name = op.name()
	}
	return &DecodeError{Kind: kind, Opcode: name, Offset: offset, Err: err}
}

func (d *Decoder) dispatch(op opcode, offset int64) (done bool, result value.Value, err error) {
	fail := func(kind string, e error) (bool, value.Value, error) {
		return false, value.Value{}, d.fail(offset, op, kind, e)
	}

	switch op {
	case opProto:
		v, e := d.r.readByte()
		if e != nil {
			return fail("truncated stream", e)
		}
		if v > HighestProtocol {
			return fail("protocol too high", errProtocolTooHigh)
		}
		d.proto = int(v)

	case opFrame:
		size, e := d.r.readUint64LE()
		if e != nil {
			return fail("truncated stream", e)
		}
		if e := d.r.beginFrame(size); e != nil {
			return fail("bad frame boundary", e)
		}

	case opMark:
		d.metaStack = append(d.metaStack, d.stack)
		d.stack = nil

	case opStop:
		v, e := d.pop()
		if e != nil {
			return fail("stack underflow", e)
		}
		return true, v, nil

	case opNone:
		d.push(value.Null)

	case opNewtrue:
		d.push(value.True)

	case opNewfalse:
		d.push(value.False)

	case opBinint:
		n, e := d.r.readInt32LE()
		if e != nil {
			return fail("truncated stream", e)
		}
		d.push(value.IntFromInt64(int64(n)))

	case opBinint1:
		n, e := d.r.readByte()
		if e != nil {
			return fail("truncated stream", e)
		}
		d.push(value.IntFromInt64(int64(n)))

	case opBinint2:
		n, e := d.r.readUint16LE()
		if e != nil {
			return fail("truncated stream", e)
		}
		d.push(value.IntFromInt64(int64(n)))

	case opLong1:
		n, e := d.r.readByte()
		if e != nil {
			return fail("truncated stream", e)
		}
		bytes, e := d.r.readExact(int(n))
		if e != nil {
			return fail("truncated stream", e)
		}
		d.push(value.IntValue(value.IntFromSignedBytesLE(bytes)))

	case opBinfloat:
		f, e := d.r.readFloat64BE()
		if e != nil {
			return fail("truncated stream", e)
		}
		d.push(value.Float(f))

	case opBinunicode:
		n, e := d.r.readUint32LE()
		if e != nil {
			return fail("truncated stream", e)
		}
		s, e := d.r.readExact(int(n))
		if e != nil {
			return fail("truncated stream", e)
		}
		if !utf8.Valid(s) {
			return fail("bad UTF-8", errBadUTF8)
		}
		d.push(value.Str(string(s)))

	case opShortBinunicode:
		n, e := d.r.readByte()
		if e != nil {
			return fail("truncated stream", e)
		}
		s, e := d.r.readExact(int(n))
		if e != nil {
			return fail("truncated stream", e)
		}
		if !utf8.Valid(s) {
			return fail("bad UTF-8", errBadUTF8)
		}
		d.push(value.Str(string(s)))

	case opEmptyList:
		d.push(value.NewList())

	case opEmptyDict:
		d.push(value.NewDict())

	case opEmptySet:
		d.push(value.NewSet())

	case opEmptyTuple:
		d.push(value.NewTuple())

	case opAppend:
		v, e := d.pop()
		if e != nil {
			return fail("stack underflow", e)
		}
		top, e := d.last()
		if e != nil {
			return fail("stack underflow", e)
		}
		list, e := top.AsList()
		if e != nil {
			return fail("wrong accumulator variant", errWrongVariant)
		}
		list.Append(v)

	case opAppends:
		items, e := d.popMark()
		if e != nil {
			return fail("no marker", e)
		}
		top, e := d.last()
		if e != nil {
			return fail("stack underflow", e)
		}
		list, e := top.AsList()
		if e != nil {
			return fail("wrong accumulator variant", errWrongVariant)
		}
		list.Extend(items)

	case opSetitem:
		v, e := d.pop()
		if e != nil {
			return fail("stack underflow", e)
		}
		k, e := d.pop()
		if e != nil {
			return fail("stack underflow", e)
		}
		top, e := d.last()
		if e != nil {
			return fail("stack underflow", e)
		}
		dict, e := top.AsDict()
		if e != nil {
			return fail("wrong accumulator variant", errWrongVariant)
		}
		if e := dict.Set(k, v); e != nil {
			return fail("unhashable dict key", e)
		}

	case opSetitems:
		items, e := d.popMark()
		if e != nil {
			return fail("no marker", e)
		}
		top, e := d.last()
		if e != nil {
			return fail("stack underflow", e)
		}
		dict, e := top.AsDict()
		if e != nil {
			return fail("wrong accumulator variant", errWrongVariant)
		}
		for i := 0; i+1 < len(items); i += 2 {
			if e := dict.Set(items[i], items[i+1]); e != nil {
				return fail("unhashable dict key", e)
			}
		}

	case opAdditems:
		items, e := d.popMark()
		if e != nil {
			return fail("no marker", e)
		}
		top, e := d.last()
		if e != nil {
			return fail("stack underflow", e)
		}
		set, e := top.AsSet()
		if e != nil {
			return fail("wrong accumulator variant", errWrongVariant)
		}
		for _, item := range items {
			if e := set.Add(item); e != nil {
				return fail("unhashable set element", e)
			}
		}

	case opTuple:
		items, e := d.popMark()
		if e != nil {
			return fail("no marker", e)
		}
		d.push(value.NewTuple(items...))

	case opTuple1:
		v1, e := d.pop()
		if e != nil {
			return fail("stack underflow", e)
		}
		d.push(value.NewTuple(v1))

	case opTuple2:
		v2, e := d.pop()
		if e != nil {
			return fail("stack underflow", e)
		}
		v1, e := d.pop()
		if e != nil {
			return fail("stack underflow", e)
		}
		d.push(value.NewTuple(v1, v2))

	case opTuple3:
		v3, e := d.pop()
		if e != nil {
			return fail("stack underflow", e)
		}
		v2, e := d.pop()
		if e != nil {
			return fail("stack underflow", e)
		}
		v1, e := d.pop()
		if e != nil {
			return fail("stack underflow", e)
		}
		d.push(value.NewTuple(v1, v2, v3))

	case opReduce, opNewobj:
		args, e := d.pop()
		if e != nil {
			return fail("stack underflow", e)
		}
		callableVal, e := d.pop()
		if e != nil {
			return fail("stack underflow", e)
		}
		callable, e := callableVal.AsCallable()
		if e != nil {
			return fail("reduce target not callable", errNotCallable)
		}
		argTuple, e := args.AsTuple()
		if e != nil {
			return fail("reduce args not a tuple", errWrongVariant)
		}
		result, e := callable.Call(argTuple)
		if e != nil {
			return fail("callable reconstruction failed", e)
		}
		d.push(result)

	case opStackGlobal:
		name, e := d.pop()
		if e != nil {
			return fail("stack underflow", e)
		}
		module, e := d.pop()
		if e != nil {
			return fail("stack underflow", e)
		}
		nameStr, e := name.AsStr()
		if e != nil {
			return fail("global name not a string", errWrongVariant)
		}
		moduleStr, e := module.AsStr()
		if e != nil {
			return fail("global module not a string", errWrongVariant)
		}
		v, e := d.findClass(moduleStr, nameStr)
		if e != nil {
			return fail("unknown global", e)
		}
		d.push(v)

	case opMemoize:
		v, e := d.last()
		if e != nil {
			return fail("stack underflow", e)
		}
		d.memo.put(v)

	case opBinget:
		idx, e := d.r.readByte()
		if e != nil {
			return fail("truncated stream", e)
		}
		v, ok := d.memo.get(uint64(idx))
		if !ok {
			return fail("missing memo index", errMemoMiss)
		}
		d.push(v)

	case opLongBinget:
		idx, e := d.r.readUint32LE()
		if e != nil {
			return fail("truncated stream", e)
		}
		v, ok := d.memo.get(uint64(idx))
		if !ok {
			return fail("missing memo index", errMemoMiss)
		}
		d.push(v)

	default:
		return false, value.Value{}, &UnsupportedOpError{Byte: byte(op), Offset: offset}
	}

	return false, value.Value{}, nil
}

func (d *Decoder) push(v value.Value) { d.stack = append(d.stack, v) }

func (d *Decoder) pop() (value.Value, error) {
	n := len(d.stack) - 1
	if n < 0 {
		return value.Value{}, errStackUnderflow
	}
	v := d.stack[n]
	d.stack = d.stack[:n]
	return v, nil
}

func (d *Decoder) last() (value.Value, error) {
	if len(d.stack) == 0 {
		return value.Value{}, errStackUnderflow
	}
	return d.stack[len(d.stack)-1], nil
}

// popMark discards and returns the stack contents back to (exclusive of)
// the most recent MARK, restoring the stack that was saved at that MARK.
func (d *Decoder) popMark() ([]value.Value, error) {
	n := len(d.metaStack) - 1
	if n < 0 {
		return nil, errNoMarker
	}
	items := d.stack
	d.stack = d.metaStack[n]
	d.metaStack = d.metaStack[:n]
	return items, nil
}

// Unpickle decodes a single pickle stream with the given class resolver.
func Unpickle(data []byte, findClass FindClassFunc) (value.Value, error) {
	return NewDecoder(data, findClass).Load()
}
