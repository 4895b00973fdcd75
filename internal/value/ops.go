package value

import "math"

// Add implements the `add` operator: numeric addition with Int/Float
// promotion, mixed-width Int promotion on overflow.
func (v Value) Add(other Value) (Value, error) { return numericOp("add", v, other, Int.Add, func(a, b float64) float64 { return a + b }) }

// Sub implements the `sub` operator.
func (v Value) Sub(other Value) (Value, error) { return numericOp("sub", v, other, Int.Sub, func(a, b float64) float64 { return a - b }) }

// Mul implements the `mul` operator.
func (v Value) Mul(other Value) (Value, error) { return numericOp("mul", v, other, Int.Mul, func(a, b float64) float64 { return a * b }) }

// Pow implements the `pow` operator (non-negative integer exponents only
// for the Int/Int case; otherwise promotes to Float via math.Pow).
func (v Value) Pow(other Value) (Value, error) {
	if v.kind == KindInt && other.kind == KindInt && other.i.Sign() >= 0 {
		r, err := v.i.Pow(other.i)
		if err != nil {
			return Value{}, err
		}
		return IntValue(r), nil
	}
	af, bf, ok := bothAsFloat(v, other)
	if !ok {
		return Value{}, typeMismatch("pow", v, other)
	}
	return Float(math.Pow(af, bf)), nil
}

// Mod implements the `mod` operator (Euclidean remainder for Int/Int,
// math.Mod otherwise).
func (v Value) Mod(other Value) (Value, error) {
	if v.kind == KindInt && other.kind == KindInt {
		r, err := v.i.Mod(other.i)
		if err != nil {
			return Value{}, err
		}
		return IntValue(r), nil
	}
	af, bf, ok := bothAsFloat(v, other)
	if !ok {
		return Value{}, typeMismatch("mod", v, other)
	}
	if bf == 0 {
		return Value{}, errDivByZero
	}
	return Float(math.Mod(af, bf)), nil
}

// Max returns whichever of v, other compares greater.
func (v Value) Max(other Value) (Value, error) {
	cmp, err := compareNumeric("max", v, other)
	if err != nil {
		return Value{}, err
	}
	if cmp >= 0 {
		return v, nil
	}
	return other, nil
}

// Min returns whichever of v, other compares smaller.
func (v Value) Min(other Value) (Value, error) {
	cmp, err := compareNumeric("min", v, other)
	if err != nil {
		return Value{}, err
	}
	if cmp <= 0 {
		return v, nil
	}
	return other, nil
}

func compareNumeric(op string, a, b Value) (int, error) {
	if a.kind == KindInt && b.kind == KindInt {
		return a.i.Cmp(b.i), nil
	}
	af, bf, ok := bothAsFloat(a, b)
	if !ok {
		return 0, typeMismatch(op, a, b)
	}
	switch {
	case af < bf:
		return -1, nil
	case af > bf:
		return 1, nil
	default:
		return 0, nil
	}
}

// And implements the `and` operator: Int/Bool bitwise AND, Bool&&Bool
// short-circuits to a Bool result.
func (v Value) And(other Value) (Value, error) { return bitwiseOp("and", v, other, Int.And) }

// Or implements the `or` operator.
func (v Value) Or(other Value) (Value, error) { return bitwiseOp("or", v, other, Int.Or) }

// Xor implements the `xor` operator.
func (v Value) Xor(other Value) (Value, error) { return bitwiseOp("xor", v, other, Int.Xor) }

// LeftShift implements the `left_shift` operator.
func (v Value) LeftShift(other Value) (Value, error) {
	a, b, err := bothAsInt("left_shift", v, other)
	if err != nil {
		return Value{}, err
	}
	r, err := a.LeftShift(b)
	if err != nil {
		return Value{}, err
	}
	return IntValue(r), nil
}

// RightShift implements the `right_shift` operator.
func (v Value) RightShift(other Value) (Value, error) {
	a, b, err := bothAsInt("right_shift", v, other)
	if err != nil {
		return Value{}, err
	}
	r, err := a.RightShift(b)
	if err != nil {
		return Value{}, err
	}
	return IntValue(r), nil
}

// Floor implements the `floor` operator: Float -> Float(floor(f)); Int is a no-op.
func (v Value) Floor() (Value, error) {
	switch v.kind {
	case KindInt:
		return v, nil
	case KindFloat:
		return Float(math.Floor(v.f)), nil
	default:
		return Value{}, typeMismatch("floor", v)
	}
}

// Ceil implements the `ceil` operator.
func (v Value) Ceil() (Value, error) {
	switch v.kind {
	case KindInt:
		return v, nil
	case KindFloat:
		return Float(math.Ceil(v.f)), nil
	default:
		return Value{}, typeMismatch("ceil", v)
	}
}

// Pop removes element from v (a List by index, a Set by value) and returns
// the mutated container Value unchanged (the container is shared; the
// caller's storage slot already observes the mutation).
func (v Value) Pop(element Value) (Value, error) {
	switch v.kind {
	case KindList:
		n, err := element.AsInt()
		if err != nil || !n.isSmall {
			return Value{}, typeMismatch("pop", v, element)
		}
		i := int(n.small)
		if _, ok := v.list.PopIndex(i); !ok {
			return Value{}, &IndexError{Index: i}
		}
		return v, nil
	case KindSet:
		if !v.set.Remove(element) {
			return Value{}, &KeyError{Key: element}
		}
		return v, nil
	default:
		return Value{}, typeMismatch("pop", v)
	}
}

// Remove deletes element from a List or Set by value.
func (v Value) Remove(element Value) (Value, error) {
	switch v.kind {
	case KindList:
		if !v.list.RemoveValue(element) {
			return Value{}, &ValueNotFoundError{}
		}
		return v, nil
	case KindSet:
		if !v.set.Remove(element) {
			return Value{}, &KeyError{Key: element}
		}
		return v, nil
	default:
		return Value{}, typeMismatch("remove", v)
	}
}

// Update merges other (a Dict) into v (a Dict) in place.
func (v Value) Update(other Value) (Value, error) {
	if v.kind != KindDict || other.kind != KindDict {
		return Value{}, typeMismatch("update", v, other)
	}
	if err := v.dict.Update(other.dict); err != nil {
		return Value{}, err
	}
	return v, nil
}

// IndexError reports an out-of-range List index.
type IndexError struct{ Index int }

func (e *IndexError) Error() string { return "value: list index out of range" }

// KeyError reports a missing Dict/Set key.
type KeyError struct{ Key Value }

func (e *KeyError) Error() string { return "value: key not found: " + e.Key.TypeName() }

// ValueNotFoundError reports a List.Remove miss.
type ValueNotFoundError struct{}

func (e *ValueNotFoundError) Error() string { return "value: value not found in list" }

func numericOp(op string, a, b Value, intOp func(Int, Int) Int, floatOp func(float64, float64) float64) (Value, error) {
	if a.kind == KindInt && b.kind == KindInt {
		return IntValue(intOp(a.i, b.i)), nil
	}
	af, bf, ok := bothAsFloat(a, b)
	if !ok {
		return Value{}, typeMismatch(op, a, b)
	}
	return Float(floatOp(af, bf)), nil
}

func bitwiseOp(op string, a, b Value, intOp func(Int, Int) Int) (Value, error) {
	if a.kind == KindBool && b.kind == KindBool {
		switch op {
		case "and":
			return Bool(a.b && b.b), nil
		case "or":
			return Bool(a.b || b.b), nil
		case "xor":
			return Bool(a.b != b.b), nil
		}
	}
	ai, bi, err := bothAsInt(op, a, b)
	if err != nil {
		return Value{}, err
	}
	return IntValue(intOp(ai, bi)), nil
}

func bothAsInt(op string, a, b Value) (Int, Int, error) {
	ai, aok := intOf(a)
	bi, bok := intOf(b)
	if !aok || !bok {
		return Int{}, Int{}, typeMismatch(op, a, b)
	}
	return ai, bi, nil
}

func intOf(v Value) (Int, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindBool:
		if v.b {
			return IntFrom64(1), true
		}
		return IntFrom64(0), true
	default:
		return Int{}, false
	}
}

func bothAsFloat(a, b Value) (float64, float64, bool) {
	af, aok := floatOf(a)
	bf, bok := floatOf(b)
	if !aok || !bok {
		return 0, 0, false
	}
	return af, bf, true
}

func floatOf(v Value) (float64, bool) {
	switch v.kind {
	case KindInt:
		return v.i.Float64(), true
	case KindFloat:
		return v.f, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
