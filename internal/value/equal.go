package value

import "fmt"

// Equals reports whether a and b are equal under the cross-variant rules:
// Bool/Int/Float compare by mathematical value, containers compare
// structurally on current contents, and Tuple compares element-wise.
//
// Value graphs produced by the pickle decoder's memo table may be cyclic
// (a container may transitively contain itself). Equals is protected
// against unbounded recursion: identical container handles short-circuit
// to equal without recursing, and a visited-pair set guards structural
// recursion between two distinct containers.
func Equals(a, b Value) bool {
	return equalsSeen(a, b, make(map[pairKey]bool))
}

type pairKey struct{ a, b string }

func equalsSeen(a, b Value, seen map[pairKey]bool) bool {
	if isNumeric(a) && isNumeric(b) {
		return numericEquals(a, b)
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindStr:
		return a.s == b.s
	case KindTuple:
		if len(a.tuple) != len(b.tuple) {
			return false
		}
		for i := range a.tuple {
			if !equalsSeen(a.tuple[i], b.tuple[i], seen) {
				return false
			}
		}
		return true
	case KindList:
		if a.list == b.list {
			return true
		}
		key := pairKey{ptrOf(a.list), ptrOf(b.list)}
		if seen[key] {
			return true
		}
		seen[key] = true
		as, bs := a.list.Snapshot(), b.list.Snapshot()
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !equalsSeen(as[i], bs[i], seen) {
				return false
			}
		}
		return true
	case KindDict:
		if a.dict == b.dict {
			return true
		}
		key := pairKey{ptrOf(a.dict), ptrOf(b.dict)}
		if seen[key] {
			return true
		}
		seen[key] = true
		ai, bi := a.dict.Items(), b.dict.Items()
		if len(ai) != len(bi) {
			return false
		}
		for _, e := range ai {
			bv, ok := b.dict.Get(e.Key)
			if !ok || !equalsSeen(e.Val, bv, seen) {
				return false
			}
		}
		return true
	case KindSet:
		if a.set == b.set {
			return true
		}
		key := pairKey{ptrOf(a.set), ptrOf(b.set)}
		if seen[key] {
			return true
		}
		seen[key] = true
		ai, bi := a.set.Items(), b.set.Items()
		if len(ai) != len(bi) {
			return false
		}
		for _, e := range ai {
			if !b.set.Contains(e) {
				return false
			}
		}
		return true
	case KindCallable:
		return a.callable == b.callable || (a.callable != nil && b.callable != nil && a.callable.Fingerprint() == b.callable.Fingerprint())
	default:
		return false
	}
}

func isNumeric(v Value) bool {
	return v.kind == KindBool || v.kind == KindInt || v.kind == KindFloat
}

func numericEquals(a, b Value) bool {
	af, aIsFloat := numericAsFloatIfFloat(a)
	bf, bIsFloat := numericAsFloatIfFloat(b)
	if aIsFloat || bIsFloat {
		if !aIsFloat {
			af = numericAsFloat(a)
		}
		if !bIsFloat {
			bf = numericAsFloat(b)
		}
		return af == bf
	}
	return numericAsInt(a).Cmp(numericAsInt(b)) == 0
}

func numericAsFloatIfFloat(v Value) (float64, bool) {
	if v.kind == KindFloat {
		return v.f, true
	}
	return 0, false
}

func numericAsFloat(v Value) float64 {
	switch v.kind {
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindInt:
		return v.i.Float64()
	case KindFloat:
		return v.f
	default:
		panic(fmt.Sprintf("numericAsFloat: not numeric: %s", v.kind))
	}
}

func numericAsInt(v Value) Int {
	switch v.kind {
	case KindBool:
		if v.b {
			return IntFrom64(1)
		}
		return IntFrom64(0)
	case KindInt:
		return v.i
	default:
		panic(fmt.Sprintf("numericAsInt: not integral: %s", v.kind))
	}
}

func ptrOf(p interface{}) string {
	return fmt.Sprintf("%p", p)
}
