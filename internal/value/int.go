package value

import "math/big"

// Int is the arbitrary-precision integer carried by Value's Int variant.
//
// Go has no native double-word (128-bit) integer type, so the three-width
// design sketched in the spec (machine-word / double-word / arbitrary) is
// collapsed to two tiers here: a machine-word fast path (small, isSmall)
// and an arbitrary-precision fallback (big) used whenever a value does not
// fit in an int64. Add, Sub and Mul attempt the fast path first and
// promote to big.Int on overflow; the other operations compute on big.Int
// and normalize the result back to the machine-word tier when it fits.
// Hash/Equals normalize across tiers
// so the two representations of the same mathematical value agree.
type Int struct {
	small   int64
	isSmall bool
	big     *big.Int // non-nil iff !isSmall
}

// IntFrom64 constructs a machine-word Int.
func IntFrom64(n int64) Int { return Int{small: n, isSmall: true} }

// IntFromBigInt constructs an Int from an arbitrary-precision integer,
// normalizing to the machine-word tier when it fits.
func IntFromBigInt(n *big.Int) Int {
	if n.IsInt64() {
		return IntFrom64(n.Int64())
	}
	return Int{big: new(big.Int).Set(n)}
}

// IntFromSignedBytesLE decodes a two's-complement little-endian byte string
// (as produced by pickle's LONG1/LONG4 opcodes) into an Int.
func IntFromSignedBytesLE(data []byte) Int {
	if len(data) == 0 {
		return IntFrom64(0)
	}
	be := make([]byte, len(data))
	for i, b := range data {
		be[len(data)-1-i] = b
	}
	negative := be[0]&0x80 != 0
	n := new(big.Int).SetBytes(be)
	if negative {
		full := new(big.Int).Lsh(big.NewInt(1), uint(len(data)*8))
		n.Sub(n, full)
	}
	return IntFromBigInt(n)
}

// AsBigInt materializes the value as a *big.Int, regardless of tier.
func (n Int) AsBigInt() *big.Int {
	if n.isSmall {
		return big.NewInt(n.small)
	}
	return new(big.Int).Set(n.big)
}

// IsSmall reports whether n fits the machine-word fast path.
func (n Int) IsSmall() bool { return n.isSmall }

// Int64 returns the machine-word value; only meaningful when IsSmall.
func (n Int) Int64() int64 { return n.small }

// ToUsize converts n to a non-negative machine index, if it is representable.
func (n Int) ToUsize() (uint64, bool) {
	if n.isSmall {
		if n.small < 0 {
			return 0, false
		}
		return uint64(n.small), true
	}
	if n.big.Sign() < 0 || !n.big.IsUint64() {
		return 0, false
	}
	return n.big.Uint64(), true
}

// Sign returns -1, 0, or +1.
func (n Int) Sign() int {
	if n.isSmall {
		switch {
		case n.small < 0:
			return -1
		case n.small > 0:
			return 1
		default:
			return 0
		}
	}
	return n.big.Sign()
}

// Float64 converts n to its nearest float64 representation.
func (n Int) Float64() float64 {
	if n.isSmall {
		return float64(n.small)
	}
	f := new(big.Float).SetInt(n.big)
	out, _ := f.Float64()
	return out
}

// Cmp compares two Ints mathematically.
func (n Int) Cmp(other Int) int {
	if n.isSmall && other.isSmall {
		switch {
		case n.small < other.small:
			return -1
		case n.small > other.small:
			return 1
		default:
			return 0
		}
	}
	return n.AsBigInt().Cmp(other.AsBigInt())
}

// addInt64 adds two int64s, reporting overflow rather than wrapping.
func addInt64(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == minInt64 && b == -1) || (b == minInt64 && a == -1) {
		return 0, false
	}
	p := a * b
	if p/b != a {
		return 0, false
	}
	return p, true
}

// Add returns n + other, promoting to big.Int on machine-word overflow.
func (n Int) Add(other Int) Int {
	if n.isSmall && other.isSmall {
		if sum, ok := addInt64(n.small, other.small); ok {
			return IntFrom64(sum)
		}
	}
	return IntFromBigInt(new(big.Int).Add(n.AsBigInt(), other.AsBigInt()))
}

// Sub returns n - other, promoting to big.Int on machine-word overflow.
func (n Int) Sub(other Int) Int {
	if n.isSmall && other.isSmall {
		if diff, ok := addInt64(n.small, -other.small); ok && other.small != minInt64 {
			return IntFrom64(diff)
		}
	}
	return IntFromBigInt(new(big.Int).Sub(n.AsBigInt(), other.AsBigInt()))
}

const minInt64 = -1 << 63

// Mul returns n * other, promoting to big.Int on machine-word overflow.
func (n Int) Mul(other Int) Int {
	if n.isSmall && other.isSmall {
		if prod, ok := mulInt64(n.small, other.small); ok {
			return IntFrom64(prod)
		}
	}
	return IntFromBigInt(new(big.Int).Mul(n.AsBigInt(), other.AsBigInt()))
}

// Mod returns the Euclidean remainder of n / other.
func (n Int) Mod(other Int) (Int, error) {
	if other.Sign() == 0 {
		return Int{}, errDivByZero
	}
	return IntFromBigInt(new(big.Int).Mod(n.AsBigInt(), other.AsBigInt())), nil
}

// Pow returns n raised to a non-negative integer power.
func (n Int) Pow(exp Int) (Int, error) {
	if exp.Sign() < 0 {
		return Int{}, errNegativeExponent
	}
	return IntFromBigInt(new(big.Int).Exp(n.AsBigInt(), exp.AsBigInt(), nil)), nil
}

// And, Or, Xor implement bitwise ops over the two's-complement representation.
func (n Int) And(other Int) Int {
	return IntFromBigInt(new(big.Int).And(n.AsBigInt(), other.AsBigInt()))
}

func (n Int) Or(other Int) Int {
	return IntFromBigInt(new(big.Int).Or(n.AsBigInt(), other.AsBigInt()))
}

func (n Int) Xor(other Int) Int {
	return IntFromBigInt(new(big.Int).Xor(n.AsBigInt(), other.AsBigInt()))
}

// LeftShift and RightShift shift by a non-negative bit count.
func (n Int) LeftShift(bits Int) (Int, error) {
	b, ok := bits.ToUsize()
	if !ok {
		return Int{}, errBadShift
	}
	return IntFromBigInt(new(big.Int).Lsh(n.AsBigInt(), uint(b))), nil
}

func (n Int) RightShift(bits Int) (Int, error) {
	b, ok := bits.ToUsize()
	if !ok {
		return Int{}, errBadShift
	}
	return IntFromBigInt(new(big.Int).Rsh(n.AsBigInt(), uint(b))), nil
}

// HashKey returns a canonical string uniquely identifying n's mathematical
// value, agreeing across tiers (and with equal Bool/Float values).
func (n Int) HashKey() string {
	return "n:" + n.AsBigInt().String()
}
