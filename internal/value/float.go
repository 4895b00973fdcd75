package value

import (
	"math"
	"math/big"
	"strconv"
)

// floatHashKey returns the canonical hash key for a float64, matching the
// key produced for a mathematically-equal Int/Bool so that the Value
// equality/hash agreement invariant holds across the numeric tower.
func floatHashKey(f float64) string {
	if math.IsNaN(f) {
		return "nan"
	}
	if !math.IsInf(f, 0) && f == math.Trunc(f) {
		bi, _ := big.NewFloat(f).Int(nil)
		return "n:" + bi.String()
	}
	return "f:" + strconv.FormatUint(math.Float64bits(f), 16)
}
