package value

import (
	"hash/fnv"
	"strings"
)

// HashKey returns a canonical string key for v, suitable for use as a Go
// map key inside Dict/Set. It fails with UnhashableError for variants that
// are not hashable (Dict, List, Set, or a Tuple containing one). Equal
// Values (including cross-type Bool/Int/Float numeric equality) always
// produce the same key, which is what guarantees the hash/equality
// agreement invariant.
func HashKey(v Value) (string, error) {
	switch v.kind {
	case KindNull:
		return "null", nil
	case KindBool:
		if v.b {
			return "n:1", nil
		}
		return "n:0", nil
	case KindInt:
		return v.i.HashKey(), nil
	case KindFloat:
		return floatHashKey(v.f), nil
	case KindStr:
		return "s:" + v.s, nil
	case KindTuple:
		parts := make([]string, len(v.tuple))
		for i, e := range v.tuple {
			k, err := HashKey(e)
			if err != nil {
				return "", err
			}
			parts[i] = k
		}
		return "t:(" + strings.Join(parts, ",") + ")", nil
	case KindCallable:
		return "c:" + v.callable.Fingerprint(), nil
	default:
		return "", &UnhashableError{Kind: v.kind}
	}
}

// Hash returns a 64-bit hash of v, failing with UnhashableError if v is not
// hashable. It is built directly on HashKey so hash/equality agreement is
// structural, not incidental.
func Hash(v Value) (uint64, error) {
	key, err := HashKey(v)
	if err != nil {
		return 0, err
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return h.Sum64(), nil
}

