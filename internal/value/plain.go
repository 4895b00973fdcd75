package value

import "fmt"

// ToPlain converts v into a tree of plain Go values (nil, bool, int64,
// *big.Int-backed string, float64, string, []interface{}, map[string]interface{})
// suitable for MessagePack encoding by a reflection-based codec (used by
// the persistence layer to snapshot the data-storage engine's Value map).
func ToPlain(v Value) (interface{}, error) {
	switch v.kind {
	case KindNull:
		return nil, nil
	case KindBool:
		return v.b, nil
	case KindInt:
		if v.i.isSmall {
			return v.i.small, nil
		}
		return v.i.big.String(), nil
	case KindFloat:
		return v.f, nil
	case KindStr:
		return v.s, nil
	case KindTuple:
		return plainSlice(v.tuple)
	case KindList:
		return plainSlice(v.list.Snapshot())
	case KindSet:
		return plainSlice(v.set.Items())
	case KindDict:
		out := make(map[string]interface{})
		for _, e := range v.dict.Items() {
			ks, err := dictKeyString(e.Key)
			if err != nil {
				return nil, err
			}
			pv, err := ToPlain(e.Val)
			if err != nil {
				return nil, err
			}
			out[ks] = pv
		}
		return out, nil
	case KindCallable:
		return v.callable.Fingerprint(), nil
	default:
		return nil, fmt.Errorf("value: cannot flatten kind %s", v.kind)
	}
}

func plainSlice(items []Value) ([]interface{}, error) {
	out := make([]interface{}, len(items))
	for i, e := range items {
		pv, err := ToPlain(e)
		if err != nil {
			return nil, err
		}
		out[i] = pv
	}
	return out, nil
}

// FromPlain reconstructs a Value tree from the generic interface{} shape a
// MessagePack decoder produces. It reverses ToPlain for Null, Bool,
// machine-word Int, Float, Str, List and Str-keyed Dict; a big Int comes
// back as its decimal Str, Tuple and Set come back as List, and every Dict
// key comes back as a Str.
func FromPlain(raw interface{}) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null, nil
	case bool:
		return Bool(x), nil
	case string:
		return Str(x), nil
	case int64:
		return IntFromInt64(x), nil
	case int:
		return IntFromInt64(int64(x)), nil
	case uint64:
		return IntFromInt64(int64(x)), nil
	case float64:
		return Float(x), nil
	case float32:
		return Float(float64(x)), nil
	case []interface{}:
		list := NewList()
		l, _ := list.AsList()
		for _, e := range x {
			ev, err := FromPlain(e)
			if err != nil {
				return Value{}, err
			}
			l.Append(ev)
		}
		return list, nil
	case map[string]interface{}:
		d := NewDict()
		dd, _ := d.AsDict()
		for k, val := range x {
			vv, err := FromPlain(val)
			if err != nil {
				return Value{}, err
			}
			if err := dd.Set(Str(k), vv); err != nil {
				return Value{}, err
			}
		}
		return d, nil
	case map[interface{}]interface{}:
		d := NewDict()
		dd, _ := d.AsDict()
		for k, val := range x {
			ks, ok := k.(string)
			if !ok {
				ks = fmt.Sprint(k)
			}
			vv, err := FromPlain(val)
			if err != nil {
				return Value{}, err
			}
			if err := dd.Set(Str(ks), vv); err != nil {
				return Value{}, err
			}
		}
		return d, nil
	default:
		return Value{}, fmt.Errorf("value: cannot reconstruct from %T", raw)
	}
}
