package value

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UnmarshalJSON decodes arbitrary JSON into v, so that Value can be used
// directly as a struct field type in the protocol codec (e.g. Set.Default,
// Bounce.Data, slot_data). Numbers decode through json.Number so integral
// values round-trip as Int rather than lossy Float.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := FromJSON(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalJSON renders v using the same shape the reference client expects:
// scalars map directly, List/Set render as arrays, Dict renders as an
// object (Str/Int keys become object keys, stringified for Int), Tuple
// renders as an array, Callable renders as its fingerprint string, Null
// renders as JSON null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindInt:
		if v.i.isSmall {
			return json.Marshal(v.i.small)
		}
		return json.Marshal(v.i.big.String())
	case KindFloat:
		return json.Marshal(v.f)
	case KindStr:
		return json.Marshal(v.s)
	case KindTuple:
		return marshalSlice(v.tuple)
	case KindList:
		return marshalSlice(v.list.Snapshot())
	case KindSet:
		return marshalSlice(v.set.Items())
	case KindDict:
		return marshalDict(v.dict)
	case KindCallable:
		return json.Marshal(v.callable.Fingerprint())
	default:
		return nil, fmt.Errorf("value: cannot marshal kind %s", v.kind)
	}
}

func marshalSlice(items []Value) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, e := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := e.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalDict(d *Dict) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range d.Items() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyStr, err := dictKeyString(e.Key)
		if err != nil {
			return nil, err
		}
		kb, _ := json.Marshal(keyStr)
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := e.Val.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func dictKeyString(key Value) (string, error) {
	switch key.kind {
	case KindStr:
		return key.s, nil
	case KindInt:
		return key.i.AsBigInt().String(), nil
	case KindBool:
		if key.b {
			return "true", nil
		}
		return "false", nil
	default:
		return "", fmt.Errorf("value: dict key of kind %s cannot render as a JSON object key", key.kind)
	}
}

// FromJSON converts a decoded Go JSON value (as produced by
// encoding/json.Unmarshal into interface{}) into a Value tree. Objects
// become Dict (string keys), arrays become List, numbers become Int when
// integral and representable, otherwise Float.
func FromJSON(raw interface{}) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null, nil
	case bool:
		return Bool(x), nil
	case string:
		return Str(x), nil
	case float64:
		if x == float64(int64(x)) {
			return IntFromInt64(int64(x)), nil
		}
		return Float(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return IntFromInt64(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return Value{}, err
		}
		return Float(f), nil
	case []interface{}:
		list := NewList()
		l, _ := list.AsList()
		for _, e := range x {
			ev, err := FromJSON(e)
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
			vv, err := FromJSON(val)
			if err != nil {
				return Value{}, err
			}
			if err := dd.Set(Str(k), vv); err != nil {
				return Value{}, err
			}
		}
		return d, nil
	default:
		return Value{}, fmt.Errorf("value: cannot convert %T from JSON", raw)
	}
}
