package storage

import (
	"testing"

	"github.com/archipelago-mw/aprs-server/internal/protocol"
	"github.com/archipelago-mw/aprs-server/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func op(name string, v value.Value) protocol.SetOperation {
	return protocol.SetOperation{Operation: name, Value: v}
}

func TestApplyMaterializesDefaultThenFolds(t *testing.T) {
	e := New()
	res, err := e.Apply("k", value.IntFromInt64(0), []protocol.SetOperation{op("add", value.IntFromInt64(5))})
	require.NoError(t, err)
	assert.Equal(t, value.IntFromInt64(0), res.Original)
	got, ok := e.Get("k")
	require.True(t, ok)
	assert.True(t, value.Equals(value.IntFromInt64(5), got))
	assert.True(t, value.Equals(value.IntFromInt64(5), res.New))
}

func TestApplyUsesStoredValueNotDefaultOnSubsequentSet(t *testing.T) {
	e := New()
	_, err := e.Apply("k", value.IntFromInt64(0), []protocol.SetOperation{op("add", value.IntFromInt64(5))})
	require.NoError(t, err)
	res, err := e.Apply("k", value.IntFromInt64(999), []protocol.SetOperation{op("add", value.IntFromInt64(1))})
	require.NoError(t, err)
	assert.True(t, value.Equals(value.IntFromInt64(5), res.Original))
	assert.True(t, value.Equals(value.IntFromInt64(6), res.New))
}

func TestApplyAbortsWithoutMutationOnTypeMismatch(t *testing.T) {
	e := New()
	_, err := e.Apply("k", value.IntFromInt64(0), []protocol.SetOperation{op("add", value.IntFromInt64(5))})
	require.NoError(t, err)

	_, err = e.Apply("k", value.IntFromInt64(0), []protocol.SetOperation{
		op("add", value.IntFromInt64(1)),
		op("update", value.Str("not a dict")),
	})
	require.Error(t, err)

	got, ok := e.Get("k")
	require.True(t, ok)
	assert.True(t, value.Equals(value.IntFromInt64(5), got), "storage must retain its pre-Set value on abort")
}

func TestApplyReplace(t *testing.T) {
	e := New()
	_, err := e.Apply("k", value.Null, []protocol.SetOperation{op("replace", value.Str("hello"))})
	require.NoError(t, err)
	got, _ := e.Get("k")
	assert.True(t, value.Equals(value.Str("hello"), got))
}

func TestApplyUpdateMergesDict(t *testing.T) {
	e := New()
	base := value.NewDict()
	d, _ := base.AsDict()
	require.NoError(t, d.Set(value.Str("a"), value.IntFromInt64(1)))

	patch := value.NewDict()
	pd, _ := patch.AsDict()
	require.NoError(t, pd.Set(value.Str("b"), value.IntFromInt64(2)))

	_, err := e.Apply("k", base, []protocol.SetOperation{op("update", patch)})
	require.NoError(t, err)

	got, _ := e.Get("k")
	gd, err := got.AsDict()
	require.NoError(t, err)
	assert.Equal(t, 2, gd.Len())
}

func TestApplyPopListByIndex(t *testing.T) {
	e := New()
	l := value.NewList()
	list, _ := l.AsList()
	list.Append(value.IntFromInt64(10))
	list.Append(value.IntFromInt64(20))

	_, err := e.Apply("k", l, []protocol.SetOperation{op("pop", value.IntFromInt64(0))})
	require.NoError(t, err)

	got, _ := e.Get("k")
	gl, err := got.AsList()
	require.NoError(t, err)
	assert.Equal(t, 1, gl.Len())
}

func TestApplyRemoveFromSet(t *testing.T) {
	e := New()
	s := value.NewSet()
	set, _ := s.AsSet()
	require.NoError(t, set.Add(value.IntFromInt64(1)))
	require.NoError(t, set.Add(value.IntFromInt64(2)))

	_, err := e.Apply("k", s, []protocol.SetOperation{op("remove", value.IntFromInt64(1))})
	require.NoError(t, err)

	got, _ := e.Get("k")
	gs, err := got.AsSet()
	require.NoError(t, err)
	assert.Equal(t, 1, gs.Len())
}

func TestApplyUnknownOperationErrors(t *testing.T) {
	e := New()
	_, err := e.Apply("k", value.IntFromInt64(0), []protocol.SetOperation{op("frobnicate", value.Null)})
	assert.Error(t, err)
}

func TestGetOrdinaryKeyAbsent(t *testing.T) {
	e := New()
	_, ok := e.Get("nope")
	assert.False(t, ok)
}

func TestGetReadProviderDispatchesByPrefix(t *testing.T) {
	e := New()
	e.RegisterReader(ReadSlotDataPrefix, func(key string) (value.Value, bool) {
		if key == SlotDataKey(3) {
			return value.Str("slot-3-data"), true
		}
		return value.Value{}, false
	})

	v, ok := e.Get(SlotDataKey(3))
	require.True(t, ok)
	assert.True(t, value.Equals(value.Str("slot-3-data"), v))

	_, ok = e.Get(SlotDataKey(99))
	assert.False(t, ok)
}

func TestGetUnknownReadPrefixAbsent(t *testing.T) {
	e := New()
	_, ok := e.Get("_read_nonexistent_thing")
	assert.False(t, ok)
}
