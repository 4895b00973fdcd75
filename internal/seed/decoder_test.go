package seed

import (
	"archive/zip"
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/archipelago-mw/aprs-server/internal/protocol"
	"github.com/archipelago-mw/aprs-server/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dictOf(pairs ...value.Value) value.Value {
	d := value.NewDict()
	dd, _ := d.AsDict()
	for i := 0; i+1 < len(pairs); i += 2 {
		_ = dd.Set(pairs[i], pairs[i+1])
	}
	return d
}

func listOf(elems ...value.Value) value.Value {
	l := value.NewList()
	ll, _ := l.AsList()
	ll.Extend(elems)
	return l
}

func versionDict(major, minor, patch int64) value.Value {
	return dictOf(
		value.Str("major"), value.IntFromInt64(major),
		value.Str("minor"), value.IntFromInt64(minor),
		value.Str("patch"), value.IntFromInt64(patch),
	)
}

func minimalMultiData() value.Value {
	slotInfo := dictOf(
		value.IntFromInt64(1), dictOf(
			value.Str("name"), value.Str("Alice"),
			value.Str("game"), value.Str("GameA"),
			value.Str("type"), value.IntFromInt64(1),
			value.Str("group_members"), listOf(),
		),
	)

	slotData := dictOf(value.IntFromInt64(1), value.NewDict())

	connectNames := dictOf(
		value.Str("Alice"), value.NewTuple(value.IntFromInt64(0), value.IntFromInt64(1)),
	)

	gameData := dictOf(
		value.Str("checksum"), value.Str("abc123"),
		value.Str("item_name_to_id"), dictOf(value.Str("Sword"), value.IntFromInt64(1)),
		value.Str("location_name_to_id"), dictOf(value.Str("Chest"), value.IntFromInt64(100)),
	)
	dataPackage := dictOf(value.Str("GameA"), gameData)

	locationsForSlot := dictOf(
		value.IntFromInt64(100), value.NewTuple(value.IntFromInt64(5), value.IntFromInt64(1), value.IntFromInt64(0)),
	)
	locations := dictOf(value.IntFromInt64(1), locationsForSlot)

	precollected := dictOf(value.IntFromInt64(1), listOf(value.IntFromInt64(7)))

	minVersions := dictOf(
		value.Str("server"), versionDict(0, 5, 1),
		value.Str("clients"), dictOf(value.IntFromInt64(1), versionDict(0, 5, 0)),
	)

	return dictOf(
		value.Str("slot_info"), slotInfo,
		value.Str("slot_data"), slotData,
		value.Str("connect_names"), connectNames,
		value.Str("datapackage"), dataPackage,
		value.Str("locations"), locations,
		value.Str("precollected_items"), precollected,
		value.Str("seed_name"), value.Str("SEEDABC"),
		value.Str("minimum_versions"), minVersions,
		value.Str("version"), value.NewTuple(value.IntFromInt64(0), value.IntFromInt64(5), value.IntFromInt64(1)),
	)
}

func TestProjectMinimalRecordFields(t *testing.T) {
	rec, err := project(minimalMultiData())
	require.NoError(t, err)

	require.Contains(t, rec.SlotInfo, protocol.SlotId(1))
	assert.Equal(t, "Alice", rec.SlotInfo[1].Name)
	assert.Equal(t, "GameA", rec.SlotInfo[1].Game)
	assert.Equal(t, protocol.SlotType(1), rec.SlotInfo[1].Type)

	target, ok := rec.ConnectNames["Alice"]
	require.True(t, ok)
	assert.Equal(t, protocol.TeamId(0), target.Team)
	assert.Equal(t, protocol.SlotId(1), target.Slot)

	gd, ok := rec.DataPackage["GameA"]
	require.True(t, ok)
	assert.Equal(t, "abc123", gd.Checksum)
	assert.Equal(t, protocol.ItemId(1), gd.ItemNameToId["Sword"])
	assert.Equal(t, protocol.LocationId(100), gd.LocationNameToId["Chest"])
	assert.Empty(t, gd.ItemNameGroups)
	assert.Empty(t, gd.LocationNameGroups)

	award := rec.Locations[1][100]
	assert.Equal(t, protocol.ItemId(5), award.Item)
	assert.Equal(t, protocol.SlotId(1), award.Slot)
	assert.Equal(t, protocol.ItemFlags(0), award.Flags)

	assert.Equal(t, []protocol.ItemId{7}, rec.PrecollectedItems[1])
	assert.Equal(t, "SEEDABC", rec.SeedName)

	assert.Equal(t, protocol.Version{Major: 0, Minor: 5, Build: 1}, rec.MinimumVersions.Server)
	assert.Equal(t, protocol.Version{Major: 0, Minor: 5, Build: 0}, rec.MinimumVersions.Clients[1])
	assert.Equal(t, protocol.Version{Major: 0, Minor: 5, Build: 1}, rec.GeneratorVersion)
}

func TestProjectDataPackageAcceptsGroupFields(t *testing.T) {
	root := minimalMultiData()
	dict, _ := root.AsDict()
	dp, _ := dict.Get(value.Str("datapackage"))
	dpDict, _ := dp.AsDict()
	gameData, _ := dpDict.Get(value.Str("GameA"))
	gdDict, _ := gameData.AsDict()
	require.NoError(t, gdDict.Set(value.Str("item_name_groups"), dictOf(value.Str("Swords"), listOf(value.Str("Sword")))))

	rec, err := project(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sword"}, rec.DataPackage["GameA"].ItemNameGroups["Swords"])
}

func TestProjectRejectsNonDictRoot(t *testing.T) {
	_, err := project(value.IntFromInt64(1))
	require.Error(t, err)
	var fe *SchemaError
	assert.ErrorAs(t, err, &fe)
}

func TestProjectRejectsMissingRequiredKey(t *testing.T) {
	root := minimalMultiData()
	dict, _ := root.AsDict()
	dict.Delete(value.Str("seed_name"))

	_, err := project(root)
	require.Error(t, err)
}

func TestFindClassFrozensetBuildsSet(t *testing.T) {
	callableVal, err := findClass("builtins", "frozenset")
	require.NoError(t, err)
	callable, err := callableVal.AsCallable()
	require.NoError(t, err)

	result, err := callable.Call([]value.Value{listOf(value.IntFromInt64(1), value.IntFromInt64(2))})
	require.NoError(t, err)
	assert.Equal(t, value.KindSet, result.Kind())
	set, _ := result.AsSet()
	assert.Equal(t, 2, set.Len())
}

func TestFindClassUnknownClassPassesArgsThrough(t *testing.T) {
	callableVal, err := findClass("worlds.generic", "SomeNamedTuple")
	require.NoError(t, err)
	callable, err := callableVal.AsCallable()
	require.NoError(t, err)

	result, err := callable.Call([]value.Value{value.IntFromInt64(1), value.IntFromInt64(2), value.IntFromInt64(3)})
	require.NoError(t, err)
	tup, err := result.AsTuple()
	require.NoError(t, err)
	assert.Len(t, tup, 3)
}

func TestLoadRejectsWrongFormatByte(t *testing.T) {
	_, err := Load([]byte{2, 0, 0, 0})
	require.Error(t, err)
	var fe *SchemaError
	assert.ErrorAs(t, err, &fe)
}

func TestLoadRejectsEmptyData(t *testing.T) {
	_, err := Load(nil)
	require.Error(t, err)
}

// zlibWrap compresses raw and prepends the multidata format byte, producing
// the shape Load expects when no zip wrapper is present.
func zlibWrap(t *testing.T, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteByte(expectedFormatVersion)
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestLoadDecodesZlibWrappedPickle(t *testing.T) {
	// EMPTY_DICT, MARK, SHORT_BINUNICODE "seed_name", SHORT_BINUNICODE "S", SETITEMS, STOP
	key := "seed_name"
	raw := []byte{}
	raw = append(raw, '}')
	raw = append(raw, '(')
	raw = append(raw, 0x8c, byte(len(key)))
	raw = append(raw, key...)
	raw = append(raw, 0x8c, byte(len("S")))
	raw = append(raw, "S"...)
	raw = append(raw, 'u')
	raw = append(raw, '.')

	_, err := Load(zlibWrap(t, raw))
	// The minimal dict is missing every other required key, so projection
	// fails, but decoding the zlib+pickle envelope itself must succeed far
	// enough to surface that as a SchemaError, not a zlib/pickle error.
	require.Error(t, err)
	var fe *SchemaError
	assert.ErrorAs(t, err, &fe)
}

func TestLoadUnwrapsZipArchive(t *testing.T) {
	key := "seed_name"
	raw := []byte{}
	raw = append(raw, '}')
	raw = append(raw, '(')
	raw = append(raw, 0x8c, byte(len(key)))
	raw = append(raw, key...)
	raw = append(raw, 0x8c, byte(len("S")))
	raw = append(raw, "S"...)
	raw = append(raw, 'u')
	raw = append(raw, '.')
	blob := zlibWrap(t, raw)

	var zipBuf bytes.Buffer
	zw := zip.NewWriter(&zipBuf)
	w, err := zw.Create("room-1.archipelago")
	require.NoError(t, err)
	_, err = w.Write(blob)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = Load(zipBuf.Bytes())
	require.Error(t, err)
	var fe *SchemaError
	assert.ErrorAs(t, err, &fe)
}

func TestUnwrapZipFailsWithoutArchipelagoMember(t *testing.T) {
	var zipBuf bytes.Buffer
	zw := zip.NewWriter(&zipBuf)
	w, err := zw.Create("readme.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = Load(zipBuf.Bytes())
	require.Error(t, err)
}
