package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/archipelago-mw/aprs-server/internal/protocol"
	"github.com/archipelago-mw/aprs-server/internal/slotstate"
	"github.com/archipelago-mw/aprs-server/internal/storage"
	"github.com/archipelago-mw/aprs-server/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLoadMissingFileIsNotAnError(t *testing.T) {
	eng := storage.New()
	slots := slotstate.NewTable(slotstate.Locations{})

	found, err := TryLoad(filepath.Join(t.TempDir(), "missing.bin"), eng, slots)

	require.NoError(t, err)
	assert.False(t, found)
}

func TestSaveThenLoadRoundTripsValuesAndSlotState(t *testing.T) {
	eng := storage.New()
	_, err := eng.Apply("score", value.IntFromInt64(0), []protocol.SetOperation{
		{Operation: "replace", Value: value.IntFromInt64(7)},
	})
	require.NoError(t, err)
	_, err = eng.Apply("name", value.Null, []protocol.SetOperation{
		{Operation: "replace", Value: value.Str("hello")},
	})
	require.NoError(t, err)

	locs := slotstate.Locations{
		1: {100: {Item: 9, Slot: 2}},
		2: {200: {Item: 8, Slot: 1}},
	}
	slots := slotstate.NewTable(locs)
	slots.CheckLocation(1, 100, locs)

	dir := t.TempDir()
	path := filepath.Join(dir, "state.bin")
	require.NoError(t, Save(path, eng, slots))

	loadedEng := storage.New()
	loadedSlots := slotstate.NewTable(slotstate.Locations{})
	found, err := TryLoad(path, loadedEng, loadedSlots)
	require.NoError(t, err)
	assert.True(t, found)

	score, ok := loadedEng.Get("score")
	require.True(t, ok)
	assert.True(t, value.Equals(value.IntFromInt64(7), score))

	name, ok := loadedEng.Get("name")
	require.True(t, ok)
	assert.True(t, value.Equals(value.Str("hello"), name))

	slot1 := loadedSlots.State(1)
	require.NotNil(t, slot1)
	_, stillMissing := slot1.Missing[100]
	assert.False(t, stillMissing)
	_, checked := slot1.Checked[100]
	assert.True(t, checked)

	slot2 := loadedSlots.State(2)
	require.NotNil(t, slot2)
	require.Len(t, slot2.Received, 1)
	assert.Equal(t, protocol.ItemId(9), slot2.Received[0].Item)
}

func TestSaveLeavesNoTempFileBehindOnSuccess(t *testing.T) {
	eng := storage.New()
	slots := slotstate.NewTable(slotstate.Locations{})
	dir := t.TempDir()
	path := filepath.Join(dir, "state.bin")

	require.NoError(t, Save(path, eng, slots))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.bin", entries[0].Name())
}

func TestSaveOverwritesPreviousSnapshotAtomically(t *testing.T) {
	eng := storage.New()
	slots := slotstate.NewTable(slotstate.Locations{})
	dir := t.TempDir()
	path := filepath.Join(dir, "state.bin")

	_, err := eng.Apply("score", value.IntFromInt64(0), []protocol.SetOperation{
		{Operation: "replace", Value: value.IntFromInt64(1)},
	})
	require.NoError(t, err)
	require.NoError(t, Save(path, eng, slots))

	_, err = eng.Apply("score", value.IntFromInt64(0), []protocol.SetOperation{
		{Operation: "replace", Value: value.IntFromInt64(2)},
	})
	require.NoError(t, err)
	require.NoError(t, Save(path, eng, slots))

	loadedEng := storage.New()
	loadedSlots := slotstate.NewTable(slotstate.Locations{})
	found, err := TryLoad(path, loadedEng, loadedSlots)
	require.NoError(t, err)
	require.True(t, found)

	score, ok := loadedEng.Get("score")
	require.True(t, ok)
	assert.True(t, value.Equals(value.IntFromInt64(2), score))
}
