// Package persistence snapshots the server's mutable state — the
// data-storage table and the per-slot location/received-item partitions —
// to a single zstd-compressed MessagePack file, and restores it at startup.
// The file is owned exclusively by the router task the same way the state
// it carries is: Save is only ever called from the router's own checkpoint
// and shutdown paths.
package persistence

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/archipelago-mw/aprs-server/internal/protocol"
	"github.com/archipelago-mw/aprs-server/internal/slotstate"
	"github.com/archipelago-mw/aprs-server/internal/storage"
	"github.com/archipelago-mw/aprs-server/internal/value"
	"github.com/hashicorp/go-msgpack/v2/codec"
	"github.com/klauspost/compress/zstd"
)

const filePerms = 0o644

// persistedSlotState is SlotState's wire shape: Missing/Checked are sets in
// memory but plain slices on disk, since MessagePack has no native set type
// and a map[LocationId]struct{} round-trips awkwardly through codec.
type persistedSlotState struct {
	Missing  []protocol.LocationId
	Checked  []protocol.LocationId
	Received []protocol.NetworkItem
}

// serverState is the full snapshot payload.
type serverState struct {
	Values map[string]interface{}
	Slots  map[protocol.SlotId]persistedSlotState
}

var msgpackHandle codec.MsgpackHandle

// Save snapshots eng and slots to path, writing to a temp file in the same
// directory and renaming over the final path so a crash mid-write never
// leaves a corrupt file in its place.
func Save(path string, eng *storage.Engine, slots *slotstate.Table) error {
	state, err := buildState(eng, slots)
	if err != nil {
		return fmt.Errorf("persistence: build snapshot: %w", err)
	}

	var raw bytes.Buffer
	enc := codec.NewEncoder(&raw, &msgpackHandle)
	if err := enc.Encode(state); err != nil {
		return fmt.Errorf("persistence: encode snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("persistence: create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	zw, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("persistence: create zstd writer: %w", err)
	}
	if _, err := zw.Write(raw.Bytes()); err != nil {
		zw.Close()
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("persistence: compress snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("persistence: flush zstd writer: %w", err)
	}
	if err := tmp.Chmod(filePerms); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("persistence: chmod temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("persistence: close temp snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("persistence: install snapshot: %w", err)
	}
	return nil
}

// TryLoad reads a previously-saved snapshot at path, restoring it into eng
// and slots. A missing file is not an error: found is false and eng/slots
// are left untouched, so the caller falls back to the freshly-seeded state.
func TryLoad(path string, eng *storage.Engine, slots *slotstate.Table) (found bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("persistence: open snapshot: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return false, fmt.Errorf("persistence: create zstd reader: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return false, fmt.Errorf("persistence: decompress snapshot: %w", err)
	}

	var state serverState
	dec := codec.NewDecoderBytes(raw, &msgpackHandle)
	if err := dec.Decode(&state); err != nil {
		return false, fmt.Errorf("persistence: decode snapshot: %w", err)
	}

	if err := restoreState(state, eng, slots); err != nil {
		return false, fmt.Errorf("persistence: restore snapshot: %w", err)
	}
	return true, nil
}

func buildState(eng *storage.Engine, slots *slotstate.Table) (serverState, error) {
	values := make(map[string]interface{}, len(eng.Snapshot()))
	for k, v := range eng.Snapshot() {
		plain, err := value.ToPlain(v)
		if err != nil {
			return serverState{}, fmt.Errorf("key %q: %w", k, err)
		}
		values[k] = plain
	}

	slotSnapshot := slots.Snapshot()
	out := make(map[protocol.SlotId]persistedSlotState, len(slotSnapshot))
	for slot, s := range slotSnapshot {
		missing := make([]protocol.LocationId, 0, len(s.Missing))
		for loc := range s.Missing {
			missing = append(missing, loc)
		}
		checked := make([]protocol.LocationId, 0, len(s.Checked))
		for loc := range s.Checked {
			checked = append(checked, loc)
		}
		out[slot] = persistedSlotState{Missing: missing, Checked: checked, Received: s.Received}
	}

	return serverState{Values: values, Slots: out}, nil
}

func restoreState(state serverState, eng *storage.Engine, slots *slotstate.Table) error {
	values := make(map[string]value.Value, len(state.Values))
	for k, plain := range state.Values {
		v, err := value.FromPlain(plain)
		if err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		values[k] = v
	}
	eng.Restore(values)

	slotStates := make(map[protocol.SlotId]*slotstate.SlotState, len(state.Slots))
	for slot, p := range state.Slots {
		missing := make(map[protocol.LocationId]struct{}, len(p.Missing))
		for _, loc := range p.Missing {
			missing[loc] = struct{}{}
		}
		checked := make(map[protocol.LocationId]struct{}, len(p.Checked))
		for _, loc := range p.Checked {
			checked[loc] = struct{}{}
		}
		slotStates[slot] = &slotstate.SlotState{Missing: missing, Checked: checked, Received: p.Received}
	}
	slots.Restore(slotStates)
	return nil
}
