// Package slotstate tracks, per slot, which locations remain to be checked
// and the append-only log of items received by that slot. Like
// internal/storage, a Table is mutated only by the router task; it carries
// no locking of its own.
package slotstate

import "github.com/archipelago-mw/aprs-server/internal/protocol"

// LocationAward is the item a slot's world hands out at one of its
// locations, and which slot receives it — the projected form of the seed's
// `locations[slot][loc]` entry.
type LocationAward struct {
	Item  protocol.ItemId
	Slot  protocol.SlotId
	Flags protocol.ItemFlags
}

// Locations is the seed-derived, read-only award table: the world slot that
// owns a location maps to the location's award.
type Locations map[protocol.SlotId]map[protocol.LocationId]LocationAward

// CheckResult reports whether a check_location call actually moved a
// location from missing to checked.
type CheckResult int

const (
	Unchecked CheckResult = iota
	AlreadyChecked
)

// SlotState is one slot's missing/checked partition and received log.
type SlotState struct {
	Missing  map[protocol.LocationId]struct{}
	Checked  map[protocol.LocationId]struct{}
	Received []protocol.NetworkItem
}

// Table holds every slot's SlotState, keyed by SlotId.
type Table struct {
	slots map[protocol.SlotId]*SlotState
}

// NewTable builds an all-missing Table: every location named in locs starts
// in that slot's missing set, with empty checked and received.
func NewTable(locs Locations) *Table {
	t := &Table{slots: make(map[protocol.SlotId]*SlotState, len(locs))}
	for slot, awards := range locs {
		s := &SlotState{
			Missing: make(map[protocol.LocationId]struct{}, len(awards)),
			Checked: make(map[protocol.LocationId]struct{}),
		}
		for loc := range awards {
			s.Missing[loc] = struct{}{}
		}
		t.slots[slot] = s
	}
	return t
}

// Restore installs a previously-persisted set of SlotStates wholesale,
// replacing any state NewTable seeded.
func (t *Table) Restore(slots map[protocol.SlotId]*SlotState) { t.slots = slots }

// Snapshot returns the full per-slot state table, for persistence. Callers
// must not mutate the returned map or its SlotStates.
func (t *Table) Snapshot() map[protocol.SlotId]*SlotState { return t.slots }

// State returns the SlotState for slot, or nil if the slot is unknown.
func (t *Table) State(slot protocol.SlotId) *SlotState { return t.slots[slot] }

// CheckLocation moves loc from checkerSlot's missing set to its checked set
// and, on a fresh check, enqueues the award from locs into the recipient
// slot's received log (the recipient may be the checker itself). Checking a
// location already in the checked set is a no-op reported as AlreadyChecked.
func (t *Table) CheckLocation(checkerSlot protocol.SlotId, loc protocol.LocationId, locs Locations) CheckResult {
	s := t.slots[checkerSlot]
	if s == nil {
		return AlreadyChecked
	}
	if _, missing := s.Missing[loc]; !missing {
		return AlreadyChecked
	}
	delete(s.Missing, loc)
	s.Checked[loc] = struct{}{}

	award, ok := locs[checkerSlot][loc]
	if !ok {
		return Unchecked
	}
	recipient := t.slots[award.Slot]
	if recipient == nil {
		return Unchecked
	}
	recipient.Received = append(recipient.Received, protocol.NetworkItem{
		Item:     award.Item,
		Location: loc,
		Player:   checkerSlot,
		Flags:    award.Flags,
	})
	return Unchecked
}

// ReceivedItems returns slot's full append-only received log. Callers index
// it with their own watermark rather than mutating or truncating it.
func (t *Table) ReceivedItems(slot protocol.SlotId) []protocol.NetworkItem {
	s := t.slots[slot]
	if s == nil {
		return nil
	}
	return s.Received
}
