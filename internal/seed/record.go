// Package seed loads a seed blob (a zlib-compressed, optionally
// zip-wrapped pickle stream) and projects it into the MultiWorldRecord the
// rest of the server reads for the lifetime of the run.
package seed

import (
	"github.com/archipelago-mw/aprs-server/internal/protocol"
	"github.com/archipelago-mw/aprs-server/internal/slotstate"
	"github.com/archipelago-mw/aprs-server/internal/value"
)

// SlotInfo is one slot's static identity, as carried in RoomInfo/Connected's
// slot_info map.
type SlotInfo struct {
	Name         string
	Game         string
	Type         protocol.SlotType
	GroupMembers []protocol.SlotId
}

// ToNetworkSlot projects a SlotInfo to its wire representation.
func (s SlotInfo) ToNetworkSlot() protocol.NetworkSlot {
	return protocol.NetworkSlot{Name: s.Name, Game: s.Game, Type: s.Type, GroupMembers: s.GroupMembers}
}

// GameData is one game's data-package entry: its checksum and name/id/group
// tables.
type GameData struct {
	Checksum           string
	ItemNameToId       map[string]protocol.ItemId
	LocationNameToId   map[string]protocol.LocationId
	ItemNameGroups     map[string][]string
	LocationNameGroups map[string][]string
}

// ConnectTarget is the (team, slot) a connect_names entry resolves to.
type ConnectTarget struct {
	Team protocol.TeamId
	Slot protocol.SlotId
}

// MinimumVersions holds the server's own version and the per-slot floor a
// connecting client must meet.
type MinimumVersions struct {
	Server  protocol.Version
	Clients map[protocol.SlotId]protocol.Version
}

// MultiWorldRecord is the immutable, seed-derived description of the run:
// every slot's identity and data, the name tables needed to resolve a
// Connect, and the location-to-award table slotstate folds checks through.
type MultiWorldRecord struct {
	SlotInfo          map[protocol.SlotId]SlotInfo
	SlotData          map[protocol.SlotId]value.Value
	ConnectNames      map[string]ConnectTarget
	DataPackage       map[string]GameData
	Locations         slotstate.Locations
	PrecollectedItems map[protocol.SlotId][]protocol.ItemId
	SeedName          string
	MinimumVersions   MinimumVersions
	GeneratorVersion  protocol.Version
}

// StartingInventorySet returns slot's precollected items as a lookup set,
// used by the item-sync filter's starting-inventory exemption.
func (r *MultiWorldRecord) StartingInventorySet(slot protocol.SlotId) map[protocol.ItemId]struct{} {
	items := r.PrecollectedItems[slot]
	set := make(map[protocol.ItemId]struct{}, len(items))
	for _, id := range items {
		set[id] = struct{}{}
	}
	return set
}
