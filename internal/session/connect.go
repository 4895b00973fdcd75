package session

import (
	"github.com/archipelago-mw/aprs-server/internal/protocol"
	"github.com/archipelago-mw/aprs-server/internal/seed"
	"github.com/archipelago-mw/aprs-server/internal/slotstate"
	"github.com/archipelago-mw/aprs-server/internal/value"
)

// exemptTags carries a client's Connect past the game and version checks —
// trackers, text-only clients, and hint-only clients don't run the target
// game and can't be held to its version floor.
var exemptTags = map[string]struct{}{
	"Tracker":  {},
	"TextOnly": {},
	"HintGame": {},
}

func hasExemptTag(tags []string) bool {
	for _, t := range tags {
		if _, ok := exemptTags[t]; ok {
			return true
		}
	}
	return false
}

// maxItemsHandling is the union of every defined ItemsHandling bit; any
// other bit set is malformed.
const maxItemsHandling = protocol.ItemsHandlingRemote | protocol.ItemsHandlingStartingInventory | protocol.ItemsHandlingOwnWorld

// ValidateConnect runs the handshake checks in the order the protocol
// requires, short-circuiting on the first failure. requiredPassword is nil
// when the server runs without a client password.
func ValidateConnect(c protocol.Connect, world *seed.MultiWorldRecord, requiredPassword *string) (errs []protocol.ConnectionError, target seed.ConnectTarget, info seed.SlotInfo, ok bool) {
	if requiredPassword != nil {
		if c.Password == nil || *c.Password != *requiredPassword {
			return []protocol.ConnectionError{protocol.ErrInvalidPassword}, seed.ConnectTarget{}, seed.SlotInfo{}, false
		}
	}

	target, found := world.ConnectNames[c.Name]
	if !found {
		return []protocol.ConnectionError{protocol.ErrInvalidSlot}, seed.ConnectTarget{}, seed.SlotInfo{}, false
	}
	info, found = world.SlotInfo[target.Slot]
	if !found {
		return []protocol.ConnectionError{protocol.ErrInvalidSlot}, seed.ConnectTarget{}, seed.SlotInfo{}, false
	}

	exempt := hasExemptTag(c.Tags)

	if info.Game != c.Game && !exempt {
		return []protocol.ConnectionError{protocol.ErrInvalidGame}, seed.ConnectTarget{}, seed.SlotInfo{}, false
	}

	if !exempt {
		if floor, hasFloor := world.MinimumVersions.Clients[target.Slot]; hasFloor && !c.Version.AtLeast(floor) {
			return []protocol.ConnectionError{protocol.ErrIncompatibleVersion}, seed.ConnectTarget{}, seed.SlotInfo{}, false
		}
	}

	if c.ItemsHandling&^maxItemsHandling != 0 {
		return []protocol.ConnectionError{protocol.ErrInvalidItemsHandling}, seed.ConnectTarget{}, seed.SlotInfo{}, false
	}

	return nil, target, info, true
}

// ApplyConnect records a validated Connect's slot/team/tags/items_handling
// onto the session and transitions it to Connected.
func (s *Session) ApplyConnect(c protocol.Connect, target seed.ConnectTarget, world *seed.MultiWorldRecord) {
	s.SlotId = target.Slot
	s.TeamId = target.Team
	s.ConnectName = c.Name
	s.Tags = c.Tags
	s.ItemsHandling = c.ItemsHandling
	s.StartingInventory = world.StartingInventorySet(target.Slot)
	s.State = Connected
}

// BuildConnected renders the success-path Connected message for this
// session, excluding the Players field (cross-session data only the router
// can assemble). HintPoints is taken as given from the hintPoints argument.
// SlotData is included only when the client asked for it.
func BuildConnected(s *Session, world *seed.MultiWorldRecord, slotTable *slotstate.Table, wantSlotData bool, hintPoints int) protocol.Connected {
	slotInfo := make(map[protocol.SlotId]protocol.NetworkSlot, len(world.SlotInfo))
	for id, info := range world.SlotInfo {
		slotInfo[id] = info.ToNetworkSlot()
	}

	state := slotTable.State(s.SlotId)
	var missing, checked []protocol.LocationId
	if state != nil {
		missing = make([]protocol.LocationId, 0, len(state.Missing))
		for loc := range state.Missing {
			missing = append(missing, loc)
		}
		checked = make([]protocol.LocationId, 0, len(state.Checked))
		for loc := range state.Checked {
			checked = append(checked, loc)
		}
	}

	var slotData value.Value
	if wantSlotData {
		slotData = world.SlotData[s.SlotId]
	}

	return protocol.Connected{
		Team:             s.TeamId,
		Slot:             s.SlotId,
		MissingLocations: missing,
		CheckedLocations: checked,
		SlotData:         slotData,
		SlotInfo:         slotInfo,
		HintPoints:       hintPoints,
	}
}
