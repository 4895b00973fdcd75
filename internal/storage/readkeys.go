package storage

import (
	"fmt"

	"github.com/archipelago-mw/aprs-server/internal/protocol"
)

// Read-only key prefixes routed to virtual providers rather than the table.
const (
	ReadHintsPrefix             = "_read_hints_"
	ReadSlotDataPrefix          = "_read_slot_data_"
	ReadItemNameGroupsPrefix    = "_read_item_name_groups_"
	ReadLocationNameGroupsPrefix = "_read_location_name_groups_"
	ReadClientStatusPrefix      = "_read_client_status_"
	ReadRaceMode                = "_read_race_mode"
)

// HintsKey names the `_read_hints_{team}_{slot}` key for one slot.
func HintsKey(team protocol.TeamId, slot protocol.SlotId) string {
	return fmt.Sprintf("%s%d_%d", ReadHintsPrefix, team, slot)
}

// SlotDataKey names the `_read_slot_data_{slot}` key for one slot.
func SlotDataKey(slot protocol.SlotId) string {
	return fmt.Sprintf("%s%d", ReadSlotDataPrefix, slot)
}

// ItemNameGroupsKey names the `_read_item_name_groups_{game}` key.
func ItemNameGroupsKey(game string) string { return ReadItemNameGroupsPrefix + game }

// LocationNameGroupsKey names the `_read_location_name_groups_{game}` key.
func LocationNameGroupsKey(game string) string { return ReadLocationNameGroupsPrefix + game }

// ClientStatusKey names the `_read_client_status_{team}_{slot}` key.
func ClientStatusKey(team protocol.TeamId, slot protocol.SlotId) string {
	return fmt.Sprintf("%s%d_%d", ReadClientStatusPrefix, team, slot)
}
