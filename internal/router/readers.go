package router

import (
	"github.com/archipelago-mw/aprs-server/internal/protocol"
	"github.com/archipelago-mw/aprs-server/internal/storage"
	"github.com/archipelago-mw/aprs-server/internal/value"
)

// registerReadProviders wires every `_read_*` virtual key family to the
// state that actually answers it: slot_data and the name-group tables come
// straight from the loaded world, client_status and hints are router-local
// state no ordinary Set ever touches, and race_mode is a fixed constant
// since this system has no race-mode feature.
func (r *Router) registerReadProviders() {
	r.storage.RegisterReader(storage.ReadSlotDataPrefix, r.readSlotData)
	r.storage.RegisterReader(storage.ReadItemNameGroupsPrefix, r.readItemNameGroups)
	r.storage.RegisterReader(storage.ReadLocationNameGroupsPrefix, r.readLocationNameGroups)
	r.storage.RegisterReader(storage.ReadClientStatusPrefix, r.readClientStatus)
	r.storage.RegisterReader(storage.ReadHintsPrefix, r.readHints)
	r.storage.RegisterReader(storage.ReadRaceMode, r.readRaceMode)
}

func (r *Router) readSlotData(key string) (value.Value, bool) {
	for slot, data := range r.world.SlotData {
		if storage.SlotDataKey(slot) == key {
			return data, true
		}
	}
	return value.Value{}, false
}

func (r *Router) readItemNameGroups(key string) (value.Value, bool) {
	for game, gd := range r.world.DataPackage {
		if storage.ItemNameGroupsKey(game) == key {
			return nameGroupsToValue(gd.ItemNameGroups), true
		}
	}
	return value.Value{}, false
}

func (r *Router) readLocationNameGroups(key string) (value.Value, bool) {
	for game, gd := range r.world.DataPackage {
		if storage.LocationNameGroupsKey(game) == key {
			return nameGroupsToValue(gd.LocationNameGroups), true
		}
	}
	return value.Value{}, false
}

func nameGroupsToValue(groups map[string][]string) value.Value {
	dict := value.NewDict()
	d, _ := dict.AsDict()
	for name, members := range groups {
		list := value.NewList()
		l, _ := list.AsList()
		for _, m := range members {
			l.Append(value.Str(m))
		}
		_ = d.Set(value.Str(name), list)
	}
	return dict
}

func (r *Router) readClientStatus(key string) (value.Value, bool) {
	v, ok := r.clientStatus[key]
	return v, ok
}

func (r *Router) readRaceMode(key string) (value.Value, bool) {
	if key != storage.ReadRaceMode {
		return value.Value{}, false
	}
	return value.Bool(false), true
}

func (r *Router) readHints(key string) (value.Value, bool) {
	entries, ok := r.hints[key]
	if !ok {
		return value.NewList(), true
	}
	list := value.NewList()
	l, _ := list.AsList()
	for _, h := range entries {
		l.Append(h)
	}
	return list, true
}

// recordHint appends a hint record to the receiving slot's hint log, as
// scouted via a LocationScouts create_as_hint request.
func (r *Router) recordHint(team protocol.TeamId, receivingSlot protocol.SlotId, item protocol.ItemId, loc protocol.LocationId, findingSlot protocol.SlotId, flags protocol.ItemFlags) {
	dict := value.NewDict()
	d, _ := dict.AsDict()
	_ = d.Set(value.Str("receiving_player"), value.IntFromInt64(int64(receivingSlot)))
	_ = d.Set(value.Str("finding_player"), value.IntFromInt64(int64(findingSlot)))
	_ = d.Set(value.Str("location"), value.IntFromInt64(int64(loc)))
	_ = d.Set(value.Str("item"), value.IntFromInt64(int64(item)))
	_ = d.Set(value.Str("item_flags"), value.IntFromInt64(int64(flags)))
	_ = d.Set(value.Str("found"), value.Bool(false))

	key := storage.HintsKey(team, receivingSlot)
	r.hints[key] = append(r.hints[key], dict)
}
