package seed

import (
	"archive/zip"
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"strings"

	"github.com/archipelago-mw/aprs-server/internal/pickle"
	"github.com/archipelago-mw/aprs-server/internal/protocol"
	"github.com/archipelago-mw/aprs-server/internal/slotstate"
	"github.com/archipelago-mw/aprs-server/internal/value"
)

// expectedFormatVersion is the only multi-world blob version this decoder
// understands. A mismatch almost always means the seed was generated by an
// incompatible version of the generator.
const expectedFormatVersion = 3

// SchemaError reports a seed blob that is not shaped the way Load expects:
// a bad format byte, an archive with no .archipelago member, or a pickle
// root whose schema doesn't match MultiWorldRecord.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string { return "seed: " + e.Reason }

// Load decodes a raw seed file into a MultiWorldRecord. data may be either
// the format-byte-prefixed multidata blob directly, or a zip archive
// containing a single member whose name ends in ".archipelago" holding
// that blob.
func Load(data []byte) (*MultiWorldRecord, error) {
	if isZip(data) {
		unwrapped, err := unwrapZip(data)
		if err != nil {
			return nil, err
		}
		data = unwrapped
	}

	if len(data) == 0 {
		return nil, &SchemaError{Reason: "empty seed data"}
	}
	if data[0] != expectedFormatVersion {
		return nil, &SchemaError{Reason: fmt.Sprintf("unsupported multidata format version %d", data[0])}
	}

	zr, err := zlib.NewReader(bytes.NewReader(data[1:]))
	if err != nil {
		return nil, &SchemaError{Reason: "not a zlib stream: " + err.Error()}
	}
	defer zr.Close()
	plain, err := io.ReadAll(zr)
	if err != nil {
		return nil, &SchemaError{Reason: "truncated zlib stream: " + err.Error()}
	}

	root, err := pickle.Unpickle(plain, findClass)
	if err != nil {
		return nil, err
	}

	return project(root)
}

func isZip(data []byte) bool {
	return len(data) >= 4 && data[0] == 'P' && data[1] == 'K' && data[2] == 0x03 && data[3] == 0x04
}

func unwrapZip(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &SchemaError{Reason: "not a valid zip archive: " + err.Error()}
	}
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".archipelago") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, &SchemaError{Reason: "could not open " + f.Name + ": " + err.Error()}
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, &SchemaError{Reason: "zip archive has no .archipelago member"}
}

// findClass resolves every STACK_GLOBAL reference the multidata
// pickle can contain. None of them need real reconstruction: the
// reference generator pickles version tuples and similar simple records as
// plain constructor calls, so a callable that forwards its positional
// arguments straight through (as a tuple, or the bare value for a
// single-argument constructor) reproduces exactly the shape MultiData's
// own deserializer expects, without this package needing to enumerate the
// generator's internal class names.
func findClass(module, name string) (value.Value, error) {
	if isFrozensetClass(module, name) {
		return value.NewCallable(&value.Callable{
			Module: module,
			Name:   name,
			Invoke: reconstructFrozenset,
		}), nil
	}
	return value.NewCallable(&value.Callable{
		Module: module,
		Name:   name,
		Invoke: reconstructPassthrough,
	}), nil
}

func isFrozensetClass(module, name string) bool {
	return (module == "builtins" || module == "__builtin__") && name == "frozenset"
}

func reconstructFrozenset(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.NewSet(), nil
	}
	set := value.NewSet()
	sv, _ := set.AsSet()
	switch args[0].Kind() {
	case value.KindList:
		l, _ := args[0].AsList()
		for _, e := range l.Snapshot() {
			if err := sv.Add(e); err != nil {
				return value.Value{}, err
			}
		}
	case value.KindTuple:
		t, _ := args[0].AsTuple()
		for _, e := range t {
			if err := sv.Add(e); err != nil {
				return value.Value{}, err
			}
		}
	}
	return set, nil
}

func reconstructPassthrough(args []value.Value) (value.Value, error) {
	switch len(args) {
	case 0:
		return value.Null, nil
	case 1:
		return args[0], nil
	default:
		return value.NewTuple(args...), nil
	}
}

// project walks the decoded pickle tree, which is expected to be a single
// top-level Dict keyed exactly as MultiData.from_reader writes it, into a
// MultiWorldRecord.
func project(root value.Value) (*MultiWorldRecord, error) {
	dict, err := root.AsDict()
	if err != nil {
		return nil, &SchemaError{Reason: "multidata root is not a dict"}
	}

	slotInfo, err := projectSlotInfo(dict)
	if err != nil {
		return nil, err
	}
	slotData, err := projectSlotData(dict)
	if err != nil {
		return nil, err
	}
	connectNames, err := projectConnectNames(dict)
	if err != nil {
		return nil, err
	}
	dataPackage, err := projectDataPackage(dict)
	if err != nil {
		return nil, err
	}
	locations, err := projectLocations(dict)
	if err != nil {
		return nil, err
	}
	precollected, err := projectPrecollectedItems(dict)
	if err != nil {
		return nil, err
	}
	seedName, err := lookupStr(dict, "seed_name", false)
	if err != nil {
		return nil, err
	}
	minVersions, err := projectMinimumVersions(dict)
	if err != nil {
		return nil, err
	}
	generatorVersion, err := projectVersionField(dict, "version", false)
	if err != nil {
		return nil, err
	}

	return &MultiWorldRecord{
		SlotInfo:          slotInfo,
		SlotData:          slotData,
		ConnectNames:      connectNames,
		DataPackage:       dataPackage,
		Locations:         locations,
		PrecollectedItems: precollected,
		SeedName:          seedName,
		MinimumVersions:   minVersions,
		GeneratorVersion:  generatorVersion,
	}, nil
}

func lookup(dict *value.Dict, key string, optional bool) (value.Value, bool, error) {
	v, ok := dict.Get(value.Str(key))
	if !ok {
		if optional {
			return value.Value{}, false, nil
		}
		return value.Value{}, false, &SchemaError{Reason: "multidata is missing required key " + key}
	}
	return v, true, nil
}

func lookupStr(dict *value.Dict, key string, optional bool) (string, error) {
	v, ok, err := lookup(dict, key, optional)
	if err != nil || !ok {
		return "", err
	}
	s, err := v.AsStr()
	if err != nil {
		return "", &SchemaError{Reason: key + " is not a string"}
	}
	return s, nil
}

func asInt64(v value.Value, field string) (int64, error) {
	n, err := v.AsInt()
	if err != nil {
		return 0, &SchemaError{Reason: field + " is not an integer"}
	}
	return n.AsBigInt().Int64(), nil
}

func projectSlotInfo(dict *value.Dict) (map[protocol.SlotId]SlotInfo, error) {
	v, _, err := lookup(dict, "slot_info", false)
	if err != nil {
		return nil, err
	}
	d, err := v.AsDict()
	if err != nil {
		return nil, &SchemaError{Reason: "slot_info is not a dict"}
	}

	out := make(map[protocol.SlotId]SlotInfo, d.Len())
	for _, e := range d.Items() {
		slotID, err := asInt64(e.Key, "slot_info key")
		if err != nil {
			return nil, err
		}
		info, err := projectSlotInfoEntry(e.Val)
		if err != nil {
			return nil, err
		}
		out[protocol.SlotId(slotID)] = info
	}
	return out, nil
}

func projectSlotInfoEntry(v value.Value) (SlotInfo, error) {
	d, err := v.AsDict()
	if err != nil {
		return SlotInfo{}, &SchemaError{Reason: "slot_info entry is not a dict"}
	}

	name, err := lookupStr(d, "name", false)
	if err != nil {
		return SlotInfo{}, err
	}
	game, err := lookupStr(d, "game", false)
	if err != nil {
		return SlotInfo{}, err
	}
	typeVal, _, err := lookup(d, "type", false)
	if err != nil {
		return SlotInfo{}, err
	}
	typeNum, err := asInt64(typeVal, "slot_info[].type")
	if err != nil {
		return SlotInfo{}, err
	}

	var members []protocol.SlotId
	if gm, ok, err := lookup(d, "group_members", true); err != nil {
		return SlotInfo{}, err
	} else if ok {
		members, err = slotIdSequence(gm)
		if err != nil {
			return SlotInfo{}, err
		}
	}

	return SlotInfo{
		Name:         name,
		Game:         game,
		Type:         protocol.SlotType(typeNum),
		GroupMembers: members,
	}, nil
}

// slotIdSequence reads group_members, which the generator writes as either
// a list or a frozenset (decoded here as value.Set) of slot ids.
func slotIdSequence(v value.Value) ([]protocol.SlotId, error) {
	var elems []value.Value
	switch v.Kind() {
	case value.KindList:
		l, _ := v.AsList()
		elems = l.Snapshot()
	case value.KindSet:
		s, _ := v.AsSet()
		elems = s.Items()
	case value.KindTuple:
		t, _ := v.AsTuple()
		elems = t
	default:
		return nil, &SchemaError{Reason: "group_members is not a sequence"}
	}

	out := make([]protocol.SlotId, 0, len(elems))
	for _, e := range elems {
		n, err := asInt64(e, "group_members element")
		if err != nil {
			return nil, err
		}
		out = append(out, protocol.SlotId(n))
	}
	return out, nil
}

func projectSlotData(dict *value.Dict) (map[protocol.SlotId]value.Value, error) {
	v, _, err := lookup(dict, "slot_data", false)
	if err != nil {
		return nil, err
	}
	d, err := v.AsDict()
	if err != nil {
		return nil, &SchemaError{Reason: "slot_data is not a dict"}
	}

	out := make(map[protocol.SlotId]value.Value, d.Len())
	for _, e := range d.Items() {
		slotID, err := asInt64(e.Key, "slot_data key")
		if err != nil {
			return nil, err
		}
		out[protocol.SlotId(slotID)] = e.Val
	}
	return out, nil
}

// projectConnectNames reads connect_names, whose values are plain 2-tuples
// (team, slot) rather than dicts, since TeamAndSlot is a tuple-shaped
// struct in the reference generator.
func projectConnectNames(dict *value.Dict) (map[string]ConnectTarget, error) {
	v, _, err := lookup(dict, "connect_names", false)
	if err != nil {
		return nil, err
	}
	d, err := v.AsDict()
	if err != nil {
		return nil, &SchemaError{Reason: "connect_names is not a dict"}
	}

	out := make(map[string]ConnectTarget, d.Len())
	for _, e := range d.Items() {
		name, err := e.Key.AsStr()
		if err != nil {
			return nil, &SchemaError{Reason: "connect_names key is not a string"}
		}
		tup, err := e.Val.AsTuple()
		if err != nil || len(tup) != 2 {
			return nil, &SchemaError{Reason: "connect_names entry is not a (team, slot) tuple"}
		}
		team, err := asInt64(tup[0], "connect_names team")
		if err != nil {
			return nil, err
		}
		slot, err := asInt64(tup[1], "connect_names slot")
		if err != nil {
			return nil, err
		}
		out[name] = ConnectTarget{Team: protocol.TeamId(team), Slot: protocol.SlotId(slot)}
	}
	return out, nil
}

// projectDataPackage reads the data_package table, wire-keyed "datapackage".
// item_name_groups/location_name_groups may be absent on any given entry.
func projectDataPackage(dict *value.Dict) (map[string]GameData, error) {
	v, _, err := lookup(dict, "datapackage", false)
	if err != nil {
		return nil, err
	}
	d, err := v.AsDict()
	if err != nil {
		return nil, &SchemaError{Reason: "datapackage is not a dict"}
	}

	out := make(map[string]GameData, d.Len())
	for _, e := range d.Items() {
		game, err := e.Key.AsStr()
		if err != nil {
			return nil, &SchemaError{Reason: "datapackage key is not a string"}
		}
		gd, err := projectGameData(e.Val)
		if err != nil {
			return nil, err
		}
		out[game] = gd
	}
	return out, nil
}

func projectGameData(v value.Value) (GameData, error) {
	d, err := v.AsDict()
	if err != nil {
		return GameData{}, &SchemaError{Reason: "datapackage entry is not a dict"}
	}

	checksum, err := lookupStr(d, "checksum", false)
	if err != nil {
		return GameData{}, err
	}
	itemIds, err := stringToIntMap[protocol.ItemId](d, "item_name_to_id", false)
	if err != nil {
		return GameData{}, err
	}
	locationIds, err := stringToIntMap[protocol.LocationId](d, "location_name_to_id", false)
	if err != nil {
		return GameData{}, err
	}
	itemGroups, err := stringToStringListMap(d, "item_name_groups")
	if err != nil {
		return GameData{}, err
	}
	locationGroups, err := stringToStringListMap(d, "location_name_groups")
	if err != nil {
		return GameData{}, err
	}

	return GameData{
		Checksum:           checksum,
		ItemNameToId:       itemIds,
		LocationNameToId:   locationIds,
		ItemNameGroups:     itemGroups,
		LocationNameGroups: locationGroups,
	}, nil
}

type intLike interface{ ~int64 }

func stringToIntMap[T intLike](d *value.Dict, key string, optional bool) (map[string]T, error) {
	v, ok, err := lookup(d, key, optional)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]T{}, nil
	}
	inner, err := v.AsDict()
	if err != nil {
		return nil, &SchemaError{Reason: key + " is not a dict"}
	}
	out := make(map[string]T, inner.Len())
	for _, e := range inner.Items() {
		name, err := e.Key.AsStr()
		if err != nil {
			return nil, &SchemaError{Reason: key + " key is not a string"}
		}
		n, err := asInt64(e.Val, key+"["+name+"]")
		if err != nil {
			return nil, err
		}
		out[name] = T(n)
	}
	return out, nil
}

func stringToStringListMap(d *value.Dict, key string) (map[string][]string, error) {
	v, ok, err := lookup(d, key, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string][]string{}, nil
	}
	inner, err := v.AsDict()
	if err != nil {
		return nil, &SchemaError{Reason: key + " is not a dict"}
	}
	out := make(map[string][]string, inner.Len())
	for _, e := range inner.Items() {
		name, err := e.Key.AsStr()
		if err != nil {
			return nil, &SchemaError{Reason: key + " key is not a string"}
		}
		names, err := stringSequence(e.Val)
		if err != nil {
			return nil, err
		}
		out[name] = names
	}
	return out, nil
}

func stringSequence(v value.Value) ([]string, error) {
	var elems []value.Value
	switch v.Kind() {
	case value.KindList:
		l, _ := v.AsList()
		elems = l.Snapshot()
	case value.KindSet:
		s, _ := v.AsSet()
		elems = s.Items()
	case value.KindTuple:
		t, _ := v.AsTuple()
		elems = t
	default:
		return nil, &SchemaError{Reason: "expected a sequence of strings"}
	}
	out := make([]string, len(elems))
	for i, e := range elems {
		s, err := e.AsStr()
		if err != nil {
			return nil, &SchemaError{Reason: "sequence element is not a string"}
		}
		out[i] = s
	}
	return out, nil
}

// projectLocations reads locations, whose per-location value is a plain
// (item, slot, flags) tuple, since LocationInfo is tuple-shaped in the
// reference generator.
func projectLocations(dict *value.Dict) (slotstate.Locations, error) {
	v, _, err := lookup(dict, "locations", false)
	if err != nil {
		return nil, err
	}
	bySlot, err := v.AsDict()
	if err != nil {
		return nil, &SchemaError{Reason: "locations is not a dict"}
	}

	out := make(slotstate.Locations, bySlot.Len())
	for _, slotEntry := range bySlot.Items() {
		slotID, err := asInt64(slotEntry.Key, "locations key")
		if err != nil {
			return nil, err
		}
		byLoc, err := slotEntry.Val.AsDict()
		if err != nil {
			return nil, &SchemaError{Reason: "locations entry is not a dict"}
		}

		awards := make(map[protocol.LocationId]slotstate.LocationAward, byLoc.Len())
		for _, locEntry := range byLoc.Items() {
			locID, err := asInt64(locEntry.Key, "locations[] key")
			if err != nil {
				return nil, err
			}
			award, err := projectLocationAward(locEntry.Val)
			if err != nil {
				return nil, err
			}
			awards[protocol.LocationId(locID)] = award
		}
		out[protocol.SlotId(slotID)] = awards
	}
	return out, nil
}

func projectLocationAward(v value.Value) (slotstate.LocationAward, error) {
	tup, err := v.AsTuple()
	if err != nil || len(tup) != 3 {
		return slotstate.LocationAward{}, &SchemaError{Reason: "location award is not a (item, slot, flags) tuple"}
	}
	item, err := asInt64(tup[0], "location award item")
	if err != nil {
		return slotstate.LocationAward{}, err
	}
	slot, err := asInt64(tup[1], "location award slot")
	if err != nil {
		return slotstate.LocationAward{}, err
	}
	flags, err := asInt64(tup[2], "location award flags")
	if err != nil {
		return slotstate.LocationAward{}, err
	}
	return slotstate.LocationAward{
		Item:  protocol.ItemId(item),
		Slot:  protocol.SlotId(slot),
		Flags: protocol.ItemFlags(flags),
	}, nil
}

func projectPrecollectedItems(dict *value.Dict) (map[protocol.SlotId][]protocol.ItemId, error) {
	v, ok, err := lookup(dict, "precollected_items", true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[protocol.SlotId][]protocol.ItemId{}, nil
	}
	d, err := v.AsDict()
	if err != nil {
		return nil, &SchemaError{Reason: "precollected_items is not a dict"}
	}

	out := make(map[protocol.SlotId][]protocol.ItemId, d.Len())
	for _, e := range d.Items() {
		slotID, err := asInt64(e.Key, "precollected_items key")
		if err != nil {
			return nil, err
		}
		ids, err := intSequence[protocol.ItemId](e.Val)
		if err != nil {
			return nil, err
		}
		out[protocol.SlotId(slotID)] = ids
	}
	return out, nil
}

func intSequence[T intLike](v value.Value) ([]T, error) {
	var elems []value.Value
	switch v.Kind() {
	case value.KindList:
		l, _ := v.AsList()
		elems = l.Snapshot()
	case value.KindSet:
		s, _ := v.AsSet()
		elems = s.Items()
	case value.KindTuple:
		t, _ := v.AsTuple()
		elems = t
	default:
		return nil, &SchemaError{Reason: "expected a sequence of integers"}
	}
	out := make([]T, len(elems))
	for i, e := range elems {
		n, err := asInt64(e, "sequence element")
		if err != nil {
			return nil, err
		}
		out[i] = T(n)
	}
	return out, nil
}

func projectMinimumVersions(dict *value.Dict) (MinimumVersions, error) {
	v, _, err := lookup(dict, "minimum_versions", false)
	if err != nil {
		return MinimumVersions{}, err
	}
	d, err := v.AsDict()
	if err != nil {
		return MinimumVersions{}, &SchemaError{Reason: "minimum_versions is not a dict"}
	}

	server, err := projectVersionField(d, "server", false)
	if err != nil {
		return MinimumVersions{}, err
	}

	clients := map[protocol.SlotId]protocol.Version{}
	if cv, ok, err := lookup(d, "clients", true); err != nil {
		return MinimumVersions{}, err
	} else if ok {
		cd, err := cv.AsDict()
		if err != nil {
			return MinimumVersions{}, &SchemaError{Reason: "minimum_versions.clients is not a dict"}
		}
		for _, e := range cd.Items() {
			slotID, err := asInt64(e.Key, "minimum_versions.clients key")
			if err != nil {
				return MinimumVersions{}, err
			}
			ver, err := projectVersionValue(e.Val)
			if err != nil {
				return MinimumVersions{}, err
			}
			clients[protocol.SlotId(slotID)] = ver
		}
	}

	return MinimumVersions{Server: server, Clients: clients}, nil
}

func projectVersionField(dict *value.Dict, key string, optional bool) (protocol.Version, error) {
	v, ok, err := lookup(dict, key, optional)
	if err != nil {
		return protocol.Version{}, err
	}
	if !ok {
		return protocol.Version{}, nil
	}
	return projectVersionValue(v)
}

// projectVersionValue reads a {major, minor, patch} dict or a bare
// (major, minor, patch) tuple (the shape a pickled namedtuple decodes to
// once findClass forwards its constructor arguments through), remapping
// the wire field "patch" onto Version.Build.
func projectVersionValue(v value.Value) (protocol.Version, error) {
	switch v.Kind() {
	case value.KindDict:
		d, _ := v.AsDict()
		major, err := lookupInt(d, "major")
		if err != nil {
			return protocol.Version{}, err
		}
		minor, err := lookupInt(d, "minor")
		if err != nil {
			return protocol.Version{}, err
		}
		patch, err := lookupInt(d, "patch")
		if err != nil {
			return protocol.Version{}, err
		}
		return protocol.Version{Major: int(major), Minor: int(minor), Build: int(patch)}, nil
	case value.KindTuple:
		t, _ := v.AsTuple()
		if len(t) != 3 {
			return protocol.Version{}, &SchemaError{Reason: "version tuple does not have 3 elements"}
		}
		major, err := asInt64(t[0], "version.major")
		if err != nil {
			return protocol.Version{}, err
		}
		minor, err := asInt64(t[1], "version.minor")
		if err != nil {
			return protocol.Version{}, err
		}
		patch, err := asInt64(t[2], "version.patch")
		if err != nil {
			return protocol.Version{}, err
		}
		return protocol.Version{Major: int(major), Minor: int(minor), Build: int(patch)}, nil
	default:
		return protocol.Version{}, &SchemaError{Reason: "version value is neither a dict nor a tuple"}
	}
}

func lookupInt(d *value.Dict, key string) (int64, error) {
	v, _, err := lookup(d, key, false)
	if err != nil {
		return 0, err
	}
	return asInt64(v, key)
}
