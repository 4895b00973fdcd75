package protocol

import "encoding/json"

// SlotType is a bit flag set: empty means spectator.
type SlotType uint32

const (
	SlotTypePlayer SlotType = 1 << 0
	SlotTypeGroup  SlotType = 1 << 1
)

func (t SlotType) IsSpectator() bool { return t == 0 }
func (t SlotType) IsPlayer() bool    { return t&SlotTypePlayer != 0 }
func (t SlotType) IsGroup() bool     { return t&SlotTypeGroup != 0 }

// NetworkSlot describes one slot's static identity as seen by clients.
type NetworkSlot struct {
	Name          string          `json:"name"`
	Game          string          `json:"game"`
	Type          SlotType        `json:"type"`
	GroupMembers  []SlotId        `json:"group_members"`
}

func (s NetworkSlot) MarshalJSON() ([]byte, error) {
	type wire struct {
		Class        string   `json:"class"`
		Name         string   `json:"name"`
		Game         string   `json:"game"`
		Type         SlotType `json:"type"`
		GroupMembers []SlotId `json:"group_members"`
	}
	members := s.GroupMembers
	if members == nil {
		members = []SlotId{}
	}
	return json.Marshal(wire{Class: "NetworkSlot", Name: s.Name, Game: s.Game, Type: s.Type, GroupMembers: members})
}

// NetworkPlayer describes one connected (or previously connected) player,
// rendered for the Connected/RoomUpdate players list.
type NetworkPlayer struct {
	Team  TeamId `json:"team"`
	Slot  SlotId `json:"slot"`
	Alias string `json:"alias"`
	Name  string `json:"name"`
}

func (p NetworkPlayer) MarshalJSON() ([]byte, error) {
	type wire struct {
		Class string `json:"class"`
		Team  TeamId `json:"team"`
		Slot  SlotId `json:"slot"`
		Alias string `json:"alias"`
		Name  string `json:"name"`
	}
	return json.Marshal(wire{Class: "NetworkPlayer", Team: p.Team, Slot: p.Slot, Alias: p.Alias, Name: p.Name})
}

// ItemFlags is a bit flag set describing an awarded item's classification.
type ItemFlags uint64

// NetworkItem is one item delivered to (or scouted for) a client.
type NetworkItem struct {
	Item     ItemId     `json:"item"`
	Location LocationId `json:"location"`
	Player   SlotId     `json:"player"`
	Flags    ItemFlags  `json:"flags"`
}

// ClientStatus is the coarse progress reported by StatusUpdate.
type ClientStatus uint8

const (
	ClientStatusUnknown   ClientStatus = 0
	ClientStatusConnected ClientStatus = 5
	ClientStatusReady     ClientStatus = 10
	ClientStatusPlaying   ClientStatus = 20
	ClientStatusGoal      ClientStatus = 30
)

// CommandPermission gates the release/collect in-band commands.
type CommandPermission uint8

const (
	PermissionDisabled    CommandPermission = 0
	PermissionEnabled     CommandPermission = 1
	PermissionGoal        CommandPermission = 2
	PermissionAuto        CommandPermission = 6
	PermissionAutoEnabled CommandPermission = 7
)

// RemainingCommandPermission gates the `remaining` command (no Auto tiers).
type RemainingCommandPermission uint8

const (
	RemainingDisabled RemainingCommandPermission = 0
	RemainingEnabled  RemainingCommandPermission = 1
	RemainingGoal     RemainingCommandPermission = 2
)

// Permissions bundles the three command permission gates reported in RoomInfo.
type Permissions struct {
	Release   CommandPermission          `json:"release"`
	Collect   CommandPermission          `json:"collect"`
	Remaining RemainingCommandPermission `json:"remaining"`
}

// ConnectionError enumerates the ConnectionRefused failure kinds. Free-form
// strings other than the constants below are permitted on the wire and are
// carried as-is in a ConnectionError value.
type ConnectionError string

const (
	ErrInvalidSlot           ConnectionError = "InvalidSlot"
	ErrInvalidGame           ConnectionError = "InvalidGame"
	ErrIncompatibleVersion   ConnectionError = "IncompatibleVersion"
	ErrInvalidPassword       ConnectionError = "InvalidPassword"
	ErrInvalidItemsHandling  ConnectionError = "InvalidItemsHandling"
)

// ItemsHandling is the client-declared bit flags controlling which items it
// wants delivered via ReceivedItems.
type ItemsHandling uint8

const (
	ItemsHandlingRemote           ItemsHandling = 1 << 0 // basic remote-item delivery
	ItemsHandlingStartingInventory ItemsHandling = 1 << 1
	ItemsHandlingOwnWorld          ItemsHandling = 1 << 2
)

func (h ItemsHandling) Remote() bool            { return h&ItemsHandlingRemote != 0 }
func (h ItemsHandling) StartingInventory() bool { return h&ItemsHandlingStartingInventory != 0 }
func (h ItemsHandling) OwnWorld() bool          { return h&ItemsHandlingOwnWorld != 0 }
