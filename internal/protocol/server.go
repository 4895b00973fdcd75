package protocol

import (
	"encoding/json"

	"github.com/archipelago-mw/aprs-server/internal/value"
)

// ServerMessage is one server-to-client message variant. Each concrete type
// marshals itself with a `cmd` tag (or `PrintJSON`'s historical all-caps
// spelling) matching the counterpart client's dispatch.
type ServerMessage interface {
	serverCmd() string
}

func withCmd(cmd string, v interface{}) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(body, &merged); err != nil {
		return nil, err
	}
	merged["cmd"] = mustMarshal(cmd)
	return json.Marshal(merged)
}

func mustMarshal(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// RoomInfo is the first message sent to every accepted connection.
type RoomInfo struct {
	Version                  Version           `json:"version"`
	GeneratorVersion         Version           `json:"generator_version"`
	Tags                     []string          `json:"tags"`
	Password                 bool              `json:"password"`
	Permissions              Permissions       `json:"permissions"`
	HintCost                 int               `json:"hint_cost"`
	LocationCheckPoints      int               `json:"location_check_points"`
	Games                    []string          `json:"games"`
	DatapackageChecksums     map[string]string `json:"datapackage_checksums"`
	SeedName                 string            `json:"seed_name"`
	Time                     float64           `json:"time"`
}

func (RoomInfo) serverCmd() string   { return "RoomInfo" }
func (m RoomInfo) MarshalJSON() ([]byte, error) {
	type alias RoomInfo
	return withCmd("RoomInfo", alias(m))
}

// ConnectionRefused terminates the handshake with one or more failure kinds.
type ConnectionRefused struct {
	Errors []ConnectionError `json:"errors"`
}

func (ConnectionRefused) serverCmd() string { return "ConnectionRefused" }
func (m ConnectionRefused) MarshalJSON() ([]byte, error) {
	type alias ConnectionRefused
	return withCmd("ConnectionRefused", alias(m))
}

// Connected is sent on a successful handshake.
type Connected struct {
	Team             TeamId                  `json:"team"`
	Slot             SlotId                  `json:"slot"`
	Players          []NetworkPlayer         `json:"players"`
	MissingLocations []LocationId            `json:"missing_locations"`
	CheckedLocations []LocationId            `json:"checked_locations"`
	SlotData         value.Value             `json:"slot_data"`
	SlotInfo         map[SlotId]NetworkSlot  `json:"slot_info"`
	HintPoints       int                     `json:"hint_points"`
}

func (Connected) serverCmd() string { return "Connected" }
func (m Connected) MarshalJSON() ([]byte, error) {
	type alias Connected
	return withCmd("Connected", alias(m))
}

// Retrieved answers a Get request with the requested keys' current values.
type Retrieved struct {
	Keys map[string]value.Value `json:"keys"`
}

func (Retrieved) serverCmd() string { return "Retrieved" }
func (m Retrieved) MarshalJSON() ([]byte, error) {
	type alias Retrieved
	return withCmd("Retrieved", alias(m))
}

// LocationInfo answers a LocationScouts request.
type LocationInfo struct {
	Locations []NetworkItem `json:"locations"`
}

func (LocationInfo) serverCmd() string { return "LocationInfo" }
func (m LocationInfo) MarshalJSON() ([]byte, error) {
	type alias LocationInfo
	return withCmd("LocationInfo", alias(m))
}

// SetReply announces the outcome of a Set to its requester and subscribers.
type SetReply struct {
	Key           string      `json:"key"`
	Value         value.Value `json:"value"`
	OriginalValue value.Value `json:"original_value"`
	Slot          SlotId      `json:"slot"`
}

func (SetReply) serverCmd() string { return "SetReply" }
func (m SetReply) MarshalJSON() ([]byte, error) {
	type alias SetReply
	return withCmd("SetReply", alias(m))
}

// ReceivedItems delivers newly-synced items starting at Index.
type ReceivedItems struct {
	Index int           `json:"index"`
	Items []NetworkItem `json:"items"`
}

func (ReceivedItems) serverCmd() string { return "ReceivedItems" }
func (m ReceivedItems) MarshalJSON() ([]byte, error) {
	type alias ReceivedItems
	return withCmd("ReceivedItems", alias(m))
}

// RoomUpdate pushes an incremental update to room-level state (e.g. the
// players list or hint points) without a full Connected resend.
type RoomUpdate struct {
	Players          []NetworkPlayer `json:"players,omitempty"`
	CheckedLocations []LocationId    `json:"checked_locations,omitempty"`
	HintPoints       *int            `json:"hint_points,omitempty"`
}

func (RoomUpdate) serverCmd() string { return "RoomUpdate" }
func (m RoomUpdate) MarshalJSON() ([]byte, error) {
	type alias RoomUpdate
	return withCmd("RoomUpdate", alias(m))
}

// GameData is one game's item/location name tables within a DataPackage.
type GameData struct {
	ItemNameToId         map[string]ItemId     `json:"item_name_to_id"`
	LocationNameToId     map[string]LocationId `json:"location_name_to_id"`
	ItemNameGroups       map[string][]string   `json:"item_name_groups"`
	LocationNameGroups   map[string][]string   `json:"location_name_groups"`
	Checksum             string                `json:"checksum"`
}

// DataPackage answers a GetDataPackage request.
type DataPackage struct {
	Data struct {
		Games map[string]GameData `json:"games"`
	} `json:"data"`
}

func (DataPackage) serverCmd() string { return "DataPackage" }
func (m DataPackage) MarshalJSON() ([]byte, error) {
	type alias DataPackage
	return withCmd("DataPackage", alias(m))
}

// PrintJSON renders a server- or chat-originated text line for the client's
// log view. Its wire tag is the historical all-caps "PrintJSON".
type PrintJSON struct {
	Data []PrintJSONPart `json:"data"`
	Type string          `json:"type,omitempty"`
}

// PrintJSONPart is one styled fragment of a PrintJSON line.
type PrintJSONPart struct {
	Text string `json:"text"`
	Type string `json:"type,omitempty"`
}

func (PrintJSON) serverCmd() string { return "PrintJSON" }
func (m PrintJSON) MarshalJSON() ([]byte, error) {
	type alias PrintJSON
	return withCmd("PrintJSON", alias(m))
}

// Bounced relays a client's Bounce payload to matching subscribers.
type Bounced struct {
	Games []string    `json:"games,omitempty"`
	Slots []SlotId    `json:"slots,omitempty"`
	Tags  []string    `json:"tags,omitempty"`
	Data  value.Value `json:"data,omitempty"`
}

func (Bounced) serverCmd() string { return "Bounced" }
func (m Bounced) MarshalJSON() ([]byte, error) {
	type alias Bounced
	return withCmd("Bounced", alias(m))
}
