// Package protocol implements the framed-JSON message envelope exchanged
// between multi-world clients and the server: client-initiated and
// server-initiated message variants, tolerant numeric/string field
// decoding, and control-frame passthrough for the duplex transport.
package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// SlotId identifies a player slot; slot 0 is reserved for the server.
type SlotId int64

// ServerSlot is the reserved slot id representing the server itself.
const ServerSlot SlotId = 0

// TeamId identifies a team (a set of slots playing together).
type TeamId int64

// ItemId identifies an item kind within a game's data package.
type ItemId int64

// LocationId identifies a location within a game's data package.
type LocationId int64

// UnmarshalJSON accepts either a JSON number or a decimal string, matching
// the counterpart client's tolerance for numeric IDs arriving as either.
func (s *SlotId) UnmarshalJSON(data []byte) error { return unmarshalTolerantInt64(data, (*int64)(s)) }

func (s SlotId) MarshalJSON() ([]byte, error) { return json.Marshal(int64(s)) }

func (t *TeamId) UnmarshalJSON(data []byte) error { return unmarshalTolerantInt64(data, (*int64)(t)) }

func (t TeamId) MarshalJSON() ([]byte, error) { return json.Marshal(int64(t)) }

func (i *ItemId) UnmarshalJSON(data []byte) error { return unmarshalTolerantInt64(data, (*int64)(i)) }

func (i ItemId) MarshalJSON() ([]byte, error) { return json.Marshal(int64(i)) }

func (l *LocationId) UnmarshalJSON(data []byte) error {
	return unmarshalTolerantInt64(data, (*int64)(l))
}

func (l LocationId) MarshalJSON() ([]byte, error) { return json.Marshal(int64(l)) }

func unmarshalTolerantInt64(data []byte, out *int64) error {
	var asNumber int64
	if err := json.Unmarshal(data, &asNumber); err == nil {
		*out = asNumber
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err != nil {
		return fmt.Errorf("protocol: expected a number or decimal string, got %s", data)
	}
	n, err := strconv.ParseInt(asString, 10, 64)
	if err != nil {
		return fmt.Errorf("protocol: %q is not a decimal integer: %w", asString, err)
	}
	*out = n
	return nil
}

// Uuid is the client-supplied connection identifier, accepted as either a
// hex string or a decimal number and normalized to its string form.
type Uuid string

func (u *Uuid) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*u = Uuid(asString)
		return nil
	}
	var asNumber json.Number
	if err := json.Unmarshal(data, &asNumber); err != nil {
		return fmt.Errorf("protocol: uuid must be a string or number, got %s", data)
	}
	*u = Uuid(asNumber.String())
	return nil
}

// Version is the three-field client/server version tuple.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Build int `json:"build"`
}

func (v Version) MarshalJSON() ([]byte, error) {
	type wire struct {
		Class string `json:"class"`
		Major int    `json:"major"`
		Minor int    `json:"minor"`
		Build int    `json:"build"`
	}
	return json.Marshal(wire{Class: "Version", Major: v.Major, Minor: v.Minor, Build: v.Build})
}

// AtLeast reports whether v is >= other under lexicographic (major, minor, build) order.
func (v Version) AtLeast(other Version) bool {
	if v.Major != other.Major {
		return v.Major > other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor > other.Minor
	}
	return v.Build >= other.Build
}
