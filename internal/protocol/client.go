package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/archipelago-mw/aprs-server/internal/value"
)

// ClientMessage is one decoded client-to-server message variant.
type ClientMessage interface {
	clientCmd() string
}

// Connect is the handshake request that advances a session from RoomSent
// to Connected (or to Terminal via ConnectionRefused).
type Connect struct {
	Password      *string       `json:"password,omitempty"`
	Game          string        `json:"game"`
	Name          string        `json:"name"`
	Uuid          Uuid          `json:"uuid"`
	Version       Version       `json:"version"`
	ItemsHandling ItemsHandling `json:"items_handling"`
	Tags          []string      `json:"tags"`
	SlotData      bool          `json:"slot_data"`
}

func (Connect) clientCmd() string { return "Connect" }

// Get retrieves one or more data-storage keys (replied to with Retrieved).
type Get struct {
	Keys []string `json:"keys"`
}

func (Get) clientCmd() string { return "Get" }

// SetOperation is one step of a Set's fold, externally tagged by its
// `operation` name with an optional `value` payload (Floor/Ceil/Default
// carry no value).
type SetOperation struct {
	Operation string      `json:"operation"`
	Value     value.Value `json:"value"`
}

// Set mutates a data-storage key through an ordered list of operations.
// Its tag field is `o`, not `cmd` — the wire envelope special-cases it.
type Set struct {
	Key        string         `json:"key"`
	Default    value.Value    `json:"default"`
	WantReply  bool           `json:"want_reply"`
	Operations []SetOperation `json:"operations"`
}

func (Set) clientCmd() string { return "Set" }

// SetNotify subscribes the sending client to SetReply broadcasts for keys.
type SetNotify struct {
	Keys []string `json:"keys"`
}

func (SetNotify) clientCmd() string { return "SetNotify" }

// Say broadcasts a chat line, rendered back to all clients via PrintJSON.
type Say struct {
	Text string `json:"text"`
}

func (Say) clientCmd() string { return "Say" }

// Sync requests a fresh Connected-equivalent resync of server-known state.
type Sync struct{}

func (Sync) clientCmd() string { return "Sync" }

// LocationChecks reports one or more newly-checked locations.
type LocationChecks struct {
	Locations []LocationId `json:"locations"`
}

func (LocationChecks) clientCmd() string { return "LocationChecks" }

// LocationScouts previews the items at locations without checking them.
type LocationScouts struct {
	Locations    []LocationId `json:"locations"`
	CreateAsHint int          `json:"create_as_hint"`
}

func (LocationScouts) clientCmd() string { return "LocationScouts" }

// GetDataPackage requests the data package for the named games (all games
// when Games is empty).
type GetDataPackage struct {
	Games []string `json:"games"`
}

func (GetDataPackage) clientCmd() string { return "GetDataPackage" }

// StatusUpdate reports the client's coarse play status.
type StatusUpdate struct {
	Status ClientStatus `json:"status"`
}

func (StatusUpdate) clientCmd() string { return "StatusUpdate" }

// Bounce asks the server to relay an opaque payload to clients matching
// any of Games, Slots, or Tags (union).
type Bounce struct {
	Games []string    `json:"games"`
	Slots []SlotId    `json:"slots"`
	Tags  []string    `json:"tags"`
	Data  value.Value `json:"data"`
}

func (Bounce) clientCmd() string { return "Bounce" }

// Unknown preserves an unrecognized message tag verbatim for forward
// compatibility; it is never acted upon by the router.
type Unknown struct {
	Cmd string
	Raw json.RawMessage
}

func (Unknown) clientCmd() string { return "Unknown" }

type clientEnvelopePeek struct {
	Cmd *string `json:"cmd"`
	O   *string `json:"o"`
}

// DecodeClientMessages parses a single wire frame (a bare message object or
// an array of message objects — the sender's single-message shorthand is
// auto-wrapped) into its constituent ClientMessage variants, in order.
func DecodeClientMessages(frame []byte) ([]ClientMessage, error) {
	raws, err := splitEnvelope(frame)
	if err != nil {
		return nil, err
	}
	out := make([]ClientMessage, 0, len(raws))
	for _, raw := range raws {
		msg, err := decodeClientMessage(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

func decodeClientMessage(raw json.RawMessage) (ClientMessage, error) {
	var peek clientEnvelopePeek
	if err := json.Unmarshal(raw, &peek); err != nil {
		return nil, fmt.Errorf("protocol: malformed message object: %w", err)
	}
	if peek.O != nil && *peek.O == "Set" {
		var s Set
		s.WantReply = true
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("protocol: malformed Set message: %w", err)
		}
		return s, nil
	}
	if peek.Cmd == nil {
		return Unknown{Cmd: "", Raw: raw}, nil
	}
	switch *peek.Cmd {
	case "Connect":
		var m Connect
		err := json.Unmarshal(raw, &m)
		return m, wrapUnmarshal(err, "Connect")
	case "Get":
		var m Get
		err := json.Unmarshal(raw, &m)
		return m, wrapUnmarshal(err, "Get")
	case "Set":
		var m Set
		m.WantReply = true
		err := json.Unmarshal(raw, &m)
		return m, wrapUnmarshal(err, "Set")
	case "SetNotify":
		var m SetNotify
		err := json.Unmarshal(raw, &m)
		return m, wrapUnmarshal(err, "SetNotify")
	case "Say":
		var m Say
		err := json.Unmarshal(raw, &m)
		return m, wrapUnmarshal(err, "Say")
	case "Sync":
		return Sync{}, nil
	case "LocationChecks":
		var m LocationChecks
		err := json.Unmarshal(raw, &m)
		return m, wrapUnmarshal(err, "LocationChecks")
	case "LocationScouts":
		var m LocationScouts
		err := json.Unmarshal(raw, &m)
		return m, wrapUnmarshal(err, "LocationScouts")
	case "GetDataPackage":
		var m GetDataPackage
		err := json.Unmarshal(raw, &m)
		return m, wrapUnmarshal(err, "GetDataPackage")
	case "StatusUpdate":
		var m StatusUpdate
		err := json.Unmarshal(raw, &m)
		return m, wrapUnmarshal(err, "StatusUpdate")
	case "Bounce":
		var m Bounce
		err := json.Unmarshal(raw, &m)
		return m, wrapUnmarshal(err, "Bounce")
	default:
		return Unknown{Cmd: *peek.Cmd, Raw: raw}, nil
	}
}

func wrapUnmarshal(err error, cmd string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("protocol: malformed %s message: %w", cmd, err)
}

// splitEnvelope normalizes a wire frame into its constituent message
// objects, auto-wrapping a single bare object into a one-element slice.
func splitEnvelope(frame []byte) ([]json.RawMessage, error) {
	trimmed := trimLeadingSpace(frame)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("protocol: empty frame")
	}
	if trimmed[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(frame, &raws); err != nil {
			return nil, fmt.Errorf("protocol: malformed message array: %w", err)
		}
		return raws, nil
	}
	return []json.RawMessage{json.RawMessage(frame)}, nil
}

func trimLeadingSpace(b []byte) []byte {
	i := 0
	for i < len(b) {
		switch b[i] {
		case ' ', '\t', '\n', '\r':
			i++
			continue
		}
		break
	}
	return b[i:]
}
