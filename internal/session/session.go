// Package session implements the per-connection state machine: handshake
// validation, the Accepted->RoomSent->Connecting->Connected->Terminal
// lifecycle, and the item-sync watermarking a connected client rides for
// the rest of its life.
package session

import (
	"github.com/archipelago-mw/aprs-server/internal/protocol"
)

// State is one point in the session lifecycle.
type State int

const (
	Accepted State = iota
	RoomSent
	Connecting
	Connected
	Terminal
)

func (s State) String() string {
	switch s {
	case Accepted:
		return "Accepted"
	case RoomSent:
		return "RoomSent"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Terminal:
		return "Terminal"
	default:
		return "Unknown"
	}
}

// Writer is the per-connection outbound handle a Session sends through;
// internal/acceptor supplies the concrete WebSocket-backed implementation.
type Writer interface {
	Send(msgs ...protocol.ServerMessage) error
	Close() error
}

// Session is one client connection's state, from accept through terminal.
type Session struct {
	Writer      Writer
	PeerAddr    string
	State       State
	ConnectName string
	SlotId      protocol.SlotId
	TeamId      protocol.TeamId
	Tags        []string

	ItemsHandling     protocol.ItemsHandling
	StartingInventory map[protocol.ItemId]struct{}

	// NextSlotItemIndex watermarks how far into the recipient slot's
	// received log this session has scanned; NextClientItemIndex is the
	// monotonic count of items actually delivered to this client (the two
	// diverge once items_handling starts filtering entries out).
	NextSlotItemIndex   int
	NextClientItemIndex int

	WantsUpdatesForKeys map[string]struct{}
}

// New creates a Session in the Accepted state for a freshly upgraded
// connection.
func New(writer Writer, peerAddr string) *Session {
	return &Session{
		Writer:              writer,
		PeerAddr:            peerAddr,
		State:               Accepted,
		WantsUpdatesForKeys: make(map[string]struct{}),
	}
}

// Accept transitions Accepted->RoomSent. Sending the RoomInfo message
// itself is the caller's responsibility: RoomInfo is server-wide, not
// session-local, state.
func (s *Session) Accept() { s.State = RoomSent }

// Subscribe records that this session wants SetReply broadcasts for key.
func (s *Session) Subscribe(keys []string) {
	for _, k := range keys {
		s.WantsUpdatesForKeys[k] = struct{}{}
	}
}

// WantsKey reports whether this session subscribed to key via SetNotify.
func (s *Session) WantsKey(key string) bool {
	_, ok := s.WantsUpdatesForKeys[key]
	return ok
}

// Terminate transitions to Terminal and closes the writer; pending writes
// already enqueued on it are left to drain per the writer's own contract.
func (s *Session) Terminate() {
	s.State = Terminal
	_ = s.Writer.Close()
}
