package router

import (
	"github.com/archipelago-mw/aprs-server/internal/protocol"
	"github.com/archipelago-mw/aprs-server/internal/session"
)

// Event is one occurrence the router's single goroutine folds into state.
type Event interface{ isEvent() }

// ClientAccepted registers a freshly accepted session (already in RoomSent;
// its acceptor has already sent RoomInfo).
type ClientAccepted struct {
	ID      string
	Session *session.Session
}

func (ClientAccepted) isEvent() {}

// ClientDisconnected drops a session and its writer.
type ClientDisconnected struct{ ID string }

func (ClientDisconnected) isEvent() {}

// ClientControl carries a non-text transport frame (ping/pong/close).
type ClientControl struct {
	ID      string
	Control protocol.ControlKind
	Payload []byte
}

func (ClientControl) isEvent() {}

// ClientMessage carries one decoded application message from a connected
// session's reader task.
type ClientMessage struct {
	ID      string
	Message protocol.ClientMessage
}

func (ClientMessage) isEvent() {}

// checkpointTick is submitted by the gocron debounce job (see router.go's
// New); it carries no data, it just asks the router's own goroutine to run
// its dirty-flag checkpoint.
type checkpointTick struct{}

func (checkpointTick) isEvent() {}
