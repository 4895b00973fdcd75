package router

import (
	"github.com/archipelago-mw/aprs-server/internal/protocol"
	"github.com/archipelago-mw/aprs-server/internal/session"
)

// broadcast delivers msg to every connected client.
func (r *Router) broadcast(msg protocol.ServerMessage) {
	for id, s := range r.clients {
		if s.State != session.Connected {
			continue
		}
		r.send(id, s, msg)
	}
}

// broadcastSlot delivers msg to every connected client on the given slot.
func (r *Router) broadcastSlot(slot protocol.SlotId, msg protocol.ServerMessage) {
	for id, s := range r.clients {
		if s.State != session.Connected || s.SlotId != slot {
			continue
		}
		r.send(id, s, msg)
	}
}

// notifySubscribers delivers msg to every connected client that subscribed
// to key via SetNotify. skipID, if non-empty, is excluded — used by Set's
// WantReply path, which has already sent msg to the setter directly.
func (r *Router) notifySubscribers(key string, msg protocol.ServerMessage, skipID string) {
	for id, s := range r.clients {
		if s.State != session.Connected || !s.WantsKey(key) || id == skipID {
			continue
		}
		r.send(id, s, msg)
	}
}
