package router

import (
	"github.com/archipelago-mw/aprs-server/internal/protocol"
	"github.com/archipelago-mw/aprs-server/internal/session"
)

// bounceMatches decides whether a Bounce from sender reaches client c, per
// the union of three independent criteria: c is on a different team and
// plays one of the named games, c carries one of the named tags, or c's
// slot is named directly.
func (r *Router) bounceMatches(m protocol.Bounce, sender, c *session.Session) bool {
	teamAndGameMatch := c.TeamId != sender.TeamId && containsString(m.Games, r.gameOf(c.SlotId))
	tagMatch := hasAnyTag(m.Tags, c.Tags)
	slotMatch := containsSlot(m.Slots, c.SlotId)
	return teamAndGameMatch || tagMatch || slotMatch
}

func (r *Router) gameOf(slot protocol.SlotId) string {
	return r.world.SlotInfo[slot].Game
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsSlot(haystack []protocol.SlotId, needle protocol.SlotId) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func hasAnyTag(wanted, held []string) bool {
	for _, w := range wanted {
		if containsString(held, w) {
			return true
		}
	}
	return false
}
