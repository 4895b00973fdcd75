package session

import "github.com/archipelago-mw/aprs-server/internal/protocol"

// SyncReceivedItems folds any growth in the recipient slot's received log
// into this session's watermarks, returning the ReceivedItems message to
// send (nil if nothing new survives the items_handling filter, or if the
// client never enabled remote delivery).
func (s *Session) SyncReceivedItems(received []protocol.NetworkItem) *protocol.ReceivedItems {
	if s.NextSlotItemIndex >= len(received) {
		return nil
	}
	newlyReceived := received[s.NextSlotItemIndex:]
	s.NextSlotItemIndex = len(received)

	if !s.ItemsHandling.Remote() {
		return nil
	}

	filtered := make([]protocol.NetworkItem, 0, len(newlyReceived))
	for _, item := range newlyReceived {
		keep := item.Player != s.SlotId
		if !keep && s.ItemsHandling.StartingInventory() && item.Player == protocol.ServerSlot {
			if _, inStartingInventory := s.StartingInventory[item.Item]; inStartingInventory {
				keep = true
			}
		}
		if !keep && s.ItemsHandling.OwnWorld() {
			keep = true
		}
		if keep {
			filtered = append(filtered, item)
		}
	}

	if len(filtered) == 0 {
		return nil
	}
	before := s.NextClientItemIndex
	s.NextClientItemIndex += len(filtered)
	return &protocol.ReceivedItems{Index: before, Items: filtered}
}
