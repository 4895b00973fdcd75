package router

import (
	"github.com/archipelago-mw/aprs-server/internal/protocol"
	"github.com/archipelago-mw/aprs-server/internal/session"
	"github.com/archipelago-mw/aprs-server/internal/slotstate"
	"github.com/archipelago-mw/aprs-server/internal/storage"
	"github.com/archipelago-mw/aprs-server/internal/value"
	"github.com/archipelago-mw/aprs-server/pkg/log"
)

func (r *Router) handleMessage(e ClientMessage) {
	s, ok := r.clients[e.ID]
	if !ok {
		return
	}

	if s.State != session.Connected {
		if connect, isConnect := e.Message.(protocol.Connect); isConnect {
			r.handleConnect(e.ID, s, connect)
			return
		}
		log.Infof("router: ignoring %T from %s before handshake completes", e.Message, e.ID)
		return
	}

	switch m := e.Message.(type) {
	case protocol.Get:
		r.handleGet(e.ID, s, m)
	case protocol.Set:
		r.handleSet(e.ID, s, m)
	case protocol.SetNotify:
		s.Subscribe(m.Keys)
	case protocol.Say:
		r.broadcast(protocol.PrintJSON{Data: []protocol.PrintJSONPart{{Text: s.ConnectName + ": " + m.Text}}})
	case protocol.Sync:
		r.sendSync(e.ID, s)
	case protocol.LocationChecks:
		r.handleLocationChecks(s, m)
	case protocol.LocationScouts:
		r.handleLocationScouts(e.ID, s, m)
	case protocol.GetDataPackage:
		r.handleGetDataPackage(e.ID, s, m)
	case protocol.StatusUpdate:
		r.handleStatusUpdate(s, m)
	case protocol.Bounce:
		r.handleBounce(s, m)
	case protocol.Unknown:
		log.Infof("router: ignoring unknown client message %q from %s", m.Cmd, e.ID)
	default:
		log.Warnf("router: no handler for connected-state message %T from %s", m, e.ID)
	}
}

func (r *Router) handleConnect(id string, s *session.Session, c protocol.Connect) {
	errs, target, _, ok := session.ValidateConnect(c, r.world, r.cfg.RequiredPassword)
	if !ok {
		r.send(id, s, protocol.ConnectionRefused{Errors: errs})
		delete(r.clients, id)
		s.Terminate()
		return
	}

	s.ApplyConnect(c, target, r.world)

	connected := session.BuildConnected(s, r.world, r.slots, c.SlotData, r.hintPoints(s.TeamId, s.SlotId))
	connected.Players = r.playersForTeam(s.TeamId)

	r.send(id, s, connected)
	r.pushReceivedItems(id, s)
}

// playersForTeam renders every currently-connected client on team as a
// NetworkPlayer, for the Connected/Sync players list.
func (r *Router) playersForTeam(team protocol.TeamId) []protocol.NetworkPlayer {
	players := make([]protocol.NetworkPlayer, 0)
	for _, other := range r.clients {
		if other.State != session.Connected || other.TeamId != team {
			continue
		}
		players = append(players, protocol.NetworkPlayer{
			Team:  other.TeamId,
			Slot:  other.SlotId,
			Alias: other.ConnectName,
			Name:  other.ConnectName,
		})
	}
	return players
}

func (r *Router) hintPoints(team protocol.TeamId, slot protocol.SlotId) int {
	v, ok := r.storage.Get(storage.ClientStatusKey(team, slot))
	if !ok {
		return 0
	}
	n, err := v.AsInt()
	if err != nil {
		return 0
	}
	return int(n.Int64())
}

func (r *Router) handleGet(id string, s *session.Session, m protocol.Get) {
	keys := make(map[string]value.Value, len(m.Keys))
	for _, k := range m.Keys {
		if v, ok := r.storage.Get(k); ok {
			keys[k] = v
		}
	}
	r.send(id, s, protocol.Retrieved{Keys: keys})
}

func (r *Router) handleSet(id string, s *session.Session, m protocol.Set) {
	result, err := r.storage.Apply(m.Key, m.Default, m.Operations)
	if err != nil {
		log.Warnf("router: Set %q from %s failed: %v", m.Key, id, err)
		return
	}
	r.markDirty()

	reply := protocol.SetReply{Key: m.Key, Value: result.New, OriginalValue: result.Original, Slot: s.SlotId}
	skip := ""
	if m.WantReply {
		r.send(id, s, reply)
		skip = id
	}
	r.notifySubscribers(m.Key, reply, skip)
}

func (r *Router) sendSync(id string, s *session.Session) {
	connected := session.BuildConnected(s, r.world, r.slots, false, r.hintPoints(s.TeamId, s.SlotId))
	connected.Players = r.playersForTeam(s.TeamId)
	r.send(id, s, connected)
	r.pushReceivedItems(id, s)
}

func (r *Router) handleLocationChecks(s *session.Session, m protocol.LocationChecks) {
	anyNew := false
	for _, loc := range m.Locations {
		if r.slots.CheckLocation(s.SlotId, loc, r.world.Locations) == slotstate.Unchecked {
			anyNew = true
		}
	}
	if !anyNew {
		return
	}
	r.markDirty()

	checkerState := r.slots.State(s.SlotId)
	checked := make([]protocol.LocationId, 0, len(checkerState.Checked))
	for loc := range checkerState.Checked {
		checked = append(checked, loc)
	}
	r.broadcast(protocol.RoomUpdate{CheckedLocations: checked})

	for id, c := range r.clients {
		if c.State == session.Connected {
			r.pushReceivedItems(id, c)
		}
	}
}

func (r *Router) pushReceivedItems(id string, s *session.Session) {
	received := r.slots.ReceivedItems(s.SlotId)
	if msg := s.SyncReceivedItems(received); msg != nil {
		r.send(id, s, *msg)
	}
}

func (r *Router) handleLocationScouts(id string, s *session.Session, m protocol.LocationScouts) {
	awards := r.world.Locations[s.SlotId]
	items := make([]protocol.NetworkItem, 0, len(m.Locations))
	for _, loc := range m.Locations {
		award, ok := awards[loc]
		if !ok {
			continue
		}
		items = append(items, protocol.NetworkItem{Item: award.Item, Location: loc, Player: s.SlotId, Flags: award.Flags})
		if m.CreateAsHint != 0 {
			r.recordHint(s.TeamId, award.Slot, award.Item, loc, s.SlotId, award.Flags)
			r.broadcastSlot(award.Slot, protocol.PrintJSON{
				Type: "Hint",
				Data: []protocol.PrintJSONPart{{Text: s.ConnectName + " found a hint for their world."}},
			})
		}
	}
	r.send(id, s, protocol.LocationInfo{Locations: items})
}

func (r *Router) handleStatusUpdate(s *session.Session, m protocol.StatusUpdate) {
	key := storage.ClientStatusKey(s.TeamId, s.SlotId)
	r.clientStatus[key] = value.IntFromInt64(int64(m.Status))
	r.markDirty()
}

func (r *Router) handleBounce(sender *session.Session, m protocol.Bounce) {
	bounced := protocol.Bounced{Games: m.Games, Slots: m.Slots, Tags: m.Tags, Data: m.Data}
	for id, c := range r.clients {
		if c.State != session.Connected {
			continue
		}
		if !r.bounceMatches(m, sender, c) {
			continue
		}
		r.send(id, c, bounced)
	}
}

func (r *Router) handleGetDataPackage(id string, s *session.Session, m protocol.GetDataPackage) {
	games := m.Games
	if len(games) == 0 {
		games = make([]string, 0, len(r.world.DataPackage))
		for g := range r.world.DataPackage {
			games = append(games, g)
		}
	}
	dp := protocol.DataPackage{}
	dp.Data.Games = make(map[string]protocol.GameData, len(games))
	for _, g := range games {
		gd, ok := r.world.DataPackage[g]
		if !ok {
			continue
		}
		dp.Data.Games[g] = protocol.GameData{
			ItemNameToId:       gd.ItemNameToId,
			LocationNameToId:   gd.LocationNameToId,
			ItemNameGroups:     gd.ItemNameGroups,
			LocationNameGroups: gd.LocationNameGroups,
			Checksum:           gd.Checksum,
		}
	}
	r.send(id, s, dp)
}
