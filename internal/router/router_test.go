package router

import (
	"testing"

	"github.com/archipelago-mw/aprs-server/internal/protocol"
	"github.com/archipelago-mw/aprs-server/internal/seed"
	"github.com/archipelago-mw/aprs-server/internal/session"
	"github.com/archipelago-mw/aprs-server/internal/slotstate"
	"github.com/archipelago-mw/aprs-server/internal/storage"
	"github.com/archipelago-mw/aprs-server/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	sent   []protocol.ServerMessage
	closed bool
}

func (w *fakeWriter) Send(msgs ...protocol.ServerMessage) error {
	w.sent = append(w.sent, msgs...)
	return nil
}
func (w *fakeWriter) Close() error { w.closed = true; return nil }

func twoSlotWorld() *seed.MultiWorldRecord {
	return &seed.MultiWorldRecord{
		SlotInfo: map[protocol.SlotId]seed.SlotInfo{
			1: {Name: "Alice", Game: "GameA"},
			2: {Name: "Bob", Game: "GameB"},
		},
		ConnectNames: map[string]seed.ConnectTarget{
			"Alice": {Team: 0, Slot: 1},
			"Bob":   {Team: 0, Slot: 2},
		},
		Locations: slotstate.Locations{
			1: {100: {Item: 9, Slot: 2}},
			2: {200: {Item: 8, Slot: 1}},
		},
		DataPackage: map[string]seed.GameData{
			"GameA": {Checksum: "abc", ItemNameToId: map[string]protocol.ItemId{"Sword": 9}},
		},
		SlotData: map[protocol.SlotId]value.Value{},
	}
}

func newTestRouter(world *seed.MultiWorldRecord) *Router {
	eng := storage.New()
	table := slotstate.NewTable(world.Locations)
	cfg := Config{EventQueueSize: 16}
	return New(world, eng, table, cfg, nil)
}

func connectSession(t *testing.T, r *Router, id, name string) (*session.Session, *fakeWriter) {
	t.Helper()
	w := &fakeWriter{}
	s := session.New(w, "addr")
	s.Accept()
	r.clients[id] = s
	r.handleConnect(id, s, protocol.Connect{Name: name, Game: r.world.SlotInfo[r.world.ConnectNames[name].Slot].Game})
	return s, w
}

func TestHandleConnectSuccessRegistersSessionAndSendsConnected(t *testing.T) {
	r := newTestRouter(twoSlotWorld())
	s, w := connectSession(t, r, "c1", "Alice")

	assert.Equal(t, session.Connected, s.State)
	assert.Equal(t, protocol.SlotId(1), s.SlotId)
	require.Len(t, w.sent, 1)
	connected, ok := w.sent[0].(protocol.Connected)
	require.True(t, ok)
	assert.Equal(t, protocol.SlotId(1), connected.Slot)
}

func TestHandleConnectFailureSendsConnectionRefusedAndDropsSession(t *testing.T) {
	r := newTestRouter(twoSlotWorld())
	w := &fakeWriter{}
	s := session.New(w, "addr")
	s.Accept()
	r.clients["c1"] = s

	r.handleConnect("c1", s, protocol.Connect{Name: "nobody"})

	require.Len(t, w.sent, 1)
	_, ok := w.sent[0].(protocol.ConnectionRefused)
	assert.True(t, ok)
	_, stillThere := r.clients["c1"]
	assert.False(t, stillThere)
	assert.True(t, w.closed)
}

func TestHandleSetRepliesToSetterAndNotifiesOtherSubscribers(t *testing.T) {
	r := newTestRouter(twoSlotWorld())
	_, setterWriter := connectSession(t, r, "c1", "Alice")
	_, subWriter := connectSession(t, r, "c2", "Bob")
	r.clients["c2"].Subscribe([]string{"score"})

	setterWriter.sent = nil
	subWriter.sent = nil

	r.handleMessage(ClientMessage{ID: "c1", Message: protocol.Set{
		Key: "score", WantReply: true,
		Operations: []protocol.SetOperation{{Operation: "replace", Value: value.IntFromInt64(5)}},
	}})

	require.Len(t, setterWriter.sent, 1)
	_, ok := setterWriter.sent[0].(protocol.SetReply)
	assert.True(t, ok)
	require.Len(t, subWriter.sent, 1)
	reply, ok := subWriter.sent[0].(protocol.SetReply)
	require.True(t, ok)
	assert.Equal(t, "score", reply.Key)
	assert.True(t, r.dirty)
}

func TestHandleSetWithoutWantReplyStillNotifiesSubscriber(t *testing.T) {
	r := newTestRouter(twoSlotWorld())
	_, setterWriter := connectSession(t, r, "c1", "Alice")
	r.clients["c1"].Subscribe([]string{"score"})
	setterWriter.sent = nil

	r.handleMessage(ClientMessage{ID: "c1", Message: protocol.Set{
		Key: "score", WantReply: false,
		Operations: []protocol.SetOperation{{Operation: "replace", Value: value.IntFromInt64(1)}},
	}})

	require.Len(t, setterWriter.sent, 1)
	_, ok := setterWriter.sent[0].(protocol.SetReply)
	assert.True(t, ok)
}

func TestHandleLocationChecksBroadcastsRoomUpdateAndPushesReceivedItems(t *testing.T) {
	r := newTestRouter(twoSlotWorld())
	_, aliceWriter := connectSession(t, r, "c1", "Alice")
	bob, bobWriter := connectSession(t, r, "c2", "Bob")
	bob.ItemsHandling = protocol.ItemsHandlingRemote
	aliceWriter.sent = nil
	bobWriter.sent = nil

	r.handleMessage(ClientMessage{ID: "c1", Message: protocol.LocationChecks{Locations: []protocol.LocationId{100}}})

	assert.True(t, r.dirty)
	foundRoomUpdate := false
	for _, m := range aliceWriter.sent {
		if ru, ok := m.(protocol.RoomUpdate); ok {
			foundRoomUpdate = true
			assert.Contains(t, ru.CheckedLocations, protocol.LocationId(100))
		}
	}
	assert.True(t, foundRoomUpdate)

	foundReceived := false
	for _, m := range bobWriter.sent {
		if ri, ok := m.(protocol.ReceivedItems); ok {
			foundReceived = true
			require.Len(t, ri.Items, 1)
			assert.Equal(t, protocol.ItemId(9), ri.Items[0].Item)
		}
	}
	assert.True(t, foundReceived)
}

func TestHandleLocationChecksRepeatIsNoOp(t *testing.T) {
	r := newTestRouter(twoSlotWorld())
	_, aliceWriter := connectSession(t, r, "c1", "Alice")
	r.handleMessage(ClientMessage{ID: "c1", Message: protocol.LocationChecks{Locations: []protocol.LocationId{100}}})
	r.dirty = false
	aliceWriter.sent = nil

	r.handleMessage(ClientMessage{ID: "c1", Message: protocol.LocationChecks{Locations: []protocol.LocationId{100}}})

	assert.False(t, r.dirty)
	assert.Empty(t, aliceWriter.sent)
}

func TestHandleGetDataPackageDefaultsToAllGames(t *testing.T) {
	r := newTestRouter(twoSlotWorld())
	_, w := connectSession(t, r, "c1", "Alice")
	w.sent = nil

	r.handleMessage(ClientMessage{ID: "c1", Message: protocol.GetDataPackage{}})

	require.Len(t, w.sent, 1)
	dp, ok := w.sent[0].(protocol.DataPackage)
	require.True(t, ok)
	assert.Contains(t, dp.Data.Games, "GameA")
}

func TestHandleBounceRoutesToMatchingSlotOnly(t *testing.T) {
	r := newTestRouter(twoSlotWorld())
	_, aliceWriter := connectSession(t, r, "c1", "Alice")
	_, bobWriter := connectSession(t, r, "c2", "Bob")
	aliceWriter.sent = nil
	bobWriter.sent = nil

	r.handleMessage(ClientMessage{ID: "c1", Message: protocol.Bounce{Slots: []protocol.SlotId{2}}})

	assert.Empty(t, aliceWriter.sent)
	require.Len(t, bobWriter.sent, 1)
	_, ok := bobWriter.sent[0].(protocol.Bounced)
	assert.True(t, ok)
}

func TestHandleLocationScoutsWithHintBroadcastsToRecipientSlotOnly(t *testing.T) {
	r := newTestRouter(twoSlotWorld())
	_, aliceWriter := connectSession(t, r, "c1", "Alice")
	_, bobWriter := connectSession(t, r, "c2", "Bob")
	aliceWriter.sent = nil
	bobWriter.sent = nil

	r.handleMessage(ClientMessage{ID: "c1", Message: protocol.LocationScouts{
		Locations: []protocol.LocationId{100}, CreateAsHint: 1,
	}})

	foundHint := false
	for _, m := range bobWriter.sent {
		if pj, ok := m.(protocol.PrintJSON); ok && pj.Type == "Hint" {
			foundHint = true
		}
	}
	assert.True(t, foundHint, "the recipient slot (Bob, who owns location 100's award) should see the hint broadcast")
	for _, m := range aliceWriter.sent {
		_, ok := m.(protocol.PrintJSON)
		assert.False(t, ok, "the scouting slot itself is not the award recipient here and should not get the hint broadcast")
	}

	key := storage.HintsKey(0, 2)
	hints, ok := r.readHints(key)
	require.True(t, ok)
	l, err := hints.AsList()
	require.NoError(t, err)
	assert.Equal(t, 1, l.Len())
}

func TestMessagesBeforeHandshakeAreIgnoredExceptConnect(t *testing.T) {
	r := newTestRouter(twoSlotWorld())
	w := &fakeWriter{}
	s := session.New(w, "addr")
	s.Accept()
	r.clients["c1"] = s

	r.handleMessage(ClientMessage{ID: "c1", Message: protocol.Sync{}})
	assert.Empty(t, w.sent)
}

func TestCheckpointSkipsSaveWhenNotDirty(t *testing.T) {
	r := newTestRouter(twoSlotWorld())
	called := false
	r.saveFunc = func(*storage.Engine, *slotstate.Table) error { called = true; return nil }
	r.checkpoint()
	assert.False(t, called)
}

func TestCheckpointSavesAndClearsDirty(t *testing.T) {
	r := newTestRouter(twoSlotWorld())
	called := false
	r.saveFunc = func(*storage.Engine, *slotstate.Table) error { called = true; return nil }
	r.dirty = true
	r.checkpoint()
	assert.True(t, called)
	assert.False(t, r.dirty)
}
