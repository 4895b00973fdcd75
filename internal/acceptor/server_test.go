package acceptor

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/archipelago-mw/aprs-server/internal/protocol"
	"github.com/archipelago-mw/aprs-server/internal/router"
	"github.com/archipelago-mw/aprs-server/internal/seed"
	"github.com/archipelago-mw/aprs-server/internal/slotstate"
	"github.com/archipelago-mw/aprs-server/internal/storage"
	"github.com/archipelago-mw/aprs-server/internal/value"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func testWorld() *seed.MultiWorldRecord {
	return &seed.MultiWorldRecord{
		SlotInfo: map[protocol.SlotId]seed.SlotInfo{
			1: {Name: "Alice", Game: "GameA"},
		},
		ConnectNames: map[string]seed.ConnectTarget{
			"Alice": {Team: 0, Slot: 1},
		},
		Locations:   slotstate.Locations{1: {}},
		DataPackage: map[string]seed.GameData{"GameA": {Checksum: "abc"}},
		SlotData:    map[protocol.SlotId]value.Value{},
	}
}

func startTestServer(t *testing.T) (*httptest.Server, func()) {
	t.Helper()
	world := testWorld()
	eng := storage.New()
	table := slotstate.NewTable(world.Locations)
	rtr := router.New(world, eng, table, router.Config{EventQueueSize: 16}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go rtr.Run(ctx)

	srv := New(world, rtr, router.Config{}, Config{Addr: "127.0.0.1:0"})
	ts := httptest.NewServer(srv.httpSrv.Handler)
	return ts, cancel
}

func dialTestServer(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn
}

func readOneMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var batch []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &batch))
	require.NotEmpty(t, batch)
	return batch[0]
}

func TestHandleWSSendsRoomInfoFirst(t *testing.T) {
	ts, cancel := startTestServer(t)
	defer ts.Close()
	defer cancel()

	conn := dialTestServer(t, ts)
	defer conn.Close()

	msg := readOneMessage(t, conn)
	require.Equal(t, "RoomInfo", msg["cmd"])
	require.Equal(t, "abc", msg["datapackage_checksums"].(map[string]interface{})["GameA"])
}

func TestHandleWSConnectRoundTrip(t *testing.T) {
	ts, cancel := startTestServer(t)
	defer ts.Close()
	defer cancel()

	conn := dialTestServer(t, ts)
	defer conn.Close()

	readOneMessage(t, conn) // RoomInfo

	connectMsg := map[string]interface{}{
		"cmd":  "Connect",
		"name": "Alice",
		"game": "GameA",
	}
	require.NoError(t, conn.WriteJSON([]interface{}{connectMsg}))

	msg := readOneMessage(t, conn)
	require.Equal(t, "Connected", msg["cmd"])
	require.Equal(t, float64(1), msg["slot"])
}
