package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/triviaroom/go/internal/room"
	"github.com/mcdev12/triviaroom/go/internal/room/events"
)

type testGateway struct {
	cm     *ConnectionManager
	app    *room.App
	server *httptest.Server
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()

	cm := NewConnectionManager(DefaultConnectionConfig())
	app := room.NewApp(
		room.NewStore(room.NewSeededCodeGenerator(1)),
		room.DefaultRules(),
		room.NewTimerService(clockwork.NewFakeClock()),
		cm,
	)
	svc := NewService(cm, app)

	ctx, cancel := context.WithCancel(context.Background())
	go svc.Start(ctx)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		cancel()
		closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second)
		defer closeCancel()
		_ = app.Close(closeCtx)
	})
	return &testGateway{cm: cm, app: app, server: server}
}

func (g *testGateway) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(g.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, intentType IntentType, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: intentType, Data: raw}))
}

func receive(t *testing.T, conn *websocket.Conn, want events.EventType) events.RoomEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event events.RoomEvent
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, want, event.Type, "unexpected event %s", string(event.Data))
	return event
}

func TestGateway_CreateJoinAndSettings(t *testing.T) {
	g := newTestGateway(t)
	host := g.dial(t)
	guest := g.dial(t)

	send(t, host, IntentCreate, CreateIntent{PlayerID: "p1", Theme: "general", Difficulty: "medium"})
	created := receive(t, host, events.EventTypeCreated)
	var code string
	require.NoError(t, json.Unmarshal(created.Data, &code))
	assert.Len(t, code, 4)
	assert.Equal(t, code, created.RoomID)

	send(t, guest, IntentJoin, JoinIntent{RoomID: code, PlayerID: "p2"})
	count := receive(t, guest, events.EventTypePlayerCount)
	assert.JSONEq(t, `2`, string(count.Data))
	joined := receive(t, guest, events.EventTypeJoined)
	assert.JSONEq(t, `"`+code+`"`, string(joined.Data))

	count = receive(t, host, events.EventTypePlayerCount)
	assert.JSONEq(t, `2`, string(count.Data))

	send(t, guest, IntentRequestSettings, code)
	settings := receive(t, guest, events.EventTypeSettings)
	assert.JSONEq(t, `{"theme":"general","difficulty":"medium"}`, string(settings.Data))

	send(t, host, IntentStart, StartIntent{RoomID: code})
	for _, conn := range []*websocket.Conn{host, guest} {
		started := receive(t, conn, events.EventTypeStarted)
		assert.JSONEq(t, `{"scores":[{"playerId":"p1","score":0},{"playerId":"p2","score":0}],"countdown":45,"questionIndex":0}`, string(started.Data))
	}
}

func TestGateway_ErrorsGoToRequesterOnly(t *testing.T) {
	g := newTestGateway(t)
	host := g.dial(t)
	other := g.dial(t)

	send(t, host, IntentCreate, CreateIntent{PlayerID: "p1", Theme: "general", Difficulty: "easy"})
	receive(t, host, events.EventTypeCreated)

	send(t, other, IntentJoin, JoinIntent{RoomID: "NOPE", PlayerID: "p2"})
	errEvent := receive(t, other, events.EventTypeError)
	var payload events.ErrorPayload
	require.NoError(t, json.Unmarshal(errEvent.Data, &payload))
	assert.Contains(t, payload.Message, "room not found")

	require.NoError(t, other.WriteMessage(websocket.TextMessage, []byte(`{"type":"dance","data":{}}`)))
	errEvent = receive(t, other, events.EventTypeError)
	require.NoError(t, json.Unmarshal(errEvent.Data, &payload))
	assert.Contains(t, payload.Message, "unknown action")

	// The host saw none of it; its next frame is the reply to its own request.
	send(t, host, IntentRequestSettings, "NOPE")
	receive(t, host, events.EventTypeError)
}

func TestGateway_DisconnectLeavesRooms(t *testing.T) {
	g := newTestGateway(t)
	host := g.dial(t)
	guest := g.dial(t)

	send(t, host, IntentCreate, CreateIntent{PlayerID: "p1", Theme: "general", Difficulty: "hard"})
	var code string
	require.NoError(t, json.Unmarshal(receive(t, host, events.EventTypeCreated).Data, &code))

	send(t, guest, IntentJoin, JoinIntent{RoomID: code, PlayerID: "p2"})
	receive(t, guest, events.EventTypePlayerCount)
	receive(t, guest, events.EventTypeJoined)
	receive(t, host, events.EventTypePlayerCount)

	require.NoError(t, guest.Close())
	count := receive(t, host, events.EventTypePlayerCount)
	assert.JSONEq(t, `1`, string(count.Data))

	require.NoError(t, host.Close())
	require.Eventually(t, func() bool {
		_, err := g.app.Snapshot(code)
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)

	_, err := g.app.Snapshot(code)
	assert.ErrorIs(t, err, room.ErrNotFound)
}

func TestGateway_Stats(t *testing.T) {
	g := newTestGateway(t)
	host := g.dial(t)

	send(t, host, IntentCreate, CreateIntent{PlayerID: "p1", Theme: "general", Difficulty: "easy"})
	receive(t, host, events.EventTypeCreated)

	resp, err := http.Get(g.server.URL + "/ws/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats ConnectionStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, 1, stats.ActiveRooms)
}

func TestGateway_StartRejectedForUnknownRoom(t *testing.T) {
	g := newTestGateway(t)
	conn := g.dial(t)

	send(t, conn, IntentStart, StartIntent{RoomID: "NOPE", Settings: &StartSettings{Theme: "x"}})
	errEvent := receive(t, conn, events.EventTypeError)
	assert.Equal(t, "NOPE", errEvent.RoomID)
}

func closedConnection(cm *ConnectionManager) *Connection {
	return &Connection{
		ID:          "closed",
		Send:        make(chan []byte, 8),
		Manager:     cm,
		memberships: make(map[string][]string),
		ConnectedAt: time.Now(),
	}
}

func frame(t *testing.T, intentType IntentType, data interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	msg, err := json.Marshal(ClientMessage{Type: intentType, Data: raw})
	require.NoError(t, err)
	return msg
}

func TestGateway_CreateOnClosedConnectionLeavesNoRoom(t *testing.T) {
	g := newTestGateway(t)
	conn := closedConnection(g.cm)

	g.cm.handler.HandleMessage(conn, frame(t, IntentCreate, CreateIntent{PlayerID: "p1", Theme: "general", Difficulty: "medium"}))

	assert.Empty(t, g.app.ListRooms())
	assert.False(t, g.cm.IsRegistered(conn))
}

func TestGateway_JoinOnClosedConnectionIsDropped(t *testing.T) {
	g := newTestGateway(t)
	host := g.dial(t)

	send(t, host, IntentCreate, CreateIntent{PlayerID: "p1", Theme: "general", Difficulty: "medium"})
	var code string
	require.NoError(t, json.Unmarshal(receive(t, host, events.EventTypeCreated).Data, &code))

	g.cm.handler.HandleMessage(closedConnection(g.cm), frame(t, IntentJoin, JoinIntent{RoomID: code, PlayerID: "p2"}))

	snap, err := g.app.Snapshot(code)
	require.NoError(t, err)
	require.Len(t, snap.Players, 1)
	assert.Equal(t, "p1", snap.Players[0].PlayerID)
}

func TestConnectionManager_SubscribeReportsClosedConnection(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	conn := closedConnection(cm)

	_, err := cm.Subscribe(conn, "ABCD", "p1")
	assert.ErrorIs(t, err, ErrConnectionClosed)

	cm.registerConnection(conn)
	added, err := cm.Subscribe(conn, "ABCD", "p1")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = cm.Subscribe(conn, "ABCD", "p1")
	require.NoError(t, err)
	assert.False(t, added)
	assert.True(t, cm.IsRegistered(conn))
}
