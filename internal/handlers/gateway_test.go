package handlers

import (
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whist-lobby/internal/lobby"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newTestGateway() *Gateway {
	logger := testLogger()
	return NewGateway(logger, lobby.NewDirectory(logger, 2, 6))
}

// connect registers a session and completes name registration,
// discarding the resulting ack and list events.
func connect(t *testing.T, gw *Gateway, name string) *lobby.Session {
	t.Helper()
	s := lobby.NewSession(nil)
	gw.Register(s)
	gw.HandleIntent(s, map[string]interface{}{"type": "setName", "displayName": name})
	events := drain(s)
	require.NotEmpty(t, events, "expected nameAck")
	require.Equal(t, "nameAck", events[0]["type"])
	return s
}

// drain empties a session's outbound queue.
func drain(s *lobby.Session) []map[string]interface{} {
	var events []map[string]interface{}
	for {
		select {
		case msg := <-s.Out:
			events = append(events, msg)
		default:
			return events
		}
	}
}

func ofType(events []map[string]interface{}, typ string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, e := range events {
		if e["type"] == typ {
			out = append(out, e)
		}
	}
	return out
}

func createRoom(t *testing.T, gw *Gateway, s *lobby.Session, name string, capacity int) lobby.Snapshot {
	t.Helper()
	gw.HandleIntent(s, map[string]interface{}{
		"type": "createGame", "name": name, "capacity": float64(capacity),
	})
	created := ofType(drain(s), "gameCreated")
	require.Len(t, created, 1)
	return created[0]["room"].(lobby.Snapshot)
}

func TestSetName(t *testing.T) {
	gw := newTestGateway()
	s := lobby.NewSession(nil)
	gw.Register(s)

	gw.HandleIntent(s, map[string]interface{}{"type": "setName", "displayName": "  "})
	events := drain(s)
	require.Len(t, events, 1)
	assert.Equal(t, "nameError", events[0]["type"])
	assert.Equal(t, "InvalidName", events[0]["reason"])

	gw.HandleIntent(s, map[string]interface{}{"type": "setName", "displayName": "alice"})
	events = drain(s)
	require.Len(t, events, 2)
	assert.Equal(t, "nameAck", events[0]["type"])
	assert.Equal(t, s.ID.String(), events[0]["sessionId"])
	assert.Equal(t, "gameListUpdate", events[1]["type"], "new arrivals get the directory immediately")
}

func TestDuplicateDisplayNamesAllowed(t *testing.T) {
	gw := newTestGateway()
	a := connect(t, gw, "alice")
	b := connect(t, gw, "alice")
	assert.NotEqual(t, a.ID, b.ID, "identity is the session id, not the name")
}

func TestIntentBeforeNameRejected(t *testing.T) {
	gw := newTestGateway()
	s := lobby.NewSession(nil)
	gw.Register(s)

	gw.HandleIntent(s, map[string]interface{}{"type": "createGame", "name": "Table1", "capacity": float64(2)})
	events := drain(s)
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0]["type"])
	assert.Equal(t, 0, gw.Directory.Len())
}

func TestCreateGameBroadcasts(t *testing.T) {
	gw := newTestGateway()
	creator := connect(t, gw, "alice")
	other := connect(t, gw, "bob")

	gw.HandleIntent(creator, map[string]interface{}{
		"type": "createGame", "name": "Table1", "capacity": float64(3),
	})

	creatorEvents := drain(creator)
	require.Len(t, ofType(creatorEvents, "gameCreated"), 1, "snapshot goes privately to the creator")
	require.Len(t, ofType(creatorEvents, "gameListUpdate"), 1)

	otherEvents := drain(other)
	assert.Empty(t, ofType(otherEvents, "gameCreated"))
	lists := ofType(otherEvents, "gameListUpdate")
	require.Len(t, lists, 1)
	rooms := lists[0]["rooms"].([]lobby.Snapshot)
	require.Len(t, rooms, 1)
	assert.Equal(t, "Table1", rooms[0].Name)
}

func TestCreateGameInvalid(t *testing.T) {
	gw := newTestGateway()
	s := connect(t, gw, "alice")
	other := connect(t, gw, "bob")

	gw.HandleIntent(s, map[string]interface{}{"type": "createGame", "name": "", "capacity": float64(3)})
	events := drain(s)
	require.Len(t, events, 1)
	assert.Equal(t, "createError", events[0]["type"])
	assert.Equal(t, "InvalidName", events[0]["reason"])

	gw.HandleIntent(s, map[string]interface{}{"type": "createGame", "name": "Table1", "capacity": float64(9)})
	events = drain(s)
	require.Len(t, events, 1)
	assert.Equal(t, "InvalidCapacity", events[0]["reason"])

	assert.Empty(t, drain(other), "rejections go to the requester only")
}

func TestJoinGameReadyBroadcastOnce(t *testing.T) {
	gw := newTestGateway()
	host := connect(t, gw, "alice")
	joiner := connect(t, gw, "bob")
	snap := createRoom(t, gw, host, "Table1", 2)
	drain(joiner)

	gw.HandleIntent(joiner, map[string]interface{}{"type": "joinGame", "roomId": snap.ID.String()})

	for _, s := range []*lobby.Session{host, joiner} {
		events := drain(s)
		joined := ofType(events, "playerJoined")
		require.Len(t, joined, 1)
		room := joined[0]["room"].(lobby.Snapshot)
		assert.Equal(t, lobby.StateReady, room.State)
		assert.Len(t, room.Players, 2)

		require.Len(t, ofType(events, "gameReady"), 1, "ready notification fires exactly once")
		require.Len(t, ofType(events, "gameListUpdate"), 1)
	}
}

func TestJoinGameRejections(t *testing.T) {
	gw := newTestGateway()
	host := connect(t, gw, "alice")
	joiner := connect(t, gw, "bob")
	late := connect(t, gw, "carol")
	snap := createRoom(t, gw, host, "Table1", 2)

	gw.HandleIntent(joiner, map[string]interface{}{"type": "joinGame", "roomId": snap.ID.String()})
	drain(host)
	drain(joiner)
	drain(late)

	gw.HandleIntent(late, map[string]interface{}{"type": "joinGame", "roomId": snap.ID.String()})
	events := drain(late)
	require.Len(t, events, 1, "rejection only, no broadcast")
	assert.Equal(t, "joinError", events[0]["type"])
	assert.Equal(t, "RoomFull", events[0]["reason"])
	assert.Empty(t, drain(host), "members see nothing on a failed join")

	gw.HandleIntent(late, map[string]interface{}{"type": "joinGame", "roomId": uuid.New().String()})
	events = drain(late)
	require.Len(t, events, 1)
	assert.Equal(t, "RoomNotFound", events[0]["reason"])
}

func TestJoinWhileInAnotherRoom(t *testing.T) {
	gw := newTestGateway()
	hostA := connect(t, gw, "alice")
	hostB := connect(t, gw, "bob")
	createRoom(t, gw, hostA, "TableA", 3)
	snapB := createRoom(t, gw, hostB, "TableB", 3)
	drain(hostA)

	gw.HandleIntent(hostA, map[string]interface{}{"type": "joinGame", "roomId": snapB.ID.String()})
	events := drain(hostA)
	require.Len(t, events, 1)
	assert.Equal(t, "joinError", events[0]["type"])
	assert.Equal(t, "AlreadyInAnotherRoom", events[0]["reason"])
}

func TestLeaveGameBroadcasts(t *testing.T) {
	gw := newTestGateway()
	host := connect(t, gw, "alice")
	joiner := connect(t, gw, "bob")
	snap := createRoom(t, gw, host, "Table1", 3)
	gw.HandleIntent(joiner, map[string]interface{}{"type": "joinGame", "roomId": snap.ID.String()})
	drain(host)
	drain(joiner)

	gw.HandleIntent(joiner, map[string]interface{}{"type": "leaveGame", "roomId": snap.ID.String()})

	hostEvents := drain(host)
	left := ofType(hostEvents, "playerLeft")
	require.Len(t, left, 1)
	room := left[0]["room"].(lobby.Snapshot)
	assert.Len(t, room.Players, 1)
}

func TestLeaveGameHostReassignment(t *testing.T) {
	gw := newTestGateway()
	host := connect(t, gw, "alice")
	second := connect(t, gw, "bob")
	snap := createRoom(t, gw, host, "Table1", 3)
	gw.HandleIntent(second, map[string]interface{}{"type": "joinGame", "roomId": snap.ID.String()})
	drain(host)
	drain(second)

	gw.HandleIntent(host, map[string]interface{}{"type": "leaveGame", "roomId": snap.ID.String()})

	left := ofType(drain(second), "playerLeft")
	require.Len(t, left, 1)
	room := left[0]["room"].(lobby.Snapshot)
	assert.Equal(t, second.ID, room.Host.ID)
}

// TestDisconnectRemovesRoom walks the spec's end-to-end scenario:
// alice creates a 2-seat table, bob fills it (gameReady), then alice's
// connection drops and bob sees the table vanish from the directory.
func TestDisconnectRemovesRoom(t *testing.T) {
	gw := newTestGateway()
	host := connect(t, gw, "alice")
	joiner := connect(t, gw, "bob")
	snap := createRoom(t, gw, host, "Table1", 2)

	gw.HandleIntent(joiner, map[string]interface{}{"type": "joinGame", "roomId": snap.ID.String()})
	require.Len(t, ofType(drain(joiner), "gameReady"), 1)
	drain(host)

	gw.Disconnect(host.ID)
	assert.Equal(t, 1, gw.SessionCount())

	// The disconnect forfeits alice's seat; bob is promoted and the
	// room reopens rather than closing under him.
	events := drain(joiner)
	left := ofType(events, "playerLeft")
	require.Len(t, left, 1)
	assert.Len(t, left[0]["room"].(lobby.Snapshot).Players, 1)

	// Bob leaves too; the room empties and disappears for everyone.
	gw.HandleIntent(joiner, map[string]interface{}{"type": "leaveGame", "roomId": snap.ID.String()})
	lists := ofType(drain(joiner), "gameListUpdate")
	require.NotEmpty(t, lists)
	assert.Empty(t, lists[len(lists)-1]["rooms"].([]lobby.Snapshot))
	assert.Equal(t, 0, gw.Directory.Len())
}

func TestDisconnectNoRoomIsSilent(t *testing.T) {
	gw := newTestGateway()
	s := connect(t, gw, "alice")
	other := connect(t, gw, "bob")

	gw.Disconnect(s.ID)
	assert.Empty(t, drain(other), "no broadcast for a roomless disconnect")
	assert.Equal(t, 1, gw.SessionCount())

	// Repeated disconnects for the same session are no-ops.
	gw.Disconnect(s.ID)
	assert.Equal(t, 1, gw.SessionCount())
}

func TestStartGame(t *testing.T) {
	gw := newTestGateway()
	host := connect(t, gw, "alice")
	joiner := connect(t, gw, "bob")
	snap := createRoom(t, gw, host, "Table1", 2)

	// Not full yet.
	gw.HandleIntent(host, map[string]interface{}{"type": "startGame", "roomId": snap.ID.String()})
	events := drain(host)
	require.Len(t, events, 1)
	assert.Equal(t, "startError", events[0]["type"])
	assert.Equal(t, "NotFull", events[0]["reason"])

	gw.HandleIntent(joiner, map[string]interface{}{"type": "joinGame", "roomId": snap.ID.String()})
	drain(host)
	drain(joiner)

	// Only the host may start.
	gw.HandleIntent(joiner, map[string]interface{}{"type": "startGame", "roomId": snap.ID.String()})
	events = drain(joiner)
	require.Len(t, events, 1)
	assert.Equal(t, "NotHost", events[0]["reason"])
	got, err := gw.Directory.GetRoom(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, lobby.StateReady, got.State, "rejected start leaves the room ready")

	gw.HandleIntent(host, map[string]interface{}{"type": "startGame", "roomId": snap.ID.String()})
	for _, s := range []*lobby.Session{host, joiner} {
		started := ofType(drain(s), "gameStarted")
		require.Len(t, started, 1)
		assert.Equal(t, lobby.StateInProgress, started[0]["room"].(lobby.Snapshot).State)
	}
}

func TestCompleteGame(t *testing.T) {
	gw := newTestGateway()
	host := connect(t, gw, "alice")
	joiner := connect(t, gw, "bob")
	snap := createRoom(t, gw, host, "Table1", 2)
	gw.HandleIntent(joiner, map[string]interface{}{"type": "joinGame", "roomId": snap.ID.String()})
	gw.HandleIntent(host, map[string]interface{}{"type": "startGame", "roomId": snap.ID.String()})
	drain(host)
	drain(joiner)

	require.NoError(t, gw.CompleteGame(snap.ID))
	assert.Equal(t, 0, gw.Directory.Len())

	lists := ofType(drain(joiner), "gameListUpdate")
	require.Len(t, lists, 1)
	assert.Empty(t, lists[0]["rooms"].([]lobby.Snapshot))

	assert.ErrorIs(t, gw.CompleteGame(snap.ID), lobby.ErrRoomNotFound)
}

func TestUnknownIntent(t *testing.T) {
	gw := newTestGateway()
	s := connect(t, gw, "alice")

	gw.HandleIntent(s, map[string]interface{}{"type": "dealCards"})
	events := drain(s)
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0]["type"])
}
