// internal/handlers/gateway.go
package handlers

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"whist-lobby/internal/lobby"
)

// Gateway is the sole entry point for client intents and the sole
// broadcaster of lobby state. It owns the session id -> connection
// routing table; the Directory owns the rooms. Intents are applied one
// at a time, so every client observes roster changes in the order the
// directory committed them. Broadcasting is pure queue-enqueue and
// never blocks on a slow connection.
type Gateway struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*lobby.Session

	Directory *lobby.Directory

	logger *logrus.Logger
}

// NewGateway wires a gateway to its directory.
func NewGateway(logger *logrus.Logger, dir *lobby.Directory) *Gateway {
	return &Gateway{
		sessions:  make(map[uuid.UUID]*lobby.Session),
		Directory: dir,
		logger:    logger,
	}
}

// Register adds a freshly accepted connection's session to the routing
// table. The session is unnamed until setName succeeds.
func (gw *Gateway) Register(s *lobby.Session) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.sessions[s.ID] = s
}

// SessionCount reports the number of connected sessions.
func (gw *Gateway) SessionCount() int {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	return len(gw.sessions)
}

// HandleIntent dispatches one decoded client event. Unknown or
// malformed intents are answered with a generic error event and
// otherwise ignored; they never take down the session.
func (gw *Gateway) HandleIntent(s *lobby.Session, packet map[string]interface{}) {
	intent, _ := packet["type"].(string)

	gw.mu.Lock()
	defer gw.mu.Unlock()

	// A heartbeat timeout may have forfeited this session while the
	// intent was in flight; the disconnect already won at the
	// serialization point.
	if _, ok := gw.sessions[s.ID]; !ok {
		gw.logger.WithField("session", s.ID).Warn("dropping intent from disconnected session")
		return
	}

	if intent != "setName" && !s.Named() {
		s.SendError("set a display name first")
		return
	}

	switch intent {
	case "setName":
		gw.handleSetName(s, packet)
	case "createGame":
		gw.handleCreateGame(s, packet)
	case "joinGame":
		gw.handleJoinGame(s, packet)
	case "leaveGame":
		gw.handleLeaveGame(s, packet)
	case "startGame":
		gw.handleStartGame(s, packet)
	default:
		gw.logger.WithFields(logrus.Fields{
			"session": s.ID,
			"intent":  intent,
		}).Warn("unknown intent")
		s.SendError("unknown intent type: " + intent)
	}
}

func (gw *Gateway) handleSetName(s *lobby.Session, packet map[string]interface{}) {
	name, _ := packet["displayName"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		s.Send(map[string]interface{}{
			"type":   "nameError",
			"reason": reason(lobby.ErrInvalidName),
		})
		return
	}

	s.DisplayName = name
	s.Send(map[string]interface{}{
		"type":      "nameAck",
		"sessionId": s.ID.String(),
	})
	// New arrivals render the open-games list immediately.
	s.Send(gw.gameListEvent())

	gw.logger.WithFields(logrus.Fields{
		"session": s.ID,
		"name":    name,
	}).Info("session named")
}

func (gw *Gateway) handleCreateGame(s *lobby.Session, packet map[string]interface{}) {
	name, _ := packet["name"].(string)
	capacity, ok := intField(packet, "capacity")
	if !ok {
		gw.rejectCreate(s, lobby.ErrInvalidCapacity)
		return
	}

	snap, err := gw.Directory.CreateRoom(name, s, capacity)
	if err != nil {
		gw.rejectCreate(s, err)
		return
	}

	s.Send(map[string]interface{}{"type": "gameCreated", "room": snap})
	gw.broadcastAll(gw.gameListEvent())
}

func (gw *Gateway) handleJoinGame(s *lobby.Session, packet map[string]interface{}) {
	roomID, ok := roomIDField(packet)
	if !ok {
		gw.rejectJoin(s, lobby.ErrRoomNotFound)
		return
	}

	snap, becameReady, err := gw.Directory.JoinRoom(roomID, s)
	if err != nil {
		gw.rejectJoin(s, err)
		return
	}

	gw.broadcastRoom(snap, map[string]interface{}{"type": "playerJoined", "room": snap})
	if becameReady {
		gw.broadcastRoom(snap, map[string]interface{}{"type": "gameReady", "room": snap})
	}
	gw.broadcastAll(gw.gameListEvent())
}

func (gw *Gateway) handleLeaveGame(s *lobby.Session, packet map[string]interface{}) {
	roomID, ok := roomIDField(packet)
	if !ok {
		gw.rejectLeave(s, lobby.ErrRoomNotFound)
		return
	}
	gw.leaveLocked(s, roomID, true)
}

func (gw *Gateway) handleStartGame(s *lobby.Session, packet map[string]interface{}) {
	roomID, ok := roomIDField(packet)
	if !ok {
		gw.rejectStart(s, lobby.ErrRoomNotFound)
		return
	}

	// Host check precedes the transition so a rejected start leaves the
	// room untouched. gw.mu serializes intents, so the two directory
	// calls cannot interleave with another mutation.
	current, err := gw.Directory.GetRoom(roomID)
	if err != nil {
		gw.rejectStart(s, err)
		return
	}
	if current.Host.ID != s.ID {
		gw.rejectStart(s, lobby.ErrNotHost)
		return
	}

	snap, err := gw.Directory.MarkReady(roomID)
	if err != nil {
		gw.rejectStart(s, err)
		return
	}

	gw.broadcastRoom(snap, map[string]interface{}{"type": "gameStarted", "room": snap})
	gw.broadcastAll(gw.gameListEvent())
}

// Disconnect is the presence monitor's single entry point for a dead
// connection. Membership forfeiture runs through the same leave path as
// an explicit leaveGame; a session in no room is a silent no-op.
func (gw *Gateway) Disconnect(sessionID uuid.UUID) {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	s, ok := gw.sessions[sessionID]
	if !ok {
		return
	}
	delete(gw.sessions, sessionID)

	if roomID, inRoom := gw.Directory.RoomOf(sessionID); inRoom {
		gw.leaveLocked(s, roomID, false)
	}

	if s.Cancel != nil {
		s.Cancel()
	}
	gw.logger.WithField("session", sessionID).Info("session disconnected")
}

// leaveLocked applies a departure and broadcasts the outcome. Caller
// holds gw.mu. notify controls whether a rejection is reported back;
// disconnect-triggered departures fail silently.
func (gw *Gateway) leaveLocked(s *lobby.Session, roomID uuid.UUID, notify bool) {
	snap, removed, err := gw.Directory.LeaveRoom(roomID, s.ID)
	if err != nil {
		if notify {
			gw.rejectLeave(s, err)
		}
		return
	}

	if removed {
		gw.broadcastAll(gw.gameListEvent())
		return
	}
	gw.broadcastRoom(snap, map[string]interface{}{"type": "playerLeft", "room": snap})
	gw.broadcastAll(gw.gameListEvent())
}

// CompleteGame is the rules engine's completion callback. The room is
// closed and every connected client sees it leave the directory.
func (gw *Gateway) CompleteGame(roomID uuid.UUID) error {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	if _, err := gw.Directory.CompleteRoom(roomID); err != nil {
		return err
	}
	gw.broadcastAll(gw.gameListEvent())
	return nil
}

// gameListEvent builds the full-directory sync event from the committed
// directory state.
func (gw *Gateway) gameListEvent() map[string]interface{} {
	return map[string]interface{}{
		"type":  "gameListUpdate",
		"rooms": gw.Directory.ListRooms(),
	}
}

// broadcastAll enqueues the event to every connected session.
func (gw *Gateway) broadcastAll(msg map[string]interface{}) {
	for _, s := range gw.sessions {
		s.Send(msg)
	}
}

// broadcastRoom enqueues the event to every member of the snapshot.
// Routing goes through the table, not the snapshot, so a member whose
// connection is already gone is skipped.
func (gw *Gateway) broadcastRoom(snap lobby.Snapshot, msg map[string]interface{}) {
	for _, id := range snap.MemberIDs() {
		if s, ok := gw.sessions[id]; ok {
			s.Send(msg)
		}
	}
}

func (gw *Gateway) rejectCreate(s *lobby.Session, err error) {
	s.Send(map[string]interface{}{"type": "createError", "reason": reason(err)})
}

func (gw *Gateway) rejectJoin(s *lobby.Session, err error) {
	s.Send(map[string]interface{}{"type": "joinError", "reason": reason(err)})
}

func (gw *Gateway) rejectLeave(s *lobby.Session, err error) {
	s.Send(map[string]interface{}{"type": "leaveError", "reason": reason(err)})
}

func (gw *Gateway) rejectStart(s *lobby.Session, err error) {
	s.Send(map[string]interface{}{"type": "startError", "reason": reason(err)})
}

// reason maps directory sentinels onto stable wire reason codes.
func reason(err error) string {
	switch {
	case errors.Is(err, lobby.ErrInvalidName):
		return "InvalidName"
	case errors.Is(err, lobby.ErrInvalidCapacity):
		return "InvalidCapacity"
	case errors.Is(err, lobby.ErrRoomNotFound):
		return "RoomNotFound"
	case errors.Is(err, lobby.ErrRoomFull):
		return "RoomFull"
	case errors.Is(err, lobby.ErrAlreadyMember):
		return "AlreadyMember"
	case errors.Is(err, lobby.ErrAlreadyInAnotherRoom):
		return "AlreadyInAnotherRoom"
	case errors.Is(err, lobby.ErrNotMember):
		return "NotMember"
	case errors.Is(err, lobby.ErrNotFull):
		return "NotFull"
	case errors.Is(err, lobby.ErrNotHost):
		return "NotHost"
	case errors.Is(err, lobby.ErrRoomInProgress):
		return "RoomInProgress"
	default:
		return "Internal"
	}
}

// intField reads a numeric packet field, accepting the float64 that
// encoding/json produces for JSON numbers.
func intField(packet map[string]interface{}, key string) (int, bool) {
	switch v := packet[key].(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

// roomIDField parses the roomId packet field.
func roomIDField(packet map[string]interface{}) (uuid.UUID, bool) {
	raw, _ := packet["roomId"].(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
