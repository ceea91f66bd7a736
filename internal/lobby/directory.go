// internal/lobby/directory.go
package lobby

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Directory is the authoritative owner of every room. Every mutation is
// a single atomic step under one mutex: no caller can observe a roster
// mid-change, and a failed operation leaves nothing behind. Nothing is
// broadcast from here; callers fan out the returned snapshots after the
// mutation has committed.
type Directory struct {
	mu sync.Mutex

	rooms map[uuid.UUID]*Room
	// order preserves creation order for listing; map iteration order
	// is not stable.
	order []uuid.UUID
	// sessionRoom enforces one room per session.
	sessionRoom map[uuid.UUID]uuid.UUID

	minCapacity int
	maxCapacity int

	logger *logrus.Logger
}

// NewDirectory returns an empty directory accepting room capacities in
// [minCapacity, maxCapacity].
func NewDirectory(logger *logrus.Logger, minCapacity, maxCapacity int) *Directory {
	return &Directory{
		rooms:       make(map[uuid.UUID]*Room),
		sessionRoom: make(map[uuid.UUID]uuid.UUID),
		minCapacity: minCapacity,
		maxCapacity: maxCapacity,
		logger:      logger,
	}
}

// CreateRoom registers a new room hosted by the given session, with the
// host as its only member.
func (d *Directory) CreateRoom(name string, host *Session, capacity int) (Snapshot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Snapshot{}, ErrInvalidName
	}
	if capacity < d.minCapacity || capacity > d.maxCapacity {
		return Snapshot{}, ErrInvalidCapacity
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, inRoom := d.sessionRoom[host.ID]; inRoom {
		return Snapshot{}, ErrAlreadyInAnotherRoom
	}

	room := newRoom(name, host, capacity)
	d.rooms[room.ID] = room
	d.order = append(d.order, room.ID)
	d.sessionRoom[host.ID] = room.ID

	d.logger.WithFields(logrus.Fields{
		"room_id":  room.ID,
		"name":     name,
		"host":     host.ID,
		"capacity": capacity,
	}).Info("room created")

	return room.snapshot(), nil
}

// JoinRoom appends the session to the room's roster. becameReady is
// true when this join filled the last seat, so the caller fires the
// ready notification exactly once.
func (d *Directory) JoinRoom(roomID uuid.UUID, s *Session) (snap Snapshot, becameReady bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[roomID]
	if !ok {
		return Snapshot{}, false, ErrRoomNotFound
	}
	if current, inRoom := d.sessionRoom[s.ID]; inRoom {
		if current == roomID {
			return Snapshot{}, false, ErrAlreadyMember
		}
		return Snapshot{}, false, ErrAlreadyInAnotherRoom
	}
	if room.State == StateInProgress {
		return Snapshot{}, false, ErrRoomInProgress
	}
	if len(room.roster) >= room.Capacity {
		return Snapshot{}, false, ErrRoomFull
	}

	room.addMember(s)
	d.sessionRoom[s.ID] = roomID

	d.logger.WithFields(logrus.Fields{
		"room_id": roomID,
		"session": s.ID,
		"seats":   len(room.roster),
	}).Info("session joined room")

	return room.snapshot(), room.State == StateReady, nil
}

// LeaveRoom removes the session from the room. removed is true when the
// departure emptied the room and it was dropped from the directory.
// Rooms in progress reject membership changes; the rules engine owns
// them until CompleteRoom.
func (d *Directory) LeaveRoom(roomID, sessionID uuid.UUID) (snap Snapshot, removed bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[roomID]
	if !ok {
		return Snapshot{}, false, ErrRoomNotFound
	}
	i := room.memberIndex(sessionID)
	if i < 0 {
		return Snapshot{}, false, ErrNotMember
	}
	if room.State == StateInProgress {
		return Snapshot{}, false, ErrRoomInProgress
	}

	room.removeMember(i)
	delete(d.sessionRoom, sessionID)

	if len(room.roster) == 0 {
		d.dropRoomLocked(roomID)
		d.logger.WithFields(logrus.Fields{
			"room_id": roomID,
			"session": sessionID,
		}).Info("last member left, room removed")
		return room.snapshot(), true, nil
	}

	d.logger.WithFields(logrus.Fields{
		"room_id": roomID,
		"session": sessionID,
		"host":    room.HostID,
	}).Info("session left room")

	return room.snapshot(), false, nil
}

// RoomOf returns the id of the room the session currently occupies.
func (d *Directory) RoomOf(sessionID uuid.UUID) (uuid.UUID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.sessionRoom[sessionID]
	return id, ok
}

// GetRoom returns a snapshot of a single room.
func (d *Directory) GetRoom(roomID uuid.UUID) (Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	room, ok := d.rooms[roomID]
	if !ok {
		return Snapshot{}, ErrRoomNotFound
	}
	return room.snapshot(), nil
}

// ListRooms returns snapshots of every room in creation order.
func (d *Directory) ListRooms() []Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	snaps := make([]Snapshot, 0, len(d.order))
	for _, id := range d.order {
		snaps = append(snaps, d.rooms[id].snapshot())
	}
	return snaps
}

// Len reports the number of registered rooms.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rooms)
}

// MarkReady hands a full room to the rules engine: Ready -> InProgress.
func (d *Directory) MarkReady(roomID uuid.UUID) (Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[roomID]
	if !ok {
		return Snapshot{}, ErrRoomNotFound
	}
	if room.State == StateInProgress {
		return Snapshot{}, ErrRoomInProgress
	}
	if room.State != StateReady {
		return Snapshot{}, ErrNotFull
	}

	room.State = StateInProgress
	d.logger.WithField("room_id", roomID).Info("room handed off to rules engine")
	return room.snapshot(), nil
}

// CompleteRoom is the rules engine's completion callback: the room is
// closed and unregistered, and its members are free to join again.
func (d *Directory) CompleteRoom(roomID uuid.UUID) (Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[roomID]
	if !ok {
		return Snapshot{}, ErrRoomNotFound
	}

	room.State = StateClosed
	for _, s := range room.roster {
		delete(d.sessionRoom, s.ID)
	}
	d.dropRoomLocked(roomID)

	d.logger.WithField("room_id", roomID).Info("game complete, room closed")
	return room.snapshot(), nil
}

// dropRoomLocked unregisters the room. Caller holds d.mu.
func (d *Directory) dropRoomLocked(roomID uuid.UUID) {
	delete(d.rooms, roomID)
	for i, id := range d.order {
		if id == roomID {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}
