// internal/lobby/room.go
package lobby

import "github.com/google/uuid"

// State is a room's lifecycle phase.
type State string

const (
	// StateOpen means the roster has free seats.
	StateOpen State = "open"
	// StateReady means the roster is at capacity and the room can be
	// handed to the rules engine.
	StateReady State = "ready"
	// StateInProgress means the rules engine owns the room; the roster
	// is frozen.
	StateInProgress State = "in_progress"
	// StateClosed means the game finished; the room is gone from the
	// directory.
	StateClosed State = "closed"
)

// Room is a single game instance in formation. Rooms are owned by the
// Directory; nothing outside this package touches one directly, and all
// state that leaves the package leaves as a Snapshot.
type Room struct {
	ID       uuid.UUID
	Name     string
	HostID   uuid.UUID
	Capacity int

	// roster holds members in join order. roster[0] is the earliest
	// remaining member, which is what host reassignment promotes.
	roster []*Session

	State State
}

// PlayerInfo is a session's wire representation inside a snapshot.
type PlayerInfo struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"displayName"`
}

// Snapshot is an immutable copy of a room at a committed mutation,
// safe to hand to broadcasters and the rules engine after the
// directory lock is released.
type Snapshot struct {
	ID       uuid.UUID    `json:"id"`
	Name     string       `json:"name"`
	Host     PlayerInfo   `json:"host"`
	Players  []PlayerInfo `json:"players"`
	Capacity int          `json:"capacity"`
	State    State        `json:"state"`
}

// MemberIDs returns the session ids in the snapshot, in roster order.
func (s Snapshot) MemberIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(s.Players))
	for i, p := range s.Players {
		ids[i] = p.ID
	}
	return ids
}

func newRoom(name string, host *Session, capacity int) *Room {
	r := &Room{
		ID:       uuid.New(),
		Name:     name,
		HostID:   host.ID,
		Capacity: capacity,
		roster:   []*Session{host},
	}
	r.recomputeState()
	return r
}

// memberIndex returns the roster position of the session id, or -1.
func (r *Room) memberIndex(id uuid.UUID) int {
	for i, s := range r.roster {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// addMember appends the session preserving join order. Caller has
// already checked capacity and duplicate membership.
func (r *Room) addMember(s *Session) {
	r.roster = append(r.roster, s)
	r.recomputeState()
}

// removeMember drops the session at roster index i. If the host left
// and members remain, the earliest remaining member is promoted so the
// room is never leaderless.
func (r *Room) removeMember(i int) {
	departing := r.roster[i]
	r.roster = append(r.roster[:i], r.roster[i+1:]...)
	if departing.ID == r.HostID && len(r.roster) > 0 {
		r.HostID = r.roster[0].ID
	}
	r.recomputeState()
}

// recomputeState derives Open/Ready from roster length. InProgress and
// Closed are explicit transitions and never recomputed away.
func (r *Room) recomputeState() {
	if r.State == StateInProgress || r.State == StateClosed {
		return
	}
	if len(r.roster) == r.Capacity {
		r.State = StateReady
	} else {
		r.State = StateOpen
	}
}

// snapshot deep-copies the room for use outside the directory lock.
func (r *Room) snapshot() Snapshot {
	players := make([]PlayerInfo, len(r.roster))
	var host PlayerInfo
	for i, s := range r.roster {
		players[i] = s.Info()
		if s.ID == r.HostID {
			host = players[i]
		}
	}
	return Snapshot{
		ID:       r.ID,
		Name:     r.Name,
		Host:     host,
		Players:  players,
		Capacity: r.Capacity,
		State:    r.State,
	}
}
