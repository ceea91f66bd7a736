// internal/lobby/session.go
package lobby

import (
	"log"

	"github.com/google/uuid"
)

// Session is one connected client: an opaque id, the display name it
// claimed, and the outbound queue its write pump drains. The id is the
// session's identity everywhere; the display name is decoration and may
// repeat across sessions.
type Session struct {
	ID          uuid.UUID
	DisplayName string

	// Out carries server->client events to the connection's write pump.
	// Writers must go through Send.
	Out chan map[string]interface{}

	// Cancel tears down the goroutines attached to the connection.
	Cancel func()
}

// NewSession creates an unnamed session with a fresh id and a buffered
// outbound queue. The session stays unnamed until setName succeeds.
func NewSession(cancel func()) *Session {
	return &Session{
		ID:     uuid.New(),
		Out:    make(chan map[string]interface{}, 16),
		Cancel: cancel,
	}
}

// Named reports whether the session has completed name registration.
func (s *Session) Named() bool {
	return s.DisplayName != ""
}

// Send pushes an event onto the session's outbound queue without
// blocking. A full queue means the connection is stalled or gone; the
// event is dropped and logged rather than holding up the caller.
func (s *Session) Send(msg map[string]interface{}) {
	select {
	case s.Out <- msg:
	default:
		msgType, _ := msg["type"].(string)
		log.Printf("Session %s: outbound queue full or closed, dropped %q", s.ID, msgType)
	}
}

// SendError is a convenience for the generic error event.
func (s *Session) SendError(message string) {
	s.Send(map[string]interface{}{
		"type":    "error",
		"message": message,
	})
}

// Info returns the session's wire representation.
func (s *Session) Info() PlayerInfo {
	return PlayerInfo{ID: s.ID, DisplayName: s.DisplayName}
}
