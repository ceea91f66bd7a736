// internal/lobby/errors.go
package lobby

import "errors"

// Directory operation failures. All are local validation errors: the
// operation that returned one left directory state untouched.
var (
	ErrInvalidName          = errors.New("name must not be empty")
	ErrInvalidCapacity      = errors.New("capacity out of range")
	ErrRoomNotFound         = errors.New("room not found")
	ErrRoomFull             = errors.New("room is full")
	ErrAlreadyMember        = errors.New("session is already a member of this room")
	ErrAlreadyInAnotherRoom = errors.New("session already belongs to a room")
	ErrNotMember            = errors.New("session is not a member of this room")
	ErrNotFull              = errors.New("room has open seats")
	ErrNotHost              = errors.New("only the host may start the game")
	ErrRoomInProgress       = errors.New("room is in progress")
)
