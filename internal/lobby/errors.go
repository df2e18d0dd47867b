// internal/lobby/errors.go
package lobby

import "errors"

var (
	// ErrNotFound: the lobby uuid resolves to nothing. Surfaced, non-fatal.
	ErrNotFound = errors.New("lobby not found")
	// ErrAlreadyIn: the actor already holds the slot they are asking for.
	ErrAlreadyIn = errors.New("user already in lobby")
	// ErrGameFull: the spectator cap has been reached.
	ErrGameFull = errors.New("game full")
	// ErrNotInLobby: the actor holds neither player slot.
	ErrNotInLobby = errors.New("user not in lobby")
	// ErrNoConnection: the supplied connection id does not resolve to a live
	// connection owned by the actor.
	ErrNoConnection = errors.New("no matching connection")
	// ErrInvalidInvitation: decline/invite against a slot in the wrong state.
	ErrInvalidInvitation = errors.New("invalid invitation")
	// ErrConsistency: a prior bug left state that should be impossible, e.g.
	// a user bound to more than one lobby. Fatal to the operation only.
	ErrConsistency = errors.New("lobby consistency violation")
)
