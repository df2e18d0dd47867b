// internal/models/models.go
package models

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/marousta/njmpu-api/internal/events"
)

// UserStatus is the presence state pushed back out to the user directory
// after every transition.
type UserStatus string

const (
	StatusOffline UserStatus = "offline"
	StatusOnline  UserStatus = "online"
	StatusInGame  UserStatus = "ingame"
)

// PlayerStatus tracks a player slot through the lobby lifecycle.
type PlayerStatus string

const (
	PlayerInvited PlayerStatus = "invited"
	PlayerJoined  PlayerStatus = "joined"
	PlayerReady   PlayerStatus = "ready"
)

// PlayerRole identifies one of the two player slots of a lobby.
type PlayerRole int

const (
	RolePlayer1 PlayerRole = 1
	RolePlayer2 PlayerRole = 2
)

// Winner is the final outcome of a finished game.
type Winner string

const (
	WinnerPlayer1 Winner = "player1"
	WinnerPlayer2 Winner = "player2"
	WinnerTie     Winner = "tie"
)

// User is the minimal profile this subsystem needs for display. It is owned
// by the user directory; only the status flag is ever written back.
type User struct {
	ID       uuid.UUID  `json:"uuid"`
	Email    string     `json:"email,omitempty"`
	Username string     `json:"username"`
	Password string     `json:"-"`
	Status   UserStatus `json:"status"`
}

// LobbyAffiliation is the weak back-reference written onto a connection when
// its owner enters a lobby. Nil means unaffiliated.
type LobbyAffiliation struct {
	LobbyID   uuid.UUID
	Spectator bool
}

// Connection is one live, authenticated transport session. A user may own
// zero or many of these (multi-device). The registry owns the lifecycle;
// everything else holds it as a non-owning pointer.
type Connection struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	TokenExpiry time.Time // zero value means the credential never expires

	// Lobby is written by the lobby state machine through the registry,
	// never directly.
	Lobby *LobbyAffiliation

	OutChan chan events.Event
	Cancel  context.CancelFunc
}

// Expired reports whether the connection's cached credential has lapsed.
func (c *Connection) Expired() bool {
	return !c.TokenExpiry.IsZero() && time.Now().After(c.TokenExpiry)
}

// Write pushes an event onto the connection's outgoing channel without
// blocking. Events to a closed or saturated channel are dropped; the write
// pump owns actual delivery.
func (c *Connection) Write(ev events.Event) bool {
	select {
	case c.OutChan <- ev:
		return true
	default:
		return false
	}
}

// LobbySnapshot is the immutable view of a finished lobby handed to the
// history collaborator.
type LobbySnapshot struct {
	LobbyID      uuid.UUID `json:"lobby_uuid"`
	Player1      uuid.UUID `json:"player1_uuid"`
	Player2      uuid.UUID `json:"player2_uuid"`
	Player1Score int       `json:"player1_score"`
	Player2Score int       `json:"player2_score"`
	Matchmaking  bool      `json:"matchmaking"`
	EndedAt      time.Time `json:"ended_at"`
}
