// internal/lobby/lobby.go
package lobby

import (
	"sync"

	"github.com/google/uuid"

	"github.com/marousta/njmpu-api/internal/models"
)

// Lobby is the pre/in/post-game session record: exactly two player slots and
// a bounded set of spectators. All state is volatile; nothing survives a
// process restart.
type Lobby struct {
	ID          uuid.UUID `json:"uuid"`
	Matchmaking bool      `json:"matchmaking"`
	GameStarted bool      `json:"game_started"`
	GameEnded   bool      `json:"game_ended"`

	// Player1 is always set. Player2 is uuid.Nil while the slot is empty or
	// only invited.
	Player1       uuid.UUID           `json:"player1_uuid"`
	Player2       uuid.UUID           `json:"player2_uuid,omitempty"`
	Player1Status models.PlayerStatus `json:"player1_status"`
	Player2Status models.PlayerStatus `json:"player2_status"`
	Player1Color  string              `json:"player1_color,omitempty"`
	Player2Color  string              `json:"player2_color,omitempty"`

	// Spectators is the set of spectating users, bounded by max_spectators.
	Spectators map[uuid.UUID]bool `json:"-"`

	// At most one connection per player role at a time; binding a new one
	// supersedes the old one for that role. Spectator connections are keyed
	// by connection id.
	Player1Conn    *models.Connection               `json:"-"`
	Player2Conn    *models.Connection               `json:"-"`
	SpectatorConns map[uuid.UUID]*models.Connection `json:"-"`

	Mu sync.Mutex `json:"-"`
}

func newLobby(player1 uuid.UUID) *Lobby {
	id, _ := uuid.NewRandom()
	return &Lobby{
		ID:             id,
		Player1:        player1,
		Player1Status:  models.PlayerJoined,
		Player2Status:  models.PlayerInvited,
		Spectators:     make(map[uuid.UUID]bool),
		SpectatorConns: make(map[uuid.UUID]*models.Connection),
	}
}

// roleOfUnsafe resolves a user to a player role, or 0 if they hold neither
// slot. Assumes lock is held.
func (l *Lobby) roleOfUnsafe(userID uuid.UUID) models.PlayerRole {
	if userID == l.Player1 {
		return models.RolePlayer1
	}
	if l.Player2 != uuid.Nil && userID == l.Player2 {
		return models.RolePlayer2
	}
	return 0
}

// memberConnsUnsafe gathers every connection currently bound to the lobby:
// both player slots plus spectators. Assumes lock is held.
func (l *Lobby) memberConnsUnsafe() []*models.Connection {
	conns := make([]*models.Connection, 0, 2+len(l.SpectatorConns))
	if l.Player1Conn != nil {
		conns = append(conns, l.Player1Conn)
	}
	if l.Player2Conn != nil {
		conns = append(conns, l.Player2Conn)
	}
	for _, c := range l.SpectatorConns {
		conns = append(conns, c)
	}
	return conns
}

// spectatorConnsUnsafe gathers spectator connections only. Assumes lock is held.
func (l *Lobby) spectatorConnsUnsafe() []*models.Connection {
	conns := make([]*models.Connection, 0, len(l.SpectatorConns))
	for _, c := range l.SpectatorConns {
		conns = append(conns, c)
	}
	return conns
}

// spectatorConnsOfUnsafe gathers the spectator connections owned by one
// user. Assumes lock is held.
func (l *Lobby) spectatorConnsOfUnsafe(userID uuid.UUID) []*models.Connection {
	var conns []*models.Connection
	for _, c := range l.SpectatorConns {
		if c.UserID == userID {
			conns = append(conns, c)
		}
	}
	return conns
}

// Store manages active lobbies in memory with thread-safe access.
type Store struct {
	mu      sync.Mutex
	lobbies map[uuid.UUID]*Lobby
}

func NewStore() *Store {
	return &Store{lobbies: make(map[uuid.UUID]*Lobby)}
}

func (s *Store) Add(l *Lobby) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lobbies[l.ID] = l
}

func (s *Store) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lobbies, id)
}

func (s *Store) Get(id uuid.UUID) (*Lobby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[id]
	return l, ok
}

// FindByPlayer returns every lobby holding the user in a player slot. More
// than one result indicates a prior bug; callers treat it as a consistency
// violation.
func (s *Store) FindByPlayer(userID uuid.UUID) []*Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Lobby
	for _, l := range s.lobbies {
		l.Mu.Lock()
		if l.roleOfUnsafe(userID) != 0 {
			out = append(out, l)
		}
		l.Mu.Unlock()
	}
	return out
}

// List returns the active lobbies as a slice for listing or debugging.
func (s *Store) List() []*Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Lobby, 0, len(s.lobbies))
	for _, l := range s.lobbies {
		out = append(out, l)
	}
	return out
}
