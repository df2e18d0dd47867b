// internal/registry/registry.go
package registry

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/marousta/njmpu-api/internal/events"
	"github.com/marousta/njmpu-api/internal/models"
)

// Registry tracks every open, authenticated, persistent connection per user.
// It is the sole owner of Connection objects; lobbies only carry weak
// references resolved back through it.
type Registry struct {
	mu     sync.Mutex
	conns  map[uuid.UUID]*models.Connection
	byUser map[uuid.UUID]map[uuid.UUID]*models.Connection

	log *logrus.Logger
}

func New(log *logrus.Logger) *Registry {
	return &Registry{
		conns:  make(map[uuid.UUID]*models.Connection),
		byUser: make(map[uuid.UUID]map[uuid.UUID]*models.Connection),
		log:    log,
	}
}

// Register adds a connection. Registering the same connection id twice is a
// no-op.
func (r *Registry) Register(conn *models.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[conn.ID]; exists {
		return
	}
	r.conns[conn.ID] = conn
	userConns, ok := r.byUser[conn.UserID]
	if !ok {
		userConns = make(map[uuid.UUID]*models.Connection)
		r.byUser[conn.UserID] = userConns
	}
	userConns[conn.ID] = conn
	r.log.WithFields(logrus.Fields{
		"connection": conn.ID,
		"user":       conn.UserID,
	}).Info("Connection registered")
}

// Unregister removes a connection. Unregistering an unknown connection id is
// a no-op.
func (r *Registry) Unregister(conn *models.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[conn.ID]; !exists {
		return
	}
	delete(r.conns, conn.ID)
	if userConns, ok := r.byUser[conn.UserID]; ok {
		delete(userConns, conn.ID)
		if len(userConns) == 0 {
			delete(r.byUser, conn.UserID)
		}
	}
	r.log.WithFields(logrus.Fields{
		"connection": conn.ID,
		"user":       conn.UserID,
	}).Info("Connection unregistered")
}

// Get resolves a connection id.
func (r *Registry) Get(connID uuid.UUID) (*models.Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[connID]
	return c, ok
}

// Connections returns every live connection owned by the user.
func (r *Registry) Connections(userID uuid.UUID) []*models.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := make([]*models.Connection, 0, len(r.byUser[userID]))
	for _, c := range r.byUser[userID] {
		conns = append(conns, c)
	}
	return conns
}

// All returns every live connection across all users.
func (r *Registry) All() []*models.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := make([]*models.Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	return conns
}

// Send pushes an event to one connection. It fails closed: if the
// connection's credential has expired, the requested payload is replaced by
// a single token_expired notice and false is returned. Callers must not
// assume delivery.
func (r *Registry) Send(conn *models.Connection, ev events.Event) bool {
	if conn.Expired() {
		conn.Write(events.TokenExpired())
		r.log.WithFields(logrus.Fields{
			"connection": conn.ID,
			"user":       conn.UserID,
		}).Warn("Send refused, credential expired")
		return false
	}
	return conn.Write(ev)
}

// SetAffiliation writes a lobby affiliation onto a connection.
func (r *Registry) SetAffiliation(conn *models.Connection, lobbyID uuid.UUID, spectator bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn.Lobby = &models.LobbyAffiliation{LobbyID: lobbyID, Spectator: spectator}
}

// ClearAffiliation removes any lobby affiliation from a connection.
func (r *Registry) ClearAffiliation(conn *models.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn.Lobby = nil
}

// StatusOf classifies a user from the current connection set. Any lobby
// affiliation counts as InGame for the purpose of blocking further
// matchmaking entry; the affiliation detail distinguishes spectating. A
// player affiliation always wins over a spectator one, regardless of
// connection iteration order, so a user playing on one device while
// spectating on another is reported as a player.
func (r *Registry) StatusOf(userID uuid.UUID) (models.UserStatus, *models.LobbyAffiliation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userConns, ok := r.byUser[userID]
	if !ok || len(userConns) == 0 {
		return models.StatusOffline, nil
	}
	var spectating *models.LobbyAffiliation
	for _, c := range userConns {
		if c.Lobby == nil {
			continue
		}
		if !c.Lobby.Spectator {
			return models.StatusInGame, c.Lobby
		}
		spectating = c.Lobby
	}
	if spectating != nil {
		return models.StatusInGame, spectating
	}
	return models.StatusOnline, nil
}
