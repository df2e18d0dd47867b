// internal/game/session.go
package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/marousta/njmpu-api/internal/lobby"
	"github.com/marousta/njmpu-api/internal/models"
)

const (
	// TickRate is the fixed engine advance frequency.
	TickRate = 60
	// WinThreshold ends the game as soon as either score reaches it.
	WinThreshold = 11
)

// ErrSessionExists: a new session must never be started over a live one.
// This indicates a prior bug and is fatal to the operation.
var ErrSessionExists = errors.New("session already exists for lobby")

// Engine is the opaque physics collaborator. The adapter only starts it,
// feeds it inputs and elapsed time, and reads scores at termination.
type Engine interface {
	Advance(deltaSeconds float64)
	ApplyInput(role models.PlayerRole, move string)
	Score(role models.PlayerRole) int
	UpdateSpectators(conns []*models.Connection)
}

// EngineFactory builds one engine instance bound to the two player
// connections and the current spectator set.
type EngineFactory func(lobbyID uuid.UUID, p1, p2 *models.Connection, spectators []*models.Connection) Engine

// Recorder persists the final lobby snapshot. Failures are logged, never
// rolled back into session state.
type Recorder interface {
	Record(ctx context.Context, snapshot models.LobbySnapshot, winner models.Winner) error
}

// Session binds one lobby to one running engine instance and its tick timer.
type Session struct {
	LobbyID     uuid.UUID
	Player1     uuid.UUID
	Player2     uuid.UUID
	Matchmaking bool

	engine Engine
	p1Conn *models.Connection
	p2Conn *models.Connection
	stop   chan struct{}
}

// Adapter owns all live game sessions, 1:1 with started lobbies.
type Adapter struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session

	newEngine EngineFactory
	history   Recorder
	log       *logrus.Logger

	// OnGameEnd is invoked exactly once per session after the final snapshot
	// has been handed to the history collaborator. Wired at startup.
	OnGameEnd func(lobbyID uuid.UUID, winner models.Winner, score1, score2 int)
}

func NewAdapter(newEngine EngineFactory, history Recorder, log *logrus.Logger) *Adapter {
	return &Adapter{
		sessions:  make(map[uuid.UUID]*Session),
		newEngine: newEngine,
		history:   history,
		log:       log,
	}
}

// Start creates the engine instance for a lobby whose players are both Ready
// and begins the tick loop.
func (a *Adapter) Start(l *lobby.Lobby) error {
	l.Mu.Lock()
	p1Conn, p2Conn := l.Player1Conn, l.Player2Conn
	player1, player2 := l.Player1, l.Player2
	matchmaking := l.Matchmaking
	spectators := make([]*models.Connection, 0, len(l.SpectatorConns))
	for _, c := range l.SpectatorConns {
		spectators = append(spectators, c)
	}
	l.Mu.Unlock()

	a.mu.Lock()
	if _, exists := a.sessions[l.ID]; exists {
		a.mu.Unlock()
		a.log.WithField("lobby", l.ID).Error("Refusing to start a session over a live one")
		return ErrSessionExists
	}
	sess := &Session{
		LobbyID:     l.ID,
		Player1:     player1,
		Player2:     player2,
		Matchmaking: matchmaking,
		engine:      a.newEngine(l.ID, p1Conn, p2Conn, spectators),
		p1Conn:      p1Conn,
		p2Conn:      p2Conn,
		stop:        make(chan struct{}),
	}
	a.sessions[l.ID] = sess
	a.mu.Unlock()

	a.log.WithField("lobby", l.ID).Info("Game session started")
	go a.run(sess)
	return nil
}

// run is the fixed-rate tick loop: advance the engine by elapsed wall-clock
// time, then check the win threshold. Ticks execute one at a time by
// construction; there is never a concurrent advance for one session.
func (a *Adapter) run(sess *Session) {
	ticker := time.NewTicker(time.Second / TickRate)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-sess.stop:
			return
		case now := <-ticker.C:
			sess.engine.Advance(now.Sub(last).Seconds())
			last = now
			if sess.engine.Score(models.RolePlayer1) >= WinThreshold ||
				sess.engine.Score(models.RolePlayer2) >= WinThreshold {
				a.End(sess.LobbyID, uuid.Nil)
				return
			}
		}
	}
}

// Input forwards a move from a player connection into its session's engine,
// tagged by role. Anything that does not resolve to a player role of a live
// session is dropped, not errored.
func (a *Adapter) Input(conn *models.Connection, move string) {
	if conn.Lobby == nil || conn.Lobby.Spectator {
		return
	}
	a.mu.Lock()
	sess, ok := a.sessions[conn.Lobby.LobbyID]
	a.mu.Unlock()
	if !ok {
		return
	}

	switch conn {
	case sess.p1Conn:
		sess.engine.ApplyInput(models.RolePlayer1, move)
	case sess.p2Conn:
		sess.engine.ApplyInput(models.RolePlayer2, move)
	}
}

// End terminates a session exactly once. A second simultaneous trigger, or a
// call for a lobby with no session (disconnect paths racing normal
// completion), is a no-op. When leaving is set the other player wins by
// forfeit regardless of score; otherwise the higher score wins and equal
// scores are a tie.
func (a *Adapter) End(lobbyID uuid.UUID, leaving uuid.UUID) {
	a.mu.Lock()
	sess, ok := a.sessions[lobbyID]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.sessions, lobbyID)
	a.mu.Unlock()

	close(sess.stop)
	score1 := sess.engine.Score(models.RolePlayer1)
	score2 := sess.engine.Score(models.RolePlayer2)

	var winner models.Winner
	switch {
	case leaving == sess.Player1:
		winner = models.WinnerPlayer2
	case leaving == sess.Player2:
		winner = models.WinnerPlayer1
	case score1 > score2:
		winner = models.WinnerPlayer1
	case score2 > score1:
		winner = models.WinnerPlayer2
	default:
		winner = models.WinnerTie
	}

	snapshot := models.LobbySnapshot{
		LobbyID:      lobbyID,
		Player1:      sess.Player1,
		Player2:      sess.Player2,
		Player1Score: score1,
		Player2Score: score2,
		Matchmaking:  sess.Matchmaking,
		EndedAt:      time.Now(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := a.history.Record(ctx, snapshot, winner); err != nil {
		a.log.WithField("lobby", lobbyID).Warnf("History write failed: %v", err)
	}
	cancel()

	a.log.WithFields(logrus.Fields{
		"lobby":  lobbyID,
		"winner": winner,
		"score1": score1,
		"score2": score2,
	}).Info("Game session ended")

	if a.OnGameEnd != nil {
		a.OnGameEnd(lobbyID, winner, score1, score2)
	}
}

// UpdateSpectators informs the engine of the current spectator connection
// set. Best-effort: no-op when no session exists.
func (a *Adapter) UpdateSpectators(lobbyID uuid.UUID, conns []*models.Connection) {
	a.mu.Lock()
	sess, ok := a.sessions[lobbyID]
	a.mu.Unlock()
	if !ok {
		return
	}
	sess.engine.UpdateSpectators(conns)
}

// Running reports whether a session exists for the lobby.
func (a *Adapter) Running(lobbyID uuid.UUID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.sessions[lobbyID]
	return ok
}
