// internal/game/session_test.go
package game

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/marousta/njmpu-api/internal/events"
	"github.com/marousta/njmpu-api/internal/lobby"
	"github.com/marousta/njmpu-api/internal/models"
)

type fakeEngine struct {
	mu      sync.Mutex
	score1  int
	score2  int
	perTick int
	inputs  []string
}

func (e *fakeEngine) Advance(deltaSeconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.score1 += e.perTick
}

func (e *fakeEngine) ApplyInput(role models.PlayerRole, move string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inputs = append(e.inputs, string(rune('0'+int(role)))+":"+move)
}

func (e *fakeEngine) Score(role models.PlayerRole) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if role == models.RolePlayer1 {
		return e.score1
	}
	return e.score2
}

func (e *fakeEngine) UpdateSpectators(conns []*models.Connection) {}

type fakeRecorder struct {
	mu        sync.Mutex
	snapshots []models.LobbySnapshot
	winners   []models.Winner
}

func (r *fakeRecorder) Record(ctx context.Context, snapshot models.LobbySnapshot, winner models.Winner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, snapshot)
	r.winners = append(r.winners, winner)
	return nil
}

type endResult struct {
	lobbyID uuid.UUID
	winner  models.Winner
	score1  int
	score2  int
}

func newTestAdapter(eng *fakeEngine) (*Adapter, *fakeRecorder, chan endResult) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	rec := &fakeRecorder{}
	a := NewAdapter(
		func(lobbyID uuid.UUID, p1, p2 *models.Connection, spectators []*models.Connection) Engine {
			return eng
		},
		rec,
		log,
	)
	ended := make(chan endResult, 4)
	a.OnGameEnd = func(lobbyID uuid.UUID, winner models.Winner, s1, s2 int) {
		ended <- endResult{lobbyID, winner, s1, s2}
	}
	return a, rec, ended
}

func newStartedLobby() (*lobby.Lobby, *models.Connection, *models.Connection) {
	p1 := &models.Connection{ID: uuid.New(), UserID: uuid.New(), OutChan: make(chan events.Event, 64)}
	p2 := &models.Connection{ID: uuid.New(), UserID: uuid.New(), OutChan: make(chan events.Event, 64)}
	l := &lobby.Lobby{
		ID:          uuid.New(),
		Player1:     p1.UserID,
		Player2:     p2.UserID,
		Player1Conn: p1,
		Player2Conn: p2,
	}
	p1.Lobby = &models.LobbyAffiliation{LobbyID: l.ID}
	p2.Lobby = &models.LobbyAffiliation{LobbyID: l.ID}
	return l, p1, p2
}

func TestStartRefusesDuplicate(t *testing.T) {
	eng := &fakeEngine{}
	a, _, _ := newTestAdapter(eng)
	l, _, _ := newStartedLobby()

	if err := a.Start(l); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer a.End(l.ID, uuid.Nil)

	if !a.Running(l.ID) {
		t.Fatal("session should be running")
	}
	if err := a.Start(l); err != ErrSessionExists {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}
}

func TestThresholdEndsGame(t *testing.T) {
	eng := &fakeEngine{perTick: 1}
	a, rec, ended := newTestAdapter(eng)
	l, _, _ := newStartedLobby()

	if err := a.Start(l); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case res := <-ended:
		if res.lobbyID != l.ID {
			t.Errorf("wrong lobby: %v", res.lobbyID)
		}
		if res.winner != models.WinnerPlayer1 {
			t.Errorf("expected player1 win, got %v", res.winner)
		}
		if res.score1 < WinThreshold {
			t.Errorf("score below threshold: %d", res.score1)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("game never reached the win threshold")
	}

	if a.Running(l.ID) {
		t.Error("session still registered after end")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.snapshots) != 1 {
		t.Fatalf("expected 1 recorded snapshot, got %d", len(rec.snapshots))
	}
	if rec.snapshots[0].Player1 != l.Player1 || rec.snapshots[0].Player2 != l.Player2 {
		t.Error("snapshot players wrong")
	}
}

func TestForfeitOnLeave(t *testing.T) {
	eng := &fakeEngine{score1: 9, score2: 2}
	a, _, ended := newTestAdapter(eng)
	l, _, _ := newStartedLobby()

	if err := a.Start(l); err != nil {
		t.Fatalf("start: %v", err)
	}

	// player1 leaves while ahead; forfeit overrides the score
	a.End(l.ID, l.Player1)

	select {
	case res := <-ended:
		if res.winner != models.WinnerPlayer2 {
			t.Fatalf("expected forfeit win for player2, got %v", res.winner)
		}
	case <-time.After(time.Second):
		t.Fatal("end callback never fired")
	}
}

func TestEndIdempotent(t *testing.T) {
	eng := &fakeEngine{score1: 3, score2: 3}
	a, rec, ended := newTestAdapter(eng)
	l, _, _ := newStartedLobby()

	if err := a.Start(l); err != nil {
		t.Fatalf("start: %v", err)
	}

	a.End(l.ID, uuid.Nil)
	a.End(l.ID, uuid.Nil)
	a.End(uuid.New(), uuid.Nil) // unknown lobby is a no-op

	select {
	case res := <-ended:
		if res.winner != models.WinnerTie {
			t.Errorf("expected tie, got %v", res.winner)
		}
	case <-time.After(time.Second):
		t.Fatal("end callback never fired")
	}
	select {
	case <-ended:
		t.Fatal("end callback fired twice")
	case <-time.After(50 * time.Millisecond):
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.snapshots) != 1 {
		t.Fatalf("expected exactly one snapshot, got %d", len(rec.snapshots))
	}
}

func TestInputRouting(t *testing.T) {
	eng := &fakeEngine{}
	a, _, _ := newTestAdapter(eng)
	l, p1, _ := newStartedLobby()

	if err := a.Start(l); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer a.End(l.ID, uuid.Nil)

	a.Input(p1, "up")

	spectator := &models.Connection{
		ID:      uuid.New(),
		UserID:  uuid.New(),
		OutChan: make(chan events.Event, 4),
		Lobby:   &models.LobbyAffiliation{LobbyID: l.ID, Spectator: true},
	}
	a.Input(spectator, "down")

	unaffiliated := &models.Connection{ID: uuid.New(), UserID: uuid.New(), OutChan: make(chan events.Event, 4)}
	a.Input(unaffiliated, "down")

	eng.mu.Lock()
	defer eng.mu.Unlock()
	if len(eng.inputs) != 1 || eng.inputs[0] != "1:up" {
		t.Fatalf("expected only player1's input, got %v", eng.inputs)
	}
}
