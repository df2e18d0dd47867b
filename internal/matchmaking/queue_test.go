// internal/matchmaking/queue_test.go
package matchmaking

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/marousta/njmpu-api/internal/dispatch"
	"github.com/marousta/njmpu-api/internal/events"
	"github.com/marousta/njmpu-api/internal/lobby"
	"github.com/marousta/njmpu-api/internal/models"
	"github.com/marousta/njmpu-api/internal/registry"
)

type nopSink struct{}

func (nopSink) SetStatus(ctx context.Context, userID uuid.UUID, status models.UserStatus) error {
	return nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(ctx context.Context, kind string, from, to, lobbyID uuid.UUID) error {
	return nil
}
func (nopNotifier) MarkRead(ctx context.Context, from, to uuid.UUID, kinds ...string) error {
	return nil
}

type nopSessions struct{}

func (nopSessions) Start(l *lobby.Lobby) error                                 { return nil }
func (nopSessions) End(lobbyID uuid.UUID, leaving uuid.UUID)                   {}
func (nopSessions) UpdateSpectators(lobbyID uuid.UUID, c []*models.Connection) {}

type fixture struct {
	q       *Queue
	reg     *registry.Registry
	lobbies *lobby.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	reg := registry.New(log)
	router := dispatch.NewRouter(reg, log)
	lobbies := lobby.NewService(lobby.NewStore(), reg, router, nopSink{}, nopNotifier{}, 10, log)
	lobbies.Sessions = nopSessions{}
	q := NewQueue(reg, router, lobbies, log)
	// keep the background loop out of the way; polls are driven manually
	q.interval = time.Hour
	return &fixture{q: q, reg: reg, lobbies: lobbies}
}

func (f *fixture) connect(userID uuid.UUID) *models.Connection {
	conn := &models.Connection{
		ID:      uuid.New(),
		UserID:  userID,
		OutChan: make(chan events.Event, 16),
	}
	f.reg.Register(conn)
	return conn
}

func TestAddValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ghost := uuid.New()
	if err := f.q.Add(ctx, ghost, uuid.New()); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}

	user := uuid.New()
	f.connect(user)
	stranger := f.connect(uuid.New())
	if err := f.q.Add(ctx, user, stranger.ID); err != ErrNotOnline {
		t.Errorf("expected ErrNotOnline for foreign connection, got %v", err)
	}

	conn := f.connect(user)
	if err := f.q.Add(ctx, user, conn.ID); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.q.Add(ctx, user, conn.ID); err != ErrAlreadyInQueue {
		t.Errorf("expected ErrAlreadyInQueue, got %v", err)
	}
}

func TestAddBlocksPlayersButNotSpectators(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	playing := uuid.New()
	playingConn := f.connect(playing)
	f.reg.SetAffiliation(playingConn, uuid.New(), false)
	if err := f.q.Add(ctx, playing, playingConn.ID); err != ErrAlreadyInGame {
		t.Errorf("expected ErrAlreadyInGame for active player, got %v", err)
	}

	watching := uuid.New()
	watchingConn := f.connect(watching)
	f.reg.SetAffiliation(watchingConn, uuid.New(), true)
	if err := f.q.Add(ctx, watching, watchingConn.ID); err != nil {
		t.Errorf("spectating elsewhere should not block queueing: %v", err)
	}
}

func TestAddBlocksPlayerAlsoSpectatingElsewhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// playing on one device, spectating on another: the player affiliation
	// must block entry no matter which connection the registry scans first
	user := uuid.New()
	playingConn := f.connect(user)
	watchingConn := f.connect(user)
	f.reg.SetAffiliation(playingConn, uuid.New(), false)
	f.reg.SetAffiliation(watchingConn, uuid.New(), true)

	for i := 0; i < 100; i++ {
		if err := f.q.Add(ctx, user, watchingConn.ID); err != ErrAlreadyInGame {
			t.Fatalf("run %d: expected ErrAlreadyInGame for active player, got %v", i, err)
		}
	}
	if got := f.q.Len(); got != 0 {
		t.Fatalf("active player slipped into the queue, depth %d", got)
	}
}

func TestPollPairsLongestWaiting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	users := make([]uuid.UUID, 3)
	conns := make([]*models.Connection, 3)
	for i := range users {
		users[i] = uuid.New()
		conns[i] = f.connect(users[i])
		if err := f.q.Add(ctx, users[i], conns[i].ID); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	if !f.q.poll() {
		t.Fatal("poll should keep running with one entry left")
	}
	if got := f.q.Len(); got != 1 {
		t.Fatalf("expected 1 entry left, got %d", got)
	}

	// the first two queued users were paired, in insertion order
	lobbies := f.lobbies.Store().List()
	if len(lobbies) != 1 {
		t.Fatalf("expected 1 lobby, got %d", len(lobbies))
	}
	l := lobbies[0]
	if l.Player1 != users[0] || l.Player2 != users[1] {
		t.Fatalf("pairing order wrong: %v vs %v", l.Player1, l.Player2)
	}
	if !l.Matchmaking {
		t.Error("lobby not flagged matchmaking")
	}

	// both paired connections got the announcement; the third did not
	for i := 0; i < 2; i++ {
		if !gotMatch(drain(conns[i])) {
			t.Errorf("conn %d missing match announcement", i)
		}
	}
	if gotMatch(drain(conns[2])) {
		t.Error("unpaired conn received a match announcement")
	}
}

func drain(conn *models.Connection) []events.Event {
	var evs []events.Event
	for {
		select {
		case ev := <-conn.OutChan:
			evs = append(evs, ev)
		default:
			return evs
		}
	}
}

func gotMatch(evs []events.Event) bool {
	for _, ev := range evs {
		if ev.Namespace == events.NamespaceMatchmaking && ev.Action == "match" {
			return true
		}
	}
	return false
}

func TestPollPrunesDeadConnections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	gone := uuid.New()
	goneConn := f.connect(gone)
	stay := uuid.New()
	stayConn := f.connect(stay)

	f.q.Add(ctx, gone, goneConn.ID)
	f.q.Add(ctx, stay, stayConn.ID)
	f.reg.Unregister(goneConn)

	if !f.q.poll() {
		t.Fatal("poll should keep running with one live entry")
	}
	if got := f.q.Len(); got != 1 {
		t.Fatalf("expected only the live entry, got %d", got)
	}
	if len(f.lobbies.Store().List()) != 0 {
		t.Error("no lobby should have been created")
	}
}

func TestPollStopsWhenEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := uuid.New()
	conn := f.connect(user)
	f.q.Add(ctx, user, conn.ID)

	if !f.q.Remove(user) {
		t.Fatal("remove should report true")
	}
	if f.q.Remove(user) {
		t.Fatal("second remove should report false")
	}
	if f.q.poll() {
		t.Fatal("poll on an empty queue should stop the loop")
	}
}
