// internal/dispatch/dispatch_test.go
package dispatch

import (
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/marousta/njmpu-api/internal/events"
	"github.com/marousta/njmpu-api/internal/models"
	"github.com/marousta/njmpu-api/internal/registry"
)

func newTestRouter() (*Router, *registry.Registry) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	reg := registry.New(log)
	return NewRouter(reg, log), reg
}

func connect(reg *registry.Registry, userID uuid.UUID) *models.Connection {
	conn := &models.Connection{
		ID:      uuid.New(),
		UserID:  userID,
		OutChan: make(chan events.Event, 8),
	}
	reg.Register(conn)
	return conn
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

func TestBroadcastReachesEveryConnection(t *testing.T) {
	rt, reg := newTestRouter()
	user := uuid.New()
	c1 := connect(reg, user)
	c2 := connect(reg, user)
	c3 := connect(reg, uuid.New())

	rt.Broadcast(events.UserStatus(user, "online"))

	for i, c := range []*models.Connection{c1, c2, c3} {
		if got := len(drain(c)); got != 1 {
			t.Errorf("conn %d: expected 1 event, got %d", i, got)
		}
	}
}

func TestToUserOnlyTargetsOwner(t *testing.T) {
	rt, reg := newTestRouter()
	user := uuid.New()
	mine := connect(reg, user)
	other := connect(reg, uuid.New())

	rt.ToUser(user, events.LobbyInvite(uuid.New(), uuid.New(), user))

	if got := len(drain(mine)); got != 1 {
		t.Errorf("owner: expected 1 event, got %d", got)
	}
	if got := len(drain(other)); got != 0 {
		t.Errorf("other user: expected 0 events, got %d", got)
	}
}

func TestToConnsExceptSkipsIgnored(t *testing.T) {
	rt, reg := newTestRouter()
	actor := connect(reg, uuid.New())
	peer := connect(reg, uuid.New())

	rt.ToConnsExcept(
		[]*models.Connection{actor, peer},
		events.LobbyColor(uuid.New(), actor.UserID, "#ff0000"),
		actor.ID,
	)

	if got := len(drain(actor)); got != 0 {
		t.Errorf("ignored conn: expected 0 events, got %d", got)
	}
	if got := len(drain(peer)); got != 1 {
		t.Errorf("peer: expected 1 event, got %d", got)
	}
}

func TestToConnsSkipsNilEntries(t *testing.T) {
	rt, reg := newTestRouter()
	conn := connect(reg, uuid.New())

	rt.ToConns([]*models.Connection{nil, conn}, events.LobbyDisband(uuid.New()))

	if got := len(drain(conn)); got != 1 {
		t.Errorf("expected 1 event, got %d", got)
	}
}
