// internal/registry/registry_test.go
package registry

import (
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/marousta/njmpu-api/internal/events"
	"github.com/marousta/njmpu-api/internal/models"
)

func newTestRegistry() *Registry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(log)
}

func newTestConn(userID uuid.UUID) *models.Connection {
	return &models.Connection{
		ID:      uuid.New(),
		UserID:  userID,
		OutChan: make(chan events.Event, 8),
	}
}

func TestRegisterUnregisterIdempotent(t *testing.T) {
	r := newTestRegistry()
	user := uuid.New()
	conn := newTestConn(user)

	r.Register(conn)
	r.Register(conn)
	if got := len(r.Connections(user)); got != 1 {
		t.Fatalf("expected 1 connection, got %d", got)
	}

	r.Unregister(conn)
	r.Unregister(conn)
	if got := len(r.Connections(user)); got != 0 {
		t.Fatalf("expected 0 connections after unregister, got %d", got)
	}
	if got := len(r.All()); got != 0 {
		t.Fatalf("expected empty registry, got %d", got)
	}
}

func TestStatusOf(t *testing.T) {
	r := newTestRegistry()
	user := uuid.New()

	status, detail := r.StatusOf(user)
	if status != models.StatusOffline || detail != nil {
		t.Fatalf("expected offline with no detail, got %v %v", status, detail)
	}

	conn := newTestConn(user)
	r.Register(conn)
	status, _ = r.StatusOf(user)
	if status != models.StatusOnline {
		t.Fatalf("expected online, got %v", status)
	}

	lobbyID := uuid.New()
	r.SetAffiliation(conn, lobbyID, true)
	status, detail = r.StatusOf(user)
	if status != models.StatusInGame {
		t.Fatalf("expected ingame, got %v", status)
	}
	if detail == nil || detail.LobbyID != lobbyID || !detail.Spectator {
		t.Fatalf("affiliation detail mismatch: %+v", detail)
	}

	r.ClearAffiliation(conn)
	status, detail = r.StatusOf(user)
	if status != models.StatusOnline || detail != nil {
		t.Fatalf("expected online after clearing affiliation, got %v %v", status, detail)
	}
}

func TestStatusOfPrefersPlayerAffiliation(t *testing.T) {
	r := newTestRegistry()
	user := uuid.New()
	playingLobby := uuid.New()

	playing := newTestConn(user)
	watching := newTestConn(user)
	r.Register(playing)
	r.Register(watching)
	r.SetAffiliation(playing, playingLobby, false)
	r.SetAffiliation(watching, uuid.New(), true)

	// map iteration order is random; the player affiliation must win on
	// every call, never the spectator one
	for i := 0; i < 100; i++ {
		status, detail := r.StatusOf(user)
		if status != models.StatusInGame {
			t.Fatalf("expected ingame, got %v", status)
		}
		if detail == nil || detail.Spectator || detail.LobbyID != playingLobby {
			t.Fatalf("expected the player affiliation, got %+v", detail)
		}
	}

	r.ClearAffiliation(playing)
	status, detail := r.StatusOf(user)
	if status != models.StatusInGame || detail == nil || !detail.Spectator {
		t.Fatalf("expected spectator affiliation after clearing the player one, got %v %+v", status, detail)
	}
}

func TestSendFailsClosedOnExpiredCredential(t *testing.T) {
	r := newTestRegistry()
	conn := newTestConn(uuid.New())
	conn.TokenExpiry = time.Now().Add(-time.Minute)
	r.Register(conn)

	if r.Send(conn, events.Connected(conn.ID)) {
		t.Fatal("expected send to fail for expired credential")
	}

	select {
	case ev := <-conn.OutChan:
		if ev.Namespace != events.NamespaceSystem || ev.Action != "token_expired" {
			t.Fatalf("expected token_expired notice, got %s/%s", ev.Namespace, ev.Action)
		}
	default:
		t.Fatal("expected a token_expired notice on the channel")
	}
	select {
	case ev := <-conn.OutChan:
		t.Fatalf("unexpected second event: %s/%s", ev.Namespace, ev.Action)
	default:
	}
}

func TestSendDropsOnSaturatedChannel(t *testing.T) {
	r := newTestRegistry()
	conn := &models.Connection{
		ID:      uuid.New(),
		UserID:  uuid.New(),
		OutChan: make(chan events.Event, 1),
	}
	r.Register(conn)

	if !r.Send(conn, events.Connected(conn.ID)) {
		t.Fatal("first send should succeed")
	}
	if r.Send(conn, events.Connected(conn.ID)) {
		t.Fatal("send to a full channel should report failure")
	}
}
