// internal/lobby/service.go
package lobby

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/marousta/njmpu-api/internal/dispatch"
	"github.com/marousta/njmpu-api/internal/events"
	"github.com/marousta/njmpu-api/internal/models"
	"github.com/marousta/njmpu-api/internal/registry"
)

// NotifyKindInvite is the notification kind raised for game invitations.
const NotifyKindInvite = "game_invite"

// StatusSink receives presence transitions for persistence in the user
// directory. Failures are logged and swallowed; in-memory lobby state is
// authoritative and never rolled back.
type StatusSink interface {
	SetStatus(ctx context.Context, userID uuid.UUID, status models.UserStatus) error
}

// Notifier delivers invite notifications and their lifecycle cleanup.
type Notifier interface {
	Notify(ctx context.Context, kind string, from, to, lobbyID uuid.UUID) error
	MarkRead(ctx context.Context, from, to uuid.UUID, kinds ...string) error
}

// SessionAdapter is the game-session side of the orchestrator, wired in at
// startup to break the lobby<->game dependency.
type SessionAdapter interface {
	Start(l *Lobby) error
	End(lobbyID uuid.UUID, leaving uuid.UUID)
	UpdateSpectators(lobbyID uuid.UUID, conns []*models.Connection)
}

// Service owns the lobby lifecycle: creation, invite, join, color selection,
// readiness, leave/kick/disband. Every public operation is atomic with
// respect to one lobby via its mutex.
type Service struct {
	store  *Store
	reg    *registry.Registry
	router *dispatch.Router
	users  StatusSink
	notif  Notifier
	log    *logrus.Logger

	// Sessions must be assigned before the first Start call.
	Sessions SessionAdapter

	maxSpectators int
}

func NewService(store *Store, reg *registry.Registry, router *dispatch.Router, users StatusSink, notif Notifier, maxSpectators int, log *logrus.Logger) *Service {
	return &Service{
		store:         store,
		reg:           reg,
		router:        router,
		users:         users,
		notif:         notif,
		log:           log,
		maxSpectators: maxSpectators,
	}
}

func (s *Service) Store() *Store { return s.store }

// PushStatus persists and broadcasts a user's presence transition. Sink
// failures are logged and swallowed.
func (s *Service) PushStatus(ctx context.Context, userID uuid.UUID, status models.UserStatus) {
	if err := s.users.SetStatus(ctx, userID, status); err != nil {
		s.log.WithFields(logrus.Fields{"user": userID, "status": status}).
			Warnf("Status sink write failed: %v", err)
	}
	s.router.Broadcast(events.UserStatus(userID, string(status)))
}

// resolveConn binds a connection id to the actor, enforcing that it resolves
// to exactly one live connection owned by them.
func (s *Service) resolveConn(actor, connID uuid.UUID) (*models.Connection, error) {
	conn, ok := s.reg.Get(connID)
	if !ok || conn.UserID != actor {
		return nil, ErrNoConnection
	}
	return conn, nil
}

// Create removes the actor from any lobby they currently occupy as a player,
// then builds a new lobby with them as player1 (status Joined) bound to the
// given connection. An optional opponent becomes player2 with status Invited
// and no connection. The actor's global status flips to InGame only once
// play actually starts, not at creation.
func (s *Service) Create(ctx context.Context, actor, connID uuid.UUID, opponent *uuid.UUID) (*Lobby, error) {
	existing := s.store.FindByPlayer(actor)
	if len(existing) > 1 {
		s.log.WithField("user", actor).
			Errorf("User bound to %d lobbies at once", len(existing))
		return nil, ErrConsistency
	}
	if len(existing) == 1 {
		if err := s.Leave(ctx, actor, existing[0].ID); err != nil {
			return nil, err
		}
	}

	conn, err := s.resolveConn(actor, connID)
	if err != nil {
		return nil, err
	}

	l := newLobby(actor)
	l.Player1Conn = conn
	if opponent != nil {
		l.Player2 = *opponent
		l.Player2Status = models.PlayerInvited
	}
	s.reg.SetAffiliation(conn, l.ID, false)
	s.store.Add(l)

	s.log.WithFields(logrus.Fields{"lobby": l.ID, "player1": actor}).Info("Lobby created")
	s.router.ToConns([]*models.Connection{conn}, events.LobbyJoin(l.ID, actor, false))

	if opponent != nil {
		if err := s.notif.Notify(ctx, NotifyKindInvite, actor, *opponent, l.ID); err != nil {
			s.log.Warnf("Invite notification failed for %s: %v", *opponent, err)
		}
		s.router.ToUser(*opponent, events.LobbyInvite(l.ID, actor, *opponent))
	}
	return l, nil
}

// CreateMatch is the matchmaking-only path: both users start Joined with
// their queued connections bound, no invite step. The match announcement
// goes to exactly the two paired connections, followed by the normal join
// broadcasts so clients listening only on the generic channel still see the
// join.
func (s *Service) CreateMatch(ctx context.Context, connA, connB *models.Connection) (*Lobby, error) {
	l := newLobby(connA.UserID)
	l.Matchmaking = true
	l.Player2 = connB.UserID
	l.Player2Status = models.PlayerJoined
	l.Player1Conn = connA
	l.Player2Conn = connB
	s.reg.SetAffiliation(connA, l.ID, false)
	s.reg.SetAffiliation(connB, l.ID, false)
	s.store.Add(l)

	s.log.WithFields(logrus.Fields{
		"lobby":   l.ID,
		"player1": connA.UserID,
		"player2": connB.UserID,
	}).Info("Matchmaking lobby created")

	pair := []*models.Connection{connA, connB}
	s.router.ToConns(pair, events.MatchFound(l.ID, connA.UserID, connB.UserID))
	s.router.ToConns(pair, events.LobbyJoin(l.ID, connA.UserID, false))
	s.router.ToConns(pair, events.LobbyJoin(l.ID, connB.UserID, false))
	return l, nil
}

// Invite adds targetUser as player2 of the actor's single active lobby,
// creating one first if the actor has none. A user who had joined only as a
// spectator is recovered into the player slot when they later join.
func (s *Service) Invite(ctx context.Context, actor, connID, targetUser uuid.UUID) (*Lobby, error) {
	existing := s.store.FindByPlayer(actor)
	if len(existing) > 1 {
		s.log.WithField("user", actor).
			Errorf("User bound to %d lobbies at once", len(existing))
		return nil, ErrConsistency
	}
	if len(existing) == 0 {
		return s.Create(ctx, actor, connID, &targetUser)
	}

	l := existing[0]
	l.Mu.Lock()
	if targetUser == l.Player1 {
		l.Mu.Unlock()
		return nil, ErrAlreadyIn
	}
	if l.Player2 != uuid.Nil && l.Player2 != targetUser {
		l.Mu.Unlock()
		return nil, ErrInvalidInvitation
	}
	l.Player2 = targetUser
	l.Player2Status = models.PlayerInvited
	members := l.memberConnsUnsafe()
	l.Mu.Unlock()

	if err := s.notif.Notify(ctx, NotifyKindInvite, actor, targetUser, l.ID); err != nil {
		s.log.Warnf("Invite notification failed for %s: %v", targetUser, err)
	}
	s.router.ToUser(targetUser, events.LobbyInvite(l.ID, actor, targetUser))
	s.router.ToConns(members, events.LobbyInvite(l.ID, actor, targetUser))
	return l, nil
}

// Join resolves the actor's role by identity: the named player2 binds their
// connection and becomes Joined; anyone else becomes a spectator subject to
// the cap. A player2 who had been spectating is pulled out of the spectator
// set first, with a Leave(spectator) event preceding the Join(player) event.
func (s *Service) Join(ctx context.Context, actor, connID, lobbyID uuid.UUID) error {
	l, ok := s.store.Get(lobbyID)
	if !ok {
		return ErrNotFound
	}
	conn, err := s.resolveConn(actor, connID)
	if err != nil {
		return err
	}

	l.Mu.Lock()
	switch {
	case actor == l.Player1:
		l.Mu.Unlock()
		return ErrAlreadyIn

	case l.Player2 != uuid.Nil && actor == l.Player2:
		wasSpectator := l.Spectators[actor]
		if wasSpectator {
			delete(l.Spectators, actor)
			for _, sc := range l.spectatorConnsOfUnsafe(actor) {
				delete(l.SpectatorConns, sc.ID)
				s.reg.ClearAffiliation(sc)
			}
		}
		if old := l.Player2Conn; old != nil && old.ID != conn.ID {
			// superseded by the new binding for this role
			s.reg.ClearAffiliation(old)
		}
		l.Player2Conn = conn
		l.Player2Status = models.PlayerJoined
		s.reg.SetAffiliation(conn, l.ID, false)
		members := l.memberConnsUnsafe()
		player1 := l.Player1
		l.Mu.Unlock()

		if wasSpectator {
			s.router.ToConns(members, events.LobbyLeave(l.ID, actor, true))
		}
		s.PushStatus(ctx, actor, models.StatusInGame)
		if err := s.notif.MarkRead(ctx, player1, actor, NotifyKindInvite); err != nil {
			s.log.Warnf("Invite mark-read failed for %s: %v", actor, err)
		}
		s.router.ToConns(members, events.LobbyJoin(l.ID, actor, false))
		return nil

	default:
		if l.Spectators[actor] {
			l.Mu.Unlock()
			return ErrAlreadyIn
		}
		if len(l.Spectators) >= s.maxSpectators {
			l.Mu.Unlock()
			return ErrGameFull
		}
		l.Spectators[actor] = true
		l.SpectatorConns[conn.ID] = conn
		s.reg.SetAffiliation(conn, l.ID, true)
		members := l.memberConnsUnsafe()
		spectators := l.spectatorConnsUnsafe()
		l.Mu.Unlock()

		s.router.ToConns(members, events.LobbyJoin(l.ID, actor, true))
		s.Sessions.UpdateSpectators(l.ID, spectators)
		return nil
	}
}

// Color sets the display color for whichever player slot matches the actor.
func (s *Service) Color(ctx context.Context, actor, lobbyID uuid.UUID, color string) error {
	l, ok := s.store.Get(lobbyID)
	if !ok {
		return ErrNotFound
	}

	l.Mu.Lock()
	var actorConn *models.Connection
	switch l.roleOfUnsafe(actor) {
	case models.RolePlayer1:
		l.Player1Color = color
		actorConn = l.Player1Conn
	case models.RolePlayer2:
		l.Player2Color = color
		actorConn = l.Player2Conn
	default:
		l.Mu.Unlock()
		return ErrNotInLobby
	}
	members := l.memberConnsUnsafe()
	l.Mu.Unlock()

	// the actor already got a synchronous response; don't echo back
	ev := events.LobbyColor(l.ID, actor, color)
	if actorConn != nil {
		s.router.ToConnsExcept(members, ev, actorConn.ID)
	} else {
		s.router.ToConns(members, ev)
	}
	return nil
}

// Start marks the acting player Ready. Once both players are Ready the game
// starts: game_started is set, both players' global status flips to InGame,
// and the session adapter takes over.
func (s *Service) Start(ctx context.Context, actor, lobbyID uuid.UUID) error {
	l, ok := s.store.Get(lobbyID)
	if !ok {
		return ErrNotFound
	}

	l.Mu.Lock()
	switch l.roleOfUnsafe(actor) {
	case models.RolePlayer1:
		l.Player1Status = models.PlayerReady
	case models.RolePlayer2:
		if l.Player2Status == models.PlayerInvited {
			l.Mu.Unlock()
			return ErrInvalidInvitation
		}
		l.Player2Status = models.PlayerReady
	default:
		l.Mu.Unlock()
		return ErrNotInLobby
	}

	bothReady := l.Player1Status == models.PlayerReady &&
		l.Player2Status == models.PlayerReady &&
		l.Player2Conn != nil
	if !bothReady {
		members := l.memberConnsUnsafe()
		l.Mu.Unlock()
		s.router.ToConns(members, events.LobbyReady(l.ID, actor))
		return nil
	}

	l.GameStarted = true
	members := l.memberConnsUnsafe()
	player1, player2 := l.Player1, l.Player2
	l.Mu.Unlock()

	s.PushStatus(ctx, player1, models.StatusInGame)
	s.PushStatus(ctx, player2, models.StatusInGame)
	s.router.ToConns(members, events.LobbyStart(l.ID))

	if err := s.Sessions.Start(l); err != nil {
		s.log.WithField("lobby", l.ID).Errorf("Session start failed: %v", err)
		return ErrConsistency
	}
	return nil
}

// Leave removes the actor from the lobby. Player1 leaving, a started game,
// or a matchmaking lobby always means a full disband; otherwise player2
// reverts to an empty invited slot or the spectator is simply dropped.
func (s *Service) Leave(ctx context.Context, actor, lobbyID uuid.UUID) error {
	l, ok := s.store.Get(lobbyID)
	if !ok {
		return ErrNotFound
	}
	return s.removeParticipant(ctx, l, actor)
}

// Kick is the player1-only forced equivalent of leave applied to another
// participant.
func (s *Service) Kick(ctx context.Context, actor, lobbyID, targetUser uuid.UUID) error {
	l, ok := s.store.Get(lobbyID)
	if !ok {
		return ErrNotFound
	}
	l.Mu.Lock()
	isHost := l.Player1 == actor
	l.Mu.Unlock()
	if !isHost {
		return ErrNotInLobby
	}
	return s.removeParticipant(ctx, l, targetUser)
}

// removeParticipant applies the shared partial/full rules of leave and kick
// for the given subject.
func (s *Service) removeParticipant(ctx context.Context, l *Lobby, subject uuid.UUID) error {
	l.Mu.Lock()
	role := l.roleOfUnsafe(subject)
	isSpectator := l.Spectators[subject]
	if role == 0 && !isSpectator {
		l.Mu.Unlock()
		return ErrNotInLobby
	}

	fullDisband := role == models.RolePlayer1 || l.GameStarted || l.Matchmaking
	if isSpectator && role == 0 {
		// spectators never disband and never touch player slots
		fullDisband = false
	}

	if fullDisband {
		gameRunning := l.GameStarted && !l.GameEnded
		l.Mu.Unlock()
		if gameRunning {
			// ends the session, attributing the win to the remaining
			// player; the end callback performs the disband
			s.Sessions.End(l.ID, subject)
			return nil
		}
		s.disband(ctx, l)
		return nil
	}

	if isSpectator {
		delete(l.Spectators, subject)
		for _, sc := range l.spectatorConnsOfUnsafe(subject) {
			delete(l.SpectatorConns, sc.ID)
			s.reg.ClearAffiliation(sc)
		}
		members := l.memberConnsUnsafe()
		spectators := l.spectatorConnsUnsafe()
		l.Mu.Unlock()

		s.router.ToConns(members, events.LobbyLeave(l.ID, subject, true))
		s.Sessions.UpdateSpectators(l.ID, spectators)
		return nil
	}

	// player2 in a still-forming, non-matchmaking lobby: partial leave
	if conn := l.Player2Conn; conn != nil {
		s.reg.ClearAffiliation(conn)
	}
	l.Player2 = uuid.Nil
	l.Player2Conn = nil
	l.Player2Status = models.PlayerInvited
	l.Player2Color = ""
	members := l.memberConnsUnsafe()
	l.Mu.Unlock()

	s.PushStatus(ctx, subject, models.StatusOnline)
	s.router.ToConns(members, events.LobbyLeave(l.ID, subject, false))
	return nil
}

// Decline is valid only for the currently-Invited player2: clears the slot,
// keeps player1's lobby alive, and marks the invite notification read.
func (s *Service) Decline(ctx context.Context, actor, lobbyID uuid.UUID) error {
	l, ok := s.store.Get(lobbyID)
	if !ok {
		return ErrNotFound
	}

	l.Mu.Lock()
	if l.Player2 == uuid.Nil || actor != l.Player2 || l.Player2Status != models.PlayerInvited {
		l.Mu.Unlock()
		return ErrInvalidInvitation
	}
	l.Player2 = uuid.Nil
	l.Player2Status = models.PlayerInvited
	l.Player2Color = ""
	members := l.memberConnsUnsafe()
	player1 := l.Player1
	l.Mu.Unlock()

	if err := s.notif.MarkRead(ctx, player1, actor, NotifyKindInvite); err != nil {
		s.log.Warnf("Invite mark-read failed for %s: %v", actor, err)
	}
	s.router.ToConns(members, events.LobbyDecline(l.ID, actor))
	s.router.ToUser(actor, events.LobbyDecline(l.ID, actor))
	return nil
}

// HandleGameEnd is wired as the session adapter's end callback. It broadcasts
// the result and disbands the finished lobby.
func (s *Service) HandleGameEnd(lobbyID uuid.UUID, winner models.Winner, score1, score2 int) {
	l, ok := s.store.Get(lobbyID)
	if !ok {
		return
	}
	l.Mu.Lock()
	l.GameEnded = true
	members := l.memberConnsUnsafe()
	l.Mu.Unlock()

	s.router.ToConns(members, events.GameEnd(lobbyID, string(winner), score1, score2))
	s.disband(context.Background(), l)
}

// disband broadcasts the teardown, clears every participant's lobby
// affiliation, restores their global status to Online, and deletes the
// lobby.
func (s *Service) disband(ctx context.Context, l *Lobby) {
	l.Mu.Lock()
	members := l.memberConnsUnsafe()
	participants := []uuid.UUID{l.Player1}
	var pendingInvite uuid.UUID
	if l.Player2 != uuid.Nil && l.Player2Status != models.PlayerInvited {
		participants = append(participants, l.Player2)
	} else if l.Player2 != uuid.Nil {
		pendingInvite = l.Player2
	}
	for spec := range l.Spectators {
		participants = append(participants, spec)
	}
	for _, c := range members {
		s.reg.ClearAffiliation(c)
	}
	l.Player1Conn = nil
	l.Player2Conn = nil
	l.SpectatorConns = make(map[uuid.UUID]*models.Connection)
	l.Spectators = make(map[uuid.UUID]bool)
	l.Mu.Unlock()

	s.store.Delete(l.ID)
	if pendingInvite != uuid.Nil {
		// the invitation dies with the lobby
		if err := s.notif.MarkRead(ctx, participants[0], pendingInvite, NotifyKindInvite); err != nil {
			s.log.Warnf("Invite mark-read failed for %s: %v", pendingInvite, err)
		}
	}
	s.router.ToConns(members, events.LobbyDisband(l.ID))
	for _, p := range participants {
		s.PushStatus(ctx, p, models.StatusOnline)
	}
	s.log.WithField("lobby", l.ID).Info("Lobby disbanded")
}

// HandleDisconnect performs the lobby side of a connection teardown: the
// disconnect is treated as a forced leave of whatever lobby the connection
// was affiliated with.
func (s *Service) HandleDisconnect(ctx context.Context, conn *models.Connection) {
	aff := conn.Lobby
	if aff == nil {
		return
	}
	if err := s.Leave(ctx, conn.UserID, aff.LobbyID); err != nil {
		s.log.WithFields(logrus.Fields{
			"user":  conn.UserID,
			"lobby": aff.LobbyID,
		}).Warnf("Disconnect cleanup leave failed: %v", err)
	}
}
