// internal/events/events.go
package events

import (
	"github.com/google/uuid"
)

// Namespace groups related event actions on the wire. Clients subscribe to
// the whole stream; the namespace/action pair tells them how to decode Data.
type Namespace string

const (
	NamespaceUser        Namespace = "user"
	NamespaceLobby       Namespace = "lobby"
	NamespaceGame        Namespace = "game"
	NamespaceMatchmaking Namespace = "matchmaking"
	NamespaceSystem      Namespace = "system"
)

// Event is the envelope for every payload pushed over a persistent
// connection. Data always holds one of the payload structs below; there is
// exactly one struct per (namespace, action) pair so dispatch call sites
// stay exhaustively matchable.
type Event struct {
	Namespace Namespace   `json:"namespace"`
	Action    string      `json:"action"`
	Data      interface{} `json:"data,omitempty"`
}

// --- user namespace ---

type UserStatusData struct {
	UUID   uuid.UUID `json:"uuid"`
	Status string    `json:"status"`
}

func UserStatus(userID uuid.UUID, status string) Event {
	return Event{NamespaceUser, "status", UserStatusData{userID, status}}
}

// --- lobby namespace ---

type LobbyInviteData struct {
	LobbyID uuid.UUID `json:"lobby_uuid"`
	From    uuid.UUID `json:"from"`
	To      uuid.UUID `json:"to"`
}

func LobbyInvite(lobbyID, from, to uuid.UUID) Event {
	return Event{NamespaceLobby, "invite", LobbyInviteData{lobbyID, from, to}}
}

type LobbyJoinData struct {
	LobbyID   uuid.UUID `json:"lobby_uuid"`
	UserID    uuid.UUID `json:"user_uuid"`
	Spectator bool      `json:"spectator"`
}

func LobbyJoin(lobbyID, userID uuid.UUID, spectator bool) Event {
	return Event{NamespaceLobby, "join", LobbyJoinData{lobbyID, userID, spectator}}
}

type LobbyLeaveData struct {
	LobbyID   uuid.UUID `json:"lobby_uuid"`
	UserID    uuid.UUID `json:"user_uuid"`
	Spectator bool      `json:"spectator"`
}

func LobbyLeave(lobbyID, userID uuid.UUID, spectator bool) Event {
	return Event{NamespaceLobby, "leave", LobbyLeaveData{lobbyID, userID, spectator}}
}

type LobbyDeclineData struct {
	LobbyID uuid.UUID `json:"lobby_uuid"`
	UserID  uuid.UUID `json:"user_uuid"`
}

func LobbyDecline(lobbyID, userID uuid.UUID) Event {
	return Event{NamespaceLobby, "decline", LobbyDeclineData{lobbyID, userID}}
}

type LobbyReadyData struct {
	LobbyID uuid.UUID `json:"lobby_uuid"`
	UserID  uuid.UUID `json:"user_uuid"`
}

func LobbyReady(lobbyID, userID uuid.UUID) Event {
	return Event{NamespaceLobby, "ready", LobbyReadyData{lobbyID, userID}}
}

type LobbyColorData struct {
	LobbyID uuid.UUID `json:"lobby_uuid"`
	UserID  uuid.UUID `json:"user_uuid"`
	Color   string    `json:"color"`
}

func LobbyColor(lobbyID, userID uuid.UUID, color string) Event {
	return Event{NamespaceLobby, "color", LobbyColorData{lobbyID, userID, color}}
}

type LobbyDisbandData struct {
	LobbyID uuid.UUID `json:"lobby_uuid"`
}

func LobbyDisband(lobbyID uuid.UUID) Event {
	return Event{NamespaceLobby, "disband", LobbyDisbandData{lobbyID}}
}

type LobbyStartData struct {
	LobbyID uuid.UUID `json:"lobby_uuid"`
}

func LobbyStart(lobbyID uuid.UUID) Event {
	return Event{NamespaceLobby, "start", LobbyStartData{lobbyID}}
}

// --- matchmaking namespace ---

type QueueWaitingData struct {
	Position int `json:"position"`
}

func QueueWaiting(position int) Event {
	return Event{NamespaceMatchmaking, "waiting", QueueWaitingData{position}}
}

type MatchFoundData struct {
	LobbyID uuid.UUID `json:"lobby_uuid"`
	Player1 uuid.UUID `json:"player1_uuid"`
	Player2 uuid.UUID `json:"player2_uuid"`
}

func MatchFound(lobbyID, p1, p2 uuid.UUID) Event {
	return Event{NamespaceMatchmaking, "match", MatchFoundData{lobbyID, p1, p2}}
}

// --- game namespace ---

type GameEndData struct {
	LobbyID      uuid.UUID `json:"lobby_uuid"`
	Winner       string    `json:"winner"`
	Player1Score int       `json:"player1_score"`
	Player2Score int       `json:"player2_score"`
}

func GameEnd(lobbyID uuid.UUID, winner string, s1, s2 int) Event {
	return Event{NamespaceGame, "end", GameEndData{lobbyID, winner, s1, s2}}
}

type GameStateData struct {
	LobbyID      uuid.UUID `json:"lobby_uuid"`
	BallX        float64   `json:"ball_x"`
	BallY        float64   `json:"ball_y"`
	Paddle1Y     float64   `json:"paddle1_y"`
	Paddle2Y     float64   `json:"paddle2_y"`
	Player1Score int       `json:"player1_score"`
	Player2Score int       `json:"player2_score"`
}

func GameState(data GameStateData) Event {
	return Event{NamespaceGame, "state", data}
}

// --- system namespace ---

type ConnectedData struct {
	ConnectionID uuid.UUID `json:"connection_uuid"`
}

func Connected(connID uuid.UUID) Event {
	return Event{NamespaceSystem, "connected", ConnectedData{connID}}
}

// TokenExpired is the single notice pushed in place of a payload when a
// connection's credential has lapsed.
func TokenExpired() Event {
	return Event{NamespaceSystem, "token_expired", nil}
}

type ErrorData struct {
	Message string `json:"message"`
}

func Error(msg string) Event {
	return Event{NamespaceSystem, "error", ErrorData{msg}}
}
