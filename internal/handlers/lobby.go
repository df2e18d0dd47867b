// internal/handlers/lobby.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/marousta/njmpu-api/internal/lobby"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// writeLobbyError maps lobby state machine errors onto HTTP statuses.
func writeLobbyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lobby.ErrNotFound):
		http.Error(w, "lobby not found", http.StatusNotFound)
	case errors.Is(err, lobby.ErrNotInLobby):
		http.Error(w, "not a participant of this lobby", http.StatusForbidden)
	case errors.Is(err, lobby.ErrNoConnection):
		http.Error(w, "connection does not belong to you", http.StatusForbidden)
	case errors.Is(err, lobby.ErrConsistency):
		http.Error(w, "internal state error", http.StatusInternalServerError)
	default:
		http.Error(w, err.Error(), http.StatusConflict)
	}
}

type lobbyResponse struct {
	LobbyID uuid.UUID `json:"lobby_uuid"`
}

func writeLobby(w http.ResponseWriter, status int, lobbyID uuid.UUID) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(lobbyResponse{LobbyID: lobbyID})
}

// CreateLobbyHandler builds a new lobby with the actor as player1, optionally
// inviting an opponent in the same call.
func (s *Server) CreateLobbyHandler(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		ConnectionID uuid.UUID  `json:"connection_uuid"`
		Opponent     *uuid.UUID `json:"opponent_uuid,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	l, err := s.Lobbies.Create(r.Context(), actor, req.ConnectionID, req.Opponent)
	if err != nil {
		writeLobbyError(w, err)
		return
	}
	writeLobby(w, http.StatusCreated, l.ID)
}

// InviteLobbyHandler adds a player2 invitation to the actor's lobby, creating
// the lobby first if they have none.
func (s *Server) InviteLobbyHandler(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		ConnectionID uuid.UUID `json:"connection_uuid"`
		UserID       uuid.UUID `json:"user_uuid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == uuid.Nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	l, err := s.Lobbies.Invite(r.Context(), actor, req.ConnectionID, req.UserID)
	if err != nil {
		writeLobbyError(w, err)
		return
	}
	writeLobby(w, http.StatusOK, l.ID)
}

// JoinLobbyHandler enters a lobby, as player2 when the actor holds the
// invitation and as a spectator otherwise.
func (s *Server) JoinLobbyHandler(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		ConnectionID uuid.UUID `json:"connection_uuid"`
		LobbyID      uuid.UUID `json:"lobby_uuid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := s.Lobbies.Join(r.Context(), actor, req.ConnectionID, req.LobbyID); err != nil {
		writeLobbyError(w, err)
		return
	}
	writeLobby(w, http.StatusOK, req.LobbyID)
}

// DeclineLobbyHandler refuses a pending invitation.
func (s *Server) DeclineLobbyHandler(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		LobbyID uuid.UUID `json:"lobby_uuid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := s.Lobbies.Decline(r.Context(), actor, req.LobbyID); err != nil {
		writeLobbyError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ColorLobbyHandler sets the actor's paddle color.
func (s *Server) ColorLobbyHandler(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		LobbyID uuid.UUID `json:"lobby_uuid"`
		Color   string    `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if !hexColor.MatchString(req.Color) {
		http.Error(w, "color must be a #rrggbb hex value", http.StatusBadRequest)
		return
	}

	if err := s.Lobbies.Color(r.Context(), actor, req.LobbyID, req.Color); err != nil {
		writeLobbyError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ReadyLobbyHandler marks the actor ready; once both players are ready the
// game starts.
func (s *Server) ReadyLobbyHandler(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		LobbyID uuid.UUID `json:"lobby_uuid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := s.Lobbies.Start(r.Context(), actor, req.LobbyID); err != nil {
		writeLobbyError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// LeaveLobbyHandler removes the actor from the lobby, disbanding it when the
// lobby rules require.
func (s *Server) LeaveLobbyHandler(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		LobbyID uuid.UUID `json:"lobby_uuid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := s.Lobbies.Leave(r.Context(), actor, req.LobbyID); err != nil {
		writeLobbyError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// KickLobbyHandler is the player1-only forced leave of another participant.
func (s *Server) KickLobbyHandler(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		LobbyID uuid.UUID `json:"lobby_uuid"`
		UserID  uuid.UUID `json:"user_uuid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == uuid.Nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := s.Lobbies.Kick(r.Context(), actor, req.LobbyID, req.UserID); err != nil {
		writeLobbyError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
