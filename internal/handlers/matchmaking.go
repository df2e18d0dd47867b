// internal/handlers/matchmaking.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/marousta/njmpu-api/internal/matchmaking"
)

// JoinQueueHandler puts the actor's connection into the matchmaking queue.
func (s *Server) JoinQueueHandler(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		ConnectionID uuid.UUID `json:"connection_uuid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := s.Queue.Add(r.Context(), actor, req.ConnectionID); err != nil {
		switch {
		case errors.Is(err, matchmaking.ErrNotConnected),
			errors.Is(err, matchmaking.ErrNotOnline):
			http.Error(w, err.Error(), http.StatusForbidden)
		default:
			http.Error(w, err.Error(), http.StatusConflict)
		}
		return
	}
	w.WriteHeader(http.StatusOK)
}

// QuitQueueHandler withdraws the actor from the matchmaking queue. Quitting
// while not queued is not an error.
func (s *Server) QuitQueueHandler(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	removed := s.Queue.Remove(actor)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"removed": removed})
}
