// internal/handlers/api_server.go
package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/marousta/njmpu-api/internal/dispatch"
	"github.com/marousta/njmpu-api/internal/game"
	"github.com/marousta/njmpu-api/internal/lobby"
	"github.com/marousta/njmpu-api/internal/matchmaking"
	"github.com/marousta/njmpu-api/internal/middleware"
	"github.com/marousta/njmpu-api/internal/registry"
)

// Server bundles every orchestrator collaborator the HTTP and websocket
// handlers need. It is built once at startup, after the lobby/game
// cross-wiring is done.
type Server struct {
	Log      *logrus.Logger
	Registry *registry.Registry
	Router   *dispatch.Router
	Lobbies  *lobby.Service
	Queue    *matchmaking.Queue
	Sessions *game.Adapter
}

func NewServer(log *logrus.Logger, reg *registry.Registry, router *dispatch.Router, lobbies *lobby.Service, queue *matchmaking.Queue, sessions *game.Adapter) *Server {
	return &Server{
		Log:      log,
		Registry: reg,
		Router:   router,
		Lobbies:  lobbies,
		Queue:    queue,
		Sessions: sessions,
	}
}

// Routes builds the full HTTP surface: user auth, lobby commands,
// matchmaking commands, and the single persistent websocket endpoint.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	logged := middleware.LogMiddleware(s.Log)

	// user endpoints
	mux.HandleFunc("/user/create", s.CreateUserHandler)
	mux.HandleFunc("/user/login", s.LoginHandler)

	// lobby endpoints
	mux.Handle("/lobby/create", logged(http.HandlerFunc(s.CreateLobbyHandler)))
	mux.Handle("/lobby/invite", logged(http.HandlerFunc(s.InviteLobbyHandler)))
	mux.Handle("/lobby/join", logged(http.HandlerFunc(s.JoinLobbyHandler)))
	mux.Handle("/lobby/decline", logged(http.HandlerFunc(s.DeclineLobbyHandler)))
	mux.Handle("/lobby/color", logged(http.HandlerFunc(s.ColorLobbyHandler)))
	mux.Handle("/lobby/ready", logged(http.HandlerFunc(s.ReadyLobbyHandler)))
	mux.Handle("/lobby/leave", logged(http.HandlerFunc(s.LeaveLobbyHandler)))
	mux.Handle("/lobby/kick", logged(http.HandlerFunc(s.KickLobbyHandler)))

	// matchmaking endpoints
	mux.Handle("/matchmaking/join", logged(http.HandlerFunc(s.JoinQueueHandler)))
	mux.Handle("/matchmaking/quit", logged(http.HandlerFunc(s.QuitQueueHandler)))

	// persistent websocket
	mux.Handle("/ws", logged(http.HandlerFunc(s.WSHandler)))

	return mux
}
