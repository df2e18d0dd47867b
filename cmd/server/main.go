// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/marousta/njmpu-api/internal/auth"
	"github.com/marousta/njmpu-api/internal/cache"
	"github.com/marousta/njmpu-api/internal/database"
	"github.com/marousta/njmpu-api/internal/dispatch"
	"github.com/marousta/njmpu-api/internal/engine"
	"github.com/marousta/njmpu-api/internal/game"
	"github.com/marousta/njmpu-api/internal/handlers"
	"github.com/marousta/njmpu-api/internal/history"
	"github.com/marousta/njmpu-api/internal/lobby"
	"github.com/marousta/njmpu-api/internal/matchmaking"
	"github.com/marousta/njmpu-api/internal/models"
	"github.com/marousta/njmpu-api/internal/notifications"
	"github.com/marousta/njmpu-api/internal/registry"
	"github.com/marousta/njmpu-api/internal/users"
)

func main() {
	auth.Init()
	database.ConnectDB()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	if err := cache.ConnectRedis(); err != nil {
		logger.Warnf("Redis unavailable, match history will not be queued: %v", err)
	}

	maxSpectators := 10
	if v := os.Getenv("MAX_SPECTATORS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("invalid MAX_SPECTATORS: %v", err)
		}
		maxSpectators = n
	}

	reg := registry.New(logger)
	router := dispatch.NewRouter(reg, logger)
	directory := users.NewDirectory()
	notifier := notifications.NewService()

	lobbies := lobby.NewService(lobby.NewStore(), reg, router, directory, notifier, maxSpectators, logger)

	hist := history.NewService(logger)
	sessions := game.NewAdapter(
		func(lobbyID uuid.UUID, p1, p2 *models.Connection, spectators []*models.Connection) game.Engine {
			return engine.New(lobbyID, p1, p2, spectators)
		},
		hist,
		logger,
	)

	// break the lobby<->game cycle
	lobbies.Sessions = sessions
	sessions.OnGameEnd = lobbies.HandleGameEnd

	queue := matchmaking.NewQueue(reg, router, lobbies, logger)

	srv := handlers.NewServer(logger, reg, router, lobbies, queue, sessions)
	mux := srv.Routes()

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
