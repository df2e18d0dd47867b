// internal/matchmaking/queue.go
package matchmaking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/marousta/njmpu-api/internal/dispatch"
	"github.com/marousta/njmpu-api/internal/events"
	"github.com/marousta/njmpu-api/internal/lobby"
	"github.com/marousta/njmpu-api/internal/models"
	"github.com/marousta/njmpu-api/internal/registry"
)

// PollInterval is the fixed period of the queue drain loop.
const PollInterval = 100 * time.Millisecond

var (
	// ErrNotConnected: the user has no live connection at all.
	ErrNotConnected = errors.New("user has no live connection")
	// ErrAlreadyInGame: the user is already playing in a lobby.
	ErrAlreadyInGame = errors.New("user already in a game")
	// ErrNotOnline: the given connection id is not one of the user's live
	// connections.
	ErrNotOnline = errors.New("connection does not belong to user")
	// ErrAlreadyInQueue: one entry per user.
	ErrAlreadyInQueue = errors.New("user already queued")
)

type entry struct {
	userID   uuid.UUID
	conn     *models.Connection
	queuedAt time.Time
}

// Queue is the matchmaking waiting pool. A periodic scan pairs the two
// longest-waiting users in stable insertion order, not fairness-optimized
// and not skill-based. The loop runs only while the queue is non-empty and
// is resumed lazily on the next Add.
type Queue struct {
	mu      sync.Mutex
	entries []*entry
	byUser  map[uuid.UUID]*entry
	running bool

	interval time.Duration
	reg      *registry.Registry
	router   *dispatch.Router
	lobbies  *lobby.Service
	log      *logrus.Logger
}

func NewQueue(reg *registry.Registry, router *dispatch.Router, lobbies *lobby.Service, log *logrus.Logger) *Queue {
	return &Queue{
		byUser:   make(map[uuid.UUID]*entry),
		interval: PollInterval,
		reg:      reg,
		router:   router,
		lobbies:  lobbies,
		log:      log,
	}
}

// Add enqueues a user with the connection the match announcement should
// reach, and starts the poll loop if it is not running. A "waiting"
// acknowledgment goes to that connection only.
func (q *Queue) Add(ctx context.Context, userID, connID uuid.UUID) error {
	if len(q.reg.Connections(userID)) == 0 {
		return ErrNotConnected
	}
	// spectating elsewhere still lets you queue; playing does not
	if status, detail := q.reg.StatusOf(userID); status == models.StatusInGame &&
		detail != nil && !detail.Spectator {
		return ErrAlreadyInGame
	}
	conn, ok := q.reg.Get(connID)
	if !ok || conn.UserID != userID {
		return ErrNotOnline
	}

	q.mu.Lock()
	if _, queued := q.byUser[userID]; queued {
		q.mu.Unlock()
		return ErrAlreadyInQueue
	}
	e := &entry{userID: userID, conn: conn, queuedAt: time.Now()}
	q.entries = append(q.entries, e)
	q.byUser[userID] = e
	position := len(q.entries)
	if !q.running {
		q.running = true
		go q.loop()
	}
	q.mu.Unlock()

	q.log.WithFields(logrus.Fields{"user": userID, "position": position}).
		Info("User queued for matchmaking")
	q.router.ToConns([]*models.Connection{conn}, events.QueueWaiting(position))
	return nil
}

// Remove drops a user's entry if present and reports whether anything was
// removed. Used for explicit cancel and for automatic cleanup on disconnect.
func (q *Queue) Remove(userID uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeLocked(userID)
}

func (q *Queue) removeLocked(userID uuid.UUID) bool {
	if _, queued := q.byUser[userID]; !queued {
		return false
	}
	delete(q.byUser, userID)
	for i, e := range q.entries {
		if e.userID == userID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	return true
}

// Len reports the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// loop drives the periodic scan. Running in a single goroutine keeps polls
// single-flight: two ticks can never pair entries concurrently.
func (q *Queue) loop() {
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()
	for range ticker.C {
		if !q.poll() {
			return
		}
	}
}

// poll pairs the two longest-waiting eligible users. Returns false once the
// queue is empty and the loop should stop.
func (q *Queue) poll() bool {
	q.mu.Lock()
	// prune entries whose connection has gone away since they queued
	for i := 0; i < len(q.entries); {
		e := q.entries[i]
		if _, ok := q.reg.Get(e.conn.ID); !ok {
			q.removeLocked(e.userID)
			continue
		}
		i++
	}

	if len(q.entries) == 0 {
		q.running = false
		q.mu.Unlock()
		return false
	}
	if len(q.entries) < 2 {
		q.mu.Unlock()
		return true
	}

	first, second := q.entries[0], q.entries[1]
	q.removeLocked(first.userID)
	q.removeLocked(second.userID)
	q.mu.Unlock()

	q.log.WithFields(logrus.Fields{
		"player1": first.userID,
		"player2": second.userID,
		"waited":  time.Since(first.queuedAt),
	}).Info("Matchmaking pair found")

	if _, err := q.lobbies.CreateMatch(context.Background(), first.conn, second.conn); err != nil {
		q.log.Errorf("CreateMatch failed for %s vs %s: %v", first.userID, second.userID, err)
	}
	return true
}
