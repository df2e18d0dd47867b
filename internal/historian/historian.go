// internal/historian/historian.go
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/marousta/njmpu-api/internal/cache"
	"github.com/marousta/njmpu-api/internal/database"
)

// Historian drains the finished-match queue the API pushes onto and archives
// records in Postgres in batches. It runs as its own process so archive
// writes never sit on the game server's critical path.
type Historian struct {
	redisClient *redis.Client
	queueName   string
	batchSize   int
	flushDelay  time.Duration

	batchMu sync.Mutex
	batch   []cache.MatchRecord

	ctx      context.Context
	cancelFn context.CancelFunc

	// flushFn is swappable for tests; defaults to the Postgres writer.
	flushFn func(ctx context.Context, records []cache.MatchRecord) error
}

// New constructs a Historian from environment variables or defaults.
func New() *Historian {
	batchSize := getEnvInt("HISTORIAN_BATCH_SIZE", 20)
	flushMs := getEnvInt("HISTORIAN_FLUSH_MS", 500)

	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	h := &Historian{
		redisClient: rdb,
		queueName:   getEnv("HISTORIAN_QUEUE_NAME", cache.DefaultQueueName),
		batchSize:   batchSize,
		flushDelay:  time.Duration(flushMs) * time.Millisecond,
		batch:       make([]cache.MatchRecord, 0, batchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}
	h.flushFn = h.flushToDB
	return h
}

// Run connects to the database and processes the queue until Stop is called.
func (h *Historian) Run() {
	database.ConnectDB()

	go h.readRedisLoop()

	log.Println("njmpu-historian service started.")
	<-h.ctx.Done()
	h.flushBatch()
	log.Println("njmpu-historian shutting down.")
}

// Stop gracefully stops the historian.
func (h *Historian) Stop() {
	h.cancelFn()
}

// readRedisLoop continuously uses BLPop to retrieve match records from the
// Redis queue, accumulating them into the batch.
func (h *Historian) readRedisLoop() {
	ticker := time.NewTicker(h.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case <-ticker.C:
			h.flushBatch()

		default:
			// BLPop with a short timeout so context cancellation is handled.
			res, err := h.redisClient.BLPop(h.ctx, 3*time.Second, h.queueName).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				log.Printf("[ERROR] BLPop: %v\n", err)
				continue
			}
			if len(res) < 2 {
				continue
			}

			// res[0] is the queue name and res[1] the payload.
			var record cache.MatchRecord
			if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
				log.Printf("invalid match record: %v\n", err)
				continue
			}
			h.appendToBatch(record)
		}
	}
}

// appendToBatch adds a record and flushes once the threshold is reached.
func (h *Historian) appendToBatch(record cache.MatchRecord) {
	h.batchMu.Lock()
	h.batch = append(h.batch, record)
	full := len(h.batch) >= h.batchSize
	h.batchMu.Unlock()

	if full {
		h.flushBatch()
	}
}

// flushBatch hands the accumulated records to the flush function in one call.
func (h *Historian) flushBatch() {
	h.batchMu.Lock()
	if len(h.batch) == 0 {
		h.batchMu.Unlock()
		return
	}
	batchCopy := make([]cache.MatchRecord, len(h.batch))
	copy(batchCopy, h.batch)
	h.batch = h.batch[:0]
	h.batchMu.Unlock()

	if err := h.flushFn(context.Background(), batchCopy); err != nil {
		log.Printf("[ERROR] flushBatch: %v\n", err)
	} else {
		log.Printf("Flushed %d match records to DB.\n", len(batchCopy))
	}
}

// flushToDB archives a batch of match records in a single transaction.
func (h *Historian) flushToDB(ctx context.Context, records []cache.MatchRecord) error {
	return beginTxFunc(ctx, database.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range records {
			if err := insertMatchArchiveTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insertMatchArchiveTx: %w", err)
			}
		}
		return nil
	})
}

// insertMatchArchiveTx inserts one archived match row inside the transaction.
func insertMatchArchiveTx(ctx context.Context, tx pgx.Tx, rec cache.MatchRecord) error {
	q := `
		INSERT INTO match_archive (
			lobby_id, player1_id, player2_id,
			player1_score, player2_score,
			winner, matchmaking, ended_at, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (lobby_id) DO NOTHING
	`
	_, err := tx.Exec(ctx, q,
		rec.Snapshot.LobbyID,
		rec.Snapshot.Player1,
		rec.Snapshot.Player2,
		rec.Snapshot.Player1Score,
		rec.Snapshot.Player2Score,
		rec.Winner,
		rec.Snapshot.Matchmaking,
		rec.Snapshot.EndedAt,
	)
	return err
}

// beginTxFunc starts a transaction on the pool, calls f, and commits or
// rolls back as needed.
func beginTxFunc(ctx context.Context, pool *pgxpool.Pool, txOptions pgx.TxOptions, f func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx rollback error: %v; original error: %w", rbErr, err)
		}
		return err
	}
	return tx.Commit(ctx)
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

// getEnvInt retrieves an integer env var or returns a default value.
func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}
