// internal/historian/historian_test.go
package historian

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/marousta/njmpu-api/internal/cache"
	"github.com/marousta/njmpu-api/internal/models"
)

func sampleRecord() cache.MatchRecord {
	return cache.MatchRecord{
		Snapshot: models.LobbySnapshot{
			LobbyID:      uuid.New(),
			Player1:      uuid.New(),
			Player2:      uuid.New(),
			Player1Score: 11,
			Player2Score: 7,
			Matchmaking:  true,
			EndedAt:      time.Now(),
		},
		Winner:    models.WinnerPlayer1,
		Timestamp: time.Now().UnixMilli(),
	}
}

func TestQueuePayloadRoundTrip(t *testing.T) {
	rec := sampleRecord()
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded cache.MatchRecord
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Snapshot.LobbyID != rec.Snapshot.LobbyID {
		t.Errorf("lobby id mismatch: %v != %v", decoded.Snapshot.LobbyID, rec.Snapshot.LobbyID)
	}
	if decoded.Winner != models.WinnerPlayer1 {
		t.Errorf("winner mismatch: %v", decoded.Winner)
	}
}

func TestBatchFlushesAtThreshold(t *testing.T) {
	var flushed [][]cache.MatchRecord
	h := &Historian{
		batchSize: 3,
		batch:     make([]cache.MatchRecord, 0, 3),
		flushFn: func(ctx context.Context, records []cache.MatchRecord) error {
			flushed = append(flushed, records)
			return nil
		},
	}

	h.appendToBatch(sampleRecord())
	h.appendToBatch(sampleRecord())
	if len(flushed) != 0 {
		t.Fatalf("flushed before threshold: %d", len(flushed))
	}

	h.appendToBatch(sampleRecord())
	if len(flushed) != 1 {
		t.Fatalf("expected one flush, got %d", len(flushed))
	}
	if len(flushed[0]) != 3 {
		t.Errorf("expected 3 records in flush, got %d", len(flushed[0]))
	}

	// a timer flush with an empty batch is a no-op
	h.flushBatch()
	if len(flushed) != 1 {
		t.Errorf("empty flush should not call flushFn, got %d", len(flushed))
	}
}
