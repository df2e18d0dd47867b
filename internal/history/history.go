// internal/history/history.go
package history

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marousta/njmpu-api/internal/cache"
	"github.com/marousta/njmpu-api/internal/database"
	"github.com/marousta/njmpu-api/internal/models"
	"github.com/marousta/njmpu-api/internal/rating"
)

// Service is the history collaborator: it persists finished-match snapshots
// to Postgres, queues them for the historian microservice, and settles
// ratings. Write failures never roll back the in-memory session transition
// that already happened; callers log and continue.
type Service struct {
	log *logrus.Logger
}

func NewService(log *logrus.Logger) *Service {
	return &Service{log: log}
}

// Record persists the final lobby snapshot and its winner.
func (s *Service) Record(ctx context.Context, snapshot models.LobbySnapshot, winner models.Winner) error {
	if err := database.RecordMatch(ctx, snapshot, winner); err != nil {
		return err
	}

	if err := rating.Settle(ctx, snapshot, winner); err != nil {
		s.log.WithField("lobby", snapshot.LobbyID).Warnf("Rating settle failed: %v", err)
	}

	if cache.Rdb != nil {
		record := cache.MatchRecord{
			Snapshot:  snapshot,
			Winner:    winner,
			Timestamp: time.Now().UnixMilli(),
		}
		if err := cache.PublishMatch(ctx, record); err != nil {
			s.log.WithField("lobby", snapshot.LobbyID).Warnf("Historian queue push failed: %v", err)
		}
	}
	return nil
}
