// internal/notifications/notifications.go
package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/marousta/njmpu-api/internal/database"
)

// Service is the notifications collaborator backed by Postgres: invite
// notifications in, read-marking out.
type Service struct{}

func NewService() *Service { return &Service{} }

// Notify stores one notification for the target user.
func (s *Service) Notify(ctx context.Context, kind string, from, to, lobbyID uuid.UUID) error {
	return database.InsertNotification(ctx, kind, from, to, lobbyID)
}

// MarkRead clears unread notifications of the given kinds between two users.
func (s *Service) MarkRead(ctx context.Context, from, to uuid.UUID, kinds ...string) error {
	return database.MarkNotificationsRead(ctx, from, to, kinds)
}
