// internal/database/notification.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// InsertNotification stores one unread notification.
func InsertNotification(ctx context.Context, kind string, from, to, lobbyID uuid.UUID) error {
	q := `
	INSERT INTO notifications (id, kind, from_user, to_user, lobby_id, read)
	VALUES ($1, $2, $3, $4, $5, false)
	`
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Errorf("failed to generate notification id: %w", err)
	}
	if _, err := DB.Exec(ctx, q, id, kind, from, to, lobbyID); err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// MarkNotificationsRead marks every unread notification of the given kinds
// between the two users as read.
func MarkNotificationsRead(ctx context.Context, from, to uuid.UUID, kinds []string) error {
	q := `
	UPDATE notifications SET read=true
	WHERE from_user=$1 AND to_user=$2 AND kind = ANY($3) AND read=false
	`
	if _, err := DB.Exec(ctx, q, from, to, kinds); err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}
