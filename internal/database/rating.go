// internal/database/rating.go
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetRating reads a user's stored Elo, seeding the default for users with no
// rating row yet.
func GetRating(ctx context.Context, userID uuid.UUID) (float64, error) {
	var r float64
	q := `SELECT rating FROM ratings WHERE user_id=$1`
	err := DB.QueryRow(ctx, q, userID).Scan(&r)
	if errors.Is(err, pgx.ErrNoRows) {
		return 1200, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read rating: %w", err)
	}
	return r, nil
}

// UpdateRating upserts a user's Elo.
func UpdateRating(ctx context.Context, userID uuid.UUID, rating float64) error {
	q := `
	INSERT INTO ratings (user_id, rating)
	VALUES ($1, $2)
	ON CONFLICT (user_id) DO UPDATE SET rating=$2
	`
	if _, err := DB.Exec(ctx, q, userID, rating); err != nil {
		return fmt.Errorf("failed to upsert rating: %w", err)
	}
	return nil
}
