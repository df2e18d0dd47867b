// internal/database/match.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/marousta/njmpu-api/internal/models"
)

// RecordMatch persists the final outcome of a finished game.
func RecordMatch(ctx context.Context, snapshot models.LobbySnapshot, winner models.Winner) error {
	q := `
	INSERT INTO matches (
		lobby_id, player1_id, player2_id,
		player1_score, player2_score,
		winner, matchmaking, ended_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			snapshot.LobbyID,
			snapshot.Player1,
			snapshot.Player2,
			snapshot.Player1Score,
			snapshot.Player2Score,
			string(winner),
			snapshot.Matchmaking,
			snapshot.EndedAt,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert match record: %w", err)
	}
	return nil
}
