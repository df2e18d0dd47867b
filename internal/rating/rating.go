// internal/rating/rating.go
package rating

import (
	"context"
	"fmt"
	"math"

	"github.com/marousta/njmpu-api/internal/database"
	"github.com/marousta/njmpu-api/internal/models"
)

// KFactor controls how far a single match moves a rating.
const KFactor = 32

// DefaultRating seeds players with no history.
const DefaultRating = 1200

// Expected is the classic Elo expectation of a beating b.
func Expected(a, b float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (b-a)/400.0))
}

// Update returns the new ratings for both players given the player1 outcome
// (1 win, 0.5 tie, 0 loss).
func Update(r1, r2, outcome1 float64) (float64, float64) {
	e1 := Expected(r1, r2)
	e2 := Expected(r2, r1)
	return r1 + KFactor*(outcome1-e1), r2 + KFactor*((1-outcome1)-e2)
}

// Settle reads both players' stored ratings, applies the match outcome, and
// writes the updated values back.
func Settle(ctx context.Context, snapshot models.LobbySnapshot, winner models.Winner) error {
	r1, err := database.GetRating(ctx, snapshot.Player1)
	if err != nil {
		return fmt.Errorf("rating read player1: %w", err)
	}
	r2, err := database.GetRating(ctx, snapshot.Player2)
	if err != nil {
		return fmt.Errorf("rating read player2: %w", err)
	}

	var outcome1 float64
	switch winner {
	case models.WinnerPlayer1:
		outcome1 = 1
	case models.WinnerPlayer2:
		outcome1 = 0
	default:
		outcome1 = 0.5
	}

	n1, n2 := Update(r1, r2, outcome1)
	if err := database.UpdateRating(ctx, snapshot.Player1, n1); err != nil {
		return fmt.Errorf("rating write player1: %w", err)
	}
	if err := database.UpdateRating(ctx, snapshot.Player2, n2); err != nil {
		return fmt.Errorf("rating write player2: %w", err)
	}
	return nil
}
