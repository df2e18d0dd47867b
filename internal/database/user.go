// internal/database/user.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/marousta/njmpu-api/internal/auth"
	"github.com/marousta/njmpu-api/internal/models"
)

func CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}
		user.ID = id
	}

	hash, err := auth.CreateHash(user.Password, auth.Params)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = hash
	if user.Status == "" {
		user.Status = models.StatusOffline
	}

	q := `INSERT INTO users (id, email, password, username, status)
	      VALUES ($1, $2, $3, $4, $5)`

	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			user.ID, user.Email, user.Password, user.Username, user.Status,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	q := `SELECT id, email, password, username, status FROM users WHERE email=$1`
	err := DB.QueryRow(ctx, q, email).Scan(
		&u.ID, &u.Email, &u.Password, &u.Username, &u.Status,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	q := `SELECT id, email, username, status FROM users WHERE id=$1`
	err := DB.QueryRow(ctx, q, id).Scan(
		&u.ID, &u.Email, &u.Username, &u.Status,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUserStatus persists the presence flag pushed out by the orchestrator
// after every status transition.
func UpdateUserStatus(ctx context.Context, id uuid.UUID, status models.UserStatus) error {
	q := `UPDATE users SET status=$1 WHERE id=$2`
	if _, err := DB.Exec(ctx, q, status, id); err != nil {
		return fmt.Errorf("failed to update user status: %w", err)
	}
	return nil
}
