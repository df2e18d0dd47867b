// internal/users/users.go
package users

import (
	"context"

	"github.com/google/uuid"

	"github.com/marousta/njmpu-api/internal/database"
	"github.com/marousta/njmpu-api/internal/models"
)

// Directory is the user-directory collaborator backed by Postgres. The
// orchestrator only reads profiles by uuid and pushes status transitions.
type Directory struct{}

func NewDirectory() *Directory { return &Directory{} }

// FindByUUID resolves a user reference.
func (d *Directory) FindByUUID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return database.GetUserByID(ctx, id)
}

// SetStatus persists a presence transition.
func (d *Directory) SetStatus(ctx context.Context, id uuid.UUID, status models.UserStatus) error {
	return database.UpdateUserStatus(ctx, id, status)
}
