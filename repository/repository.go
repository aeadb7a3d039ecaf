// Package repository holds the persistence interfaces of the service and
// their MongoDB and in-memory implementations.
package repository

import (
	"context"
	"errors"

	"photohunter/models"
)

var (
	ErrNotFound  = errors.New("repository: not found")
	ErrDuplicate = errors.New("repository: duplicate key")
)

type UserRepository interface {
	// Create stores u, assigning an ID when empty. It returns ErrDuplicate
	// when the email is already registered.
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
	AddFavorite(ctx context.Context, userID, locationID string) error
	RemoveFavorite(ctx context.Context, userID, locationID string) error
	DeleteAll(ctx context.Context) error
}

type LocationRepository interface {
	Create(ctx context.Context, l *models.Location) error
	FindByID(ctx context.Context, id string) (models.Location, error)
	FindAll(ctx context.Context) ([]models.Location, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Location, error)
	FindByOwner(ctx context.Context, ownerID string) ([]models.Location, error)
	FindInBox(ctx context.Context, box models.BoundingBox) ([]models.Location, error)
	DeleteAll(ctx context.Context) error
}

type PictureRepository interface {
	Create(ctx context.Context, p *models.Picture) error
	Delete(ctx context.Context, id string) error
}
