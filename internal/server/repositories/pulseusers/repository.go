package pulseusers

import (
	"context"

	"github.com/pulseops/pulseguardian/internal/server/models"
)

// Repository stores pulse users and their owner associations. The
// owners relation is an explicit association table; Get and List load
// it eagerly so authorization checks can run on the returned records.
type Repository interface {
	Create(ctx context.Context, pu *models.PulseUser, ownerEmails []string) error
	GetByUsername(ctx context.Context, username string) (*models.PulseUser, error)
	List(ctx context.Context) ([]*models.PulseUser, error)
	ListByOwner(ctx context.Context, email string) ([]*models.PulseUser, error)
	Exists(ctx context.Context, username string) (bool, error)
	Delete(ctx context.Context, username string) error
	UpdatePasswordHash(ctx context.Context, username, hash string) error
	ReplaceOwners(ctx context.Context, username string, emails []string) error
}
