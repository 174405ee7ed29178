package users

import (
	"context"

	"github.com/pulseops/pulseguardian/internal/server/models"
)

// Repository stores application users keyed by email.
type Repository interface {
	Create(ctx context.Context, email string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByEmails(ctx context.Context, emails []string) ([]*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	SetAdmin(ctx context.Context, email string, admin bool) error
}
