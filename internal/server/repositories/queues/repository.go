package queues

import (
	"context"

	"github.com/pulseops/pulseguardian/internal/server/models"
)

// Repository stores queue records discovered on the broker. Get and
// List load the owning pulse user (with its owners) when one is on
// record.
type Repository interface {
	Get(ctx context.Context, name string) (*models.Queue, error)
	List(ctx context.Context) ([]*models.Queue, error)
	ListUnowned(ctx context.Context) ([]*models.Queue, error)
	// Upsert records a discovered queue. An existing record keeps its
	// owner; owner "" means no owner on record.
	Upsert(ctx context.Context, name, owner string) error
	SetOwner(ctx context.Context, name, owner string) error
	Delete(ctx context.Context, name string) error
}
