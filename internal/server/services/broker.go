package services

import (
	"context"

	"github.com/pulseops/pulseguardian/internal/server/management"
)

// Broker is the subset of the management API consumed by the services.
// *management.Client implements it.
type Broker interface {
	Queues(ctx context.Context, vhost string) ([]management.Queue, error)
	Queue(ctx context.Context, vhost, name string) (*management.Queue, error)
	DeleteQueue(ctx context.Context, vhost, name string) error
	QueueBindings(ctx context.Context, vhost, name string) ([]management.Binding, error)
	QueueOwner(ctx context.Context, q management.Queue) (string, error)
	User(ctx context.Context, username string) (*management.User, error)
	CreateUser(ctx context.Context, username, password, tags string) error
	DeleteUser(ctx context.Context, username string) error
}
