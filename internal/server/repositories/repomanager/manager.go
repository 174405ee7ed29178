// Package repomanager wires repository constructors together behind a
// single interface, so services can bind the same repositories to a
// plain connection or to a transaction handle.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/pulseops/pulseguardian/internal/dbx"
	"github.com/pulseops/pulseguardian/internal/server/repositories/pulseusers"
	"github.com/pulseops/pulseguardian/internal/server/repositories/queues"
	"github.com/pulseops/pulseguardian/internal/server/repositories/users"
)

type RepositoryManager interface {
	Users(db dbx.DBTX) users.Repository
	PulseUsers(db dbx.DBTX) pulseusers.Repository
	Queues(db dbx.DBTX) queues.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
