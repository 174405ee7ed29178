package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/pulseops/pulseguardian/internal/dbx"
	"github.com/pulseops/pulseguardian/internal/server/migrations"
	"github.com/pulseops/pulseguardian/internal/server/repositories/pulseusers"
	"github.com/pulseops/pulseguardian/internal/server/repositories/queues"
	"github.com/pulseops/pulseguardian/internal/server/repositories/users"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository
// implementations and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// PulseUsers returns a pulseusers.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) PulseUsers(db dbx.DBTX) pulseusers.Repository {
	return pulseusers.NewPostgresRepository(db)
}

// Queues returns a queues.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Queues(db dbx.DBTX) queues.Repository {
	return queues.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs
// them against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
