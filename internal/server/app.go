// Package server initializes and runs the main application server. It
// opens the database, runs migrations, wires the broker management
// client and the services behind the HTTP surface, and handles graceful
// shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pulseops/pulseguardian/internal/logging"
	"github.com/pulseops/pulseguardian/internal/server/config"
	"github.com/pulseops/pulseguardian/internal/server/httpapi"
	"github.com/pulseops/pulseguardian/internal/server/identity"
	"github.com/pulseops/pulseguardian/internal/server/management"
	"github.com/pulseops/pulseguardian/internal/server/repositories/repomanager"
	"github.com/pulseops/pulseguardian/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpapi.Server
}

func NewApp(c *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	broker := management.NewClient(c.RabbitManagementURL, c.RabbitUser, c.RabbitPassword, logger)

	us := services.NewUserService(db, rm, logger)
	ps, err := services.NewPulseUserService(db, rm, broker, c, logger)
	if err != nil {
		return nil, err
	}
	qs := services.NewQueueService(db, rm, broker, c.RabbitVhost, logger)

	var resolver identity.Resolver
	if c.FakeAccount != "" {
		logger.Warn(context.Background(), "using fake account login", "email", c.FakeAccount)
		resolver = &identity.FakeResolver{Email: c.FakeAccount}
	} else {
		resolver = identity.NewAuth0Resolver(c.Auth0Domain, c.Auth0ClientID, c.Auth0ClientSecret, c.Auth0CallbackURL, logger)
	}

	srv := httpapi.NewServer(c, logger, us, ps, qs, resolver)

	return &App{config: c, logger: logger, db: db, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}
