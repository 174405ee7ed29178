package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pulseops/pulseguardian/internal/common"
	"github.com/pulseops/pulseguardian/internal/logging"
	"github.com/pulseops/pulseguardian/internal/server/models"
	"github.com/pulseops/pulseguardian/internal/server/repositories/repomanager"
)

// UserService resolves and manages application users.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "user_service"),
	}
}

// ResolveOrCreate maps a verified email to a User, creating the record
// on first login. The second return value reports whether the user
// already owns at least one pulse user, which the caller uses to route
// between "already registered" and "needs registration".
func (s *UserService) ResolveOrCreate(ctx context.Context, email string) (*models.User, bool, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		user, err = repo.Create(ctx, email)
	}
	if err != nil {
		return nil, false, err
	}

	owned, err := s.repomanager.PulseUsers(s.db).ListByOwner(ctx, email)
	if err != nil {
		return nil, false, err
	}
	user.PulseUsers = owned
	return user, len(owned) > 0, nil
}

// List returns all users. The web surface restricts this to admins.
func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	return s.repomanager.Users(s.db).List(ctx)
}

// SetAdmin toggles the admin flag of a user. Admin-only.
func (s *UserService) SetAdmin(ctx context.Context, acting *models.User, email string, admin bool) *Outcome {
	if acting == nil || !acting.Admin {
		return failure()
	}

	if err := s.repomanager.Users(s.db).SetAdmin(ctx, email, admin); err != nil {
		s.logger.Warn(ctx, "couldn't change admin role", "email", email, "error", err.Error())
		return failure()
	}

	s.logger.Info(ctx, "admin role changed", "email", email, "admin", admin, "by", acting.Email)
	return success()
}
