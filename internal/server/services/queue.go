package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pulseops/pulseguardian/internal/common"
	"github.com/pulseops/pulseguardian/internal/logging"
	"github.com/pulseops/pulseguardian/internal/server/management"
	"github.com/pulseops/pulseguardian/internal/server/models"
	"github.com/pulseops/pulseguardian/internal/server/repositories/repomanager"
)

// QueueService administers broker queues and keeps local queue records
// in step with the broker listing.
type QueueService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	broker      Broker
	vhost       string
	logger      logging.Logger
}

func NewQueueService(db *sql.DB, m repomanager.RepositoryManager, b Broker, vhost string, logger logging.Logger) *QueueService {
	return &QueueService{
		db:          db,
		repomanager: m,
		broker:      b,
		vhost:       vhost,
		logger:      logger.With("module", "queue_service"),
	}
}

// Delete removes a queue from the broker and then the local record,
// gated on admin-or-owner (a queue with no owner on record is
// admin-only). An absent queue and a denied actor produce the same
// generic failure, so a second delete of the same queue reports
// failure without further side effects.
func (s *QueueService) Delete(ctx context.Context, acting *models.User, name string) *Outcome {
	queue, err := s.repomanager.Queues(s.db).Get(ctx, name)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(ctx, "queue lookup failed", "queue", name, "error", err.Error())
		}
		return failure()
	}
	if !acting.CanDeleteQueue(queue) {
		return failure()
	}

	// Broker deletion is authoritative; the local record goes second.
	if err := s.broker.DeleteQueue(ctx, s.vhost, queue.Name); err != nil {
		s.logger.Warn(ctx, "couldn't delete the queue on rabbitmq", "queue", name, "error", err.Error())
		return failure()
	}
	if err := s.repomanager.Queues(s.db).Delete(ctx, name); err != nil {
		s.logger.Error(ctx, "local record deletion failed after broker queue was deleted",
			"queue", name, "error", err.Error())
		return failure()
	}

	s.logger.Info(ctx, "queue deleted", "queue", name)
	return success()
}

// Bindings lists the bindings of a locally known queue. An unknown
// queue yields an empty listing, not an error.
func (s *QueueService) Bindings(ctx context.Context, name string) ([]management.Binding, error) {
	if _, err := s.repomanager.Queues(s.db).Get(ctx, name); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return s.broker.QueueBindings(ctx, s.vhost, name)
}

// List returns all locally known queues with their owners loaded.
func (s *QueueService) List(ctx context.Context) ([]*models.Queue, error) {
	return s.repomanager.Queues(s.db).List(ctx)
}

// ListUnowned returns queues with no owner on record. The web surface
// restricts this to admins.
func (s *QueueService) ListUnowned(ctx context.Context) ([]*models.Queue, error) {
	return s.repomanager.Queues(s.db).ListUnowned(ctx)
}

// Reconcile walks the broker's queue listing and records queues this
// system hasn't seen yet, resolving an owner through the consuming
// user where one can be identified. Best-effort: per-queue failures
// are logged and counted, not fatal.
func (s *QueueService) Reconcile(ctx context.Context) *Outcome {
	brokerQueues, err := s.broker.Queues(ctx, s.vhost)
	if err != nil {
		s.logger.Error(ctx, "broker queue listing failed", "error", err.Error())
		return failure(msgBrokerDown)
	}

	repo := s.repomanager.Queues(s.db)
	var discovered, claimed, failed int
	for _, bq := range brokerQueues {
		local, err := repo.Get(ctx, bq.Name)
		switch {
		case errors.Is(err, common.ErrorNotFound):
			owner := s.resolveOwner(ctx, bq)
			if err := repo.Upsert(ctx, bq.Name, owner); err != nil {
				s.logger.Warn(ctx, "couldn't record discovered queue", "queue", bq.Name, "error", err.Error())
				failed++
				continue
			}
			discovered++
		case err != nil:
			s.logger.Warn(ctx, "queue lookup failed", "queue", bq.Name, "error", err.Error())
			failed++
		case local.Owner == nil:
			owner := s.resolveOwner(ctx, bq)
			if owner == "" {
				continue
			}
			if err := repo.SetOwner(ctx, bq.Name, owner); err != nil {
				s.logger.Warn(ctx, "couldn't claim queue", "queue", bq.Name, "error", err.Error())
				failed++
				continue
			}
			claimed++
		}
	}

	out := success(fmt.Sprintf("%d queues discovered, %d claimed, %d failed.", discovered, claimed, failed))
	s.logger.Info(ctx, "queue reconciliation finished",
		"discovered", discovered, "claimed", claimed, "failed", failed)
	return out
}

// resolveOwner maps a broker queue to a local pulse user through the
// identity of its first consumer. Returns "" when no owner can be
// identified or the consuming user is not a pulse user we know.
func (s *QueueService) resolveOwner(ctx context.Context, bq management.Queue) string {
	username, err := s.broker.QueueOwner(ctx, bq)
	if err != nil {
		s.logger.Warn(ctx, "queue owner resolution failed", "queue", bq.Name, "error", err.Error())
		return ""
	}
	if username == "" {
		return ""
	}
	known, err := s.repomanager.PulseUsers(s.db).Exists(ctx, username)
	if err != nil {
		s.logger.Warn(ctx, "pulse user lookup failed", "username", username, "error", err.Error())
		return ""
	}
	if !known {
		return ""
	}
	return username
}
