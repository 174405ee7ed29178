package queues

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pulseops/pulseguardian/internal/common"
	"github.com/pulseops/pulseguardian/internal/dbx"
	"github.com/pulseops/pulseguardian/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, name string) (*models.Queue, error) {
	query :=
		`SELECT q.name, q.owner_pulse_username FROM queues q
		 WHERE q.name = $1
		 `

	q := &models.Queue{}
	var owner sql.NullString
	err := r.db.QueryRowContext(ctx, query, name).Scan(&q.Name, &owner)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if owner.Valid {
		pu, err := r.ownerRecord(ctx, owner.String)
		if err != nil {
			return nil, err
		}
		q.Owner = pu
	}
	return q, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Queue, error) {
	return r.list(ctx,
		`SELECT name, owner_pulse_username FROM queues
		 ORDER BY name
		 `)
}

func (r *PostgresRepository) ListUnowned(ctx context.Context) ([]*models.Queue, error) {
	return r.list(ctx,
		`SELECT name, owner_pulse_username FROM queues
		 WHERE owner_pulse_username IS NULL
		 ORDER BY name
		 `)
}

func (r *PostgresRepository) Upsert(ctx context.Context, name, owner string) error {
	query :=
		`INSERT INTO queues (name, owner_pulse_username)
		 VALUES ($1, $2)
		 ON CONFLICT (name) DO NOTHING
		 `

	if _, err := r.db.ExecContext(ctx, query, name, nullable(owner)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SetOwner(ctx context.Context, name, owner string) error {
	query :=
		`UPDATE queues SET owner_pulse_username = $2
		 WHERE name = $1
		 `

	res, err := r.db.ExecContext(ctx, query, name, nullable(owner))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, name string) error {
	query :=
		`DELETE FROM queues
		 WHERE name = $1
		 `

	res, err := r.db.ExecContext(ctx, query, name)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) list(ctx context.Context, query string) ([]*models.Queue, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	type row struct {
		q     *models.Queue
		owner string
	}
	var result []row
	for rows.Next() {
		q := &models.Queue{}
		var owner sql.NullString
		if err := rows.Scan(&q.Name, &owner); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, row{q: q, owner: owner.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	// Load each distinct owner once; many queues share one pulse user.
	owners := map[string]*models.PulseUser{}
	var queues []*models.Queue
	for _, rec := range result {
		if rec.owner != "" {
			pu, ok := owners[rec.owner]
			if !ok {
				var err error
				pu, err = r.ownerRecord(ctx, rec.owner)
				if err != nil {
					return nil, err
				}
				owners[rec.owner] = pu
			}
			rec.q.Owner = pu
		}
		queues = append(queues, rec.q)
	}
	return queues, nil
}

// ownerRecord loads the owning pulse user with its owners set, so that
// authorization checks can run directly on the queue record.
func (r *PostgresRepository) ownerRecord(ctx context.Context, username string) (*models.PulseUser, error) {
	query :=
		`SELECT username, password_hash, created_at FROM pulse_users
		 WHERE username = $1
		 `

	pu := &models.PulseUser{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(&pu.Username, &pu.PasswordHash, &pu.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Dangling reference; surfaced as an ownerless queue.
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	ownersQuery :=
		`SELECT u.email, u.admin
		 FROM users u
		 JOIN pulse_user_owners o ON o.user_email = u.email
		 WHERE o.pulse_username = $1
		 ORDER BY u.email
		 `

	rows, err := r.db.QueryContext(ctx, ownersQuery, username)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.Email, &user.Admin); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		pu.Owners = append(pu.Owners, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return pu, nil
}
