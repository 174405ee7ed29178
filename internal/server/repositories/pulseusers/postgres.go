package pulseusers

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

// Create inserts the pulse user row and one owner association per
// email. Run it inside dbx.WithTx so the row and its owners land
// atomically.
func (r *PostgresRepository) Create(ctx context.Context, pu *models.PulseUser, ownerEmails []string) error {
	query :=
		`INSERT INTO pulse_users (username, password_hash)
		 VALUES ($1, $2)
		 `

	if _, err := r.db.ExecContext(ctx, query, pu.Username, pu.PasswordHash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	for _, email := range ownerEmails {
		if err := r.addOwner(ctx, pu.Username, email); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.PulseUser, error) {
	query :=
		`SELECT username, password_hash, created_at FROM pulse_users
		 WHERE username = $1
		 `

	pu := &models.PulseUser{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(&pu.Username, &pu.PasswordHash, &pu.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	owners, err := r.owners(ctx, username)
	if err != nil {
		return nil, err
	}
	pu.Owners = owners
	return pu, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.PulseUser, error) {
	query :=
		`SELECT username, password_hash, created_at FROM pulse_users
		 ORDER BY username
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var pulseUsers []*models.PulseUser
	for rows.Next() {
		pu := &models.PulseUser{}
		if err := rows.Scan(&pu.Username, &pu.PasswordHash, &pu.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		pulseUsers = append(pulseUsers, pu)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	for _, pu := range pulseUsers {
		owners, err := r.owners(ctx, pu.Username)
		if err != nil {
			return nil, err
		}
		pu.Owners = owners
	}
	return pulseUsers, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, email string) ([]*models.PulseUser, error) {
	query :=
		`SELECT p.username, p.password_hash, p.created_at
		 FROM pulse_users p
		 JOIN pulse_user_owners o ON o.pulse_username = p.username
		 WHERE o.user_email = $1
		 ORDER BY p.username
		 `

	rows, err := r.db.QueryContext(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var pulseUsers []*models.PulseUser
	for rows.Next() {
		pu := &models.PulseUser{}
		if err := rows.Scan(&pu.Username, &pu.PasswordHash, &pu.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		pulseUsers = append(pulseUsers, pu)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return pulseUsers, nil
}

func (r *PostgresRepository) Exists(ctx context.Context, username string) (bool, error) {
	query :=
		`SELECT 1 FROM pulse_users
		 WHERE username = $1
		 `

	var one int
	err := r.db.QueryRowContext(ctx, query, username).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, username string) error {
	query :=
		`DELETE FROM pulse_users
		 WHERE username = $1
		 `

	res, err := r.db.ExecContext(ctx, query, username)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, username, hash string) error {
	query :=
		`UPDATE pulse_users SET password_hash = $2
		 WHERE username = $1
		 `

	if _, err := r.db.ExecContext(ctx, query, username, hash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ReplaceOwners swaps the full owners set of a pulse user. Run it
// inside dbx.WithTx; the delete and re-insert must land together.
func (r *PostgresRepository) ReplaceOwners(ctx context.Context, username string, emails []string) error {
	query :=
		`DELETE FROM pulse_user_owners
		 WHERE pulse_username = $1
		 `

	if _, err := r.db.ExecContext(ctx, query, username); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	for _, email := range emails {
		if err := r.addOwner(ctx, username, email); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) addOwner(ctx context.Context, username, email string) error {
	query :=
		`INSERT INTO pulse_user_owners (pulse_username, user_email)
		 VALUES ($1, $2)
		 `

	if _, err := r.db.ExecContext(ctx, query, username, email); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) owners(ctx context.Context, username string) ([]*models.User, error) {
	query :=
		`SELECT u.email, u.admin
		 FROM users u
		 JOIN pulse_user_owners o ON o.user_email = u.email
		 WHERE o.pulse_username = $1
		 ORDER BY u.email
		 `

	rows, err := r.db.QueryContext(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var owners []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.Email, &user.Admin); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		owners = append(owners, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return owners, nil
}
