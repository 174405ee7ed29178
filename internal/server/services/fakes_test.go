package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/pulseops/pulseguardian/internal/common"
	"github.com/pulseops/pulseguardian/internal/dbx"
	"github.com/pulseops/pulseguardian/internal/logging"
	"github.com/pulseops/pulseguardian/internal/server/config"
	"github.com/pulseops/pulseguardian/internal/server/management"
	"github.com/pulseops/pulseguardian/internal/server/models"
	pulseusersrepo "github.com/pulseops/pulseguardian/internal/server/repositories/pulseusers"
	queuesrepo "github.com/pulseops/pulseguardian/internal/server/repositories/queues"
	"github.com/pulseops/pulseguardian/internal/server/repositories/repomanager"
	usersrepo "github.com/pulseops/pulseguardian/internal/server/repositories/users"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

type noopLogger struct{}

func (noopLogger) Debug(context.Context, string, ...any) {}
func (noopLogger) Info(context.Context, string, ...any)  {}
func (noopLogger) Warn(context.Context, string, ...any)  {}
func (noopLogger) Error(context.Context, string, ...any) {}
func (noopLogger) With(...any) logging.Logger            { return noopLogger{} }

func newPulseUserService(t *testing.T, db *sql.DB, rm repomanager.RepositoryManager, b Broker, reserved string) *PulseUserService {
	t.Helper()
	cfg := &config.Config{
		ReservedUsersRegex:   reserved,
		ReservedUsersMessage: "Contact an administrator.",
	}
	s, err := NewPulseUserService(db, rm, b, cfg, noopLogger{})
	if err != nil {
		t.Fatalf("NewPulseUserService error: %v", err)
	}
	return s
}

// --- fake broker ---

type fakeBroker struct {
	queuesOut []management.Queue
	queuesErr error

	userOut *management.User
	userErr error

	createUserErr   error
	createUserCalls []string
	lastCreateTags  string

	deleteUserErr   error
	deleteUserCalls []string

	deleteQueueErr   error
	deleteQueueCalls []string

	bindingsOut []management.Binding
	bindingsErr error

	owners   map[string]string // queue name -> consuming username
	ownerErr error
}

func (f *fakeBroker) Queues(ctx context.Context, vhost string) ([]management.Queue, error) {
	return f.queuesOut, f.queuesErr
}

func (f *fakeBroker) Queue(ctx context.Context, vhost, name string) (*management.Queue, error) {
	for i := range f.queuesOut {
		if f.queuesOut[i].Name == name {
			return &f.queuesOut[i], nil
		}
	}
	return nil, errors.New("no such queue")
}

func (f *fakeBroker) DeleteQueue(ctx context.Context, vhost, name string) error {
	if f.deleteQueueErr != nil {
		return f.deleteQueueErr
	}
	f.deleteQueueCalls = append(f.deleteQueueCalls, name)
	return nil
}

func (f *fakeBroker) QueueBindings(ctx context.Context, vhost, name string) ([]management.Binding, error) {
	return f.bindingsOut, f.bindingsErr
}

func (f *fakeBroker) QueueOwner(ctx context.Context, q management.Queue) (string, error) {
	if f.ownerErr != nil {
		return "", f.ownerErr
	}
	return f.owners[q.Name], nil
}

func (f *fakeBroker) User(ctx context.Context, username string) (*management.User, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	if f.userOut != nil {
		return f.userOut, nil
	}
	return &management.User{Error: "Object Not Found"}, nil
}

func (f *fakeBroker) CreateUser(ctx context.Context, username, password, tags string) error {
	if f.createUserErr != nil {
		return f.createUserErr
	}
	f.createUserCalls = append(f.createUserCalls, username)
	f.lastCreateTags = tags
	return nil
}

func (f *fakeBroker) DeleteUser(ctx context.Context, username string) error {
	if f.deleteUserErr != nil {
		return f.deleteUserErr
	}
	f.deleteUserCalls = append(f.deleteUserCalls, username)
	return nil
}

// --- fake repositories ---

type fakeUsersRepo struct {
	known map[string]*models.User // keyed by email

	createErr   error
	createCalls []string

	setAdminErr   error
	setAdminCalls []string
}

func (f *fakeUsersRepo) Create(ctx context.Context, email string) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.createCalls = append(f.createCalls, email)
	return &models.User{Email: email}, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := f.known[email]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByEmails(ctx context.Context, emails []string) ([]*models.User, error) {
	var out []*models.User
	for _, e := range emails {
		if u, ok := f.known[e]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsersRepo) List(ctx context.Context) ([]*models.User, error) {
	var out []*models.User
	for _, u := range f.known {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUsersRepo) SetAdmin(ctx context.Context, email string, admin bool) error {
	if f.setAdminErr != nil {
		return f.setAdminErr
	}
	f.setAdminCalls = append(f.setAdminCalls, email)
	return nil
}

type fakePulseUsersRepo struct {
	known map[string]*models.PulseUser // keyed by username

	createErr   error
	createCalls []*models.PulseUser

	deleteErr   error
	deleteCalls []string

	updateHashCalls []string

	replaceOwnersErr   error
	replaceOwnersCalls [][]string
}

func (f *fakePulseUsersRepo) Create(ctx context.Context, pu *models.PulseUser, ownerEmails []string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.createCalls = append(f.createCalls, pu)
	return nil
}

func (f *fakePulseUsersRepo) GetByUsername(ctx context.Context, username string) (*models.PulseUser, error) {
	if pu, ok := f.known[username]; ok {
		return pu, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakePulseUsersRepo) List(ctx context.Context) ([]*models.PulseUser, error) {
	var out []*models.PulseUser
	for _, pu := range f.known {
		out = append(out, pu)
	}
	return out, nil
}

func (f *fakePulseUsersRepo) ListByOwner(ctx context.Context, email string) ([]*models.PulseUser, error) {
	var out []*models.PulseUser
	for _, pu := range f.known {
		if pu.OwnedBy(email) {
			out = append(out, pu)
		}
	}
	return out, nil
}

func (f *fakePulseUsersRepo) Exists(ctx context.Context, username string) (bool, error) {
	_, ok := f.known[username]
	return ok, nil
}

func (f *fakePulseUsersRepo) Delete(ctx context.Context, username string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleteCalls = append(f.deleteCalls, username)
	return nil
}

func (f *fakePulseUsersRepo) UpdatePasswordHash(ctx context.Context, username, hash string) error {
	f.updateHashCalls = append(f.updateHashCalls, username)
	return nil
}

func (f *fakePulseUsersRepo) ReplaceOwners(ctx context.Context, username string, emails []string) error {
	if f.replaceOwnersErr != nil {
		return f.replaceOwnersErr
	}
	f.replaceOwnersCalls = append(f.replaceOwnersCalls, emails)
	return nil
}

type fakeQueuesRepo struct {
	known map[string]*models.Queue // keyed by name

	upsertCalls   map[string]string // name -> owner
	setOwnerCalls map[string]string

	deleteErr   error
	deleteCalls []string
}

func (f *fakeQueuesRepo) Get(ctx context.Context, name string) (*models.Queue, error) {
	if q, ok := f.known[name]; ok {
		return q, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeQueuesRepo) List(ctx context.Context) ([]*models.Queue, error) {
	var out []*models.Queue
	for _, q := range f.known {
		out = append(out, q)
	}
	return out, nil
}

func (f *fakeQueuesRepo) ListUnowned(ctx context.Context) ([]*models.Queue, error) {
	var out []*models.Queue
	for _, q := range f.known {
		if q.Owner == nil {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeQueuesRepo) Upsert(ctx context.Context, name, owner string) error {
	if f.upsertCalls == nil {
		f.upsertCalls = map[string]string{}
	}
	f.upsertCalls[name] = owner
	return nil
}

func (f *fakeQueuesRepo) SetOwner(ctx context.Context, name, owner string) error {
	if f.setOwnerCalls == nil {
		f.setOwnerCalls = map[string]string{}
	}
	f.setOwnerCalls[name] = owner
	return nil
}

func (f *fakeQueuesRepo) Delete(ctx context.Context, name string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleteCalls = append(f.deleteCalls, name)
	return nil
}

type fakeRepoManager struct {
	u  *fakeUsersRepo
	pu *fakePulseUsersRepo
	q  *fakeQueuesRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository      { return m.u }
func (m *fakeRepoManager) PulseUsers(db dbx.DBTX) pulseusersrepo.Repository {
	return m.pu
}
func (m *fakeRepoManager) Queues(db dbx.DBTX) queuesrepo.Repository { return m.q }
