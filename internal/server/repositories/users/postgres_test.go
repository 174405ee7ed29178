package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/pulseops/pulseguardian/internal/common"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+users\s*\(email\)\s*VALUES\s*\(\$1\)\s*$`

	mock.ExpectExec(q).
		WithArgs("alice@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := repo.Create(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.Email != "alice@example.com" || got.Admin {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+users\s*\(email\)\s*VALUES\s*\(\$1\)\s*$`

	mock.ExpectExec(q).
		WithArgs("alice@example.com").
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), "alice@example.com")
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByEmail_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+email,\s*admin\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1\s*$`

	rows := sqlmock.NewRows([]string{"email", "admin"}).
		AddRow("alice@example.com", true)
	mock.ExpectQuery(q).
		WithArgs("alice@example.com").
		WillReturnRows(rows)

	got, err := repo.GetByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if got.Email != "alice@example.com" || !got.Admin {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestGetByEmail_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+email,\s*admin\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1\s*$`

	mock.ExpectQuery(q).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ghost@example.com")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestGetByEmails_FiltersToExisting(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+email,\s*admin\s+FROM\s+users\s+WHERE\s+email\s+IN\s*\(\$1,\s*\$2\)\s*ORDER\s+BY\s+email\s*$`

	rows := sqlmock.NewRows([]string{"email", "admin"}).
		AddRow("alice@example.com", false)
	mock.ExpectQuery(q).
		WithArgs("alice@example.com", "ghost@example.com").
		WillReturnRows(rows)

	got, err := repo.GetByEmails(context.Background(), []string{"alice@example.com", "ghost@example.com"})
	if err != nil {
		t.Fatalf("GetByEmails error: %v", err)
	}
	if len(got) != 1 || got[0].Email != "alice@example.com" {
		t.Fatalf("unexpected users: %+v", got)
	}
}

func TestGetByEmails_EmptyInput(t *testing.T) {
	repo, _, db := newRepoWithMock(t)
	defer db.Close()

	got, err := repo.GetByEmails(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetByEmails error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no lookups for an empty input, got %+v", got)
	}
}

func TestSetAdmin_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+admin\s*=\s*\$2\s+WHERE\s+email\s*=\s*\$1\s*$`

	mock.ExpectExec(q).
		WithArgs("alice@example.com", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SetAdmin(context.Background(), "alice@example.com", true); err != nil {
		t.Fatalf("SetAdmin error: %v", err)
	}
}

func TestSetAdmin_UnknownUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+admin\s*=\s*\$2\s+WHERE\s+email\s*=\s*\$1\s*$`

	mock.ExpectExec(q).
		WithArgs("ghost@example.com", true).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetAdmin(context.Background(), "ghost@example.com", true)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}
