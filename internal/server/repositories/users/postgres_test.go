package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dmitrijs2005/kinveysync/internal/common"
	"github.com/dmitrijs2005/kinveysync/internal/server/models"
)

const (
	insertQuery = `(?s)^INSERT\s+INTO\s+users\s*\(id,\s*app_key,\s*username,\s*password_hash\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*ON\s+CONFLICT\s*\(app_key,\s*username\)\s*DO\s+NOTHING\s*RETURNING\s+created_at,\s*updated_at\s*$`
	selectQuery = `(?s)^SELECT\s+id,\s*app_key,\s*username,\s*password_hash,\s*created_at,\s*updated_at\s+FROM\s+users\s+WHERE\s+`
)

var userColumns = []string{"id", "app_key", "username", "password_hash", "created_at", "updated_at"}

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

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(insertQuery).
		WithArgs("u-1", "kid_app", "alice", "hash").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(ts, ts))

	u := &models.User{ID: "u-1", AppKey: "kid_app", UserName: "alice", PasswordHash: "hash"}
	got, err := repo.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "u-1" || !got.CreatedAt.Equal(ts) {
		t.Fatalf("unexpected user: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_Taken(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQuery).
		WithArgs("u-2", "kid_app", "alice", "hash").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Create(context.Background(), &models.User{ID: "u-2", AppKey: "kid_app", UserName: "alice", PasswordHash: "hash"})
	if !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("want common.ErrorAlreadyExists, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQuery).
		WithArgs("u-1", "kid_app", "alice", "hash").
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{ID: "u-1", AppKey: "kid_app", UserName: "alice", PasswordHash: "hash"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetUserByLogin_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	ts := time.Now().UTC()
	mock.ExpectQuery(selectQuery+`app_key\s*=\s*\$1\s+AND\s+username\s*=\s*\$2\s*$`).
		WithArgs("kid_app", "alice").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow("u-1", "kid_app", "alice", "hash", ts, ts))

	got, err := repo.GetUserByLogin(context.Background(), "kid_app", "alice")
	if err != nil {
		t.Fatalf("GetUserByLogin error: %v", err)
	}
	if got.ID != "u-1" || got.UserName != "alice" || got.PasswordHash != "hash" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestGetUserByLogin_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectQuery).
		WithArgs("kid_app", "ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetUserByLogin(context.Background(), "kid_app", "ghost")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestGetUserByID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	ts := time.Now().UTC()
	mock.ExpectQuery(selectQuery+`app_key\s*=\s*\$1\s+AND\s+id\s*=\s*\$2\s*$`).
		WithArgs("kid_app", "u-1").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow("u-1", "kid_app", "alice", "hash", ts, ts))
	mock.ExpectQuery(selectQuery).
		WithArgs("kid_app", "u-9").
		WillReturnError(errors.New("db err"))

	got, err := repo.GetUserByID(context.Background(), "kid_app", "u-1")
	if err != nil || got.UserName != "alice" {
		t.Fatalf("GetUserByID = %+v, %v", got, err)
	}
	_, err = repo.GetUserByID(context.Background(), "kid_app", "u-9")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
