package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaria/catalog/internal/common"
	"github.com/vitaria/catalog/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

var userColumns = []string{"id", "email", "name", "role", "password_hash", "avatar_key", "created_at"}

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	q := `(?s)^INSERT\s+INTO\s+users\s*\(email,\s*name,\s*role,\s*password_hash\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+id,\s*created_at$`
	mock.ExpectQuery(q).
		WithArgs("alice@example.com", "Alice", "admin", []byte("hash")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("u-1", at))

	got, err := repo.Create(context.Background(), &models.User{
		Email: "alice@example.com", Name: "Alice", Role: models.RoleAdmin, PasswordHash: []byte("hash"),
	})
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.ID)
	assert.Equal(t, at, got.CreatedAt)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`INSERT INTO users`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Email: "a", Role: models.RoleEditor})
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
}

func TestGetByEmail_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	at := time.Now().UTC()

	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*email,.*FROM\s+users\s+WHERE\s+email\s*=\s*\$1$`).
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u-1", "alice@example.com", "Alice", "editor", []byte("hash"), "avatars/u-1/a.png", at))

	got, err := repo.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, got.Role)
	assert.Equal(t, "avatars/u-1/a.png", got.AvatarKey)
	assert.Equal(t, []byte("hash"), got.PasswordHash)
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`WHERE\s+id\s*=\s*\$1$`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "ghost")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestCount(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`SELECT\s+count\(\*\)\s+FROM\s+users`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestAvatarKey_LoadAndSet(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT\s+COALESCE\(avatar_key,\s*''\)\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s+FOR\s+UPDATE$`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"avatar_key"}).AddRow("avatars/u-1/old.png"))
	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+avatar_key\s*=\s*NULLIF\(\$2,\s*''\)\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("u-1", "avatars/u-1/new.png").
		WillReturnResult(sqlmock.NewResult(0, 1))

	key, err := repo.LoadAvatarKey(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "avatars/u-1/old.png", key)

	require.NoError(t, repo.SetAvatarKey(context.Background(), "u-1", "avatars/u-1/new.png"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateNameAndDelete_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`UPDATE\s+users\s+SET\s+name`).WithArgs("ghost", "X").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE\s+FROM\s+users`).WithArgs("ghost").WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, repo.UpdateName(context.Background(), "ghost", "X"), common.ErrorNotFound)
	require.ErrorIs(t, repo.Delete(context.Background(), "ghost"), common.ErrorNotFound)
}

func TestReferencedAmong(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`(?s)^SELECT\s+avatar_key\s+FROM\s+users\s+WHERE\s+avatar_key\s+IN\s+\(\$1,\s*\$2,\s*\$3\)$`).
		WithArgs("a", "b", "c").
		WillReturnRows(sqlmock.NewRows([]string{"avatar_key"}).AddRow("c"))

	got, err := repo.ReferencedAmong(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, got)
}

func TestLockShared(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`^SELECT id FROM users WHERE id::text IN \(\$1, \$2\) FOR SHARE$`).
		WithArgs("x1", "x2").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("x1"))

	require.NoError(t, repo.LockShared(context.Background(), []string{"x1", "x2"}))
	require.NoError(t, repo.LockShared(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockShared_QueryError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FOR SHARE`).WillReturnError(errors.New("lock timeout"))

	require.Error(t, repo.LockShared(context.Background(), []string{"x1"}))
}
