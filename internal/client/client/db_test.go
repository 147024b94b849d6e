package client

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaria/catalog/internal/client/repositories/journal"
	"github.com/vitaria/catalog/internal/client/repositories/session"
	"github.com/vitaria/catalog/internal/media"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestInitDatabase_CreatesSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	db, err := InitDatabase(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"goose_db_version", "metadata", "upload_journal"} {
		assert.True(t, tableExists(t, db, table), table)
	}
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	db, err := InitDatabase(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RunMigrations(ctx, db))
}

func TestRepositories_SurviveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	db, err := InitDatabase(ctx, path)
	require.NoError(t, err)
	repos := NewRepositories(db)
	require.NoError(t, repos.Session.Save(ctx, session.Session{Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, repos.Journal.Record(ctx, journal.Entry{Key: "products/p1/x.png", Role: media.RoleProductGallery, OwnerID: "p1", CreatedAt: time.Now()}))
	require.NoError(t, db.Close())

	db, err = InitDatabase(ctx, path)
	require.NoError(t, err)
	defer db.Close()
	repos = NewRepositories(db)

	s, err := repos.Session.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "tok", s.Token)

	entries, err := repos.Journal.List(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
