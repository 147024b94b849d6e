package dbx

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/vitaria/catalog/internal/common"
)

func TestWrapError(t *testing.T) {
	assert.NoError(t, WrapError(nil))
	assert.ErrorIs(t, WrapError(sql.ErrNoRows), common.ErrorNotFound)
	assert.ErrorIs(t, WrapError(fmt.Errorf("scan: %w", sql.ErrNoRows)), common.ErrorNotFound)
	assert.ErrorIs(t, WrapError(&pgconn.PgError{Code: "22P02"}), common.ErrorNotFound)

	err := WrapError(&pgconn.PgError{Code: "23505", ConstraintName: "product_gallery_storage_key_key"})
	assert.ErrorIs(t, err, common.ErrorConflict)
	assert.Contains(t, err.Error(), "product_gallery_storage_key_key")

	err = WrapError(errors.New("conn reset"))
	assert.EqualError(t, err, "db error: conn reset")
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", Placeholders(1, 0))
	assert.Equal(t, "$1", Placeholders(1, 1))
	assert.Equal(t, "$2, $3, $4", Placeholders(2, 3))
}

func TestArgs(t *testing.T) {
	assert.Equal(t, []any{"a", "b"}, Args([]string{"a", "b"}))
	assert.Empty(t, Args(nil))
}
