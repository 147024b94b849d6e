package repomanager

import (
	"context"
	"database/sql"

	"github.com/vitaria/catalog/internal/dbx"
	"github.com/vitaria/catalog/internal/server/repositories/activity"
	"github.com/vitaria/catalog/internal/server/repositories/products"
	"github.com/vitaria/catalog/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a *sql.DB or a *sql.Tx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Products(db dbx.DBTX) products.Repository
	Activity(db dbx.DBTX) activity.Repository
}
