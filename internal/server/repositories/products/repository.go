package products

import (
	"context"

	"github.com/vitaria/catalog/internal/media"
	"github.com/vitaria/catalog/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, p *models.Product) (*models.Product, error)
	Get(ctx context.Context, id string) (*models.Product, error)
	List(ctx context.Context) ([]*models.Product, error)
	Delete(ctx context.Context, id string) error

	// LoadReferencedKeys locks the product row for the rest of the
	// transaction and returns its keys.
	LoadReferencedKeys(ctx context.Context, id string) (media.ReferencedKeys, error)
	// SaveReferencedKeys replaces the hero key and the whole gallery.
	SaveReferencedKeys(ctx context.Context, id string, keys media.ReferencedKeys) error
	// ReferencedAmong returns the subset of keys referenced by any product.
	ReferencedAmong(ctx context.Context, keys []string) ([]string, error)
	// LockShared blocks concurrent writers of the given product rows until
	// the transaction ends.
	LockShared(ctx context.Context, ids []string) error
}
