package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/vitaria/catalog/internal/dbx"
	"github.com/vitaria/catalog/internal/logging"
	"github.com/vitaria/catalog/internal/media"
	"github.com/vitaria/catalog/internal/server/auth"
	"github.com/vitaria/catalog/internal/server/models"
	"github.com/vitaria/catalog/internal/server/reconcile"
	"github.com/vitaria/catalog/internal/server/repositories/repomanager"
)

// MaxTitleLength bounds a product title.
const MaxTitleLength = 70

// ProductService manages products and the images they reference.
type ProductService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	reconciler  *reconcile.Reconciler
	authz       auth.Authorizer
	audit       auditor
	log         logging.Logger
}

func NewProductService(db *sql.DB, m repomanager.RepositoryManager, r *reconcile.Reconciler, authz auth.Authorizer, log logging.Logger) *ProductService {
	log = log.With("service", "products")
	return &ProductService{
		db:          db,
		repomanager: m,
		reconciler:  r,
		authz:       authz,
		audit:       newAuditor(db, m, log),
		log:         log,
	}
}

func (s *ProductService) Create(ctx context.Context, title string) (*models.Product, error) {
	id, err := s.authz.RequireRole(ctx, staff...)
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" || len(title) > MaxTitleLength {
		return nil, &media.ValidationError{Constraint: constraintTitle, Message: fmt.Sprintf("title must be 1 to %d characters", MaxTitleLength)}
	}

	p, err := s.repomanager.Products(s.db).Create(ctx, &models.Product{Title: title})
	if err != nil {
		return nil, failure(ctx, s.log, "create product", err)
	}
	s.audit.record(ctx, id, models.ActivityLog{
		Action: models.ActionProductCreated, Entity: "product", EntityID: p.ID, EntityTitle: p.Title,
	})
	return p, nil
}

func (s *ProductService) Get(ctx context.Context, productID string) (*models.Product, error) {
	if _, err := s.authz.RequireRole(ctx, staff...); err != nil {
		return nil, err
	}
	p, err := s.repomanager.Products(s.db).Get(ctx, productID)
	if err != nil {
		return nil, failure(ctx, s.log, "get product", err)
	}
	return p, nil
}

func (s *ProductService) List(ctx context.Context) ([]*models.Product, error) {
	if _, err := s.authz.RequireRole(ctx, staff...); err != nil {
		return nil, err
	}
	list, err := s.repomanager.Products(s.db).List(ctx)
	if err != nil {
		return nil, failure(ctx, s.log, "list products", err)
	}
	return list, nil
}

// SaveImages replaces the product's hero and gallery keys. Keys that leave
// the product are deleted from storage after the rows are committed;
// cleanup failures never fail the save.
func (s *ProductService) SaveImages(ctx context.Context, productID string, keys media.ReferencedKeys) (*models.Product, error) {
	id, err := s.authz.RequireRole(ctx, staff...)
	if err != nil {
		return nil, err
	}

	next, err := normalizeProductKeys(productID, keys)
	if err != nil {
		return nil, err
	}

	if err := s.reconciler.Save(ctx, s.transactor(), productID, next); err != nil {
		return nil, failure(ctx, s.log, "save product images", err)
	}

	p, err := s.repomanager.Products(s.db).Get(ctx, productID)
	if err != nil {
		return nil, failure(ctx, s.log, "reload product", err)
	}
	s.audit.record(ctx, id, models.ActivityLog{
		Action: models.ActionProductUpdated, Entity: "product", EntityID: p.ID, EntityTitle: p.Title,
		Detail: fmt.Sprintf("hero=%t gallery=%d", p.HeroKey != "", len(p.Gallery)),
	})
	return p, nil
}

// Delete removes the product and every object it referenced.
func (s *ProductService) Delete(ctx context.Context, productID string) error {
	id, err := s.authz.RequireRole(ctx, models.RoleAdmin)
	if err != nil {
		return err
	}

	var title string
	err = s.reconciler.DeleteEntity(ctx, productID, func(ctx context.Context) ([]string, error) {
		var prev media.ReferencedKeys
		err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			repo := s.repomanager.Products(tx)
			var err error
			if prev, err = repo.LoadReferencedKeys(ctx, productID); err != nil {
				return err
			}
			p, err := repo.Get(ctx, productID)
			if err != nil {
				return err
			}
			title = p.Title
			return repo.Delete(ctx, productID)
		})
		if err != nil {
			return nil, err
		}
		return prev.All(), nil
	})
	if err != nil {
		return failure(ctx, s.log, "delete product", err)
	}

	s.audit.record(ctx, id, models.ActivityLog{
		Action: models.ActionProductDeleted, Entity: "product", EntityID: productID, EntityTitle: title,
		Severity: models.SeverityWarning,
	})
	return nil
}

func (s *ProductService) transactor() reconcile.Transactor {
	return func(ctx context.Context, fn func(ctx context.Context, store reconcile.Store) error) error {
		return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			return fn(ctx, s.repomanager.Products(tx))
		})
	}
}

// normalizeProductKeys trims, dedupes and checks every key against the
// product's own prefix. A key appearing both as hero and in the gallery
// stays only as hero.
func normalizeProductKeys(productID string, keys media.ReferencedKeys) (media.ReferencedKeys, error) {
	hero := strings.TrimSpace(keys.Hero)
	gallery := make([]string, 0, len(keys.Gallery))
	for _, k := range keys.Gallery {
		if k = strings.TrimSpace(k); k != hero {
			gallery = append(gallery, k)
		}
	}
	gallery = media.CompactKeys(gallery...)

	var errs media.ValidationErrors
	for _, k := range append(media.CompactKeys(hero), gallery...) {
		if err := ownedKey(media.RoleProductHero, productID, k); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return media.ReferencedKeys{}, errs
	}
	return media.ReferencedKeys{Hero: hero, Gallery: gallery}, nil
}
