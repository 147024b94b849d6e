package products

import (
	"context"
	"fmt"

	"github.com/vitaria/catalog/internal/common"
	"github.com/vitaria/catalog/internal/dbx"
	"github.com/vitaria/catalog/internal/media"
	"github.com/vitaria/catalog/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Product) (*models.Product, error) {
	query :=
		`INSERT INTO products (title, published)
		 VALUES ($1, $2)
		 RETURNING id, updated_at`

	if err := r.db.QueryRowContext(ctx, query, p.Title, p.Published).Scan(&p.ID, &p.UpdatedAt); err != nil {
		return nil, dbx.WrapError(err)
	}
	return p, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Product, error) {
	query :=
		`SELECT id, title, published, COALESCE(hero_key, ''), updated_at
		 FROM products
		 WHERE id = $1`

	p := &models.Product{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Title, &p.Published, &p.HeroKey, &p.UpdatedAt)
	if err != nil {
		return nil, dbx.WrapError(err)
	}

	if p.Gallery, err = r.gallery(ctx, id); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Product, error) {
	query :=
		`SELECT id, title, published, COALESCE(hero_key, ''), updated_at
		 FROM products
		 ORDER BY updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	defer rows.Close()

	var out []*models.Product
	for rows.Next() {
		p := &models.Product{}
		if err := rows.Scan(&p.ID, &p.Title, &p.Published, &p.HeroKey, &p.UpdatedAt); err != nil {
			return nil, dbx.WrapError(err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.WrapError(err)
	}
	return out, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return dbx.WrapError(err)
	}
	return dbx.RowsAffectedExactly(res, 1, common.ErrorNotFound)
}

func (r *PostgresRepository) LoadReferencedKeys(ctx context.Context, id string) (media.ReferencedKeys, error) {
	query :=
		`SELECT COALESCE(hero_key, '')
		 FROM products
		 WHERE id = $1
		 FOR UPDATE`

	var keys media.ReferencedKeys
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&keys.Hero); err != nil {
		return keys, dbx.WrapError(err)
	}

	gallery, err := r.gallery(ctx, id)
	if err != nil {
		return keys, err
	}
	keys.Gallery = gallery
	return keys, nil
}

func (r *PostgresRepository) SaveReferencedKeys(ctx context.Context, id string, keys media.ReferencedKeys) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET hero_key = NULLIF($2, ''), updated_at = now() WHERE id = $1`,
		id, keys.Hero)
	if err != nil {
		return dbx.WrapError(err)
	}
	if err := dbx.RowsAffectedExactly(res, 1, common.ErrorNotFound); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM product_gallery WHERE product_id = $1`, id); err != nil {
		return dbx.WrapError(err)
	}

	for pos, key := range keys.Gallery {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO product_gallery (product_id, position, storage_key) VALUES ($1, $2, $3)`,
			id, pos, key)
		if err != nil {
			return fmt.Errorf("gallery slot %d: %w", pos, dbx.WrapError(err))
		}
	}
	return nil
}

func (r *PostgresRepository) ReferencedAmong(ctx context.Context, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	in := dbx.Placeholders(1, len(keys))
	query :=
		`SELECT hero_key FROM products WHERE hero_key IN (` + in + `)
		 UNION
		 SELECT storage_key FROM product_gallery WHERE storage_key IN (` + in + `)`

	rows, err := r.db.QueryContext(ctx, query, dbx.Args(keys)...)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (r *PostgresRepository) gallery(ctx context.Context, id string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT storage_key FROM product_gallery WHERE product_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	defer rows.Close()

	out, err := scanStrings(rows)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanStrings(rows rowScanner) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, dbx.WrapError(err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.WrapError(err)
	}
	return out, nil
}

// LockShared takes a share lock on the product rows with the given ids until
// the surrounding transaction ends. Unknown ids are ignored.
func (r *PostgresRepository) LockShared(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM products WHERE id::text IN (`+dbx.Placeholders(1, len(ids))+`) FOR SHARE`,
		dbx.Args(ids)...)
	if err != nil {
		return dbx.WrapError(err)
	}
	defer rows.Close()
	for rows.Next() {
	}
	return dbx.WrapError(rows.Err())
}
