package users

import (
	"context"

	"github.com/vitaria/catalog/internal/common"
	"github.com/vitaria/catalog/internal/dbx"
	"github.com/vitaria/catalog/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (email, name, role, password_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.Name, string(user.Role), user.PasswordHash).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	return user, nil
}

const selectUser = `SELECT id, email, name, role, password_hash, COALESCE(avatar_key, ''), created_at FROM users`

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, selectUser+` WHERE email = $1`, email)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, selectUser+` WHERE id = $1`, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*models.User, error) {
	u := &models.User{}
	var role string
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Email, &u.Name, &role, &u.PasswordHash, &u.AvatarKey, &u.CreatedAt)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	u.Role = models.Role(role)
	return u, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, dbx.WrapError(err)
	}
	return n, nil
}

func (r *PostgresRepository) UpdateName(ctx context.Context, id, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET name = $2 WHERE id = $1`, id, name)
	if err != nil {
		return dbx.WrapError(err)
	}
	return dbx.RowsAffectedExactly(res, 1, common.ErrorNotFound)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return dbx.WrapError(err)
	}
	return dbx.RowsAffectedExactly(res, 1, common.ErrorNotFound)
}

func (r *PostgresRepository) LoadAvatarKey(ctx context.Context, id string) (string, error) {
	var key string
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(avatar_key, '') FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&key)
	if err != nil {
		return "", dbx.WrapError(err)
	}
	return key, nil
}

func (r *PostgresRepository) SetAvatarKey(ctx context.Context, id, key string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET avatar_key = NULLIF($2, '') WHERE id = $1`, id, key)
	if err != nil {
		return dbx.WrapError(err)
	}
	return dbx.RowsAffectedExactly(res, 1, common.ErrorNotFound)
}

func (r *PostgresRepository) ReferencedAmong(ctx context.Context, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT avatar_key FROM users WHERE avatar_key IN (`+dbx.Placeholders(1, len(keys))+`)`,
		dbx.Args(keys)...)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, dbx.WrapError(err)
		}
		out = append(out, k)
	}
	return out, dbx.WrapError(rows.Err())
}

// LockShared takes a share lock on the user rows with the given ids until
// the surrounding transaction ends. Unknown ids are ignored.
func (r *PostgresRepository) LockShared(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM users WHERE id::text IN (`+dbx.Placeholders(1, len(ids))+`) FOR SHARE`,
		dbx.Args(ids)...)
	if err != nil {
		return dbx.WrapError(err)
	}
	defer rows.Close()
	for rows.Next() {
	}
	return dbx.WrapError(rows.Err())
}
