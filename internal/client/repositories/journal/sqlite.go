package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vitaria/catalog/internal/dbx"
	"github.com/vitaria/catalog/internal/media"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Record(ctx context.Context, e Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO upload_journal (key, role, owner_id, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO NOTHING
	`, e.Key, string(e.Role), e.OwnerID, e.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record upload %s: %w", e.Key, err)
	}
	return nil
}

func (r *SQLiteRepository) Forget(ctx context.Context, keys ...string) error {
	keys = media.CompactKeys(keys...)
	if len(keys) == 0 {
		return nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")
	if _, err := r.db.ExecContext(ctx, `DELETE FROM upload_journal WHERE key IN (`+marks+`)`, dbx.Args(keys)...); err != nil {
		return fmt.Errorf("failed to forget uploads: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, ownerID string) ([]Entry, error) {
	query := `SELECT key, role, owner_id, created_at FROM upload_journal`
	var args []any
	if ownerID != "" {
		query += ` WHERE owner_id = ?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at, key`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e    Entry
			role string
			ts   int64
		)
		if err := rows.Scan(&e.Key, &role, &e.OwnerID, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan upload row: %w", err)
		}
		e.Role = media.Role(role)
		e.CreatedAt = time.Unix(0, ts).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate upload rows: %w", err)
	}
	return out, nil
}
