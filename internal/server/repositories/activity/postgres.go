package activity

import (
	"context"

	"github.com/vitaria/catalog/internal/dbx"
	"github.com/vitaria/catalog/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, e *models.ActivityLog) error {
	if e.Severity == "" {
		e.Severity = models.SeverityInfo
	}
	query :=
		`INSERT INTO activity_logs (action, entity, entity_id, entity_title, actor_email, severity, detail)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, NULLIF($7, ''))
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		e.Action, e.Entity, e.EntityID, e.EntityTitle, e.ActorEmail, string(e.Severity), e.Detail,
	).Scan(&e.ID, &e.CreatedAt)
	return dbx.WrapError(err)
}

func (r *PostgresRepository) Recent(ctx context.Context, limit int) ([]*models.ActivityLog, error) {
	query :=
		`SELECT id, action, entity, COALESCE(entity_id, ''), COALESCE(entity_title, ''),
		        actor_email, severity, COALESCE(detail, ''), created_at
		 FROM activity_logs
		 ORDER BY created_at DESC
		 LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	defer rows.Close()

	var out []*models.ActivityLog
	for rows.Next() {
		e := &models.ActivityLog{}
		var severity string
		if err := rows.Scan(&e.ID, &e.Action, &e.Entity, &e.EntityID, &e.EntityTitle,
			&e.ActorEmail, &severity, &e.Detail, &e.CreatedAt); err != nil {
			return nil, dbx.WrapError(err)
		}
		e.Severity = models.Severity(severity)
		out = append(out, e)
	}
	return out, dbx.WrapError(rows.Err())
}
