package activity

import (
	"context"

	"github.com/vitaria/catalog/internal/server/models"
)

type Repository interface {
	Append(ctx context.Context, entry *models.ActivityLog) error
	Recent(ctx context.Context, limit int) ([]*models.ActivityLog, error)
}
