package services

import (
	"context"
	"database/sql"

	"github.com/vitaria/catalog/internal/logging"
	"github.com/vitaria/catalog/internal/server/auth"
	"github.com/vitaria/catalog/internal/server/models"
	"github.com/vitaria/catalog/internal/server/repositories/repomanager"
)

const (
	DefaultActivityLimit = 50
	MaxActivityLimit     = 500
)

// ActivityService reads the audit log.
type ActivityService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	authz       auth.Authorizer
	log         logging.Logger
}

func NewActivityService(db *sql.DB, m repomanager.RepositoryManager, authz auth.Authorizer, log logging.Logger) *ActivityService {
	return &ActivityService{db: db, repomanager: m, authz: authz, log: log.With("service", "activity")}
}

// Recent returns the newest entries first. Out-of-range limits are clamped.
func (s *ActivityService) Recent(ctx context.Context, limit int) ([]*models.ActivityLog, error) {
	if _, err := s.authz.RequireRole(ctx, models.RoleAdmin); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = DefaultActivityLimit
	case limit > MaxActivityLimit:
		limit = MaxActivityLimit
	}
	entries, err := s.repomanager.Activity(s.db).Recent(ctx, limit)
	if err != nil {
		return nil, failure(ctx, s.log, "load activity", err)
	}
	return entries, nil
}
