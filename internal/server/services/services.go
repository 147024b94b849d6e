// Package services contains server-side business logic. Every exported
// method authorizes the caller before touching the database or the object
// store.
package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vitaria/catalog/internal/common"
	"github.com/vitaria/catalog/internal/logging"
	"github.com/vitaria/catalog/internal/media"
	"github.com/vitaria/catalog/internal/server/auth"
	"github.com/vitaria/catalog/internal/server/models"
	"github.com/vitaria/catalog/internal/server/repositories/activity"
	"github.com/vitaria/catalog/internal/server/repositories/repomanager"
)

// CredentialIssuer mints presigned upload and view URLs.
type CredentialIssuer interface {
	IssueUploadCredential(ctx context.Context, role media.Role, ownerID string, fd media.FileDescriptor) (media.UploadCredential, error)
	IssueUploadCredentials(ctx context.Context, role media.Role, ownerID string, fds []media.FileDescriptor) ([]media.UploadCredential, error)
	IssueViewCredentials(ctx context.Context, keys []string) map[string]string
	ViewTTL() time.Duration
}

// KeyDeleter removes stored objects in one batch.
type KeyDeleter interface {
	DeleteKeys(ctx context.Context, keys []string) error
}

const (
	constraintTitle    media.Constraint = "title"
	constraintName     media.Constraint = "name"
	constraintEmail    media.Constraint = "email"
	constraintPassword media.Constraint = "password"
)

// staff is every role allowed into the admin surface.
var staff = []models.Role{models.RoleAdmin, models.RoleEditor}

// auditor appends activity rows. A failed append never fails the operation
// that produced it.
type auditor struct {
	repo activity.Repository
	log  logging.Logger
}

func newAuditor(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger) auditor {
	return auditor{repo: m.Activity(db), log: log}
}

func (a auditor) record(ctx context.Context, id auth.Identity, e models.ActivityLog) {
	e.ActorEmail = id.Email
	if err := a.repo.Append(ctx, &e); err != nil {
		a.log.Warn(ctx, "activity log append failed", "action", e.Action, "entity_id", e.EntityID, "error", err)
	}
}

// ownedKey checks that key is a well-formed object key inside the owner's
// prefix for role.
func ownedKey(role media.Role, ownerID, key string) *media.ValidationError {
	if len(key) > media.MaxKeyLength {
		return &media.ValidationError{File: key, Constraint: media.ConstraintKey, Message: "storage key is too long"}
	}
	if !media.OwnsKey(role, ownerID, key) {
		return &media.ValidationError{File: key, Constraint: media.ConstraintKey, Message: "storage key does not belong to this owner"}
	}
	return nil
}

// failure keeps the errors transports map to status codes and replaces
// everything else with common.ErrorInternal after logging it.
func failure(ctx context.Context, log logging.Logger, op string, err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound),
		errors.Is(err, common.ErrorConflict),
		errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrorForbidden),
		errors.Is(err, media.ErrValidation),
		errors.Is(err, media.ErrInfrastructure):
		return err
	default:
		log.Error(ctx, op+" failed", "error", err)
		return common.ErrorInternal
	}
}
