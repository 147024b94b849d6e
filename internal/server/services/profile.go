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
	"github.com/vitaria/catalog/internal/server/repositories/users"
)

// MaxNameLength bounds a display name.
const MaxNameLength = 120

// ProfileService lets any signed-in user manage their own profile.
type ProfileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	reconciler  *reconcile.Reconciler
	authz       auth.Authorizer
	audit       auditor
	log         logging.Logger
}

func NewProfileService(db *sql.DB, m repomanager.RepositoryManager, r *reconcile.Reconciler, authz auth.Authorizer, log logging.Logger) *ProfileService {
	log = log.With("service", "profile")
	return &ProfileService{
		db:          db,
		repomanager: m,
		reconciler:  r,
		authz:       authz,
		audit:       newAuditor(db, m, log),
		log:         log,
	}
}

func (s *ProfileService) Profile(ctx context.Context) (*models.User, error) {
	id, err := s.authz.RequireRole(ctx)
	if err != nil {
		return nil, err
	}
	u, err := s.repomanager.Users(s.db).GetByID(ctx, id.UserID)
	if err != nil {
		return nil, failure(ctx, s.log, "load profile", err)
	}
	return u, nil
}

// UpdateProfile sets the caller's name (kept when empty) and avatar key
// (cleared when empty). A replaced avatar is deleted once the row commits.
func (s *ProfileService) UpdateProfile(ctx context.Context, name, avatarKey string) (*models.User, error) {
	id, err := s.authz.RequireRole(ctx)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if len(name) > MaxNameLength {
		return nil, &media.ValidationError{Constraint: constraintName, Message: fmt.Sprintf("name must be %d characters or fewer", MaxNameLength)}
	}
	avatarKey = strings.TrimSpace(avatarKey)
	if avatarKey != "" {
		if err := ownedKey(media.RoleUserAvatar, id.UserID, avatarKey); err != nil {
			return nil, err
		}
	}

	tx := func(ctx context.Context, fn func(ctx context.Context, store reconcile.Store) error) error {
		return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			return fn(ctx, avatarStore{repo: s.repomanager.Users(tx), name: name})
		})
	}
	if err := s.reconciler.Save(ctx, tx, id.UserID, media.ReferencedKeys{Hero: avatarKey}); err != nil {
		return nil, failure(ctx, s.log, "update profile", err)
	}

	u, err := s.repomanager.Users(s.db).GetByID(ctx, id.UserID)
	if err != nil {
		return nil, failure(ctx, s.log, "reload profile", err)
	}
	s.audit.record(ctx, id, models.ActivityLog{
		Action: models.ActionProfileUpdated, Entity: "user", EntityID: u.ID, EntityTitle: u.Email,
		Detail: fmt.Sprintf("avatar=%t", u.AvatarKey != ""),
	})
	return u, nil
}

// avatarStore presents a user row as a reconcile.Store whose only key is the
// avatar, carried in the Hero slot.
type avatarStore struct {
	repo users.Repository
	name string
}

func (a avatarStore) LoadReferencedKeys(ctx context.Context, userID string) (media.ReferencedKeys, error) {
	key, err := a.repo.LoadAvatarKey(ctx, userID)
	if err != nil {
		return media.ReferencedKeys{}, err
	}
	return media.ReferencedKeys{Hero: key}, nil
}

func (a avatarStore) SaveReferencedKeys(ctx context.Context, userID string, next media.ReferencedKeys) error {
	if err := a.repo.SetAvatarKey(ctx, userID, next.Hero); err != nil {
		return err
	}
	if a.name == "" {
		return nil
	}
	return a.repo.UpdateName(ctx, userID, a.name)
}
