package services

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/vitaria/catalog/internal/common"
	"github.com/vitaria/catalog/internal/dbx"
	"github.com/vitaria/catalog/internal/logging"
	"github.com/vitaria/catalog/internal/media"
	"github.com/vitaria/catalog/internal/server/auth"
	"github.com/vitaria/catalog/internal/server/models"
	"github.com/vitaria/catalog/internal/server/repositories/repomanager"
)

// MaxViewKeys bounds one view-URL request.
const MaxViewKeys = 100

// MediaService issues presigned credentials and removes abandoned uploads.
type MediaService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	issuer      CredentialIssuer
	deleter     KeyDeleter
	authz       auth.Authorizer
	log         logging.Logger
}

func NewMediaService(db *sql.DB, m repomanager.RepositoryManager, issuer CredentialIssuer, deleter KeyDeleter, authz auth.Authorizer, log logging.Logger) *MediaService {
	return &MediaService{
		db:          db,
		repomanager: m,
		issuer:      issuer,
		deleter:     deleter,
		authz:       authz,
		log:         log.With("service", "media"),
	}
}

// PresignProductUploads issues one credential per file for the hero or
// gallery slot of an existing product. The batch fails as a whole.
func (s *MediaService) PresignProductUploads(ctx context.Context, productID string, role media.Role, files []media.FileDescriptor) ([]media.UploadCredential, error) {
	if _, err := s.authz.RequireRole(ctx, models.RoleAdmin); err != nil {
		return nil, err
	}
	if role != media.RoleProductHero && role != media.RoleProductGallery {
		return nil, &media.ValidationError{Constraint: media.ConstraintRole, Message: "role must be a product slot"}
	}
	if len(files) == 0 {
		return nil, &media.ValidationError{Constraint: media.ConstraintFilename, Message: "no files"}
	}
	if role == media.RoleProductHero && len(files) > 1 {
		return nil, &media.ValidationError{Constraint: media.ConstraintRole, Message: "a product has a single hero image"}
	}
	if len(files) > media.MaxGalleryImages {
		return nil, &media.ValidationError{Constraint: media.ConstraintRole, Message: "too many files"}
	}

	if _, err := s.repomanager.Products(s.db).Get(ctx, productID); err != nil {
		return nil, failure(ctx, s.log, "load product", err)
	}

	creds, err := s.issuer.IssueUploadCredentials(ctx, role, productID, files)
	if err != nil {
		return nil, failure(ctx, s.log, "presign product uploads", err)
	}
	return creds, nil
}

// PresignAvatarUpload issues a credential inside the caller's own avatar
// prefix.
func (s *MediaService) PresignAvatarUpload(ctx context.Context, file media.FileDescriptor) (media.UploadCredential, error) {
	id, err := s.authz.RequireRole(ctx)
	if err != nil {
		return media.UploadCredential{}, err
	}
	cred, err := s.issuer.IssueUploadCredential(ctx, media.RoleUserAvatar, id.UserID, file)
	if err != nil {
		return media.UploadCredential{}, failure(ctx, s.log, "presign avatar upload", err)
	}
	return cred, nil
}

// ViewURLs signs GET URLs for keys. Keys that could not be signed are
// absent from the result; the returned TTL tells clients how long the rest
// stay valid.
func (s *MediaService) ViewURLs(ctx context.Context, keys []string) (map[string]string, time.Duration, error) {
	if _, err := s.authz.RequireRole(ctx, staff...); err != nil {
		return nil, 0, err
	}
	keys = media.CompactKeys(keys...)
	if len(keys) > MaxViewKeys {
		return nil, 0, &media.ValidationError{Constraint: media.ConstraintKey, Message: "too many keys"}
	}
	return s.issuer.IssueViewCredentials(ctx, keys), s.issuer.ViewTTL(), nil
}

// DeleteUnreferenced removes uploaded objects that no row references, such
// as uploads of a discarded edit. Admins may remove product objects; anyone
// may remove objects under their own avatar prefix. Referenced keys are
// skipped and returned. Storage failures are logged, not returned.
//
// The owning product and user rows stay share-locked from the reference
// check until the objects are gone, so a concurrent save of the same owner
// either commits first (and its keys are skipped) or waits for the delete.
func (s *MediaService) DeleteUnreferenced(ctx context.Context, keys []string) (deleted, skipped []string, err error) {
	id, err := s.authz.RequireRole(ctx)
	if err != nil {
		return nil, nil, err
	}

	keys = media.CompactKeys(keys...)
	for _, k := range keys {
		if err := s.mayDelete(id, k); err != nil {
			return nil, nil, err
		}
	}
	if len(keys) == 0 {
		return []string{}, []string{}, nil
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.lockOwners(ctx, tx, keys); err != nil {
			return err
		}
		referenced, err := s.referencedAmong(ctx, tx, keys)
		if err != nil {
			return err
		}

		deleted = make([]string, 0, len(keys))
		skipped = make([]string, 0)
		for _, k := range keys {
			if _, ok := referenced[k]; ok {
				skipped = append(skipped, k)
				continue
			}
			deleted = append(deleted, k)
		}

		if len(deleted) > 0 {
			if err := s.deleter.DeleteKeys(ctx, deleted); err != nil {
				s.log.Error(ctx, "delete unreferenced objects failed", "keys", deleted, "error", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, failure(ctx, s.log, "check references", err)
	}
	return deleted, skipped, nil
}

// lockOwners share-locks the product and user rows named by the owner
// segment of keys.
func (s *MediaService) lockOwners(ctx context.Context, tx dbx.DBTX, keys []string) error {
	var productIDs, userIDs []string
	for _, k := range keys {
		ns, owner, ok := media.SplitKey(k)
		if !ok {
			continue
		}
		switch ns {
		case media.NamespaceProducts:
			productIDs = append(productIDs, owner)
		case media.NamespaceAvatars:
			userIDs = append(userIDs, owner)
		}
	}
	if err := s.repomanager.Products(tx).LockShared(ctx, media.CompactKeys(productIDs...)); err != nil {
		return err
	}
	return s.repomanager.Users(tx).LockShared(ctx, media.CompactKeys(userIDs...))
}

func (s *MediaService) mayDelete(id auth.Identity, key string) error {
	if len(key) > media.MaxKeyLength {
		return &media.ValidationError{File: key, Constraint: media.ConstraintKey, Message: "storage key is too long"}
	}
	if media.OwnsKey(media.RoleUserAvatar, id.UserID, key) {
		return nil
	}
	ns, _, _ := strings.Cut(key, "/")
	switch ns {
	case media.NamespaceProducts, media.NamespaceAvatars:
		if id.Role != models.RoleAdmin {
			return common.ErrorForbidden
		}
		return nil
	default:
		return &media.ValidationError{File: key, Constraint: media.ConstraintKey, Message: "unknown storage namespace"}
	}
}

func (s *MediaService) referencedAmong(ctx context.Context, tx dbx.DBTX, keys []string) (map[string]struct{}, error) {
	fromProducts, err := s.repomanager.Products(tx).ReferencedAmong(ctx, keys)
	if err != nil {
		return nil, err
	}
	fromUsers, err := s.repomanager.Users(tx).ReferencedAmong(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(fromProducts)+len(fromUsers))
	for _, k := range fromProducts {
		out[k] = struct{}{}
	}
	for _, k := range fromUsers {
		out[k] = struct{}{}
	}
	return out, nil
}
