package editor

import (
	"context"
	"time"

	"github.com/vitaria/catalog/internal/api"
	"github.com/vitaria/catalog/internal/client/repositories/journal"
	"github.com/vitaria/catalog/internal/client/upload"
	"github.com/vitaria/catalog/internal/logging"
	"github.com/vitaria/catalog/internal/media"
)

// ProfileAPI is the part of the catalog API used to replace an avatar.
type ProfileAPI interface {
	Profile(ctx context.Context) (*api.User, error)
	UpdateProfile(ctx context.Context, name, avatarKey string) (*api.User, error)
	PresignAvatarUpload(ctx context.Context, file media.FileDescriptor) (media.UploadCredential, error)
	Discard(ctx context.Context, keys []string) (*api.DiscardResponse, error)
}

// SetAvatar uploads file as the caller's avatar and persists it. The server
// deletes the previous avatar once the profile row is written. A key whose
// upload or save failed is discarded before returning.
func SetAvatar(ctx context.Context, a ProfileAPI, t Transport, j journal.Repository, log logging.Logger, file upload.LocalFile, onProgress upload.ProgressFunc) (*api.User, error) {
	if log == nil {
		log = logging.Nop()
	}
	log = log.With("module", "avatar")

	if err := file.Descriptor().Validate(); err != nil {
		return nil, err
	}
	me, err := a.Profile(ctx)
	if err != nil {
		return nil, err
	}
	cred, err := a.PresignAvatarUpload(ctx, file.Descriptor())
	if err != nil {
		return nil, err
	}
	if err := j.Record(ctx, journal.Entry{Key: cred.Key, Role: media.RoleUserAvatar, OwnerID: me.ID, CreatedAt: time.Now()}); err != nil {
		return nil, err
	}

	abandon := func(cause error) (*api.User, error) {
		if _, err := a.Discard(context.WithoutCancel(ctx), []string{cred.Key}); err != nil {
			log.Error(ctx, "failed to discard avatar upload", "key", cred.Key, "error", err)
			return nil, cause
		}
		if err := j.Forget(ctx, cred.Key); err != nil {
			log.Warn(ctx, "failed to forget avatar upload", "key", cred.Key, "error", err)
		}
		return nil, cause
	}

	if err := t.Upload(ctx, cred, file, onProgress); err != nil {
		return abandon(err)
	}
	u, err := a.UpdateProfile(ctx, me.Name, cred.Key)
	if err != nil {
		return abandon(err)
	}
	if err := j.Forget(ctx, cred.Key); err != nil {
		log.Warn(ctx, "failed to forget avatar upload", "key", cred.Key, "error", err)
	}
	return u, nil
}
