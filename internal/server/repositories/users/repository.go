package users

import (
	"context"

	"github.com/vitaria/catalog/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Count(ctx context.Context) (int64, error)
	UpdateName(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id string) error

	// LoadAvatarKey locks the user row for the rest of the transaction.
	LoadAvatarKey(ctx context.Context, id string) (string, error)
	SetAvatarKey(ctx context.Context, id, key string) error
	// ReferencedAmong returns the subset of keys used as an avatar.
	ReferencedAmong(ctx context.Context, keys []string) ([]string, error)
	// LockShared blocks concurrent writers of the given user rows until
	// the transaction ends.
	LockShared(ctx context.Context, ids []string) error
}
