// Package journal records object keys uploaded by this client that no saved
// row references yet. Entries are forgotten once the keys are saved or
// deleted; whatever survives a crash is cleaned up by `discard --pending`.
package journal

import (
	"context"
	"time"

	"github.com/vitaria/catalog/internal/media"
)

type Entry struct {
	Key       string
	Role      media.Role
	OwnerID   string
	CreatedAt time.Time
}

type Repository interface {
	// Record is idempotent per key.
	Record(ctx context.Context, e Entry) error
	Forget(ctx context.Context, keys ...string) error
	// List returns entries oldest first. An empty ownerID lists everything.
	List(ctx context.Context, ownerID string) ([]Entry, error)
}
