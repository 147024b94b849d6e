// Package reconcile keeps the object store in line with the database.
//
// Every change to the set of keys an entity references is a two-phase
// operation. Commit runs the database write and, only if it succeeds,
// returns a Pending holding the keys that left reference. Pending.Apply then
// deletes them. Deletion is best-effort: failures are logged and never
// reach the caller, and nothing is rolled back. A crash between the phases
// leaves orphaned objects, never dangling references.
package reconcile

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/vitaria/catalog/internal/logging"
	"github.com/vitaria/catalog/internal/media"
)

// DefaultDeleteTimeout bounds phase two, which is detached from the caller's
// cancellation.
const DefaultDeleteTimeout = 30 * time.Second

// Store is the persistence boundary for one kind of entity.
type Store interface {
	LoadReferencedKeys(ctx context.Context, entityID string) (media.ReferencedKeys, error)
	SaveReferencedKeys(ctx context.Context, entityID string, next media.ReferencedKeys) error
}

// Deleter removes objects in one batch per call.
type Deleter interface {
	DeleteKeys(ctx context.Context, keys []string) error
}

// Transactor runs fn against a Store inside one transaction and returns
// only after the transaction has committed.
type Transactor func(ctx context.Context, fn func(ctx context.Context, store Store) error) error

// WriteFunc durably installs the next key set and returns the keys that were
// referenced before the write. It is called exactly once per Commit.
type WriteFunc func(ctx context.Context) (prev []string, err error)

type Reconciler struct {
	deleter Deleter
	timeout time.Duration
	log     logging.Logger
}

func New(deleter Deleter, log logging.Logger) *Reconciler {
	if log == nil {
		log = logging.Nop()
	}
	return &Reconciler{deleter: deleter, timeout: DefaultDeleteTimeout, log: log.With("module", "reconciler")}
}

// Pending is the deletion phase of a committed write.
type Pending struct {
	r        *Reconciler
	entityID string
	orphaned []string
	applied  atomic.Bool
}

// Orphaned returns the keys that will be deleted, in previous-reference
// order.
func (p *Pending) Orphaned() []string {
	if p == nil {
		return nil
	}
	return p.orphaned
}

// Apply issues one batched delete for the orphaned keys. Only the first call
// does anything. Failures are logged, never returned.
func (p *Pending) Apply(ctx context.Context) {
	if p == nil || len(p.orphaned) == 0 || !p.applied.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.r.timeout)
	defer cancel()

	if err := p.r.deleter.DeleteKeys(ctx, p.orphaned); err != nil {
		p.r.log.Error(ctx, "orphan cleanup failed", "entity", p.entityID, "keys", p.orphaned, "error", err)
		return
	}
	p.r.log.Info(ctx, "orphans deleted", "entity", p.entityID, "count", len(p.orphaned))
}

// Commit runs write and computes orphaned = prev − next. When write fails
// nothing is scheduled and the error is returned unchanged.
func (r *Reconciler) Commit(ctx context.Context, entityID string, next []string, write WriteFunc) (*Pending, error) {
	prev, err := write(ctx)
	if err != nil {
		return nil, err
	}
	return &Pending{r: r, entityID: entityID, orphaned: media.Difference(prev, next)}, nil
}

// Save loads the current keys, persists next in the same transaction and,
// once committed, deletes what fell out of reference. It returns only
// persistence errors.
func (r *Reconciler) Save(ctx context.Context, tx Transactor, entityID string, next media.ReferencedKeys) error {
	pending, err := r.Commit(ctx, entityID, next.All(), func(ctx context.Context) ([]string, error) {
		var prev media.ReferencedKeys
		err := tx(ctx, func(ctx context.Context, store Store) error {
			var err error
			if prev, err = store.LoadReferencedKeys(ctx, entityID); err != nil {
				return err
			}
			return store.SaveReferencedKeys(ctx, entityID, next)
		})
		if err != nil {
			return nil, err
		}
		return prev.All(), nil
	})
	if err != nil {
		return err
	}
	pending.Apply(ctx)
	return nil
}

// DeleteEntity runs remove, which deletes the entity row and returns the keys
// it referenced, then deletes all of them.
func (r *Reconciler) DeleteEntity(ctx context.Context, entityID string, remove WriteFunc) error {
	pending, err := r.Commit(ctx, entityID, nil, remove)
	if err != nil {
		return err
	}
	pending.Apply(ctx)
	return nil
}
