// Package editor ties the hero slot, the gallery queue and the view-URL cache
// of one product together and decides when uploaded keys are persisted or
// retired.
//
// Every key minted by the editor is recorded in the upload journal before its
// bytes are sent. Save persists the current hero and gallery and only then
// retires journaled keys that did not make it into the saved row. Discard
// retires everything the session uploaded. Keys that are still referenced by
// a persisted row are left alone by the server, so retiring is always safe to
// attempt.
package editor

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/vitaria/catalog/internal/api"
	"github.com/vitaria/catalog/internal/client/gallery"
	"github.com/vitaria/catalog/internal/client/hero"
	"github.com/vitaria/catalog/internal/client/repositories/journal"
	"github.com/vitaria/catalog/internal/client/upload"
	"github.com/vitaria/catalog/internal/client/viewurls"
	"github.com/vitaria/catalog/internal/common"
	"github.com/vitaria/catalog/internal/logging"
	"github.com/vitaria/catalog/internal/media"
	"github.com/vitaria/catalog/internal/syncx"
)

// API is the part of the catalog API the editor needs.
type API interface {
	GetProduct(ctx context.Context, id string) (*api.Product, error)
	SaveProductImages(ctx context.Context, id string, keys media.ReferencedKeys) (*api.Product, error)
	PresignProductUploads(ctx context.Context, productID string, role media.Role, files []media.FileDescriptor) ([]media.UploadCredential, error)
	ViewURLs(ctx context.Context, keys []string) (*api.ViewURLsResponse, error)
	Discard(ctx context.Context, keys []string) (*api.DiscardResponse, error)
}

// Transport moves the bytes of one file to a write credential.
type Transport interface {
	Upload(ctx context.Context, cred media.UploadCredential, file upload.LocalFile, onProgress upload.ProgressFunc) error
}

type Options struct {
	Log logging.Logger
	// ViewRefresh and ViewTTL default to 2m and media.ViewURLTTL.
	ViewRefresh time.Duration
	ViewTTL     time.Duration
	Preview     gallery.PreviewFunc
	OnHero      func(hero.State)
	OnGallery   func(gallery.Snapshot)
}

type Editor struct {
	productID string
	api       API
	transport Transport
	journal   journal.Repository
	log       logging.Logger
	now       func() time.Time

	hero    *hero.Slot
	gallery *gallery.Queue
	views   *viewurls.Cache

	mu       sync.Mutex
	title    string
	saved    media.ReferencedKeys
	retiring syncx.Group
}

// Open loads productID and starts an editing session on its images. Close
// must be called when the session ends.
func Open(ctx context.Context, productID string, a API, t Transport, j journal.Repository, opts Options) (*Editor, error) {
	p, err := a.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product %s: %w", productID, err)
	}

	if opts.Log == nil {
		opts.Log = logging.Nop()
	}
	if opts.ViewRefresh == 0 {
		opts.ViewRefresh = 2 * time.Minute
	}
	if opts.ViewTTL == 0 {
		opts.ViewTTL = media.ViewURLTTL
	}

	e := &Editor{
		productID: p.ID,
		api:       a,
		transport: t,
		journal:   j,
		log:       opts.Log.With("module", "editor", "product", p.ID),
		now:       time.Now,
		title:     p.Title,
		saved:     media.ReferencedKeys{Hero: p.HeroKey, Gallery: slices.Clone(p.Gallery)},
	}

	views, err := viewurls.New(viewurls.SignerFunc(e.signViews), opts.ViewRefresh, opts.ViewTTL, viewurls.WithLogger(opts.Log))
	if err != nil {
		return nil, err
	}
	e.views = views

	heroOpts := []hero.Option{hero.WithLogger(opts.Log)}
	if opts.OnHero != nil {
		heroOpts = append(heroOpts, hero.WithOnChange(opts.OnHero))
	}
	e.hero = hero.NewSlot(p.HeroKey, e.sender(media.RoleProductHero), e, heroOpts...)

	galleryOpts := []gallery.Option{gallery.WithLogger(opts.Log)}
	if opts.Preview != nil {
		galleryOpts = append(galleryOpts, gallery.WithPreview(opts.Preview))
	}
	if opts.OnGallery != nil {
		galleryOpts = append(galleryOpts, gallery.WithOnChange(opts.OnGallery))
	}
	e.gallery = gallery.New(context.WithoutCancel(ctx), e.sender(media.RoleProductGallery), p.Gallery, galleryOpts...)

	return e, nil
}

func (e *Editor) ProductID() string { return e.productID }

func (e *Editor) Title() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.title
}

func (e *Editor) Hero() hero.State { return e.hero.State() }

func (e *Editor) Gallery() gallery.Snapshot { return e.gallery.Snapshot() }

// Saved returns the keys of the last persisted row.
func (e *Editor) Saved() media.ReferencedKeys {
	e.mu.Lock()
	defer e.mu.Unlock()
	return media.ReferencedKeys{Hero: e.saved.Hero, Gallery: slices.Clone(e.saved.Gallery)}
}

// Current returns the keys Save would persist now.
func (e *Editor) Current() media.ReferencedKeys {
	return media.ReferencedKeys{Hero: e.hero.Committed(), Gallery: e.gallery.Keys()}
}

func (e *Editor) UploadHero(ctx context.Context, file upload.LocalFile) (string, error) {
	return e.hero.Upload(ctx, file)
}

func (e *Editor) ClearHero(ctx context.Context) { e.hero.Clear(ctx) }

func (e *Editor) AddFiles(files ...upload.LocalFile) error { return e.gallery.AddFiles(files...) }

func (e *Editor) RetryFailedUploads() int { return e.gallery.RetryFailed() }

func (e *Editor) RemoveUpload(id string) error { return e.gallery.RemoveUpload(id) }

func (e *Editor) ReorderGallery(from, to int) error { return e.gallery.Reorder(from, to) }

// RemoveGalleryKey drops key from the gallery. A key that was never saved is
// retired right away; a saved one is deleted by the server once the next
// Save drops its reference.
func (e *Editor) RemoveGalleryKey(ctx context.Context, key string) bool {
	if !e.gallery.RemoveKey(key) {
		return false
	}
	if !slices.Contains(e.Saved().All(), key) {
		e.retireAsync(ctx, key)
	}
	return true
}

// Save persists the committed hero and the gallery key list. It refuses to
// run while any upload is in flight. After the row is written, journaled keys
// the row does not reference are retired; failures there are logged only.
func (e *Editor) Save(ctx context.Context) (*api.Product, error) {
	if e.hero.Uploading() || e.gallery.Busy() {
		return nil, common.ErrUploadInFlight
	}

	next := e.Current()
	p, err := e.api.SaveProductImages(ctx, e.productID, next)
	if err != nil {
		return nil, err
	}

	persisted := media.ReferencedKeys{Hero: p.HeroKey, Gallery: slices.Clone(p.Gallery)}
	e.mu.Lock()
	e.title = p.Title
	e.saved = persisted
	e.mu.Unlock()

	entries, err := e.journal.List(ctx, e.productID)
	if err != nil {
		e.log.Error(ctx, "failed to list pending uploads", "error", err)
		return p, nil
	}
	keep := persisted.All()
	var stale, saved []string
	for _, en := range entries {
		if slices.Contains(keep, en.Key) {
			saved = append(saved, en.Key)
		} else {
			stale = append(stale, en.Key)
		}
	}
	if err := e.journal.Forget(ctx, saved...); err != nil {
		e.log.Warn(ctx, "failed to forget saved uploads", "error", err)
	}
	if len(stale) > 0 {
		if err := e.Retire(ctx, stale...); err != nil {
			e.log.Error(ctx, "failed to retire unsaved uploads", "keys", stale, "error", err)
		}
	}
	return p, nil
}

// Discard retires every key this product's sessions uploaded and never
// saved.
func (e *Editor) Discard(ctx context.Context) error {
	entries, err := e.journal.List(ctx, e.productID)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(entries))
	for _, en := range entries {
		keys = append(keys, en.Key)
	}
	if len(keys) == 0 {
		return nil
	}
	return e.Retire(ctx, keys...)
}

// Retire asks the server to delete keys and forgets them locally. Keys the
// server skipped are still referenced by a saved row and are forgotten too.
func (e *Editor) Retire(ctx context.Context, keys ...string) error {
	keys = media.CompactKeys(keys...)
	if len(keys) == 0 {
		return nil
	}
	resp, err := e.api.Discard(ctx, keys)
	if err != nil {
		return err
	}
	if len(resp.Skipped) > 0 {
		e.log.Debug(ctx, "keys still referenced", "keys", resp.Skipped)
	}
	return e.journal.Forget(ctx, append(resp.Deleted, resp.Skipped...)...)
}

// ViewURLs returns read URLs for the hero and gallery keys currently shown.
func (e *Editor) ViewURLs(ctx context.Context) (map[string]string, error) {
	cur := media.ReferencedKeys{Hero: e.hero.State().Key, Gallery: e.gallery.Keys()}
	if err := e.views.SetKeys(ctx, cur.All()...); err != nil {
		return e.views.Snapshot(), err
	}
	return e.views.Snapshot(), nil
}

// Run keeps view URLs fresh until ctx is done.
func (e *Editor) Run(ctx context.Context) { e.views.Run(ctx) }

// Wait blocks until queued gallery uploads and background retirements have
// finished.
func (e *Editor) Wait(ctx context.Context) error {
	if err := e.gallery.Wait(ctx); err != nil {
		return err
	}
	if err := e.hero.Wait(ctx); err != nil {
		return err
	}
	return e.retiring.Wait(ctx)
}

// Close stops the gallery queue and waits for background retirements.
func (e *Editor) Close() {
	e.gallery.Close()
	_ = e.hero.Wait(context.Background())
	_ = e.retiring.Wait(context.Background())
}

// sender presigns one file for role, journals the key and transfers the
// bytes. A key whose transfer failed is retired in the background.
func (e *Editor) sender(role media.Role) upload.Sender {
	return upload.SenderFunc(func(ctx context.Context, file upload.LocalFile, onProgress upload.ProgressFunc) (string, error) {
		creds, err := e.api.PresignProductUploads(ctx, e.productID, role, []media.FileDescriptor{file.Descriptor()})
		if err != nil {
			return "", err
		}
		if len(creds) != 1 {
			return "", fmt.Errorf("expected one upload credential, got %d", len(creds))
		}
		cred := creds[0]

		if err := e.journal.Record(ctx, journal.Entry{Key: cred.Key, Role: role, OwnerID: e.productID, CreatedAt: e.now()}); err != nil {
			return "", err
		}
		if err := e.transport.Upload(ctx, cred, file, onProgress); err != nil {
			e.retireAsync(ctx, cred.Key)
			return "", err
		}
		return cred.Key, nil
	})
}

func (e *Editor) retireAsync(ctx context.Context, keys ...string) {
	ctx = context.WithoutCancel(ctx)
	e.retiring.Go(func() {
		if err := e.Retire(ctx, keys...); err != nil {
			e.log.Error(ctx, "failed to retire upload", "keys", keys, "error", err)
		}
	})
}

func (e *Editor) signViews(ctx context.Context, keys []string) (map[string]string, time.Time, error) {
	resp, err := e.api.ViewURLs(ctx, keys)
	if err != nil {
		return nil, time.Time{}, err
	}
	exp := resp.ExpiresAt
	if exp.IsZero() {
		exp = e.now().Add(time.Duration(resp.TTLSeconds) * time.Second)
	}
	return resp.URLs, exp, nil
}
