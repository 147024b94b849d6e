package services

import (
	"context"
	"database/sql"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/vitaria/catalog/internal/common"
	"github.com/vitaria/catalog/internal/dbx"
	"github.com/vitaria/catalog/internal/logging"
	"github.com/vitaria/catalog/internal/media"
	"github.com/vitaria/catalog/internal/server/auth"
	"github.com/vitaria/catalog/internal/server/models"
	"github.com/vitaria/catalog/internal/server/reconcile"
	"github.com/vitaria/catalog/internal/server/repositories/activity"
	"github.com/vitaria/catalog/internal/server/repositories/products"
	"github.com/vitaria/catalog/internal/server/repositories/users"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func asAdmin() context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{UserID: "admin-1", Email: "admin@example.com", Role: models.RoleAdmin})
}

func asEditor() context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{UserID: "editor-1", Email: "editor@example.com", Role: models.RoleEditor})
}

// --- fake repositories ---

type fakeProductsRepo struct {
	products.Repository

	mu         sync.Mutex
	byID       map[string]*models.Product
	saveErr    error
	saved      []media.ReferencedKeys
	referenced []string
	createErr  error
	locked     []string
}

func newFakeProducts(ps ...*models.Product) *fakeProductsRepo {
	f := &fakeProductsRepo{byID: map[string]*models.Product{}}
	for _, p := range ps {
		f.byID[p.ID] = p
	}
	return f
}

func (f *fakeProductsRepo) Create(_ context.Context, p *models.Product) (*models.Product, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = "p-new"
	p.UpdatedAt = time.Now()
	f.byID[p.ID] = p
	return p, nil
}

func (f *fakeProductsRepo) Get(_ context.Context, id string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *p
	cp.Gallery = slices.Clone(p.Gallery)
	return &cp, nil
}

func (f *fakeProductsRepo) List(context.Context) ([]*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Product, 0, len(f.byID))
	for _, p := range f.byID {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProductsRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeProductsRepo) LoadReferencedKeys(ctx context.Context, id string) (media.ReferencedKeys, error) {
	p, err := f.Get(ctx, id)
	if err != nil {
		return media.ReferencedKeys{}, err
	}
	return p.Keys(), nil
}

func (f *fakeProductsRepo) SaveReferencedKeys(_ context.Context, id string, keys media.ReferencedKeys) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	p.HeroKey, p.Gallery = keys.Hero, slices.Clone(keys.Gallery)
	f.saved = append(f.saved, keys)
	return nil
}

func (f *fakeProductsRepo) LockShared(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked = append(f.locked, ids...)
	return nil
}

func (f *fakeProductsRepo) ReferencedAmong(_ context.Context, keys []string) ([]string, error) {
	var out []string
	for _, k := range keys {
		if slices.Contains(f.referenced, k) {
			out = append(out, k)
		}
	}
	return out, nil
}

type fakeUsersRepo struct {
	users.Repository

	mu         sync.Mutex
	byID       map[string]*models.User
	count      int64
	countErr   error
	created    []*models.User
	referenced []string
	setErr     error
	locked     []string
}

func newFakeUsers(us ...*models.User) *fakeUsersRepo {
	f := &fakeUsersRepo{byID: map[string]*models.User{}}
	for _, u := range us {
		f.byID[u.ID] = u
	}
	f.count = int64(len(us))
	return f
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.ID = "u-new"
	f.byID[u.ID] = u
	f.created = append(f.created, u)
	return u, nil
}

func (f *fakeUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) Count(context.Context) (int64, error) { return f.count, f.countErr }

func (f *fakeUsersRepo) UpdateName(_ context.Context, id, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id].Name = name
	return nil
}

func (f *fakeUsersRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeUsersRepo) LoadAvatarKey(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return "", common.ErrorNotFound
	}
	return u.AvatarKey, nil
}

func (f *fakeUsersRepo) SetAvatarKey(_ context.Context, id, key string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id].AvatarKey = key
	return nil
}

func (f *fakeUsersRepo) LockShared(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked = append(f.locked, ids...)
	return nil
}

func (f *fakeUsersRepo) ReferencedAmong(_ context.Context, keys []string) ([]string, error) {
	var out []string
	for _, k := range keys {
		if slices.Contains(f.referenced, k) {
			out = append(out, k)
		}
	}
	return out, nil
}

type fakeActivityRepo struct {
	mu        sync.Mutex
	entries   []models.ActivityLog
	appendErr error
	lastLimit int
}

func (f *fakeActivityRepo) Append(_ context.Context, e *models.ActivityLog) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeActivityRepo) Recent(_ context.Context, limit int) ([]*models.ActivityLog, error) {
	f.lastLimit = limit
	out := make([]*models.ActivityLog, 0, len(f.entries))
	for i := range f.entries {
		out = append(out, &f.entries[i])
	}
	return out, nil
}

type fakeRepoManager struct {
	p *fakeProductsRepo
	u *fakeUsersRepo
	a *fakeActivityRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{p: newFakeProducts(), u: newFakeUsers(), a: &fakeActivityRepo{}}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return m.u }
func (m *fakeRepoManager) Products(dbx.DBTX) products.Repository        { return m.p }
func (m *fakeRepoManager) Activity(dbx.DBTX) activity.Repository        { return m.a }

// --- storage fakes ---

type fakeDeleter struct {
	mu     sync.Mutex
	calls  [][]string
	err    error
	during func()
}

func (d *fakeDeleter) DeleteKeys(_ context.Context, keys []string) error {
	if d.during != nil {
		d.during()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, slices.Clone(keys))
	return d.err
}

func (d *fakeDeleter) all() [][]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type fakeIssuer struct {
	owners []string
	roles  []media.Role
	err    error
	views  map[string]string
}

func (f *fakeIssuer) IssueUploadCredential(_ context.Context, role media.Role, ownerID string, fd media.FileDescriptor) (media.UploadCredential, error) {
	f.roles = append(f.roles, role)
	f.owners = append(f.owners, ownerID)
	if f.err != nil {
		return media.UploadCredential{}, f.err
	}
	key, err := media.BuildKey(role, ownerID, fd.Filename)
	if err != nil {
		return media.UploadCredential{}, err
	}
	return media.UploadCredential{Key: key, UploadURL: "https://s3/put/" + key, ContentType: fd.ContentType}, nil
}

func (f *fakeIssuer) IssueUploadCredentials(ctx context.Context, role media.Role, ownerID string, fds []media.FileDescriptor) ([]media.UploadCredential, error) {
	out := make([]media.UploadCredential, 0, len(fds))
	for _, fd := range fds {
		c, err := f.IssueUploadCredential(ctx, role, ownerID, fd)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeIssuer) IssueViewCredentials(_ context.Context, keys []string) map[string]string {
	out := map[string]string{}
	for _, k := range keys {
		if v, ok := f.views[k]; ok {
			out[k] = v
		}
	}
	return out
}

func (f *fakeIssuer) ViewTTL() time.Duration { return time.Hour }

func newReconciler(d *fakeDeleter) *reconcile.Reconciler {
	return reconcile.New(d, logging.Nop())
}
