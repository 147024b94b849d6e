package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaria/catalog/internal/api"
	"github.com/vitaria/catalog/internal/common"
	"github.com/vitaria/catalog/internal/media"
	"github.com/vitaria/catalog/internal/server/auth"
	"github.com/vitaria/catalog/internal/server/models"
	"github.com/vitaria/catalog/internal/server/services"
)

var secret = []byte("test-secret")

type fakeServices struct {
	gotRole    media.Role
	gotProduct string
	gotKeys    media.ReferencedKeys
	gotLimit   int
	caller     auth.Identity
	err        error
}

func (f *fakeServices) record(ctx context.Context) {
	f.caller, _ = auth.IdentityFrom(ctx)
}

func (f *fakeServices) PresignProductUploads(ctx context.Context, productID string, role media.Role, files []media.FileDescriptor) ([]media.UploadCredential, error) {
	f.record(ctx)
	f.gotProduct, f.gotRole = productID, role
	if f.err != nil {
		return nil, f.err
	}
	out := make([]media.UploadCredential, 0, len(files))
	for _, fd := range files {
		out = append(out, media.UploadCredential{Key: "products/" + productID + "/k-" + fd.Filename, ContentType: fd.ContentType})
	}
	return out, nil
}

func (f *fakeServices) PresignAvatarUpload(ctx context.Context, file media.FileDescriptor) (media.UploadCredential, error) {
	f.record(ctx)
	return media.UploadCredential{Key: "avatars/" + f.caller.UserID + "/k-" + file.Filename}, f.err
}

func (f *fakeServices) ViewURLs(ctx context.Context, keys []string) (map[string]string, time.Duration, error) {
	out := map[string]string{}
	for _, k := range keys {
		out[k] = "https://s3/" + k
	}
	return out, time.Hour, f.err
}

func (f *fakeServices) DeleteUnreferenced(ctx context.Context, keys []string) ([]string, []string, error) {
	return keys, []string{}, f.err
}

func (f *fakeServices) Create(ctx context.Context, title string) (*models.Product, error) {
	return &models.Product{ID: "p1", Title: title}, f.err
}

func (f *fakeServices) Get(ctx context.Context, id string) (*models.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Product{ID: id, Title: "Lamp"}, nil
}

func (f *fakeServices) List(ctx context.Context) ([]*models.Product, error) {
	return []*models.Product{{ID: "p1", Title: "Lamp", Gallery: []string{"products/p1/g.jpg"}}}, f.err
}

func (f *fakeServices) SaveImages(ctx context.Context, id string, keys media.ReferencedKeys) (*models.Product, error) {
	f.gotProduct, f.gotKeys = id, keys
	if f.err != nil {
		return nil, f.err
	}
	return &models.Product{ID: id, HeroKey: keys.Hero, Gallery: keys.Gallery}, nil
}

func (f *fakeServices) Delete(ctx context.Context, id string) error { return f.err }

func (f *fakeServices) Profile(ctx context.Context) (*models.User, error) {
	f.record(ctx)
	return &models.User{ID: f.caller.UserID, Email: f.caller.Email, Role: f.caller.Role}, f.err
}

func (f *fakeServices) UpdateProfile(ctx context.Context, name, avatarKey string) (*models.User, error) {
	f.record(ctx)
	return &models.User{ID: f.caller.UserID, Name: name, AvatarKey: avatarKey}, f.err
}

func (f *fakeServices) Login(ctx context.Context, email, password string) (*services.AccessToken, error) {
	if password != "pw" {
		return nil, common.ErrorUnauthorized
	}
	return &services.AccessToken{Token: "tok", ExpiresAt: time.Unix(1700000000, 0).UTC(), User: &models.User{ID: "u1", Email: email, Role: models.RoleAdmin}}, nil
}

func (f *fakeServices) CreateUser(ctx context.Context, email, name string, role models.Role, password string) (*models.User, error) {
	return &models.User{ID: "u2", Email: email, Name: name, Role: role}, f.err
}

func (f *fakeServices) DeleteUser(ctx context.Context, id string) error { return f.err }

func (f *fakeServices) Recent(ctx context.Context, limit int) ([]*models.ActivityLog, error) {
	f.gotLimit = limit
	return []*models.ActivityLog{{ID: 1, Action: models.ActionProductCreated, Severity: models.SeverityInfo}}, f.err
}

func newTestServer(t *testing.T, f *fakeServices, opts ...func(*RouterOptions)) *httptest.Server {
	t.Helper()
	h := NewHandler(f, f, f, f, f)
	h.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	o := RouterOptions{Secret: secret, AllowedOrigins: []string{"*"}}
	for _, fn := range opts {
		fn(&o)
	}
	srv := httptest.NewServer(NewRouter(h, o))
	t.Cleanup(srv.Close)
	return srv
}

func bearer(t *testing.T, role models.Role) string {
	t.Helper()
	tok, err := auth.GenerateToken(auth.Identity{UserID: "u1", Email: "u1@example.com", Role: role}, secret, time.Minute)
	require.NoError(t, err)
	return tok
}

func do(t *testing.T, srv *httptest.Server, method, path, token string, body any) (*http.Response, api.Envelope, json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(common.AuthorizationHeader, common.BearerPrefix+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var raw json.RawMessage
	env := api.Envelope{Data: &raw}
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp, env, raw
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeServices{})
	resp, env, _ := do(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t, &fakeServices{})

	resp, env, raw := do(t, srv, http.MethodPost, "/api/v1/auth/token", "", api.LoginRequest{Email: "a@example.com", Password: "pw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	var tok api.TokenResponse
	require.NoError(t, json.Unmarshal(raw, &tok))
	assert.Equal(t, "tok", tok.AccessToken)
	assert.Equal(t, "admin", tok.User.Role)

	resp, env, _ = do(t, srv, http.MethodPost, "/api/v1/auth/token", "", api.LoginRequest{Email: "a@example.com", Password: "bad"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, env.Success)
}

func TestAuthentication(t *testing.T) {
	srv := newTestServer(t, &fakeServices{})

	resp, _, _ := do(t, srv, http.MethodGet, "/api/v1/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _, _ = do(t, srv, http.MethodGet, "/api/v1/profile", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	expired, err := auth.GenerateToken(auth.Identity{UserID: "u1", Role: models.RoleAdmin}, secret, -time.Minute)
	require.NoError(t, err)
	resp, env, _ := do(t, srv, http.MethodGet, "/api/v1/profile", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "token expired", env.Error)

	f := &fakeServices{}
	srv = newTestServer(t, f)
	resp, _, raw := do(t, srv, http.MethodGet, "/api/v1/profile", bearer(t, models.RoleEditor), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var u api.User
	require.NoError(t, json.Unmarshal(raw, &u))
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "editor", u.Role)
}

func TestPresignProductUploads(t *testing.T) {
	f := &fakeServices{}
	srv := newTestServer(t, f)

	resp, _, raw := do(t, srv, http.MethodPost, "/api/v1/uploads/products/p7", bearer(t, models.RoleAdmin), api.PresignRequest{
		Role:  media.RoleProductGallery,
		Files: []media.FileDescriptor{{Filename: "a.jpg", ContentType: "image/jpeg", Size: 10}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "p7", f.gotProduct)
	assert.Equal(t, media.RoleProductGallery, f.gotRole)

	var out api.PresignResponse
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Len(t, out.Credentials, 1)
	assert.Equal(t, "products/p7/k-a.jpg", out.Credentials[0].Key)
}

func TestPresignProductUploads_UnknownRole(t *testing.T) {
	srv := newTestServer(t, &fakeServices{})

	resp, env, _ := do(t, srv, http.MethodPost, "/api/v1/uploads/products/p7", bearer(t, models.RoleAdmin), api.PresignRequest{Role: "banner"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Len(t, env.Details, 1)
	assert.Equal(t, media.ConstraintRole, env.Details[0].Constraint)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", media.ValidationErrors{{File: "a.gif", Constraint: media.ConstraintContentType, Message: "bad"}}, http.StatusBadRequest},
		{"forbidden", common.ErrorForbidden, http.StatusForbidden},
		{"not found", common.ErrorNotFound, http.StatusNotFound},
		{"conflict", common.ErrorConflict, http.StatusConflict},
		{"storage", &media.InfrastructureError{Op: "presign put", Err: assert.AnError}, http.StatusBadGateway},
		{"internal", common.ErrorInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeServices{err: tt.err})
			resp, env, _ := do(t, srv, http.MethodGet, "/api/v1/products/p1", bearer(t, models.RoleAdmin), nil)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestSaveProductImages(t *testing.T) {
	f := &fakeServices{}
	srv := newTestServer(t, f)

	resp, _, raw := do(t, srv, http.MethodPut, "/api/v1/products/p1/images", bearer(t, models.RoleEditor), api.SaveImagesRequest{
		HeroKey: "products/p1/h.jpg", Gallery: []string{"products/p1/g.jpg"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, media.ReferencedKeys{Hero: "products/p1/h.jpg", Gallery: []string{"products/p1/g.jpg"}}, f.gotKeys)

	var p api.Product
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, "products/p1/h.jpg", p.HeroKey)
}

func TestMalformedBody(t *testing.T) {
	srv := newTestServer(t, &fakeServices{})

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/products", strings.NewReader(`{"title": 1, "extra": true}`))
	require.NoError(t, err)
	req.Header.Set(common.AuthorizationHeader, common.BearerPrefix+bearer(t, models.RoleAdmin))
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestViewURLs(t *testing.T) {
	srv := newTestServer(t, &fakeServices{})

	resp, _, raw := do(t, srv, http.MethodPost, "/api/v1/uploads/view-urls", bearer(t, models.RoleEditor), api.ViewURLsRequest{Keys: []string{"products/p1/a.jpg"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out api.ViewURLsResponse
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, 3600, out.TTLSeconds)
	assert.Equal(t, time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC), out.ExpiresAt)
	assert.Equal(t, "https://s3/products/p1/a.jpg", out.URLs["products/p1/a.jpg"])
}

func TestDeleteRoutesReturnNoContent(t *testing.T) {
	srv := newTestServer(t, &fakeServices{})

	resp, _, _ := do(t, srv, http.MethodDelete, "/api/v1/products/p1", bearer(t, models.RoleAdmin), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _, _ = do(t, srv, http.MethodDelete, "/api/v1/users/u2", bearer(t, models.RoleAdmin), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRecentActivity(t *testing.T) {
	f := &fakeServices{}
	srv := newTestServer(t, f)

	resp, _, raw := do(t, srv, http.MethodGet, "/api/v1/activity?limit=5", bearer(t, models.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, f.gotLimit)
	var out []api.Activity
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "info", out[0].Severity)

	resp, _, _ = do(t, srv, http.MethodGet, "/api/v1/activity?limit=lots", bearer(t, models.RoleAdmin), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	srv := newTestServer(t, &fakeServices{}, func(o *RouterOptions) { o.Metrics = m })

	do(t, srv, http.MethodGet, "/api/v1/products/p1", bearer(t, models.RoleAdmin), nil)
	do(t, srv, http.MethodGet, "/api/v1/products/p2", bearer(t, models.RoleAdmin), nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/v1/products/{id}", "200")))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "duplicate registration is reported")
}
