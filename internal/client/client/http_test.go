package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaria/catalog/internal/api"
	"github.com/vitaria/catalog/internal/common"
	"github.com/vitaria/catalog/internal/media"
)

type recorded struct {
	method, path, auth string
	body               []byte
}

func newServer(t *testing.T, status int, payload any) (*HTTPClient, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.RequestURI()
		rec.auth = r.Header.Get("Authorization")
		rec.body, _ = io.ReadAll(r.Body)
		if status == http.StatusNoContent {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/", time.Second), rec
}

func ok(data any) api.Envelope { return api.Envelope{Success: true, Data: data} }

func TestLogin_DecodesEnvelope(t *testing.T) {
	exp := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	c, rec := newServer(t, http.StatusOK, ok(api.TokenResponse{
		AccessToken: "jwt", ExpiresAt: exp, User: api.User{ID: "u-1", Email: "a@b.c", Role: "admin"},
	}))

	tok, err := c.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, "jwt", tok.AccessToken)
	assert.True(t, tok.ExpiresAt.Equal(exp))
	assert.Equal(t, "u-1", tok.User.ID)

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/api/v1/auth/token", rec.path)
	assert.Empty(t, rec.auth)
	assert.JSONEq(t, `{"email":"a@b.c","password":"pw"}`, string(rec.body))
}

func TestRequests_SendBearerAndPaths(t *testing.T) {
	ctx := context.Background()

	t.Run("save images", func(t *testing.T) {
		c, rec := newServer(t, http.StatusOK, ok(api.Product{ID: "p 1", Gallery: []string{}}))
		c.SetToken("tok")
		_, err := c.SaveProductImages(ctx, "p 1", media.ReferencedKeys{Hero: "products/p1/h.png"})
		require.NoError(t, err)
		assert.Equal(t, "Bearer tok", rec.auth)
		assert.Equal(t, http.MethodPut, rec.method)
		assert.Equal(t, "/api/v1/products/p%201/images", rec.path)
		assert.JSONEq(t, `{"heroKey":"products/p1/h.png","gallery":[]}`, string(rec.body))
	})

	t.Run("presign product", func(t *testing.T) {
		creds := []media.UploadCredential{{Key: "products/p1/a-x.png", UploadURL: "http://s3/put"}}
		c, rec := newServer(t, http.StatusOK, ok(api.PresignResponse{Credentials: creds}))
		got, err := c.PresignProductUploads(ctx, "p1", media.RoleProductGallery, []media.FileDescriptor{{Filename: "x.png", ContentType: "image/png", Size: 3}})
		require.NoError(t, err)
		assert.Empty(t, cmp.Diff(creds, got))
		assert.Equal(t, "/api/v1/uploads/products/p1", rec.path)
	})

	t.Run("activity limit", func(t *testing.T) {
		c, rec := newServer(t, http.StatusOK, ok([]api.Activity{{ID: 1, Action: "PRODUCT_DELETED"}}))
		got, err := c.Activity(ctx, 5)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "/api/v1/activity?limit=5", rec.path)
	})

	t.Run("delete is 204", func(t *testing.T) {
		c, rec := newServer(t, http.StatusNoContent, nil)
		require.NoError(t, c.DeleteProduct(ctx, "p1"))
		assert.Equal(t, http.MethodDelete, rec.method)
		assert.Equal(t, "/api/v1/products/p1", rec.path)
	})
}

func TestPresignAvatar_RequiresOneCredential(t *testing.T) {
	c, _ := newServer(t, http.StatusOK, ok(api.PresignResponse{}))
	_, err := c.PresignAvatarUpload(context.Background(), media.FileDescriptor{Filename: "me.png"})
	assert.ErrorIs(t, err, ErrServer)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		env    api.Envelope
		check  func(t *testing.T, err error)
	}{
		{
			name:   "validation details",
			status: http.StatusBadRequest,
			env: api.Envelope{Error: "bad", Details: []*media.ValidationError{
				{File: "a.gif", Constraint: media.ConstraintContentType, Message: "only images"},
				{File: "b.png", Constraint: media.ConstraintSize, Message: "too big"},
			}},
			check: func(t *testing.T, err error) {
				var ve media.ValidationErrors
				require.ErrorAs(t, err, &ve)
				require.Len(t, ve, 2)
				assert.Equal(t, "a.gif", ve[0].File)
				assert.ErrorIs(t, err, media.ErrValidation)
			},
		},
		{
			name:   "validation without details",
			status: http.StatusBadRequest,
			env:    api.Envelope{Error: "malformed request body"},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, media.ErrValidation)
				assert.Equal(t, "malformed request body", media.Message(err))
			},
		},
		{name: "expired", status: http.StatusUnauthorized, env: api.Envelope{Error: "token expired"},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, common.ErrTokenExpired) }},
		{name: "unauthorized", status: http.StatusUnauthorized, env: api.Envelope{Error: "unauthorized"},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, common.ErrorUnauthorized) }},
		{name: "forbidden", status: http.StatusForbidden,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, common.ErrorForbidden) }},
		{name: "not found", status: http.StatusNotFound,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, common.ErrorNotFound) }},
		{name: "conflict", status: http.StatusConflict,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, common.ErrorConflict) }},
		{name: "storage", status: http.StatusBadGateway, env: api.Envelope{Error: "object storage unavailable"},
			check: func(t *testing.T, err error) {
				var ie *media.InfrastructureError
				require.ErrorAs(t, err, &ie)
				assert.ErrorIs(t, err, media.ErrInfrastructure)
			}},
		{name: "other", status: http.StatusInternalServerError, env: api.Envelope{Error: "internal server error"},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrServer) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newServer(t, tt.status, tt.env)
			_, err := c.GetProduct(context.Background(), "p1")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := NewHTTPClient(srv.URL, time.Second)
	srv.Close()

	_, err := c.ListProducts(context.Background())
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
}

func TestCanceledContext(t *testing.T) {
	c, _ := newServer(t, http.StatusOK, ok(nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Profile(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
