package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vitaria/catalog/internal/api"
	"github.com/vitaria/catalog/internal/common"
	"github.com/vitaria/catalog/internal/media"
)

// envelope is api.Envelope with the payload left undecoded.
type envelope struct {
	Success bool                     `json:"success"`
	Data    json.RawMessage          `json:"data"`
	Error   string                   `json:"error"`
	Details []*media.ValidationError `json:"details"`
}

// HTTPClient calls the catalog JSON API. It is safe for concurrent use once
// the token is set.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	token   string
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/") + api.BasePath,
		http:    &http.Client{Timeout: timeout},
	}
}

// SetToken sets the bearer token sent with every request.
func (c *HTTPClient) SetToken(token string) { c.token = token }

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set(common.AuthorizationHeader, common.BearerPrefix+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 400 {
			return mapStatus(resp.StatusCode, envelope{Error: resp.Status})
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 400 || !env.Success {
		return mapStatus(resp.StatusCode, env)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func mapStatus(status int, env envelope) error {
	switch status {
	case http.StatusBadRequest:
		if len(env.Details) > 0 {
			return media.ValidationErrors(env.Details)
		}
		return &media.ValidationError{Constraint: "request", Message: env.Error}
	case http.StatusUnauthorized:
		if env.Error == "token expired" {
			return common.ErrTokenExpired
		}
		return common.ErrorUnauthorized
	case http.StatusForbidden:
		return common.ErrorForbidden
	case http.StatusNotFound:
		return common.ErrorNotFound
	case http.StatusConflict:
		return common.ErrorConflict
	case http.StatusBadGateway:
		return &media.InfrastructureError{Op: "storage", Err: errors.New(env.Error)}
	default:
		return fmt.Errorf("%w: %d %s", ErrServer, status, env.Error)
	}
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*api.TokenResponse, error) {
	var out api.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/token", api.LoginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Profile(ctx context.Context) (*api.User, error) {
	var out api.User
	if err := c.do(ctx, http.MethodGet, "/profile", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateProfile(ctx context.Context, name, avatarKey string) (*api.User, error) {
	var out api.User
	if err := c.do(ctx, http.MethodPut, "/profile", api.UpdateProfileRequest{Name: name, AvatarKey: avatarKey}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ListProducts(ctx context.Context) ([]api.Product, error) {
	var out []api.Product
	if err := c.do(ctx, http.MethodGet, "/products", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetProduct(ctx context.Context, id string) (*api.Product, error) {
	var out api.Product
	if err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateProduct(ctx context.Context, title string) (*api.Product, error) {
	var out api.Product
	if err := c.do(ctx, http.MethodPost, "/products", api.CreateProductRequest{Title: title}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) SaveProductImages(ctx context.Context, id string, keys media.ReferencedKeys) (*api.Product, error) {
	gallery := keys.Gallery
	if gallery == nil {
		gallery = []string{}
	}
	var out api.Product
	req := api.SaveImagesRequest{HeroKey: keys.Hero, Gallery: gallery}
	if err := c.do(ctx, http.MethodPut, "/products/"+url.PathEscape(id)+"/images", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteProduct(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/products/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) PresignProductUploads(ctx context.Context, productID string, role media.Role, files []media.FileDescriptor) ([]media.UploadCredential, error) {
	var out api.PresignResponse
	req := api.PresignRequest{Role: role, Files: files}
	if err := c.do(ctx, http.MethodPost, "/uploads/products/"+url.PathEscape(productID), req, &out); err != nil {
		return nil, err
	}
	return out.Credentials, nil
}

func (c *HTTPClient) PresignAvatarUpload(ctx context.Context, file media.FileDescriptor) (media.UploadCredential, error) {
	var out api.PresignResponse
	if err := c.do(ctx, http.MethodPost, "/uploads/avatar", api.AvatarPresignRequest{File: file}, &out); err != nil {
		return media.UploadCredential{}, err
	}
	if len(out.Credentials) != 1 {
		return media.UploadCredential{}, fmt.Errorf("%w: expected one credential, got %d", ErrServer, len(out.Credentials))
	}
	return out.Credentials[0], nil
}

func (c *HTTPClient) ViewURLs(ctx context.Context, keys []string) (*api.ViewURLsResponse, error) {
	var out api.ViewURLsResponse
	if err := c.do(ctx, http.MethodPost, "/uploads/view-urls", api.ViewURLsRequest{Keys: keys}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Discard(ctx context.Context, keys []string) (*api.DiscardResponse, error) {
	var out api.DiscardResponse
	if err := c.do(ctx, http.MethodPost, "/uploads/discard", api.DiscardRequest{Keys: keys}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateUser(ctx context.Context, req api.CreateUserRequest) (*api.User, error) {
	var out api.User
	if err := c.do(ctx, http.MethodPost, "/users", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) Activity(ctx context.Context, limit int) ([]api.Activity, error) {
	path := "/activity"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []api.Activity
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
