// Package httpapi exposes the catalog services as a JSON API over chi.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vitaria/catalog/internal/api"
	"github.com/vitaria/catalog/internal/media"
	"github.com/vitaria/catalog/internal/server/models"
	"github.com/vitaria/catalog/internal/server/services"
)

type MediaService interface {
	PresignProductUploads(ctx context.Context, productID string, role media.Role, files []media.FileDescriptor) ([]media.UploadCredential, error)
	PresignAvatarUpload(ctx context.Context, file media.FileDescriptor) (media.UploadCredential, error)
	ViewURLs(ctx context.Context, keys []string) (map[string]string, time.Duration, error)
	DeleteUnreferenced(ctx context.Context, keys []string) (deleted, skipped []string, err error)
}

type ProductService interface {
	Create(ctx context.Context, title string) (*models.Product, error)
	Get(ctx context.Context, productID string) (*models.Product, error)
	List(ctx context.Context) ([]*models.Product, error)
	SaveImages(ctx context.Context, productID string, keys media.ReferencedKeys) (*models.Product, error)
	Delete(ctx context.Context, productID string) error
}

type ProfileService interface {
	Profile(ctx context.Context) (*models.User, error)
	UpdateProfile(ctx context.Context, name, avatarKey string) (*models.User, error)
}

type UserService interface {
	Login(ctx context.Context, email, password string) (*services.AccessToken, error)
	CreateUser(ctx context.Context, email, name string, role models.Role, password string) (*models.User, error)
	DeleteUser(ctx context.Context, userID string) error
}

type ActivityService interface {
	Recent(ctx context.Context, limit int) ([]*models.ActivityLog, error)
}

// Handler holds the HTTP handlers for every API route.
type Handler struct {
	media    MediaService
	products ProductService
	profiles ProfileService
	users    UserService
	activity ActivityService
	now      func() time.Time
}

func NewHandler(m MediaService, p ProductService, pr ProfileService, u UserService, a ActivityService) *Handler {
	return &Handler{media: m, products: p, profiles: pr, users: u, activity: a, now: time.Now}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	tok, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}
	OK(w, api.TokenResponse{AccessToken: tok.Token, ExpiresAt: tok.ExpiresAt, User: toUser(tok.User)})
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req api.CreateUserRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	u, err := h.users.CreateUser(r.Context(), req.Email, req.Name, models.Role(req.Role), req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}
	Created(w, toUser(u))
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.profiles.Profile(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	OK(w, toUser(u))
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateProfileRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	u, err := h.profiles.UpdateProfile(r.Context(), req.Name, req.AvatarKey)
	if err != nil {
		WriteError(w, err)
		return
	}
	OK(w, toUser(u))
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.products.List(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	out := make([]api.Product, 0, len(list))
	for _, p := range list {
		out = append(out, toProduct(p))
	}
	OK(w, out)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req api.CreateProductRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	p, err := h.products.Create(r.Context(), req.Title)
	if err != nil {
		WriteError(w, err)
		return
	}
	Created(w, toProduct(p))
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	OK(w, toProduct(p))
}

func (h *Handler) SaveProductImages(w http.ResponseWriter, r *http.Request) {
	var req api.SaveImagesRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	p, err := h.products.SaveImages(r.Context(), chi.URLParam(r, "id"), media.ReferencedKeys{Hero: req.HeroKey, Gallery: req.Gallery})
	if err != nil {
		WriteError(w, err)
		return
	}
	OK(w, toProduct(p))
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PresignProductUploads(w http.ResponseWriter, r *http.Request) {
	var req api.PresignRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	role, err := media.ParseRole(string(req.Role))
	if err != nil {
		WriteError(w, err)
		return
	}
	creds, err := h.media.PresignProductUploads(r.Context(), chi.URLParam(r, "id"), role, req.Files)
	if err != nil {
		WriteError(w, err)
		return
	}
	OK(w, api.PresignResponse{Credentials: creds})
}

func (h *Handler) PresignAvatarUpload(w http.ResponseWriter, r *http.Request) {
	var req api.AvatarPresignRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	cred, err := h.media.PresignAvatarUpload(r.Context(), req.File)
	if err != nil {
		WriteError(w, err)
		return
	}
	OK(w, api.PresignResponse{Credentials: []media.UploadCredential{cred}})
}

func (h *Handler) ViewURLs(w http.ResponseWriter, r *http.Request) {
	var req api.ViewURLsRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	urls, ttl, err := h.media.ViewURLs(r.Context(), req.Keys)
	if err != nil {
		WriteError(w, err)
		return
	}
	OK(w, api.ViewURLsResponse{URLs: urls, TTLSeconds: int(ttl / time.Second), ExpiresAt: h.now().Add(ttl)})
}

func (h *Handler) DiscardUploads(w http.ResponseWriter, r *http.Request) {
	var req api.DiscardRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	deleted, skipped, err := h.media.DeleteUnreferenced(r.Context(), req.Keys)
	if err != nil {
		WriteError(w, err)
		return
	}
	OK(w, api.DiscardResponse{Deleted: deleted, Skipped: skipped})
}

func (h *Handler) RecentActivity(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, &media.ValidationError{Constraint: "limit", Message: "limit must be a number"})
			return
		}
		limit = n
	}
	entries, err := h.activity.Recent(r.Context(), limit)
	if err != nil {
		WriteError(w, err)
		return
	}
	out := make([]api.Activity, 0, len(entries))
	for _, e := range entries {
		out = append(out, api.Activity{
			ID: e.ID, Action: e.Action, Entity: e.Entity, EntityID: e.EntityID, EntityTitle: e.EntityTitle,
			ActorEmail: e.ActorEmail, Severity: string(e.Severity), Detail: e.Detail, CreatedAt: e.CreatedAt,
		})
	}
	OK(w, out)
}

func toUser(u *models.User) api.User {
	return api.User{ID: u.ID, Email: u.Email, Name: u.Name, Role: string(u.Role), AvatarKey: u.AvatarKey}
}

func toProduct(p *models.Product) api.Product {
	gallery := p.Gallery
	if gallery == nil {
		gallery = []string{}
	}
	return api.Product{ID: p.ID, Title: p.Title, Published: p.Published, HeroKey: p.HeroKey, Gallery: gallery, UpdatedAt: p.UpdatedAt}
}
