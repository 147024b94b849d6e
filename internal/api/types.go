// Package api holds the JSON wire types of the catalog HTTP API, shared by
// the server handlers and the client.
package api

import (
	"time"

	"github.com/vitaria/catalog/internal/media"
)

// BasePath prefixes every versioned route.
const BasePath = "/api/v1"

// Envelope wraps every API response.
type Envelope struct {
	Success bool                     `json:"success"`
	Data    any                      `json:"data,omitempty"`
	Error   string                   `json:"error,omitempty"`
	Details []*media.ValidationError `json:"details,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        User      `json:"user"`
}

type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	AvatarKey string `json:"avatarKey,omitempty"`
}

type CreateUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

type UpdateProfileRequest struct {
	Name      string `json:"name"`
	AvatarKey string `json:"avatarKey"`
}

type Product struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Published bool      `json:"published"`
	HeroKey   string    `json:"heroKey,omitempty"`
	Gallery   []string  `json:"gallery"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateProductRequest struct {
	Title string `json:"title"`
}

// SaveImagesRequest replaces both image slots of a product.
type SaveImagesRequest struct {
	HeroKey string   `json:"heroKey"`
	Gallery []string `json:"gallery"`
}

type PresignRequest struct {
	Role  media.Role             `json:"role"`
	Files []media.FileDescriptor `json:"files"`
}

type PresignResponse struct {
	Credentials []media.UploadCredential `json:"credentials"`
}

type AvatarPresignRequest struct {
	File media.FileDescriptor `json:"file"`
}

type ViewURLsRequest struct {
	Keys []string `json:"keys"`
}

// ViewURLsResponse maps each signed key to its URL. Keys that could not be
// signed are absent.
type ViewURLsResponse struct {
	URLs       map[string]string `json:"urls"`
	TTLSeconds int               `json:"ttlSeconds"`
	ExpiresAt  time.Time         `json:"expiresAt"`
}

type DiscardRequest struct {
	Keys []string `json:"keys"`
}

type DiscardResponse struct {
	Deleted []string `json:"deleted"`
	Skipped []string `json:"skipped"`
}

type Activity struct {
	ID          int64     `json:"id"`
	Action      string    `json:"action"`
	Entity      string    `json:"entity"`
	EntityID    string    `json:"entityId,omitempty"`
	EntityTitle string    `json:"entityTitle,omitempty"`
	ActorEmail  string    `json:"actorEmail"`
	Severity    string    `json:"severity"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
