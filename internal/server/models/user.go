package models

import "time"

// Role is the staff role carried in access tokens.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleEditor
}

type User struct {
	ID           string
	Email        string
	Name         string
	Role         Role
	PasswordHash []byte
	AvatarKey    string
	CreatedAt    time.Time
}
