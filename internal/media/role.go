package media

import "fmt"

// Role identifies which slot an image is destined for.
type Role string

const (
	RoleProductHero    Role = "product-hero"
	RoleProductGallery Role = "product-gallery"
	RoleUserAvatar     Role = "user-avatar"
)

const (
	NamespaceProducts = "products"
	NamespaceAvatars  = "avatars"
)

// Namespace returns the leading key segment for r.
func (r Role) Namespace() (string, error) {
	switch r {
	case RoleProductHero, RoleProductGallery:
		return NamespaceProducts, nil
	case RoleUserAvatar:
		return NamespaceAvatars, nil
	default:
		return "", fmt.Errorf("unknown role %q", string(r))
	}
}

// ParseRole converts s into a known Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, err := r.Namespace(); err != nil {
		return "", &ValidationError{Constraint: ConstraintRole, Message: err.Error()}
	}
	return r, nil
}
