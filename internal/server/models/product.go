package models

import (
	"time"

	"github.com/vitaria/catalog/internal/media"
)

// Product is a catalog entry. HeroKey and Gallery are the only columns that
// reference stored objects.
type Product struct {
	ID        string
	Title     string
	Published bool
	HeroKey   string
	Gallery   []string
	UpdatedAt time.Time
}

// Keys returns the object keys p references.
func (p *Product) Keys() media.ReferencedKeys {
	return media.ReferencedKeys{Hero: p.HeroKey, Gallery: p.Gallery}
}
