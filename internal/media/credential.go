package media

import "time"

// Default credential lifetimes.
const (
	UploadURLTTL = time.Minute
	ViewURLTTL   = time.Hour
)

// UploadCredential authorizes exactly one PUT of one key and carries a
// matching read URL.
type UploadCredential struct {
	Key             string    `json:"key"`
	UploadURL       string    `json:"uploadUrl"`
	ViewURL         string    `json:"viewUrl"`
	UploadExpiresAt time.Time `json:"uploadExpiresAt"`
	ViewExpiresAt   time.Time `json:"viewExpiresAt"`
	ContentType     string    `json:"contentType"`
}

// ViewCredential is a read URL for one key.
type ViewCredential struct {
	Key       string    `json:"key"`
	ViewURL   string    `json:"viewUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ReferencedKeys is the set of keys one entity row points at.
type ReferencedKeys struct {
	Hero    string   `json:"hero,omitempty"`
	Gallery []string `json:"gallery"`
}

// All returns hero followed by gallery, compacted.
func (r ReferencedKeys) All() []string {
	return CompactKeys(append([]string{r.Hero}, r.Gallery...)...)
}
