package media

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	safeSegment         = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
)

// SanitizeFilename replaces everything except letters, digits, dot, hyphen
// and underscore with an underscore.
func SanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

// BuildKey returns a fresh key "<namespace>/<ownerID>/<uuid>-<sanitized>".
// Every call draws a new random component, so identical arguments never
// yield the same key.
func BuildKey(role Role, ownerID, filename string) (string, error) {
	ns, err := role.Namespace()
	if err != nil {
		return "", &ValidationError{File: filename, Constraint: ConstraintRole, Message: err.Error()}
	}
	if err := validateOwner(ownerID); err != nil {
		return "", err
	}
	return ns + "/" + ownerID + "/" + uuid.NewString() + "-" + SanitizeFilename(filename), nil
}

// OwnerPrefix returns the key prefix every key of (role, ownerID) starts with.
func OwnerPrefix(role Role, ownerID string) (string, error) {
	ns, err := role.Namespace()
	if err != nil {
		return "", err
	}
	return ns + "/" + ownerID + "/", nil
}

// OwnsKey reports whether key lives in the namespace of (role, ownerID).
func OwnsKey(role Role, ownerID, key string) bool {
	prefix, err := OwnerPrefix(role, ownerID)
	if err != nil || ownerID == "" {
		return false
	}
	rest, ok := strings.CutPrefix(key, prefix)
	return ok && rest != "" && !strings.Contains(rest, "/")
}

// SplitKey returns the namespace and owner segments of key. ok is false
// when key has fewer than three segments or an empty one among the first two.
func SplitKey(key string) (namespace, ownerID string, ok bool) {
	parts := strings.SplitN(key, "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func validateOwner(ownerID string) error {
	if ownerID == "" {
		return &ValidationError{Constraint: ConstraintOwner, Message: "owner id is required"}
	}
	if !safeSegment.MatchString(ownerID) || ownerID == "." || ownerID == ".." {
		return &ValidationError{Constraint: ConstraintOwner, Message: "owner id contains unsafe characters"}
	}
	return nil
}

// CompactKeys drops empty keys and duplicates, keeping first occurrences in
// their original order.
func CompactKeys(keys ...string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Difference returns the keys of prev that are absent from next, in prev
// order, without empties or duplicates.
func Difference(prev, next []string) []string {
	keep := make(map[string]struct{}, len(next))
	for _, k := range next {
		keep[k] = struct{}{}
	}
	var out []string
	for _, k := range CompactKeys(prev...) {
		if _, ok := keep[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}
