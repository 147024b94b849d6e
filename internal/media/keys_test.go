package media

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keyCharset = regexp.MustCompile(`^[a-zA-Z0-9._/-]+$`)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"photo.jpg", "photo.jpg"},
		{"my photo (1).png", "my_photo__1_.png"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{"фото.webp", "____.webp"},
		{"a?b#c%d.jpg", "a_b_c_d.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}
}

func TestBuildKey_Shape(t *testing.T) {
	key, err := BuildKey(RoleProductGallery, "p1", "my photo.jpg")
	require.NoError(t, err)

	parts := strings.Split(key, "/")
	require.Len(t, parts, 3)
	assert.Equal(t, NamespaceProducts, parts[0])
	assert.Equal(t, "p1", parts[1])
	assert.True(t, strings.HasSuffix(parts[2], "-my_photo.jpg"), parts[2])
	assert.Regexp(t, keyCharset, key)
	assert.True(t, OwnsKey(RoleProductHero, "p1", key))
}

func TestBuildKey_NeverRepeats(t *testing.T) {
	seen := make(map[string]struct{})
	for range 200 {
		key, err := BuildKey(RoleUserAvatar, "u-7", "photo.jpg")
		require.NoError(t, err)
		_, dup := seen[key]
		require.False(t, dup, "duplicate key %s", key)
		seen[key] = struct{}{}
		assert.True(t, strings.HasPrefix(key, "avatars/u-7/"))
	}
}

func TestBuildKey_Rejects(t *testing.T) {
	_, err := BuildKey(Role("banner"), "p1", "a.jpg")
	require.ErrorIs(t, err, ErrValidation)

	_, err = BuildKey(RoleProductHero, "", "a.jpg")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, ConstraintOwner, ve.Constraint)

	_, err = BuildKey(RoleProductHero, "p1/../p2", "a.jpg")
	require.ErrorIs(t, err, ErrValidation)
}

func TestOwnsKey(t *testing.T) {
	assert.True(t, OwnsKey(RoleProductHero, "p1", "products/p1/abc-a.jpg"))
	assert.False(t, OwnsKey(RoleProductHero, "p1", "products/p10/abc-a.jpg"))
	assert.False(t, OwnsKey(RoleProductHero, "p1", "avatars/p1/abc-a.jpg"))
	assert.False(t, OwnsKey(RoleProductHero, "p1", "products/p1/"))
	assert.False(t, OwnsKey(RoleProductHero, "p1", "products/p1/x/y.jpg"))
	assert.False(t, OwnsKey(RoleProductHero, "", "products//a.jpg"))
}

func TestDifference(t *testing.T) {
	assert.Equal(t, []string{"A"}, Difference([]string{"A", "B"}, []string{"B", "C"}))
	assert.Equal(t, []string{"A", "B"}, Difference([]string{"A", "", "B", "A"}, nil))
	assert.Empty(t, Difference([]string{"A"}, []string{"A"}))
	assert.Empty(t, Difference(nil, []string{"A"}))
}

func TestCompactKeys(t *testing.T) {
	assert.Equal(t, []string{"b", "a"}, CompactKeys("b", "", "a", "b"))
	assert.Equal(t, []string{}, CompactKeys())
}

func TestReferencedKeysAll(t *testing.T) {
	r := ReferencedKeys{Hero: "h", Gallery: []string{"g1", "h", "g2"}}
	assert.Equal(t, []string{"h", "g1", "g2"}, r.All())
	assert.Equal(t, []string{"g1"}, ReferencedKeys{Gallery: []string{"g1"}}.All())
}

func TestSplitKey(t *testing.T) {
	ns, owner, ok := SplitKey("products/p1/abc-a.jpg")
	assert.True(t, ok)
	assert.Equal(t, NamespaceProducts, ns)
	assert.Equal(t, "p1", owner)

	for _, k := range []string{"", "products", "products/p1", "products//a.jpg", "/p1/a.jpg", "products/p1/"} {
		_, _, ok := SplitKey(k)
		assert.False(t, ok, k)
	}
}
