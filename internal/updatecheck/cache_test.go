package updatecheck

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obfx/themecheck/internal/store"
)

func TestCacheLookupMissingStore(t *testing.T) {
	c := NewCache(store.NewMemory())
	r, ok, err := c.Lookup(context.Background(), "fp")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, r)
}

func TestCachePutThenLookup(t *testing.T) {
	ctx := context.Background()
	c := NewCache(store.NewMemory())

	want := &ImpactReport{StatusCode: "200", DiffPercent: diff(2.5), GalleryURL: "https://g", Raw: []byte(`{"status_code":"200"}`)}
	require.NoError(t, c.Put(ctx, "a", want))
	require.NoError(t, c.Put(ctx, "b", &ImpactReport{StatusCode: "200", DiffPercent: diff(1)}))

	got, ok, err := c.Lookup(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	all, err := c.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.Set(ctx, CacheKey, []byte("not json")))
	c := NewCache(s)

	_, _, err := c.Lookup(ctx, "a")
	assert.Error(t, err, "corrupt cache should surface on read")

	require.NoError(t, c.Put(ctx, "a", &ImpactReport{StatusCode: "200", DiffPercent: diff(1)}))
	_, ok, err := c.Lookup(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok, "put replaces a corrupt mapping")
}

func TestPending(t *testing.T) {
	cases := []struct {
		installed, available string
		want                 bool
	}{
		{"1.0.0", "1.2.0", true},
		{"1.2.0", "1.10.0", true},
		{"v1.0.0", "1.0.1", true},
		{"1.0.0-rc.1", "1.0.0", true},
		{"2.0.0", "2.0.0", false},
		{"2.0.1", "2.0.0", false},
	}
	for _, tc := range cases {
		got, err := UpdateCandidate{InstalledVersion: tc.installed, AvailableVersion: tc.available}.Pending()
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s -> %s", tc.installed, tc.available)
	}

	_, err := UpdateCandidate{InstalledVersion: "1.0.0", AvailableVersion: ""}.Pending()
	assert.ErrorIs(t, err, ErrInvalidVersion)

	// Four-part versions are not semantic versions.
	_, err = UpdateCandidate{InstalledVersion: "1.2.3.4", AvailableVersion: "1.2.3.5"}.Pending()
	assert.ErrorIs(t, err, ErrInvalidVersion)
}
