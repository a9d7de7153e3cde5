package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSuffix(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s := NewSuffix()
		assert.Len(t, s, SuffixLength)
		assert.True(t, ValidSuffix(s), "invalid suffix %q", s)
		seen[s] = true
	}
	// 36^8 possibilities; collisions across 100 draws would indicate a broken source.
	assert.Greater(t, len(seen), 95)
}

func TestValidSuffix(t *testing.T) {
	assert.True(t, ValidSuffix("k3x9q2ab"))
	assert.False(t, ValidSuffix("K3X9Q2AB"))
	assert.False(t, ValidSuffix("k3x9q2a"))
	assert.False(t, ValidSuffix("k3x9q2ab0"))
	assert.False(t, ValidSuffix("k3x9-2ab"))
	assert.False(t, ValidSuffix(""))
}

func TestStore_SuffixIsStable(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "state"))

	first, err := store.Suffix("blog", "dev", false)
	require.NoError(t, err)

	second, err := store.Suffix("blog", "dev", false)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := store.Suffix("blog", "prod", false)
	require.NoError(t, err)
	assert.FileExists(t, store.Path("blog", "prod"))
	assert.True(t, ValidSuffix(other))
}

func TestStore_SuffixReplace(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save(Deployment{Project: "blog", Environment: "dev", Suffix: "aaaaaaaa"}))

	replaced, err := store.Suffix("blog", "dev", true)
	require.NoError(t, err)
	assert.NotEqual(t, "aaaaaaaa", replaced)

	peek, err := store.Peek("blog", "dev")
	require.NoError(t, err)
	assert.Equal(t, replaced, peek)
}

func TestStore_LoadNotFound(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Load("blog", "dev")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Peek("blog", "dev")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_LoadRejectsCorruptState(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	require.NoError(t, os.WriteFile(store.Path("blog", "dev"), []byte("{not json"), 0o644))
	_, err := store.Load("blog", "dev")
	assert.ErrorContains(t, err, "decoding state")

	require.NoError(t, os.WriteFile(store.Path("blog", "dev"), []byte(`{"suffix":"BAD"}`), 0o644))
	_, err = store.Suffix("blog", "dev", false)
	assert.ErrorContains(t, err, "invalid suffix")
}

func TestStore_SaveRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store.now = func() time.Time { return created }

	suffix, err := store.Suffix("blog", "dev", false)
	require.NoError(t, err)

	d, err := store.Load("blog", "dev")
	require.NoError(t, err)
	assert.Equal(t, Deployment{Project: "blog", Environment: "dev", Suffix: suffix, CreatedAt: created}, d)

	entries, err := os.ReadDir(filepath.Dir(store.Path("blog", "dev")))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}
