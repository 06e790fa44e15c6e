package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set("cover_history:emby:1", []byte(`[1]`)))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()

	got, ok, err := s.Get("cover_history:emby:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`[1]`), got)

	_, ok, err = s.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreGetReturnsCopy(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)

	require.NoError(t, s.Set("k", []byte("abc")))
	got, _, _ := s.Get("k")
	got[0] = 'z'

	again, _, _ := s.Get("k")
	assert.Equal(t, "abc", string(again))
}

func TestStoreKeysAndDeletePrefix(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	for _, k := range []string{"h:a:1", "h:a:2", "h:b:1", "other"} {
		require.NoError(t, s.Set(k, []byte("x")))
	}

	keys, err := s.Keys("h:")
	require.NoError(t, err)
	assert.Equal(t, []string{"h:a:1", "h:a:2", "h:b:1"}, keys)

	require.NoError(t, s.DeletePrefix("h:a:"))
	keys, err = s.Keys("")
	require.NoError(t, err)
	assert.Equal(t, []string{"h:b:1", "other"}, keys)

	require.NoError(t, s.Delete("other"))
	_, ok, err := s.Get("other")
	require.NoError(t, err)
	assert.False(t, ok)
}
