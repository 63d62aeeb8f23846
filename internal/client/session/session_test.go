package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	exp := time.Date(2025, 3, 1, 9, 45, 0, 0, time.UTC)

	s, err := Load(path)
	require.NoError(t, err)
	_, ok := s.TokenFor("u1", exp.Add(-time.Minute))
	assert.False(t, ok, "empty session")

	s.Set("u1", "tok", exp)
	require.NoError(t, s.Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	tok, ok := loaded.TokenFor("u1", exp.Add(-time.Minute))
	assert.True(t, ok)
	assert.Equal(t, "tok", tok)

	require.NoError(t, loaded.Clear())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, loaded.Clear(), "clearing twice is fine")
}

func TestTokenFor(t *testing.T) {
	exp := time.Date(2025, 3, 1, 9, 45, 0, 0, time.UTC)
	s := New("unused")
	s.Set("u1", "tok", exp)

	_, ok := s.TokenFor("u2", exp.Add(-time.Minute))
	assert.False(t, ok, "other user")
	_, ok = s.TokenFor("u1", exp)
	assert.False(t, ok, "expired exactly at exp")
	_, ok = s.TokenFor("u1", exp.Add(-time.Second))
	assert.True(t, ok)
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}
