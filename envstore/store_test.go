package envstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvShortFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, envFileName), []byte("a\nb\nc\n"), 0644))

	s := New(dir)
	lines, err := s.Env()
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestEnvValueIndexing(t *testing.T) {
	dir := t.TempDir()
	content := ""
	for i := 0; i < minEnvLines; i++ {
		content += "line" + string(rune('0'+i)) + "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, envFileName), []byte(content), 0644))

	s := New(dir)
	v, err := s.EnvValue(EnvClientID)
	require.NoError(t, err)
	require.Equal(t, "line0", v)
}

func TestAuthorizeAppendsAndIsAuthorized(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	ok, err := s.IsAuthorized("authorize", 42)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Authorize(42))

	ok, err = s.IsAuthorized("authorize", 42)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestIsAdminMembership(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "admin.pandora"), []byte("7\n9\n"), 0644))

	s := New(dir)
	ok, err := s.IsAdmin(9)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.IsAdmin(1)
	require.NoError(t, err)
	require.False(t, ok)
}
