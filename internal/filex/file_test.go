package filex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureParentDir_CreatesNested(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "a", "b", "session.db")

	require.NoError(t, EnsureParentDir(path))

	info, err := os.Stat(filepath.Join(base, "a", "b"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	require.NoError(t, EnsureParentDir(path), "existing dir is fine")
}

func TestEnsureParentDir_BareName(t *testing.T) {
	assert.NoError(t, EnsureParentDir("session.db"))
}

func TestEnsureParentDir_ParentIsFile(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	err := EnsureParentDir(filepath.Join(blocker, "sub", "session.db"))
	assert.ErrorContains(t, err, "mkdir")
}
