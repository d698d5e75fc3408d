package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestCompareDetectsChanges(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.txt", "same")
	writeFile(t, root, "change.txt", "v1")
	writeFile(t, root, "remove.txt", "bye")

	m := NewManager(root)
	before, err := m.Take()
	require.NoError(t, err)

	writeFile(t, root, "change.txt", "v2")
	writeFile(t, root, "new.txt", "hi")
	require.NoError(t, os.Remove(filepath.Join(root, "remove.txt")))

	after, err := m.Take()
	require.NoError(t, err)

	diff := Compare(before, after)
	assert.Equal(t, []string{"new.txt"}, diff.Created)
	assert.Equal(t, []string{"change.txt"}, diff.Modified)
	assert.Equal(t, []string{"remove.txt"}, diff.Deleted)
	assert.False(t, diff.Empty())
}

func TestCompareNoChanges(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "x")

	m := NewManager(root)
	before, err := m.Take()
	require.NoError(t, err)
	after, err := m.Take()
	require.NoError(t, err)

	assert.True(t, Compare(before, after).Empty())
}

func TestIgnoredDirectoriesAreSkipped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, filepath.Join(".git", "HEAD"), "ref")
	writeFile(t, root, "tracked.txt", "x")

	m := NewManager(root)
	snap, err := m.Take()
	require.NoError(t, err)

	assert.Len(t, snap.Files, 1)
	_, ok := snap.Files["tracked.txt"]
	assert.True(t, ok)
}
