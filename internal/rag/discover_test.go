package rag

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverFiles(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"b.md", "a.txt", ".hidden.txt", "sub/c.txt", "drafts/d.txt", ".git/config"} {
		writeFile(t, root, name, []byte("x"))
	}

	files, err := DiscoverFiles(root, false, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a.txt"), filepath.Join(root, "b.md")}, files)

	files, err = DiscoverFiles(root, true, []string{"drafts/**"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "b.md"),
		filepath.Join(root, "sub", "c.txt"),
	}, files)

	files, err = DiscoverFiles(root, true, []string{"**/*.md"})
	require.NoError(t, err)
	assert.NotContains(t, files, filepath.Join(root, "b.md"))
}

func TestDiscoverFilesErrors(t *testing.T) {
	_, err := DiscoverFiles(t.TempDir(), false, []string{"[unclosed"})
	assert.ErrorContains(t, err, "invalid exclude pattern")

	_, err = DiscoverFiles(filepath.Join(t.TempDir(), "missing"), false, nil)
	assert.Error(t, err)
}
