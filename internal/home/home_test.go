package home

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToUserHome(t *testing.T) {
	d, err := New("")
	require.NoError(t, err)
	assert.Contains(t, d.Path(), DefaultDirName)
}

func TestEnsureExists_CreatesTree(t *testing.T) {
	root := filepath.Join(t.TempDir(), "dshome")
	d, err := New(root)
	require.NoError(t, err)
	require.NoError(t, d.EnsureExists())

	for _, dir := range []string{d.UploadsPath(), d.OutputsPath(), d.StaticPath(), d.NotebooksPath()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
	assert.True(t, d.Exists())
}

func TestArtifactPathsAreJobScoped(t *testing.T) {
	d, err := New(t.TempDir())
	require.NoError(t, err)

	a := d.JobArtifacts("job-a")
	b := d.JobArtifacts("job-b")
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.NotEqual(t, a[i], b[i])
	}

	assert.Equal(t, filepath.Join(d.UploadsPath(), "j1_data.csv"), d.UploadPath("j1", "data.csv"))
	assert.Equal(t, filepath.Join(d.StaticPath(), "j1_histogram.png"), d.HistogramPath("j1"))
}
