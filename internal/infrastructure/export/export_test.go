package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lens-recorder/internal/domain"
)

func artifact(data string) domain.Artifact {
	return domain.Artifact{
		Filename: "recording.mp4",
		Blob:     domain.Blob{Data: []byte(data), MimeType: "video/mp4"},
	}
}

func TestFileDownloaderWritesAndReplaces(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "downloads")
	d := NewFileDownloader(dir, zerolog.Nop())

	path, err := d.Download(context.Background(), artifact("first"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "recording.mp4"), path)

	_, err = d.Download(context.Background(), artifact("second"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no pending files left behind")
}

func TestFileDownloaderStripsDirectories(t *testing.T) {
	dir := t.TempDir()
	d := NewFileDownloader(dir, zerolog.Nop())

	a := artifact("x")
	a.Filename = "../../escape.mp4"
	path, err := d.Download(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.mp4"), path)
}

func TestFileDownloaderCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileDownloader(t.TempDir(), zerolog.Nop()).Download(ctx, artifact("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLinks(t *testing.T) {
	l := NewLinks()

	ref := l.Publish(artifact("data"))
	require.NotEmpty(t, ref)

	got, ok := l.Open(ref)
	require.True(t, ok)
	assert.Equal(t, ref, got.ID)
	assert.Equal(t, "data", string(got.Blob.Data))

	other := l.Publish(artifact("data"))
	assert.NotEqual(t, ref, other)
	assert.Equal(t, 2, l.Len())

	l.Revoke(ref)
	_, ok = l.Open(ref)
	assert.False(t, ok)
	l.Revoke(ref)
	assert.Equal(t, 1, l.Len())
}
