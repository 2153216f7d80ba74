package media

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readSource(t *testing.T, source FileSource) string {
	data, err := io.ReadAll(io.NewSectionReader(source.Data, 0, source.Size))
	require.NoError(t, err)
	return string(data)
}

func TestService_OpenLocation_Local(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bulletin.webp")
	require.NoError(t, os.WriteFile(path, []byte("webp"), 0600))
	s := newTestService(t, DefaultConfig())

	for _, location := range []string{path, "file://" + path} {
		t.Run(location, func(t *testing.T) {
			source, closer, err := s.OpenLocation(context.Background(), location, "")
			require.NoError(t, err)
			defer func() {
				require.NoError(t, closer.Close())
			}()

			assert.Equal(t, "bulletin.webp", source.Name)
			assert.Equal(t, "image/webp", source.MimeType)
			assert.Equal(t, "webp", readSource(t, source))
		})
	}
}

func TestService_OpenLocation_Remote(t *testing.T) {
	// Given
	downloader := &fakeDownloader{content: []byte("jpeg data")}
	s, err := NewService(newFakeBlobStore(), &fakeRepository{}, &fakeMerger{}, downloader, DefaultConfig(), log.NewLogger())
	require.NoError(t, err)

	// When
	source, closer, err := s.OpenLocation(context.Background(), "https://cdn.example.com/photos/choir.jpg?v=2", "image/jpeg")
	require.NoError(t, err)

	// Then
	assert.Equal(t, "https://cdn.example.com/photos/choir.jpg?v=2", downloader.url)
	assert.Equal(t, "choir.jpg", filepath.Base(downloader.dest))
	assert.Equal(t, "choir.jpg", source.Name)
	assert.Equal(t, "image/jpeg", source.MimeType)
	assert.Equal(t, "jpeg data", readSource(t, source))

	require.NoError(t, closer.Close())
	_, err = os.Stat(filepath.Dir(downloader.dest))
	assert.True(t, os.IsNotExist(err), "temp directory is removed on close")
}

func TestService_OpenLocation_Errors(t *testing.T) {
	downloader := &fakeDownloader{err: errors.New("404 Not Found")}
	s, err := NewService(newFakeBlobStore(), &fakeRepository{}, &fakeMerger{}, downloader, DefaultConfig(), log.NewLogger())
	require.NoError(t, err)

	_, _, err = s.OpenLocation(context.Background(), "https://cdn.example.com/photos/choir.jpg", "")
	require.ErrorIs(t, err, downloader.err)

	_, _, err = s.OpenLocation(context.Background(), "https://cdn.example.com/", "")
	require.Error(t, err)

	_, _, err = s.OpenLocation(context.Background(), filepath.Join(t.TempDir(), "missing.png"), "")
	require.Error(t, err)
}
