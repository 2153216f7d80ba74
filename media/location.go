package media

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const (
	fileScheme = "file://"
)

// OpenLocation returns the file at location as an upload source. location is a local path,
// a file:// URL or an http(s) URL. Remote files are downloaded into a temporary directory
// that is removed by the returned closer.
func (s *Service) OpenLocation(ctx context.Context, location, mimeType string) (FileSource, io.Closer, error) {
	if isRemote(location) {
		return s.openRemote(ctx, location, mimeType)
	}

	localPath, err := s.pathModifier.AbsPath(strings.TrimPrefix(location, fileScheme))
	if err != nil {
		return FileSource{}, nil, fmt.Errorf("resolve %s: %w", location, err)
	}
	return OpenFileSource(localPath, mimeType)
}

func (s *Service) openRemote(ctx context.Context, rawURL, mimeType string) (FileSource, io.Closer, error) {
	fileName, err := fileNameFromURL(rawURL)
	if err != nil {
		return FileSource{}, nil, fmt.Errorf("failed to extract filename from URL %s: %w", rawURL, err)
	}

	tmpDir, err := s.pathProvider.CreateTempDir("media-import")
	if err != nil {
		return FileSource{}, nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	localPath := filepath.Join(tmpDir, fileName)
	if err := s.downloader.Download(ctx, rawURL, localPath); err != nil {
		_ = os.RemoveAll(tmpDir)
		return FileSource{}, nil, fmt.Errorf("failed to download file from %s: %w", rawURL, err)
	}

	source, closer, err := OpenFileSource(localPath, mimeType)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return FileSource{}, nil, err
	}
	return source, tempFileCloser{file: closer, dir: tmpDir}, nil
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

func fileNameFromURL(rawURL string) (string, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	name := filepath.Base(parsedURL.Path)
	if name == "." || name == "/" {
		return "", fmt.Errorf("URL has no file name")
	}
	return name, nil
}

type tempFileCloser struct {
	file io.Closer
	dir  string
}

func (c tempFileCloser) Close() error {
	err := c.file.Close()
	if rmErr := os.RemoveAll(c.dir); err == nil {
		err = rmErr
	}
	return err
}
