package media

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gracechurch/mediakit/media/metadata"
)

// Format is an image output format understood by the render endpoint.
type Format string

// Format values
const (
	FormatWebP Format = "webp"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// Transform asks the storage service to resize or re-encode an image when serving it.
// Zero fields are left out of the URL.
type Transform struct {
	Width   int
	Height  int
	Quality int
	Format  Format
}

// PublicURL returns the public URL of bucket/path with the non-zero transform
// parameters appended in the order width, height, quality, format.
func (s *Service) PublicURL(bucket, path string, transform *Transform) string {
	base := s.blobs.PublicURL(bucket, path)
	if transform == nil {
		return base
	}

	var params []string
	if transform.Width != 0 {
		params = append(params, "width="+strconv.Itoa(transform.Width))
	}
	if transform.Height != 0 {
		params = append(params, "height="+strconv.Itoa(transform.Height))
	}
	if transform.Quality != 0 {
		params = append(params, "quality="+strconv.Itoa(transform.Quality))
	}
	if transform.Format != "" {
		params = append(params, "format="+url.QueryEscape(string(transform.Format)))
	}
	if len(params) == 0 {
		return base
	}

	return base + "?" + strings.Join(params, "&")
}

// DeleteFile removes the object and, once that succeeded, its metadata record.
func (s *Service) DeleteFile(ctx context.Context, bucket, path string) error {
	if bucket == "" || path == "" {
		return fmt.Errorf("bucket and path should not be empty")
	}

	if err := s.blobs.RemoveObject(ctx, bucket, path); err != nil {
		return fmt.Errorf("remove %s/%s: %w", bucket, path, err)
	}
	if err := s.records.Delete(ctx, bucket, path); err != nil {
		s.logger.Warnf("Object %s/%s was removed but its metadata record is left behind", bucket, path)
		return fmt.Errorf("delete metadata of %s/%s: %w", bucket, path, err)
	}

	s.logger.Donef("Deleted %s/%s", bucket, path)
	return nil
}

// ListFiles returns one page of the bucket's metadata records.
// Zero options mean the newest 10 records.
func (s *Service) ListFiles(ctx context.Context, bucket string, opts metadata.ListOptions) ([]metadata.Record, error) {
	opts.Bucket = bucket
	records, err := s.records.List(ctx, opts.WithDefaults())
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", bucket, err)
	}
	return records, nil
}

// Download saves the public object bucket/path to dest.
func (s *Service) Download(ctx context.Context, bucket, path, dest string) error {
	if err := s.downloader.Download(ctx, s.PublicURL(bucket, path, nil), dest); err != nil {
		return fmt.Errorf("download %s/%s: %w", bucket, path, err)
	}
	return nil
}
