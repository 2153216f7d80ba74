package media

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/docker/go-units"
	"golang.org/x/sync/errgroup"
)

// ValidationRules are checked for every file of a batch before anything is uploaded.
type ValidationRules struct {
	// AllowedTypes are mime type patterns, e.g. "image/png" or "image/*".
	AllowedTypes []string
	MaxSize      int64
}

// DefaultValidationRules accepts JPEG, PNG and WebP images up to 50 MiB.
func DefaultValidationRules() ValidationRules {
	return ValidationRules{
		AllowedTypes: []string{"image/jpeg", "image/png", "image/webp"},
		MaxSize:      50 * units.MiB,
	}
}

// ValidationError collects the problems of every rejected file of a batch.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "\n")
}

// Validate returns a *ValidationError describing every file that breaks the rules, or nil.
func (r ValidationRules) Validate(files []FileSource) error {
	var messages []string
	for _, file := range files {
		if msg := r.check(file); msg != "" {
			messages = append(messages, msg)
		}
	}
	if len(messages) == 0 {
		return nil
	}
	return &ValidationError{Messages: messages}
}

func (r ValidationRules) check(file FileSource) string {
	if !r.typeAllowed(file.MimeType) {
		return fmt.Sprintf("invalid file type for %s, allowed types: %s", file.Name, strings.Join(r.AllowedTypes, ", "))
	}
	if r.MaxSize > 0 && file.Size > r.MaxSize {
		return fmt.Sprintf("file %s is too large, maximum size: %s", file.Name, units.BytesSize(float64(r.MaxSize)))
	}
	return ""
}

func (r ValidationRules) typeAllowed(mimeType string) bool {
	if len(r.AllowedTypes) == 0 {
		return true
	}
	for _, pattern := range r.AllowedTypes {
		// A malformed pattern never matches.
		if match, err := doublestar.Match(pattern, mimeType); err == nil && match {
			return true
		}
	}
	return false
}

// BatchProgressFunc receives the progress of one file of a batch.
type BatchProgressFunc func(fileName string, percent float64)

// UploadBatch validates all files, then uploads them concurrently into bucket/folder.
// It returns the public URLs in the order of files. The first failed upload fails the batch
// and cancels the uploads still running.
func (s *Service) UploadBatch(ctx context.Context, bucket, folder string, files []FileSource, onProgress BatchProgressFunc) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if err := s.config.Validation.Validate(files); err != nil {
		return nil, err
	}

	urls := make([]string, len(files))
	var progressMu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	if s.config.BatchConcurrency > 0 {
		g.SetLimit(s.config.BatchConcurrency)
	}
	for i, file := range files {
		i, file := i, file

		var fileProgress ProgressFunc
		if onProgress != nil {
			fileProgress = func(percent float64) {
				progressMu.Lock()
				defer progressMu.Unlock()
				onProgress(file.Name, percent)
			}
		}

		g.Go(func() error {
			result, err := s.Upload(ctx, bucket, folder, file, fileProgress)
			if err != nil {
				return fmt.Errorf("upload %s: %w", file.Name, err)
			}
			urls[i] = s.PublicURL(bucket, result.Path, nil)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Donef("Uploaded %d files to %s/%s", len(files), bucket, folder)
	return urls, nil
}
