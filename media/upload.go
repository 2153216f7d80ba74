package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/gracechurch/mediakit/media/chunkuploader"
	"github.com/gracechurch/mediakit/media/metadata"
	"github.com/gracechurch/mediakit/media/network"
)

// ErrRetriesExhausted is returned when no single-shot attempt was made or all of them failed
// without a more specific error.
var ErrRetriesExhausted = errors.New("upload failed after retries")

// ProgressFunc receives the upload percentage in [0, 100]. Values never decrease
// within one upload and 100 is reported only once the upload has succeeded.
type ProgressFunc func(percent float64)

// UploadResult ...
type UploadResult struct {
	// Path is the object key of the uploaded file inside its bucket.
	Path string
}

// UploadOption ...
type UploadOption func(*uploadOptions)

type uploadOptions struct {
	retryBudget int
}

// WithRetryBudget overrides Config.RetryBudget for one upload.
func WithRetryBudget(n int) UploadOption {
	return func(o *uploadOptions) {
		o.retryBudget = n
	}
}

// Upload stores file under folder/<uuid>.<ext> in bucket.
// Files up to the chunk size are written in one request, retried with linear backoff,
// and recorded in the metadata repository. Larger files are written as sequential parts
// and merged by the backend, which also owns their metadata.
func (s *Service) Upload(ctx context.Context, bucket, folder string, file FileSource, onProgress ProgressFunc, opts ...UploadOption) (UploadResult, error) {
	options := uploadOptions{retryBudget: s.config.RetryBudget}
	for _, opt := range opts {
		opt(&options)
	}

	if bucket == "" {
		return UploadResult{}, fmt.Errorf("bucket should not be empty")
	}
	if err := file.validate(); err != nil {
		return UploadResult{}, err
	}
	if options.retryBudget < 0 {
		return UploadResult{}, fmt.Errorf("retry budget should not be negative, got: %d", options.retryBudget)
	}

	key := s.newKey(folder, file.Name)
	sink := &progressSink{onProgress: onProgress}

	if file.Size > s.config.ChunkSize {
		s.logger.Infof("Uploading %s (%s) in parts to %s/%s", file.Name, units.BytesSize(float64(file.Size)), bucket, key)
		return s.uploadChunked(ctx, bucket, key, file, sink)
	}

	s.logger.Infof("Uploading %s (%s) to %s/%s", file.Name, units.BytesSize(float64(file.Size)), bucket, key)
	return s.uploadSingle(ctx, bucket, key, file, sink, options.retryBudget)
}

func (s *Service) uploadSingle(ctx context.Context, bucket, key string, file FileSource, sink *progressSink, retryBudget int) (UploadResult, error) {
	putOpts := network.PutOptions{
		ContentType:  file.MimeType,
		CacheControl: s.config.CacheControl,
		Upsert:       false,
		OnProgress: func(loaded, total int64) {
			if total > 0 {
				sink.report(float64(loaded) / float64(total) * 100)
			}
		},
	}

	for attempt := 0; attempt < retryBudget; {
		err := s.blobs.PutObject(ctx, bucket, key, file.Data, file.Size, putOpts)
		if err == nil {
			if err := s.insertRecord(ctx, bucket, key, file); err != nil {
				return UploadResult{}, err
			}
			sink.complete()
			s.logger.Donef("Uploaded %s to %s/%s", file.Name, bucket, key)
			return UploadResult{Path: key}, nil
		}

		attempt++
		if attempt >= retryBudget || !isRetryable(ctx, err) {
			return UploadResult{}, fmt.Errorf("upload %s/%s: %w", bucket, key, err)
		}

		wait := time.Duration(attempt) * s.config.RetryBackoff
		s.logger.Warnf("Attempt %d/%d failed, retrying in %s: %s", attempt, retryBudget, wait, err)
		if err := s.sleep(ctx, wait); err != nil {
			return UploadResult{}, fmt.Errorf("upload %s/%s: %w", bucket, key, err)
		}
	}

	return UploadResult{}, ErrRetriesExhausted
}

// insertRecord is not retried: the object exists by now, and a failed insert leaves it without a record.
func (s *Service) insertRecord(ctx context.Context, bucket, key string, file FileSource) error {
	record := metadata.Record{
		Bucket:   bucket,
		Path:     key,
		Size:     file.Size,
		MimeType: file.MimeType,
		Metadata: metadata.FileMetadata{
			OriginalName: file.Name,
			UploadedAt:   s.now(),
		},
		OwnerID: s.config.OwnerID,
		Public:  true,
	}
	if err := s.records.Insert(ctx, record); err != nil {
		s.logger.Warnf("Object %s/%s was uploaded but its metadata record could not be saved", bucket, key)
		return fmt.Errorf("save metadata of %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *Service) uploadChunked(ctx context.Context, bucket, key string, file FileSource, sink *progressSink) (UploadResult, error) {
	provider, err := chunkuploader.NewSectionChunkProvider(file.Data, file.Size, s.chunks.ChunkSize())
	if err != nil {
		return UploadResult{}, fmt.Errorf("split %s: %w", file.Name, err)
	}

	put := func(ctx context.Context, partKey string, body *io.SectionReader, onProgress func(loaded, total int64)) error {
		return s.blobs.PutObject(ctx, bucket, partKey, body, body.Size(), network.PutOptions{OnProgress: onProgress})
	}

	result, err := s.chunks.Upload(ctx, provider, key, put, sink.report)
	if err != nil {
		return UploadResult{}, err
	}

	mergeRequest := network.MergeRequest{
		Bucket:   bucket,
		FilePath: key,
		Chunks:   len(result.Parts),
	}
	if err := s.merger.MergeChunks(ctx, mergeRequest); err != nil {
		s.logger.Warnf("Merging %d parts of %s/%s failed, the parts are left in the bucket", len(result.Parts), bucket, key)
		return UploadResult{}, fmt.Errorf("merge parts of %s/%s: %w", bucket, key, err)
	}

	sink.complete()
	s.logger.Donef("Uploaded %s to %s/%s in %d parts", file.Name, bucket, key, len(result.Parts))
	return UploadResult{Path: key}, nil
}

func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, network.ErrObjectExists) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// progressSink forwards percentages to the caller, dropping values that would move backwards
// and holding 100 back until complete is called.
type progressSink struct {
	mu         sync.Mutex
	onProgress ProgressFunc
	last       float64
}

func (p *progressSink) report(percent float64) {
	if p.onProgress == nil || percent >= 100 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if percent < p.last {
		return
	}
	p.last = percent
	p.onProgress(percent)
}

func (p *progressSink) complete() {
	if p.onProgress == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.last = 100
	p.onProgress(100)
}
