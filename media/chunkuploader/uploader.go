package chunkuploader

import (
	"context"
	"fmt"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
)

// Uploader writes the chunks of a provider as part objects, strictly in index order.
// It keeps no state between Upload calls, so one Uploader can serve concurrent uploads.
type Uploader struct {
	config Config
	logger log.Logger
}

// New creates a new Uploader with the given configuration.
func New(config Config, logger log.Logger) *Uploader {
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = log.NewLogger()
	}

	return &Uploader{
		config: config,
		logger: logger,
	}
}

// ChunkSize returns the configured part size.
func (u *Uploader) ChunkSize() int64 {
	return u.config.ChunkSize
}

// Upload writes every chunk under PartKey(baseKey, index) through put.
// The first failing part aborts the upload; parts written before it are left in place
// and later parts are never attempted.
func (u *Uploader) Upload(ctx context.Context, provider ChunkProvider, baseKey string, put PutFunc, onProgress ProgressFunc) (*UploadResult, error) {
	numChunks := provider.NumChunks()
	if numChunks == 0 {
		return nil, fmt.Errorf("no chunks to upload")
	}

	stats := NewStats()
	parts := make([]Part, 0, numChunks)

	for i := 0; i < numChunks; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("upload cancelled before part %d: %w", i, err)
		}

		key := PartKey(baseKey, i)
		size := provider.ChunkSize(i)
		body, err := provider.GetChunk(i)
		if err != nil {
			return nil, fmt.Errorf("get chunk %d: %w", i, err)
		}

		u.logger.Debugf("Uploading part %d/%d (%s) [finished=%d] [avg=%v]",
			i+1, numChunks, units.BytesSize(float64(size)),
			stats.FinishedCount(), stats.Average().Round(time.Millisecond))

		report := partProgress(i, numChunks, onProgress)
		start := time.Now()
		if err := put(ctx, key, body, report); err != nil {
			u.logger.Warnf("Part %d/%d failed, aborting upload: %v", i+1, numChunks, err)
			return nil, fmt.Errorf("upload part %d of %d: %w", i, numChunks, err)
		}
		took := time.Since(start)
		stats.Update(took, size)
		report(size, size)

		parts = append(parts, Part{Index: i, Key: key, Size: size})
	}

	u.logger.Debugf("Uploaded %d parts in %v (%s/s)", numChunks,
		stats.TotalDuration().Round(time.Millisecond), units.BytesSize(stats.BytesPerSecond()))

	return &UploadResult{Parts: parts, Stats: stats}, nil
}

// partProgress maps the progress of part index onto the whole upload:
// (completedParts + loaded/total) / numChunks * 100.
func partProgress(index, numChunks int, onProgress ProgressFunc) func(loaded, total int64) {
	return func(loaded, total int64) {
		if onProgress == nil || total <= 0 {
			return
		}
		fraction := float64(loaded) / float64(total)
		if fraction < 0 {
			fraction = 0
		} else if fraction > 1 {
			fraction = 1
		}
		onProgress((float64(index) + fraction) / float64(numChunks) * 100)
	}
}
