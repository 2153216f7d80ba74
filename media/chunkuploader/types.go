// Package chunkuploader uploads a large file as a sequence of fixed-size part objects.
// Parts are written one after another under derived keys and progress is reported
// as a single percentage across all parts.
package chunkuploader

import (
	"context"
	"fmt"
	"io"
)

// ChunkProvider provides chunk data for upload.
// Implementations can read from files or memory buffers.
type ChunkProvider interface {
	// NumChunks returns the total number of chunks.
	NumChunks() int

	// ChunkSize returns the size of the chunk at the given index.
	ChunkSize(index int) int64

	// GetChunk returns a random-access reader over the chunk at the given index.
	// Every call returns a fresh reader positioned at the start of the chunk.
	GetChunk(index int) (*io.SectionReader, error)
}

// PutFunc writes one part object. onProgress receives the bytes sent and the part size
// while the part is being written.
type PutFunc func(ctx context.Context, key string, body *io.SectionReader, onProgress func(loaded, total int64)) error

// ProgressFunc receives the overall upload percentage in [0, 100].
type ProgressFunc func(percent float64)

// Part describes one uploaded part object.
type Part struct {
	Index int
	Key   string
	Size  int64
}

// UploadResult lists the parts written, in index order.
type UploadResult struct {
	Parts []Part
	Stats *Stats
}

// PartKey returns the object key of the part at index for the given base key.
func PartKey(baseKey string, index int) string {
	return fmt.Sprintf("%s_part%d", baseKey, index)
}
