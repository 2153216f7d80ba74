package network

import (
	"context"
	"errors"
	"io"
)

// ErrObjectExists is returned by PutObject when upsert is disabled and the key is taken.
var ErrObjectExists = errors.New("object already exists")

// PutOptions ...
type PutOptions struct {
	ContentType string
	// CacheControl is the max-age in seconds served with the object, e.g. "3600".
	CacheControl string
	// Upsert allows overwriting an existing object under the same key.
	Upsert bool
	// OnProgress receives (bytesSent, bytesTotal) while the object is written.
	OnProgress func(loaded, total int64)
}

// BlobStore ...
type BlobStore interface {
	PutObject(ctx context.Context, bucket, key string, body io.ReaderAt, size int64, opts PutOptions) error
	RemoveObject(ctx context.Context, bucket, key string) error
	PublicURL(bucket, key string) string
}

// MergeRequest asks the backend to rebuild FilePath from FilePath_part0 .. FilePath_part(Chunks-1).
type MergeRequest struct {
	Bucket   string `json:"bucket"`
	FilePath string `json:"filePath"`
	Chunks   int    `json:"chunks"`
}

// ChunkMerger ...
type ChunkMerger interface {
	MergeChunks(ctx context.Context, req MergeRequest) error
}
