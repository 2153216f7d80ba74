package network

import (
	"io"
	"sync"
)

// progressReaderAt reports the furthest byte offset read so far.
// Re-reads (request signing, SDK retries) never move the reported value backwards.
type progressReaderAt struct {
	source     io.ReaderAt
	total      int64
	onProgress func(loaded, total int64)

	mu     sync.Mutex
	loaded int64
}

func newProgressReaderAt(source io.ReaderAt, total int64, onProgress func(loaded, total int64)) *progressReaderAt {
	return &progressReaderAt{source: source, total: total, onProgress: onProgress}
}

func (r *progressReaderAt) ReadAt(p []byte, off int64) (int, error) {
	n, err := r.source.ReadAt(p, off)
	if n > 0 && r.onProgress != nil {
		r.mu.Lock()
		if end := off + int64(n); end > r.loaded {
			r.loaded = end
			r.onProgress(r.loaded, r.total)
		}
		r.mu.Unlock()
	}
	return n, err
}
