package chunkuploader

// DefaultChunkSize is the fixed part size: 5 MiB.
const DefaultChunkSize int64 = 5 * 1024 * 1024

// Config holds configuration for the chunk uploader.
type Config struct {
	// ChunkSize is the size of every part except possibly the last one.
	// Default: 5 MiB
	ChunkSize int64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize: DefaultChunkSize,
	}
}

// NumChunks returns ceil(totalSize / chunkSize). A non-positive chunk size yields 0.
func NumChunks(totalSize, chunkSize int64) int {
	if totalSize <= 0 || chunkSize <= 0 {
		return 0
	}
	return int((totalSize + chunkSize - 1) / chunkSize)
}

// LastChunkSize returns the size of the final part: totalSize mod chunkSize,
// or chunkSize when the total divides evenly.
func LastChunkSize(totalSize, chunkSize int64) int64 {
	if totalSize <= 0 || chunkSize <= 0 {
		return 0
	}
	if rem := totalSize % chunkSize; rem != 0 {
		return rem
	}
	return chunkSize
}
