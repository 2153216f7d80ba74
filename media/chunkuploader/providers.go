package chunkuploader

import (
	"fmt"
	"io"
)

// SectionChunkProvider slices chunks out of a random-access source.
// Every chunk is an independent io.SectionReader, so the provider is safe for concurrent use.
type SectionChunkProvider struct {
	source        io.ReaderAt
	totalSize     int64
	chunkSize     int64
	lastChunkSize int64
	numChunks     int
}

// NewSectionChunkProvider creates a ChunkProvider over the first totalSize bytes of source.
func NewSectionChunkProvider(source io.ReaderAt, totalSize, chunkSize int64) (*SectionChunkProvider, error) {
	if source == nil {
		return nil, fmt.Errorf("source must not be nil")
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if totalSize <= 0 {
		return nil, fmt.Errorf("total size must be positive, got %d", totalSize)
	}

	return &SectionChunkProvider{
		source:        source,
		totalSize:     totalSize,
		chunkSize:     chunkSize,
		lastChunkSize: LastChunkSize(totalSize, chunkSize),
		numChunks:     NumChunks(totalSize, chunkSize),
	}, nil
}

// NumChunks returns the total number of chunks.
func (p *SectionChunkProvider) NumChunks() int {
	return p.numChunks
}

// ChunkSize returns the size of the chunk at the given index.
func (p *SectionChunkProvider) ChunkSize(index int) int64 {
	if index < 0 || index >= p.numChunks {
		return 0
	}
	if index == p.numChunks-1 {
		return p.lastChunkSize
	}
	return p.chunkSize
}

// GetChunk returns the byte range [index*chunkSize, min((index+1)*chunkSize, totalSize)).
func (p *SectionChunkProvider) GetChunk(index int) (*io.SectionReader, error) {
	if index < 0 || index >= p.numChunks {
		return nil, fmt.Errorf("chunk index %d out of range [0, %d)", index, p.numChunks)
	}
	offset := int64(index) * p.chunkSize
	return io.NewSectionReader(p.source, offset, p.ChunkSize(index)), nil
}
