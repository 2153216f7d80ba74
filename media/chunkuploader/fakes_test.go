package chunkuploader

import (
	"bytes"
	"fmt"
	"io"
)

// byteSliceChunkProvider serves chunks from pre-split byte slices.
type byteSliceChunkProvider struct {
	chunks [][]byte
}

func newByteSliceChunkProvider(chunks [][]byte) *byteSliceChunkProvider {
	return &byteSliceChunkProvider{chunks: chunks}
}

// NumChunks returns the total number of chunks.
func (p *byteSliceChunkProvider) NumChunks() int {
	return len(p.chunks)
}

// ChunkSize returns the size of the chunk at the given index.
func (p *byteSliceChunkProvider) ChunkSize(index int) int64 {
	if index < 0 || index >= len(p.chunks) {
		return 0
	}
	return int64(len(p.chunks[index]))
}

// GetChunk returns a reader for the chunk at the given index.
func (p *byteSliceChunkProvider) GetChunk(index int) (*io.SectionReader, error) {
	if index < 0 || index >= len(p.chunks) {
		return nil, fmt.Errorf("chunk index %d out of range [0, %d)", index, len(p.chunks))
	}
	chunk := p.chunks[index]
	return io.NewSectionReader(bytes.NewReader(chunk), 0, int64(len(chunk))), nil
}
