package chunkuploader

import (
	"time"
)

// Stats tracks part upload timings of a single chunked upload.
type Stats struct {
	sum           time.Duration
	finishedParts int
	bytes         int64
}

// NewStats creates a new Stats instance.
func NewStats() *Stats {
	return &Stats{}
}

// Update records a successful part upload of size bytes that took d.
func (s *Stats) Update(d time.Duration, size int64) {
	s.sum += d
	s.finishedParts++
	s.bytes += size
}

// Average returns the average upload duration of completed parts.
func (s *Stats) Average() time.Duration {
	if s.finishedParts == 0 {
		return 0
	}
	return s.sum / time.Duration(s.finishedParts)
}

// FinishedCount returns the number of completed part uploads.
func (s *Stats) FinishedCount() int {
	return s.finishedParts
}

// TotalDuration returns the sum of all part upload durations.
func (s *Stats) TotalDuration() time.Duration {
	return s.sum
}

// BytesPerSecond returns the observed throughput, 0 until a part has finished.
func (s *Stats) BytesPerSecond() float64 {
	if s.sum <= 0 {
		return 0
	}
	return float64(s.bytes) / s.sum.Seconds()
}
