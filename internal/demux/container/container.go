// Package container defines the contract between the demuxer and the
// format-specific indexers that understand box or EBML structure.
package container

import (
	"math"
	"sort"

	"github.com/zsiec/playcore/internal/errors"
	"github.com/zsiec/playcore/internal/media"
)

// MaxOffset is the largest byte offset a sample may carry.
const MaxOffset = math.MaxInt64

// Sample locates one encoded access unit inside the container bytes. Parsers
// whose library hands back frame bytes rather than positions set Data, and
// Offset then only orders the sample.
type Sample struct {
	Stream   int
	Offset   int64
	Size     int
	PTS      int64
	DTS      int64
	Keyframe bool
	Data     []byte
}

// Layout is the result of indexing a container: stream descriptions plus
// every sample in the order the container stores them.
type Layout struct {
	Streams []media.StreamInfo
	Samples []Sample
}

// Parser indexes a complete in-memory container.
type Parser interface {
	Parse(data []byte) (*Layout, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(data []byte) (*Layout, error)

// Parse calls f(data).
func (f ParserFunc) Parse(data []byte) (*Layout, error) { return f(data) }

// SortByOffset orders samples by file position, keeping the relative order
// of samples that share an offset.
func (l *Layout) SortByOffset() {
	sort.SliceStable(l.Samples, func(i, j int) bool {
		return l.Samples[i].Offset < l.Samples[j].Offset
	})
}

// Validate checks that every sample points inside data and at a known stream.
func (l *Layout) Validate(size int) error {
	for i, s := range l.Samples {
		if s.Stream < 0 || s.Stream >= len(l.Streams) {
			return errors.NewDemuxError("sample %d references unknown stream %d", i, s.Stream)
		}
		if s.Data != nil {
			continue
		}
		if s.Offset < 0 || s.Size < 0 || s.Size > size || s.Offset > int64(size-s.Size) {
			return errors.NewDemuxError("sample %d out of bounds: offset %d size %d (container %d bytes)",
				i, s.Offset, s.Size, size)
		}
	}
	return nil
}

// ScaleToMS converts a value in timescale units to milliseconds.
func ScaleToMS(v int64, timescale uint32) int64 {
	if timescale == 0 {
		return 0
	}
	ts := int64(timescale)
	if v >= 0 {
		return v/ts*1000 + v%ts*1000/ts
	}
	return -ScaleToMS(-v, timescale)
}
