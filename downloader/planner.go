package downloader

import (
	"rangefetch/internal"
)

// Plan partitions a resource of the given length into n contiguous,
// non-overlapping segments. segmentSize is ceil(length/n); the last segment
// absorbs whatever remainder is left once the others take a full
// segmentSize each. If n exceeds length, n is clamped down to length. Every
// returned segment covers at least one byte: for very short resources the
// ceil-sized segments can reach the end before n of them are made, and
// planning stops there, returning fewer than n segments.
func Plan(length int64, n int, staging internal.StagingArea) []internal.Segment {
	if length <= 0 || n <= 0 {
		return nil
	}

	if int64(n) > length {
		n = int(length)
	}

	segmentSize := (length + int64(n) - 1) / int64(n) // ceil(length/n)
	segments := make([]internal.Segment, 0, n)

	for i := 0; i < n; i++ {
		start := int64(i) * segmentSize
		if start > length-1 {
			break
		}
		end := start + segmentSize - 1
		if end > length-1 {
			end = length - 1
		}
		segments = append(segments, internal.Segment{
			Index:     i,
			Start:     start,
			End:       end,
			LocalPath: staging.SegmentPath(i),
		})
	}

	return segments
}
