// Package segment turns detected silence intervals into speech chunks.
//
// Offsets are time.Duration values measured from the start of the source
// recording. Detectors produce millisecond-resolution intervals, ascending and
// non-overlapping; this package relies on that and does not re-validate it.
package segment

import (
	"fmt"
	"time"

	"github.com/alnah/go-shadowing/internal/format"
)

// Interval is a detected silent span [Start, End) of a recording.
type Interval struct {
	Start time.Duration
	End   time.Duration
}

// Duration returns the length of the interval.
func (i Interval) Duration() time.Duration {
	return i.End - i.Start
}

// String returns a human-readable representation for logging.
func (i Interval) String() string {
	return fmt.Sprintf("silence %s-%s", format.Timestamp(i.Start), format.Timestamp(i.End))
}

// Chunk is a span of speech between two retained silences, or between a
// recording boundary and a silence. It is the unit that receives inserted
// silence during reconstruction.
type Chunk struct {
	Index int           // Zero-based position in the segmentation.
	Start time.Duration // Start offset in the source recording.
	End   time.Duration // End offset in the source recording (exclusive).
}

// Duration returns the length of this chunk.
func (c Chunk) Duration() time.Duration {
	return c.End - c.Start
}

// String returns a human-readable representation for logging.
func (c Chunk) String() string {
	return fmt.Sprintf("chunk %d: %s-%s",
		c.Index,
		format.Timestamp(c.Start),
		format.Timestamp(c.End))
}

// Segmentation is the result of segmenting one recording.
// Chunks and the gaps between them cover exactly [Start, End).
type Segmentation struct {
	Start  time.Duration // Trimmed start: end of a leading silence, or 0.
	End    time.Duration // Trimmed end: start of a trailing silence, or the total length.
	Chunks []Chunk
}

// Gaps returns the retained silences between consecutive chunks.
// Absorbed silences live inside chunks and are not reported.
func (s Segmentation) Gaps() []Interval {
	if len(s.Chunks) < 2 {
		return nil
	}
	gaps := make([]Interval, 0, len(s.Chunks)-1)
	for i := 1; i < len(s.Chunks); i++ {
		gaps = append(gaps, Interval{Start: s.Chunks[i-1].End, End: s.Chunks[i].Start})
	}
	return gaps
}

// Speech returns the summed length of all chunks.
func (s Segmentation) Speech() time.Duration {
	var total time.Duration
	for _, c := range s.Chunks {
		total += c.Duration()
	}
	return total
}

// Trim removes a leading silence that starts at offset 0 and a trailing
// silence that ends at total. It returns the retained intervals together with
// the trimmed span [start, end).
//
// The returned slice never aliases intervals, so the detector's output is left
// untouched.
func Trim(intervals []Interval, total time.Duration) (kept []Interval, start, end time.Duration) {
	kept = make([]Interval, len(intervals))
	copy(kept, intervals)
	start, end = 0, total

	if len(kept) > 0 && kept[0].Start <= 0 {
		start = kept[0].End
		kept = kept[1:]
	}
	if n := len(kept); n > 0 && kept[n-1].End >= total {
		end = kept[n-1].Start
		kept = kept[:n-1]
	}
	if end < start {
		end = start
	}
	return kept, start, end
}

// Segment partitions the recording into speech chunks.
//
// Intervals are folded left to right with an open chunk start. An interval
// closes the open chunk only when the speech before it is at least minSpeech
// long; otherwise it is absorbed and the next interval is measured from the
// same open start, so a run of short fragments merges into one chunk. The
// final chunk runs to the trimmed end and may be shorter than minSpeech.
//
// A recording with no retained intervals yields a single chunk spanning the
// trimmed span; an all-silent recording yields no chunks.
func Segment(intervals []Interval, total, minSpeech time.Duration) Segmentation {
	kept, start, end := Trim(intervals, total)
	seg := Segmentation{Start: start, End: end}

	open := start
	for _, iv := range kept {
		candidate := iv.Start - open
		if candidate <= 0 || candidate < minSpeech {
			continue
		}
		seg.Chunks = append(seg.Chunks, Chunk{Index: len(seg.Chunks), Start: open, End: iv.Start})
		open = iv.End
	}
	if end > open {
		seg.Chunks = append(seg.Chunks, Chunk{Index: len(seg.Chunks), Start: open, End: end})
	}

	return seg
}
