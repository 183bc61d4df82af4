package segment_test

import (
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/alnah/go-shadowing/internal/segment"
)

const ms = time.Millisecond

// iv builds an interval from millisecond offsets.
func iv(start, end int) segment.Interval {
	return segment.Interval{Start: time.Duration(start) * ms, End: time.Duration(end) * ms}
}

// spans flattens chunks to [start, end] millisecond pairs for comparison.
func spans(chunks []segment.Chunk) [][2]int64 {
	out := make([][2]int64, len(chunks))
	for i, c := range chunks {
		out[i] = [2]int64{c.Start.Milliseconds(), c.End.Milliseconds()}
	}
	return out
}

// ---------------------------------------------------------------------------
// TestChunk_Duration / TestChunk_String
// ---------------------------------------------------------------------------

func TestChunk_Duration(t *testing.T) {
	t.Parallel()

	c := segment.Chunk{Index: 1, Start: 1912 * ms, End: 3397 * ms}
	if got := c.Duration(); got != 1485*ms {
		t.Errorf("Duration() = %v, want %v", got, 1485*ms)
	}
}

func TestChunk_String(t *testing.T) {
	t.Parallel()

	c := segment.Chunk{Index: 2, Start: 3945 * ms, End: 5426 * ms}
	want := "chunk 2: 00:03.945-00:05.426"
	if got := c.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

// ---------------------------------------------------------------------------
// TestTrim
// ---------------------------------------------------------------------------

func TestTrim(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		intervals []segment.Interval
		total     time.Duration
		wantKept  []segment.Interval
		wantStart time.Duration
		wantEnd   time.Duration
	}{
		{
			name:      "no intervals",
			intervals: nil,
			total:     5000 * ms,
			wantKept:  []segment.Interval{},
			wantStart: 0,
			wantEnd:   5000 * ms,
		},
		{
			name:      "leading silence at zero is dropped",
			intervals: []segment.Interval{iv(0, 500), iv(2000, 2500)},
			total:     5000 * ms,
			wantKept:  []segment.Interval{iv(2000, 2500)},
			wantStart: 500 * ms,
			wantEnd:   5000 * ms,
		},
		{
			name:      "trailing silence at total is dropped",
			intervals: []segment.Interval{iv(1000, 1500), iv(4000, 5000)},
			total:     5000 * ms,
			wantKept:  []segment.Interval{iv(1000, 1500)},
			wantStart: 0,
			wantEnd:   4000 * ms,
		},
		{
			name:      "both ends trimmed",
			intervals: []segment.Interval{iv(0, 300), iv(1000, 1500), iv(4000, 5000)},
			total:     5000 * ms,
			wantKept:  []segment.Interval{iv(1000, 1500)},
			wantStart: 300 * ms,
			wantEnd:   4000 * ms,
		},
		{
			name:      "interior silences untouched",
			intervals: []segment.Interval{iv(100, 300), iv(1000, 1500)},
			total:     5000 * ms,
			wantKept:  []segment.Interval{iv(100, 300), iv(1000, 1500)},
			wantStart: 0,
			wantEnd:   5000 * ms,
		},
		{
			name:      "single silence covering everything",
			intervals: []segment.Interval{iv(0, 5000)},
			total:     5000 * ms,
			wantKept:  []segment.Interval{},
			wantStart: 5000 * ms,
			wantEnd:   5000 * ms,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			kept, start, end := segment.Trim(tt.intervals, tt.total)
			if !slices.Equal(kept, tt.wantKept) {
				t.Errorf("Trim() kept = %v, want %v", kept, tt.wantKept)
			}
			if start != tt.wantStart {
				t.Errorf("Trim() start = %v, want %v", start, tt.wantStart)
			}
			if end != tt.wantEnd {
				t.Errorf("Trim() end = %v, want %v", end, tt.wantEnd)
			}
		})
	}
}

func TestTrim_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	original := []segment.Interval{iv(0, 500), iv(2000, 2500), iv(4500, 5000)}
	snapshot := slices.Clone(original)

	kept, _, _ := segment.Trim(original, 5000*ms)
	if len(kept) > 0 {
		kept[0] = iv(1, 2)
	}

	if !slices.Equal(original, snapshot) {
		t.Errorf("Trim() mutated input: got %v, want %v", original, snapshot)
	}
}

// ---------------------------------------------------------------------------
// TestSegment - Chunk generation and merge rule
// ---------------------------------------------------------------------------

func TestSegment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		intervals []segment.Interval
		total     time.Duration
		minSpeech time.Duration
		want      [][2]int64
	}{
		{
			name:      "known scenario",
			intervals: []segment.Interval{iv(1407, 1912), iv(3397, 3945), iv(5426, 5876)},
			total:     7628 * ms,
			minSpeech: 100 * ms,
			want:      [][2]int64{{0, 1407}, {1912, 3397}, {3945, 5426}, {5876, 7628}},
		},
		{
			name:      "leading silence trimmed: first chunk starts after it",
			intervals: []segment.Interval{iv(0, 500), iv(2000, 2500)},
			total:     5000 * ms,
			minSpeech: 100 * ms,
			want:      [][2]int64{{500, 2000}, {2500, 5000}},
		},
		{
			name:      "trailing silence trimmed: last chunk ends before it",
			intervals: []segment.Interval{iv(1000, 1500), iv(4000, 5000)},
			total:     5000 * ms,
			minSpeech: 100 * ms,
			want:      [][2]int64{{0, 1000}, {1500, 4000}},
		},
		{
			name:      "short candidate merges into the following chunk",
			intervals: []segment.Interval{iv(1000, 1100), iv(1150, 1250)},
			total:     3000 * ms,
			minSpeech: 100 * ms,
			want:      [][2]int64{{0, 1000}, {1100, 3000}},
		},
		{
			name:      "chain of short candidates measured from earliest open start",
			intervals: []segment.Interval{iv(1000, 1100), iv(1150, 1200), iv(1230, 1300), iv(1400, 1500)},
			total:     3000 * ms,
			minSpeech: 200 * ms,
			want:      [][2]int64{{0, 1000}, {1100, 1400}, {1500, 3000}},
		},
		{
			name:      "candidate exactly at threshold closes",
			intervals: []segment.Interval{iv(100, 200)},
			total:     1000 * ms,
			minSpeech: 100 * ms,
			want:      [][2]int64{{0, 100}, {200, 1000}},
		},
		{
			name:      "adjacent silences never produce empty chunks",
			intervals: []segment.Interval{iv(0, 500), iv(500, 800), iv(2000, 2100)},
			total:     3000 * ms,
			minSpeech: 0,
			want:      [][2]int64{{500, 2000}, {2100, 3000}},
		},
		{
			name:      "no silences: whole recording is one chunk",
			intervals: nil,
			total:     5000 * ms,
			minSpeech: 100 * ms,
			want:      [][2]int64{{0, 5000}},
		},
		{
			name:      "only edge silences: trimmed span is one chunk",
			intervals: []segment.Interval{iv(0, 400), iv(4600, 5000)},
			total:     5000 * ms,
			minSpeech: 100 * ms,
			want:      [][2]int64{{400, 4600}},
		},
		{
			name:      "merge threshold above every candidate",
			intervals: []segment.Interval{iv(1000, 1200), iv(2000, 2200)},
			total:     3000 * ms,
			minSpeech: 10 * time.Second,
			want:      [][2]int64{{0, 3000}},
		},
		{
			name:      "all silence yields no chunks",
			intervals: []segment.Interval{iv(0, 5000)},
			total:     5000 * ms,
			minSpeech: 100 * ms,
			want:      [][2]int64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			seg := segment.Segment(tt.intervals, tt.total, tt.minSpeech)
			got := spans(seg.Chunks)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Segment() chunks = %v, want %v", got, tt.want)
			}
			for i, c := range seg.Chunks {
				if c.Index != i {
					t.Errorf("chunk[%d].Index = %d, want %d", i, c.Index, i)
				}
			}
		})
	}
}

func TestSegment_KnownScenarioLengths(t *testing.T) {
	t.Parallel()

	seg := segment.Segment(
		[]segment.Interval{iv(1407, 1912), iv(3397, 3945), iv(5426, 5876)},
		7628*ms, 100*ms)

	want := []time.Duration{1407 * ms, 1485 * ms, 1481 * ms, 1752 * ms}
	var got []time.Duration
	for _, c := range seg.Chunks {
		got = append(got, c.Duration())
	}
	if !slices.Equal(got, want) {
		t.Errorf("chunk lengths = %v, want %v", got, want)
	}
	if seg.Speech() != 6125*ms {
		t.Errorf("Speech() = %v, want %v", seg.Speech(), 6125*ms)
	}

	wantGaps := []segment.Interval{iv(1407, 1912), iv(3397, 3945), iv(5426, 5876)}
	if gaps := seg.Gaps(); !slices.Equal(gaps, wantGaps) {
		t.Errorf("Gaps() = %v, want %v", gaps, wantGaps)
	}
}

func TestSegmentation_Gaps_SingleChunk(t *testing.T) {
	t.Parallel()

	seg := segment.Segment(nil, time.Second, 0)
	if gaps := seg.Gaps(); gaps != nil {
		t.Errorf("Gaps() = %v, want nil", gaps)
	}
}

// ---------------------------------------------------------------------------
// TestSegment_Coverage - chunks plus gaps tile the trimmed span
// ---------------------------------------------------------------------------

func TestSegment_Coverage(t *testing.T) {
	t.Parallel()

	for seed := uint64(1); seed <= 200; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed*7919))
		total, intervals := randomIntervals(rng)
		minSpeech := time.Duration(rng.IntN(800)) * ms

		seg := segment.Segment(intervals, total, minSpeech)

		cursor := seg.Start
		gaps := seg.Gaps()
		for i, c := range seg.Chunks {
			if c.Duration() <= 0 {
				t.Fatalf("seed %d: chunk %v has non-positive length", seed, c)
			}
			if c.Start != cursor {
				t.Fatalf("seed %d: chunk %v starts at %v, want %v", seed, c, c.Start, cursor)
			}
			cursor = c.End
			if i < len(gaps) {
				if gaps[i].Duration() <= 0 {
					t.Fatalf("seed %d: gap %v has non-positive length", seed, gaps[i])
				}
				cursor = gaps[i].End
			}
		}
		if len(seg.Chunks) > 0 && cursor != seg.End {
			t.Fatalf("seed %d: coverage ends at %v, want %v", seed, cursor, seg.End)
		}
		if seg.Start > seg.End {
			t.Fatalf("seed %d: trimmed span inverted: %v > %v", seed, seg.Start, seg.End)
		}
	}
}

// randomIntervals generates a recording length and a valid detector output:
// ascending, non-overlapping, possibly touching both ends.
func randomIntervals(rng *rand.Rand) (time.Duration, []segment.Interval) {
	total := 1000 + rng.IntN(20000)
	var out []segment.Interval
	pos := 0
	if rng.IntN(3) == 0 {
		pos = -1 // start a silence exactly at zero
	}
	for {
		start := pos + 1 + rng.IntN(1500)
		if pos < 0 {
			start = 0
		}
		end := start + 1 + rng.IntN(700)
		if end >= total {
			if rng.IntN(2) == 0 && start < total {
				out = append(out, iv(start, total))
			}
			break
		}
		out = append(out, iv(start, end))
		pos = end
	}
	return time.Duration(total) * ms, out
}
