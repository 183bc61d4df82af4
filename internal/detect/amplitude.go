package detect

import (
	"context"
	"math"
	"time"

	"github.com/alnah/go-shadowing/internal/audio"
	"github.com/alnah/go-shadowing/internal/segment"
)

// ctxCheckInterval is how many windows are scanned between cancellation checks.
const ctxCheckInterval = 1 << 16

// AmplitudeDetector detects silence natively from the RMS of a sliding
// window. It is safe for concurrent use.
type AmplitudeDetector struct{}

var _ Detector = AmplitudeDetector{}

// Detect scans rec with a window of p.MinSilence advanced in 1ms steps.
// A window is silent when its RMS, truncated to whole sample units, does not
// exceed the threshold amplitude. Silent windows that overlap or touch are
// merged, so every reported interval is at least MinSilence long.
//
// A recording shorter than MinSilence has no silences.
func (AmplitudeDetector) Detect(ctx context.Context, rec *audio.Recording, p Params) ([]segment.Interval, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	total := int(rec.Length() / time.Millisecond)
	window := int(p.MinSilence / time.Millisecond)
	if total < window {
		return nil, nil
	}

	energy := energyPrefix(rec, total)
	threshold := audio.DBToAmplitude(p.ThresholdDB)
	silent := func(i int) bool {
		from, to := rec.FrameAt(ms(i)), rec.FrameAt(ms(i+window))
		n := (to - from) * rec.Channels
		if n == 0 {
			return true
		}
		rms := math.Floor(math.Sqrt(float64(energy[i+window]-energy[i]) / float64(n)))
		return rms <= threshold
	}

	var intervals []segment.Interval
	start, prev := -1, -1
	for i := 0; i <= total-window; i++ {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if !silent(i) {
			continue
		}
		switch {
		case prev < 0:
			start = i
		case i > prev+window:
			intervals = append(intervals, segment.Interval{Start: ms(start), End: ms(prev + window)})
			start = i
		}
		prev = i
	}
	if prev >= 0 {
		intervals = append(intervals, segment.Interval{Start: ms(start), End: ms(prev + window)})
	}

	return intervals, nil
}

// energyPrefix returns cumulative sums of squared samples at each
// millisecond boundary, so any window's energy is a single subtraction.
func energyPrefix(rec *audio.Recording, total int) []int64 {
	prefix := make([]int64, total+1)
	var sum int64
	for k := range total {
		from, to := rec.FrameAt(ms(k)), rec.FrameAt(ms(k+1))
		for _, s := range rec.Samples[from*rec.Channels : to*rec.Channels] {
			v := int64(s)
			sum += v * v
		}
		prefix[k+1] = sum
	}
	return prefix
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
