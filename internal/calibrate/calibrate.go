// Package calibrate picks a silence threshold from the recording itself.
//
// Calibration runs the detector on a short probe of the recording with a
// rising threshold until enough silences are found to split the probe into
// chunks of roughly the requested length. Every search is bounded; a
// recording that never yields the wanted density reports ErrNonConvergence.
package calibrate

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/alnah/go-shadowing/internal/audio"
	"github.com/alnah/go-shadowing/internal/detect"
)

const (
	// Recordings longer than probeCutoff are calibrated on their middle
	// probeLength only.
	probeCutoff = 2 * time.Minute
	probeLength = 20 * time.Second

	// StartThresholdDB is where the rising search begins.
	StartThresholdDB = -60.0
	// MaxSteps bounds the rising search; the last threshold tried is 0 dBFS.
	MaxSteps = 60

	// searchRadius and searchStep define the band probed around a center.
	searchRadius = 8.0
	searchStep   = 2.0
	// Acceptable silence counts for a band search.
	searchMinCount = 8
	searchMaxCount = 16
)

// Result is the outcome of a calibration.
type Result struct {
	ThresholdDB float64
	Silences    int // silences found on the probe at ThresholdDB
	Steps       int // thresholds tried before ThresholdDB was accepted
}

// Calibrator searches for a threshold using a silence detector.
type Calibrator struct {
	detector detect.Detector
}

// New creates a Calibrator that runs d on the probe.
func New(d detect.Detector) *Calibrator {
	return &Calibrator{detector: d}
}

// Probe returns the portion of rec used for calibration: the middle 20
// seconds of recordings longer than two minutes, otherwise all of it.
func Probe(rec *audio.Recording) *audio.Recording {
	total := rec.Duration()
	if total <= probeCutoff {
		return rec
	}
	start := (total - probeLength) / 2
	return rec.Slice(start, start+probeLength)
}

// Calibrate raises the threshold from StartThresholdDB in 1 dB steps until
// the probe holds more than probe/target silences.
func (c *Calibrator) Calibrate(ctx context.Context, rec *audio.Recording, target, minSilence time.Duration) (Result, error) {
	if target <= 0 {
		return Result{}, fmt.Errorf("%w: target chunk length must be positive, got %v", ErrInvalidTarget, target)
	}

	probe := Probe(rec)
	want := float64(probe.Duration()) / float64(target)

	for step := 0; step <= MaxSteps; step++ {
		threshold := StartThresholdDB + float64(step)
		n, err := detect.Count(ctx, c.detector, probe, detect.Params{ThresholdDB: threshold, MinSilence: minSilence})
		if err != nil {
			return Result{}, err
		}
		if float64(n) > want {
			return Result{ThresholdDB: threshold, Silences: n, Steps: step}, nil
		}
	}

	return Result{}, fmt.Errorf("%w: no threshold up to 0 dBFS yields more than %.1f silences", ErrNonConvergence, want)
}

// Search probes [center-8, center+8] dB in 2 dB steps and returns the first
// threshold whose silence count is within [8, 16]. Thresholds above 0 dBFS
// are skipped.
func (c *Calibrator) Search(ctx context.Context, rec *audio.Recording, center float64, minSilence time.Duration) (Result, error) {
	probe := Probe(rec)

	steps := 0
	for threshold := center - searchRadius; threshold <= center+searchRadius; threshold += searchStep {
		if threshold > 0 {
			break
		}
		n, err := detect.Count(ctx, c.detector, probe, detect.Params{ThresholdDB: threshold, MinSilence: minSilence})
		if err != nil {
			return Result{}, err
		}
		if n >= searchMinCount && n <= searchMaxCount {
			return Result{ThresholdDB: threshold, Silences: n, Steps: steps}, nil
		}
		steps++
	}

	return Result{}, fmt.Errorf("%w: no threshold within %.0f±%.0f dB gives %d-%d silences",
		ErrNonConvergence, center, searchRadius, searchMinCount, searchMaxCount)
}

// RelativeCenter returns a search center offset from the recording's own
// loudness. A digitally silent recording has no loudness and falls back to
// StartThresholdDB.
func RelativeCenter(rec *audio.Recording, offset float64) float64 {
	level := rec.DBFS()
	if math.IsInf(level, -1) {
		return StartThresholdDB
	}
	return level + offset
}
