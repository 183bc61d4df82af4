// Package detect finds silent intervals in a decoded recording.
//
// Two detectors are provided. AmplitudeDetector slides a window of
// MinSilence over the signal one millisecond at a time and marks every window
// whose RMS does not exceed the threshold, then merges overlapping windows
// into intervals. FFmpegDetector pipes the recording through ffmpeg's
// silencedetect filter instead. Both report ascending, non-overlapping
// intervals at millisecond resolution.
package detect

import (
	"context"
	"fmt"
	"time"

	"github.com/alnah/go-shadowing/internal/audio"
	"github.com/alnah/go-shadowing/internal/segment"
)

// Params controls what counts as silence.
type Params struct {
	// ThresholdDB is the loudness, in dBFS, at or below which a window is silent.
	ThresholdDB float64
	// MinSilence is the shortest span reported as silence.
	MinSilence time.Duration
}

func (p Params) validate() error {
	if p.MinSilence < time.Millisecond {
		return fmt.Errorf("%w: min silence %v is below 1ms", ErrInvalidParams, p.MinSilence)
	}
	if p.ThresholdDB > 0 {
		return fmt.Errorf("%w: threshold %.1f dB is above full scale", ErrInvalidParams, p.ThresholdDB)
	}
	return nil
}

// Detector reports the silent intervals of a recording.
type Detector interface {
	Detect(ctx context.Context, rec *audio.Recording, p Params) ([]segment.Interval, error)
}

// Kind names a detector implementation in flags and configuration.
type Kind string

const (
	KindAmplitude Kind = "amplitude"
	KindFFmpeg    Kind = "ffmpeg"
)

// ParseKind converts a flag or config value to a Kind.
// The empty string selects KindAmplitude.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindAmplitude:
		return KindAmplitude, nil
	case KindFFmpeg:
		return KindFFmpeg, nil
	default:
		return "", fmt.Errorf("%w: unknown detector %q (valid: amplitude, ffmpeg)", ErrInvalidParams, s)
	}
}

// Count returns the number of intervals d reports, for calibration loops
// that only need the tally.
func Count(ctx context.Context, d Detector, rec *audio.Recording, p Params) (int, error) {
	intervals, err := d.Detect(ctx, rec, p)
	if err != nil {
		return 0, err
	}
	return len(intervals), nil
}
