// Package pipeline runs one input file through decode, threshold selection,
// detection, segmentation, reconstruction and encoding.
//
// Each stage receives its predecessor's output and returns its own; a
// Pipeline holds only its collaborators and can serve concurrent runs as long
// as they do too.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alnah/go-shadowing/internal/audio"
	"github.com/alnah/go-shadowing/internal/calibrate"
	"github.com/alnah/go-shadowing/internal/detect"
	"github.com/alnah/go-shadowing/internal/policy"
	"github.com/alnah/go-shadowing/internal/segment"
	"github.com/alnah/go-shadowing/internal/stretch"
)

// ErrNoSpeech indicates the input is silent from start to end.
var ErrNoSpeech = errors.New("no speech detected")

// Codec reads and writes recordings.
type Codec interface {
	Decode(ctx context.Context, path string) (*audio.Recording, error)
	Encode(ctx context.Context, rec *audio.Recording, path string) error
}

var _ Codec = (*audio.Codec)(nil)

// Analysis is everything known about a recording before rendering.
type Analysis struct {
	Source       time.Duration
	ThresholdDB  float64
	Calibration  *calibrate.Result // nil when the threshold was given
	Silences     []segment.Interval
	Segmentation segment.Segmentation
	Plan         []stretch.Piece
}

// Length returns the predicted output duration.
func (a Analysis) Length() time.Duration {
	return stretch.Length(a.Plan)
}

// Report describes a completed run.
type Report struct {
	Input  string
	Output string
	Analysis
}

// Pipeline processes recordings with a fixed codec and detector.
type Pipeline struct {
	codec    Codec
	detector detect.Detector
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for stage diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// New creates a Pipeline.
func New(codec Codec, detector detect.Detector, opts ...Option) *Pipeline {
	p := &Pipeline{
		codec:    codec,
		detector: detector,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run stretches input into output according to pol. On failure nothing is
// left at output.
func (p *Pipeline) Run(ctx context.Context, input, output string, pol policy.Policy) (*Report, error) {
	log := p.logger.With(slog.String("input", input))

	rec, err := p.codec.Decode(ctx, input)
	if err != nil {
		return nil, err
	}
	log.Debug("decoded",
		slog.Duration("duration", rec.Duration()),
		slog.Int("sample_rate", rec.SampleRate),
		slog.Int("channels", rec.Channels))

	a, err := p.analyze(ctx, rec, pol, log)
	if err != nil {
		return nil, err
	}

	out := stretch.Render(rec, a.Plan)
	log.Debug("rendered", slog.Duration("duration", out.Duration()))

	if err := p.codec.Encode(ctx, out, output); err != nil {
		return nil, err
	}
	log.Debug("encoded", slog.String("output", output))

	return &Report{Input: input, Output: output, Analysis: a}, nil
}

// Analyze computes threshold, silences, chunks and plan for a decoded
// recording without rendering it.
func (p *Pipeline) Analyze(ctx context.Context, rec *audio.Recording, pol policy.Policy) (Analysis, error) {
	return p.analyze(ctx, rec, pol, p.logger)
}

func (p *Pipeline) analyze(ctx context.Context, rec *audio.Recording, pol policy.Policy, log *slog.Logger) (Analysis, error) {
	a := Analysis{Source: rec.Length(), ThresholdDB: pol.ThresholdDB}

	if pol.AutoThreshold {
		res, err := calibrate.New(p.detector).Calibrate(ctx, rec, pol.TargetChunk, pol.MinSilence)
		if err != nil {
			return Analysis{}, err
		}
		a.ThresholdDB = res.ThresholdDB
		a.Calibration = &res
		log.Debug("threshold calibrated",
			slog.Float64("threshold_db", res.ThresholdDB),
			slog.Int("steps", res.Steps))
	}

	silences, err := p.detector.Detect(ctx, rec, pol.Params(a.ThresholdDB))
	if err != nil {
		return Analysis{}, fmt.Errorf("detect silences: %w", err)
	}
	a.Silences = silences
	log.Debug("silences detected",
		slog.Int("count", len(silences)),
		slog.Float64("threshold_db", a.ThresholdDB))

	a.Segmentation = segment.Segment(silences, a.Source, pol.MinSpeech)
	if len(a.Segmentation.Chunks) == 0 {
		return Analysis{}, fmt.Errorf("%w at %.1f dB", ErrNoSpeech, a.ThresholdDB)
	}
	log.Debug("segmented",
		slog.Int("chunks", len(a.Segmentation.Chunks)),
		slog.Duration("speech", a.Segmentation.Speech()))

	a.Plan = stretch.Plan(a.Segmentation, pol.Stretch())
	return a, nil
}
