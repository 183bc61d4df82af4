package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alnah/go-shadowing/internal/audio"
	"github.com/alnah/go-shadowing/internal/config"
	"github.com/alnah/go-shadowing/internal/detect"
	"github.com/alnah/go-shadowing/internal/ffmpeg"
	"github.com/alnah/go-shadowing/internal/pipeline"
	"github.com/alnah/go-shadowing/internal/storage"
)

// Env holds injectable dependencies for CLI commands.
// This is the central injection point for testing CLI commands in isolation.
//
// All fields have sensible defaults via DefaultEnv(). Tests can override
// specific fields using the With* options or by creating a custom Env.
//
// Env must not be nil when passed to command functions. Use DefaultEnv()
// or NewEnv() to create a valid instance.
type Env struct {
	// I/O and environment
	Stderr io.Writer
	Stdout io.Writer
	Getenv func(string) string
	Now    func() time.Time

	// Factories for domain objects
	FFmpegResolver   FFmpegResolver
	ConfigLoader     ConfigLoader
	CodecFactory     CodecFactory
	DetectorFactory  DetectorFactory
	PublisherFactory PublisherFactory
}

// FFmpegResolver resolves the path to the FFmpeg binary.
type FFmpegResolver interface {
	Resolve(ctx context.Context) (string, error)
	CheckVersion(ctx context.Context, ffmpegPath string)
}

// ConfigLoader loads and provides access to configuration.
type ConfigLoader interface {
	Load(ctx context.Context) (config.Config, error)
}

// CodecFactory creates the audio codec. ffmpegPath is empty when every file
// of the run is WAV.
type CodecFactory interface {
	NewCodec(ffmpegPath string) pipeline.Codec
}

// DetectorFactory creates silence detectors.
type DetectorFactory interface {
	NewDetector(kind detect.Kind, ffmpegPath string) (detect.Detector, error)
}

// PublisherFactory creates the uploader for finished outputs.
type PublisherFactory interface {
	NewPublisher(ctx context.Context, cfg storage.S3Config, logger *slog.Logger) (storage.Publisher, error)
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stderr = w
	}
}

// WithStdout sets the stdout writer.
func WithStdout(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stdout = w
	}
}

// WithGetenv sets the environment variable getter.
func WithGetenv(fn func(string) string) EnvOption {
	return func(e *Env) {
		e.Getenv = fn
	}
}

// WithNow sets the time provider.
func WithNow(fn func() time.Time) EnvOption {
	return func(e *Env) {
		e.Now = fn
	}
}

// WithFFmpegResolver sets the FFmpeg resolver.
func WithFFmpegResolver(r FFmpegResolver) EnvOption {
	return func(e *Env) {
		e.FFmpegResolver = r
	}
}

// WithConfigLoader sets the config loader.
func WithConfigLoader(l ConfigLoader) EnvOption {
	return func(e *Env) {
		e.ConfigLoader = l
	}
}

// WithCodecFactory sets the codec factory.
func WithCodecFactory(f CodecFactory) EnvOption {
	return func(e *Env) {
		e.CodecFactory = f
	}
}

// WithDetectorFactory sets the detector factory.
func WithDetectorFactory(f DetectorFactory) EnvOption {
	return func(e *Env) {
		e.DetectorFactory = f
	}
}

// WithPublisherFactory sets the publisher factory.
func WithPublisherFactory(f PublisherFactory) EnvOption {
	return func(e *Env) {
		e.PublisherFactory = f
	}
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stderr:           os.Stderr,
		Stdout:           os.Stdout,
		Getenv:           os.Getenv,
		Now:              time.Now,
		FFmpegResolver:   &defaultFFmpegResolver{},
		ConfigLoader:     &defaultConfigLoader{},
		CodecFactory:     &defaultCodecFactory{},
		DetectorFactory:  &defaultDetectorFactory{},
		PublisherFactory: &defaultPublisherFactory{},
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to real packages
// ---------------------------------------------------------------------------

// defaultFFmpegResolver implements FFmpegResolver using the ffmpeg package.
type defaultFFmpegResolver struct{}

func (defaultFFmpegResolver) Resolve(ctx context.Context) (string, error) {
	return ffmpeg.NewResolver().Resolve(ctx)
}

func (defaultFFmpegResolver) CheckVersion(ctx context.Context, ffmpegPath string) {
	ffmpeg.NewVersionChecker().Check(ctx, ffmpegPath)
}

// defaultConfigLoader implements ConfigLoader using the config package.
type defaultConfigLoader struct{}

func (defaultConfigLoader) Load(ctx context.Context) (config.Config, error) {
	return config.Load(ctx)
}

// defaultCodecFactory implements CodecFactory using the audio package.
type defaultCodecFactory struct{}

func (defaultCodecFactory) NewCodec(ffmpegPath string) pipeline.Codec {
	return audio.NewCodec(ffmpegPath)
}

// defaultDetectorFactory implements DetectorFactory using the detect package.
type defaultDetectorFactory struct{}

func (defaultDetectorFactory) NewDetector(kind detect.Kind, ffmpegPath string) (detect.Detector, error) {
	switch kind {
	case detect.KindAmplitude, "":
		return detect.AmplitudeDetector{}, nil
	case detect.KindFFmpeg:
		return detect.NewFFmpegDetector(ffmpegPath), nil
	default:
		return nil, fmt.Errorf("%w: unknown detector %q", detect.ErrInvalidParams, kind)
	}
}

// defaultPublisherFactory implements PublisherFactory with S3.
type defaultPublisherFactory struct{}

func (defaultPublisherFactory) NewPublisher(ctx context.Context, cfg storage.S3Config, logger *slog.Logger) (storage.Publisher, error) {
	return storage.NewS3Publisher(ctx, cfg, storage.WithLogger(logger))
}

// Compile-time interface verification.
var (
	_ FFmpegResolver   = (*defaultFFmpegResolver)(nil)
	_ ConfigLoader     = (*defaultConfigLoader)(nil)
	_ CodecFactory     = (*defaultCodecFactory)(nil)
	_ DetectorFactory  = (*defaultDetectorFactory)(nil)
	_ PublisherFactory = (*defaultPublisherFactory)(nil)
)
