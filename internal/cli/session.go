package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/alnah/go-shadowing/internal/audio"
	"github.com/alnah/go-shadowing/internal/batch"
	"github.com/alnah/go-shadowing/internal/config"
	"github.com/alnah/go-shadowing/internal/detect"
	"github.com/alnah/go-shadowing/internal/pipeline"
	"github.com/alnah/go-shadowing/internal/policy"
	"github.com/alnah/go-shadowing/internal/storage"
)

// session is what a processing command needs once its flags are validated.
type session struct {
	cfg      config.Config
	policy   policy.Policy
	logger   *slog.Logger
	codec    pipeline.Codec
	detector detect.Detector
	pipeline *pipeline.Pipeline
}

// loadConfig loads configuration. A broken config file is reported and
// ignored, so built-in defaults apply.
func loadConfig(ctx context.Context, env *Env) config.Config {
	cfg, err := env.ConfigLoader.Load(ctx)
	if err != nil {
		fmt.Fprintf(env.Stderr, "Warning: failed to load config: %v\n", err)
		return config.Config{}
	}
	return cfg
}

// newSession merges flags over cfg, validates the resulting policy and
// builds the pipeline. FFmpeg is resolved only when one of paths is not WAV
// or the ffmpeg detector is selected.
func newSession(cmd *cobra.Command, env *Env, cfg config.Config, flags *policyFlags, paths ...string) (*session, error) {
	ctx := cmd.Context()

	pol := flags.apply(cmd, cfg.Policy(policy.Default()))
	if err := pol.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.NewLogger(env.Stderr)

	var (
		ffmpegPath string
		err        error
	)
	if pol.Detector == detect.KindFFmpeg || slices.ContainsFunc(paths, audio.NeedsFFmpeg) {
		ffmpegPath, err = env.FFmpegResolver.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		env.FFmpegResolver.CheckVersion(ctx, ffmpegPath)
		logger.Debug("ffmpeg resolved", slog.String("path", ffmpegPath))
	}

	codec := env.CodecFactory.NewCodec(ffmpegPath)
	detector, err := env.DetectorFactory.NewDetector(pol.Detector, ffmpegPath)
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:      cfg,
		policy:   pol,
		logger:   logger,
		codec:    codec,
		detector: detector,
		pipeline: pipeline.New(codec, detector, pipeline.WithLogger(logger)),
	}, nil
}

// publisher returns the configured uploader, or nil when publishing is off.
func (s *session) publisher(ctx context.Context, env *Env) (storage.Publisher, error) {
	s3cfg := s.cfg.S3()
	if !s3cfg.Enabled() {
		return nil, nil
	}
	return env.PublisherFactory.NewPublisher(ctx, s3cfg, s.logger)
}

// checkInput verifies that path exists and is a regular file.
func checkInput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("cannot access input file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}
	return nil
}

// checkOutput refuses to write over input, or over an existing file unless
// force is set.
func checkOutput(input, output string, force bool) error {
	if samePath(input, output) {
		return fmt.Errorf("%w: %s", ErrSameFile, output)
	}
	if force {
		return nil
	}
	if _, err := os.Stat(output); err == nil {
		return fmt.Errorf("%s: %w (use --force to overwrite)", output, ErrOutputExists)
	}
	return nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

// guarded wraps r so that every job first passes checkOutput.
func guarded(r batch.Runner, force bool) batch.Runner {
	return batch.RunnerFunc(func(ctx context.Context, input, output string, pol policy.Policy) (*pipeline.Report, error) {
		if err := checkOutput(input, output, force); err != nil {
			return nil, err
		}
		return r.Run(ctx, input, output, pol)
	})
}
