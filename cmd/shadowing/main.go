package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/alnah/go-shadowing/internal/apierr"
	"github.com/alnah/go-shadowing/internal/audio"
	"github.com/alnah/go-shadowing/internal/batch"
	"github.com/alnah/go-shadowing/internal/calibrate"
	"github.com/alnah/go-shadowing/internal/cli"
	"github.com/alnah/go-shadowing/internal/config"
	"github.com/alnah/go-shadowing/internal/detect"
	"github.com/alnah/go-shadowing/internal/ffmpeg"
	"github.com/alnah/go-shadowing/internal/interrupt"
	"github.com/alnah/go-shadowing/internal/pipeline"
	"github.com/alnah/go-shadowing/internal/policy"
	"github.com/alnah/go-shadowing/internal/storage"
)

// Injected at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes.
const (
	ExitOK         = 0
	ExitGeneral    = 1
	ExitUsage      = 2
	ExitSetup      = 3
	ExitValidation = 4
	ExitProcessing = 5
	ExitInterrupt  = interrupt.ExitInterrupt
)

func main() {
	// Load .env file if present (ignore error if missing).
	_ = godotenv.Load()

	// First Ctrl+C cancels ctx, a second one exits.
	handler, ctx := interrupt.NewHandler(context.Background())

	env := cli.DefaultEnv()

	rootCmd := &cobra.Command{
		Use:   "shadowing",
		Short: "Insert silences into recordings for shadowing practice",
		Long: `Insert a pause after every spoken chunk of a recording, so a learner
can repeat what was just said.

Silences are detected by amplitude threshold; the pause after each chunk is
a percentage of the chunk's length (or of the natural gap with
--reference gap). WAV is handled natively, other formats go through FFmpeg.`,
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		// Silence Cobra's default error/usage printing; we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.AddCommand(cli.StretchCmd(env))
	rootCmd.AddCommand(cli.BatchCmd(env))
	rootCmd.AddCommand(cli.DetectCmd(env))
	rootCmd.AddCommand(cli.CalibrateCmd(env))
	rootCmd.AddCommand(cli.ConfigCmd(env))

	err := rootCmd.ExecuteContext(ctx)
	handler.Stop()
	if err != nil {
		cli.PrintError(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps errors to exit codes. Checks run from the most to the least
// specific class, so a wrapped chain lands on its earliest match.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	if errors.Is(err, interrupt.ErrInterrupted) || errors.Is(err, context.Canceled) {
		return ExitInterrupt
	}

	// Cobra doesn't expose typed errors, so we check for known message patterns.
	if isCobraUsageError(err) {
		return ExitUsage
	}

	switch {
	case isAny(err, setupErrors):
		return ExitSetup
	case isAny(err, validationErrors):
		return ExitValidation
	case isAny(err, processingErrors):
		return ExitProcessing
	}

	return ExitGeneral
}

// setupErrors mean the environment is not ready: no FFmpeg, no bucket, bad
// credentials.
var setupErrors = []error{
	ffmpeg.ErrNotFound,
	ffmpeg.ErrUnsupportedPlatform,
	ffmpeg.ErrChecksumMismatch,
	ffmpeg.ErrDownloadFailed,
	storage.ErrNotConfigured,
	apierr.ErrAuthFailed,
	apierr.ErrNoSuchBucket,
}

var validationErrors = []error{
	policy.ErrInvalidPolicy,
	cli.ErrFileNotFound,
	cli.ErrOutputExists,
	cli.ErrSameFile,
	config.ErrUnknownKey,
	config.ErrInvalidValue,
	config.ErrNotDirectory,
	config.ErrNotWritable,
	audio.ErrUnsupportedFormat,
	audio.ErrFileNotFound,
	detect.ErrInvalidParams,
	calibrate.ErrInvalidTarget,
}

var processingErrors = []error{
	audio.ErrDecodeFailed,
	audio.ErrEncodeFailed,
	audio.ErrEmptyRecording,
	pipeline.ErrNoSpeech,
	calibrate.ErrNonConvergence,
	detect.ErrDetectFailed,
	batch.ErrPublishFailed,
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// cobraUsageErrorPatterns contains error message substrings that indicate Cobra usage errors.
// These patterns are stable across Cobra versions (tested with v1.8+).
var cobraUsageErrorPatterns = []string{
	"required flag",             // Missing required flag
	"unknown flag",              // Flag doesn't exist
	"unknown shorthand",         // Short flag doesn't exist
	"unknown command",           // Subcommand doesn't exist
	"flag needs an argument",    // Flag provided without value
	"invalid argument",          // Invalid flag value type
	"if any flags in the group", // Mutually exclusive flag violation
	"accepts ",                  // Wrong number of arguments (e.g., "accepts 1 arg(s)")
	"requires at least",         // Too few arguments
	"requires at most",          // Too many arguments
}

// isCobraUsageError checks if an error is a Cobra usage/parsing error.
func isCobraUsageError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	for _, pattern := range cobraUsageErrorPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}
