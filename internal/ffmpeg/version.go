package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// minMajorVersion is the oldest ffmpeg whose silencedetect and s16le piping
// behave as expected.
const minMajorVersion = 4

// VersionChecker warns when the resolved ffmpeg is older than supported.
type VersionChecker struct {
	executor *Executor
	stderr   io.Writer
}

// VersionCheckerOption configures a VersionChecker.
type VersionCheckerOption func(*VersionChecker)

// WithVersionExecutor sets the executor for running FFmpeg.
func WithVersionExecutor(e *Executor) VersionCheckerOption {
	return func(vc *VersionChecker) { vc.executor = e }
}

// WithVersionStderr sets the writer for warning messages.
func WithVersionStderr(w io.Writer) VersionCheckerOption {
	return func(vc *VersionChecker) { vc.stderr = w }
}

// NewVersionChecker creates a VersionChecker.
func NewVersionChecker(opts ...VersionCheckerOption) *VersionChecker {
	vc := &VersionChecker{
		executor: NewExecutor(),
		stderr:   os.Stderr,
	}
	for _, opt := range opts {
		opt(vc)
	}
	return vc
}

// Check prints a warning when ffmpeg is below the minimum major version.
// It never fails; the return value reports whether a version was parsed.
func (vc *VersionChecker) Check(ctx context.Context, ffmpegPath string) bool {
	output, err := vc.executor.RunOutput(ctx, ffmpegPath, []string{"-version"})
	if err != nil && output == "" {
		return false
	}

	major, ok := parseMajorVersion(output)
	if !ok {
		return false
	}
	if major < minMajorVersion {
		fmt.Fprintf(vc.stderr, "Warning: ffmpeg version %d detected, version %d+ recommended\n",
			major, minMajorVersion)
	}
	return true
}

// parseMajorVersion reads the major version from the first line of
// "ffmpeg -version", accepting both "6.1.1" and "n6.1.1" forms.
func parseMajorVersion(output string) (int, bool) {
	first, _, _ := strings.Cut(output, "\n")
	if first == "" {
		return 0, false
	}
	var major int
	if _, err := fmt.Sscanf(first, "ffmpeg version %d", &major); err == nil {
		return major, true
	}
	if _, err := fmt.Sscanf(first, "ffmpeg version n%d", &major); err == nil {
		return major, true
	}
	return 0, false
}
