package ffmpeg

import (
	"bytes"
	"context"
	"io"
	"os/exec"
)

// runFn is the function type for running a command with optional pipes.
// It returns whatever the command wrote to stderr.
type runFn func(ctx context.Context, path string, args []string, stdin io.Reader, stdout io.Writer) (string, error)

// ---------------------------------------------------------------------------
// Executor - testable FFmpeg execution with dependency injection
// ---------------------------------------------------------------------------

// Executor runs FFmpeg commands with injectable dependencies.
// It is safe for concurrent use; each call starts its own process.
type Executor struct {
	run runFn
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRunFunc sets a custom run function (for testing).
func WithRunFunc(fn runFn) ExecutorOption {
	return func(e *Executor) { e.run = fn }
}

// NewExecutor creates an Executor with the given options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		run: defaultRun,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes ffmpegPath with args. stdin, when non-nil, is streamed to the
// process (raw PCM for encoding and detection); stdout, when non-nil,
// receives the process output (raw PCM when decoding). The returned string is
// the captured stderr, where FFmpeg writes diagnostics and filter reports.
//
// The process is killed when ctx is canceled.
func (e *Executor) Run(ctx context.Context, path string, args []string, stdin io.Reader, stdout io.Writer) (string, error) {
	return e.run(ctx, path, args, stdin, stdout)
}

// RunOutput executes FFmpeg without stdin and returns stdout followed by
// stderr. Informational commands such as -version print to stdout while
// probes report on stderr.
func (e *Executor) RunOutput(ctx context.Context, path string, args []string) (string, error) {
	var stdout bytes.Buffer
	stderr, err := e.run(ctx, path, args, nil, &stdout)
	return stdout.String() + stderr, err
}

// ---------------------------------------------------------------------------
// Default implementation - delegate to os/exec
// ---------------------------------------------------------------------------

// defaultRun is the production implementation.
// Returns stderr output even when the command fails, since FFmpeg often returns
// non-zero exit codes for valid operations (e.g., probing with no output file).
func defaultRun(ctx context.Context, path string, args []string, stdin io.Reader, stdout io.Writer) (string, error) {
	// #nosec G204 -- path is the resolved ffmpeg binary, args are built internally
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stderr.String(), err
}
