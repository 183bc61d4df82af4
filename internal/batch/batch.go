// Package batch runs the pipeline over many files on a bounded worker pool.
//
// Files are independent: a failure is recorded in that file's Result and
// never aborts its siblings. Cancelling the context stops new files from
// starting; files already running are interrupted and reported as failed.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-shadowing/internal/pipeline"
	"github.com/alnah/go-shadowing/internal/policy"
	"github.com/alnah/go-shadowing/internal/storage"
)

// MaxParallel caps the default worker count.
const MaxParallel = 8

// DefaultParallel returns runtime.NumCPU() capped at MaxParallel.
func DefaultParallel() int {
	return min(runtime.NumCPU(), MaxParallel)
}

// Runner processes one file.
type Runner interface {
	Run(ctx context.Context, input, output string, pol policy.Policy) (*pipeline.Report, error)
}

var _ Runner = (*pipeline.Pipeline)(nil)

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, input, output string, pol policy.Policy) (*pipeline.Report, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, input, output string, pol policy.Policy) (*pipeline.Report, error) {
	return f(ctx, input, output, pol)
}

// Result is the outcome of one job.
type Result struct {
	Job
	Report  *pipeline.Report
	URL     string // set when the output was published
	Err     error
	Elapsed time.Duration
}

// OK reports whether the job succeeded.
func (r Result) OK() bool { return r.Err == nil }

// EventKind distinguishes progress events.
type EventKind int

const (
	// EventStarted is sent when a worker picks up a job.
	EventStarted EventKind = iota
	// EventFinished is sent when a job completes, successfully or not.
	EventFinished
)

// Event reports progress on one job. Result is nil for EventStarted.
type Event struct {
	Kind   EventKind
	Job    Job
	Result *Result
}

// Options configures a batch run.
type Options struct {
	Parallel  int // <1 means DefaultParallel
	Policy    policy.Policy
	Publisher storage.Publisher // optional

	// OnEvent receives progress events. It is called from worker goroutines
	// and must be safe for concurrent use.
	OnEvent func(Event)

	Logger *slog.Logger
}

// Summary collects the results of a batch, in job order.
type Summary struct {
	RunID   string
	Results []Result
	Elapsed time.Duration
}

// Succeeded returns the number of jobs that completed.
func (s Summary) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.OK() {
			n++
		}
	}
	return n
}

// Failed returns the number of jobs that did not complete.
func (s Summary) Failed() int {
	return len(s.Results) - s.Succeeded()
}

// Failures returns the failed results in job order.
func (s Summary) Failures() []Result {
	var out []Result
	for _, r := range s.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Err returns ErrFilesFailed when any job failed, nil otherwise.
func (s Summary) Err() error {
	if n := s.Failed(); n > 0 {
		return fmt.Errorf("%w: %d of %d files", ErrFilesFailed, n, len(s.Results))
	}
	return nil
}

// Run processes jobs with at most opts.Parallel files in flight and returns
// once every job has a result.
func Run(ctx context.Context, runner Runner, jobs []Job, opts Options) Summary {
	parallel := opts.Parallel
	if parallel < 1 {
		parallel = DefaultParallel()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	emit := opts.OnEvent
	if emit == nil {
		emit = func(Event) {}
	}

	summary := Summary{RunID: uuid.NewString(), Results: make([]Result, len(jobs))}
	logger = logger.With(slog.String("run_id", summary.RunID))
	logger.Debug("batch started", slog.Int("files", len(jobs)), slog.Int("parallel", parallel))

	start := time.Now()
	sem := make(chan struct{}, parallel)
	g, gctx := errgroup.WithContext(ctx)

	for i, job := range jobs {
		g.Go(func() error {
			skip := func() error {
				res := Result{Job: job, Err: gctx.Err()}
				summary.Results[i] = res
				emit(Event{Kind: EventFinished, Job: job, Result: &res})
				return nil
			}

			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return skip()
			}
			defer func() { <-sem }()
			// A slot freed by cancellation must not start a new file.
			if gctx.Err() != nil {
				return skip()
			}

			emit(Event{Kind: EventStarted, Job: job})
			res := runJob(gctx, runner, job, opts, logger)
			summary.Results[i] = res
			emit(Event{Kind: EventFinished, Job: job, Result: &res})
			return nil
		})
	}

	// Workers never return errors, so Wait only synchronizes.
	_ = g.Wait()
	summary.Elapsed = time.Since(start)

	logger.Debug("batch finished",
		slog.Int("succeeded", summary.Succeeded()),
		slog.Int("failed", summary.Failed()),
		slog.Duration("elapsed", summary.Elapsed))
	return summary
}

func runJob(ctx context.Context, runner Runner, job Job, opts Options, logger *slog.Logger) Result {
	log := logger.With(slog.String("input", job.Input))
	res := Result{Job: job}
	start := time.Now()

	_, statErr := os.Stat(job.Output)
	existed := statErr == nil

	report, err := runner.Run(ctx, job.Input, job.Output, opts.Policy)
	if err != nil {
		if ctx.Err() != nil && !existed {
			removePartial(job.Output, log)
		}
		log.Debug("file failed", slog.Any("error", err))
		res.Err = err
		res.Elapsed = time.Since(start)
		return res
	}
	res.Report = report

	if opts.Publisher != nil {
		url, err := opts.Publisher.Publish(ctx, job.Output)
		if err != nil {
			res.Err = fmt.Errorf("%w (output kept at %s): %w", ErrPublishFailed, job.Output, err)
			res.Elapsed = time.Since(start)
			return res
		}
		res.URL = url
		log.Debug("file published", slog.String("url", url))
	}

	res.Elapsed = time.Since(start)
	return res
}

// removePartial deletes an output left behind by an interrupted job.
func removePartial(path string, log *slog.Logger) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("remove partial output", slog.String("output", path), slog.Any("error", err))
	}
}
