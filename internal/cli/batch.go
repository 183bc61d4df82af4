package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/alnah/go-shadowing/internal/batch"
	"github.com/alnah/go-shadowing/internal/config"
	"github.com/alnah/go-shadowing/internal/interrupt"
	"github.com/alnah/go-shadowing/internal/ui"
)

// BatchCmd creates the batch command.
// The env parameter provides injectable dependencies for testing.
func BatchCmd(env *Env) *cobra.Command {
	var (
		outDir   string
		parallel int
		force    bool
		tui      bool
		flags    policyFlags
	)

	cmd := &cobra.Command{
		Use:   "batch <audio-file>...",
		Short: "Insert pauses into many files in parallel",
		Long: `Process several recordings with the same settings.

Files are processed independently on a bounded worker pool: a file that
fails is reported and never stops the others. Each output is written as
<name>_ext.<ext> next to its input, or in --out-dir (default: the configured
output-dir).

When s3-bucket and s3-region are configured, every finished output is
uploaded and its URL printed.

Press Ctrl+C once to stop after cancelling the running files, twice to quit
immediately.`,
		Example: `  shadowing batch lessons/*.mp3
  shadowing batch *.wav --out-dir drills --parallel 4 -p 150
  shadowing batch week1/*.m4a --auto --tui`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, env, args, outDir, parallel, force, tui, &flags)
		},
	}

	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory for outputs (default: output-dir, else next to each input)")
	cmd.Flags().IntVarP(&parallel, "parallel", "j", batch.DefaultParallel(), fmt.Sprintf("Files processed at once (1-%d)", batch.MaxParallel))
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing output files")
	cmd.Flags().BoolVar(&tui, "tui", false, "Show an interactive progress view")
	addPolicyFlags(cmd, &flags)

	return cmd
}

// clampParallel constrains the worker count to [1, batch.MaxParallel].
func clampParallel(n int) int {
	return min(max(n, 1), batch.MaxParallel)
}

// runBatch processes every input and returns batch.ErrFilesFailed when any
// of them failed.
func runBatch(cmd *cobra.Command, env *Env, inputs []string, outDir string, parallel int, force, tui bool, flags *policyFlags) error {
	ctx := cmd.Context()

	// === VALIDATION (fail-fast) ===

	cfg := loadConfig(ctx, env)
	if outDir == "" {
		outDir = cfg.OutputDir
	}
	outDir = config.ExpandPath(outDir)
	if outDir != "" {
		if err := config.EnsureOutputDir(outDir); err != nil {
			return fmt.Errorf("invalid output directory: %w", err)
		}
	}

	jobs := batch.Jobs(inputs, outDir)
	paths := make([]string, 0, 2*len(jobs))
	for _, j := range jobs {
		paths = append(paths, j.Input, j.Output)
	}

	// === SETUP ===

	s, err := newSession(cmd, env, cfg, flags, paths...)
	if err != nil {
		return err
	}
	pub, err := s.publisher(ctx, env)
	if err != nil {
		return err
	}

	opts := batch.Options{
		Parallel:  clampParallel(parallel),
		Policy:    s.policy,
		Publisher: pub,
		Logger:    s.logger,
	}
	runner := guarded(s.pipeline, force)

	// === PROCESS ===

	if tui {
		summary, err := runBatchTUI(ctx, env, runner, jobs, opts)
		if err != nil {
			return err
		}
		return summary.Err()
	}

	fmt.Fprintf(env.Stderr, "Processing %d file(s), %d at a time...\n", len(jobs), opts.Parallel)
	opts.OnEvent = progressPrinter(env.Stderr, len(jobs))
	summary := batch.Run(ctx, runner, jobs, opts)

	printSummary(env.Stderr, summary)

	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	return summary.Err()
}

// runBatchTUI runs the batch behind the Bubbletea progress view. The view
// owns the terminal, so Ctrl+C arrives as a key press and cancels through
// the model instead of a signal.
func runBatchTUI(ctx context.Context, env *Env, runner batch.Runner, jobs []batch.Job, opts batch.Options) (batch.Summary, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	model := ui.NewModel(jobs,
		ui.WithCancel(func() { cancel(interrupt.ErrInterrupted) }),
		ui.WithNow(env.Now))
	p := tea.NewProgram(model, tea.WithOutput(env.Stderr))

	done := make(chan batch.Summary, 1)
	opts.OnEvent = ui.Forward(p.Send)
	go func() {
		s := batch.Run(ctx, runner, jobs, opts)
		p.Send(ui.AllDoneMsg{})
		done <- s
	}()

	if _, err := p.Run(); err != nil {
		cancel(err)
		<-done
		return batch.Summary{}, fmt.Errorf("progress view: %w", err)
	}

	// A second Ctrl+C quits the view early; the batch still has to wind down.
	cancelled := ctx.Err() != nil
	summary := <-done
	if cancelled {
		return summary, context.Cause(ctx)
	}
	return summary, nil
}
