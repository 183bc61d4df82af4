package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alnah/go-shadowing/internal/batch"
	"github.com/alnah/go-shadowing/internal/config"
)

// StretchCmd creates the stretch command.
// The env parameter provides injectable dependencies for testing.
func StretchCmd(env *Env) *cobra.Command {
	var (
		output string
		force  bool
		flags  policyFlags
	)

	cmd := &cobra.Command{
		Use:   "stretch <audio-file>",
		Short: "Insert a pause after every spoken chunk",
		Long: `Insert a pause after every spoken chunk of a recording, so that a
learner can repeat each phrase in the silence that follows it.

The recording is split at silences longer than --min-silence that are quieter
than --threshold. After each chunk, a silence of --percentage percent of the
chunk's length (or of the pause that followed it, with --reference gap) is
inserted. Leading and trailing silence is dropped.

WAV files are processed natively; other formats need ffmpeg, which is
downloaded on first use if it is not installed.`,
		Example: `  shadowing stretch lesson.mp3
  shadowing stretch lesson.mp3 -p 150 -o drill.mp3
  shadowing stretch lesson.wav --auto --target 3s
  shadowing stretch lesson.wav -t -40 -s 300 --max-speech 8000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStretch(cmd, env, args[0], output, force, &flags)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (default: <input>_ext.<ext>)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing output file")
	addPolicyFlags(cmd, &flags)

	return cmd
}

// runStretch processes one file.
// Validation order: input exists -> output path -> output free -> policy -> ffmpeg
func runStretch(cmd *cobra.Command, env *Env, input, output string, force bool, flags *policyFlags) error {
	ctx := cmd.Context()

	// === VALIDATION (fail-fast) ===

	if err := checkInput(input); err != nil {
		return err
	}

	cfg := loadConfig(ctx, env)
	output = stretchOutputPath(input, output, config.ExpandPath(cfg.OutputDir))

	if err := checkOutput(input, output, force); err != nil {
		return err
	}

	// === SETUP ===

	s, err := newSession(cmd, env, cfg, flags, input, output)
	if err != nil {
		return err
	}
	pub, err := s.publisher(ctx, env)
	if err != nil {
		return err
	}

	// === PROCESS ===

	fmt.Fprintf(env.Stderr, "Processing %s...\n", input)

	job := batch.Job{Index: 0, Input: input, Output: output}
	summary := batch.Run(ctx, s.pipeline, []batch.Job{job}, batch.Options{
		Parallel:  1,
		Policy:    s.policy,
		Publisher: pub,
		Logger:    s.logger,
	})

	r := summary.Results[0]
	if r.Err != nil {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		return r.Err
	}

	printResult(env.Stderr, r)
	return nil
}

// stretchOutputPath resolves where a single-file run writes. Without -o and
// without an output-dir, the result goes next to the input.
func stretchOutputPath(input, output, outputDir string) string {
	if output == "" && outputDir == "" {
		return batch.OutputPath(input, "")
	}
	return config.ResolveOutputPath(output, outputDir, filepath.Base(batch.OutputPath(input, "")))
}
