package cli

import (
	"github.com/spf13/cobra"
)

// DetectCmd creates the detect command.
// The env parameter provides injectable dependencies for testing.
func DetectCmd(env *Env) *cobra.Command {
	var (
		asJSON bool
		flags  policyFlags
	)

	cmd := &cobra.Command{
		Use:   "detect <audio-file>",
		Short: "Show silences, chunks and the insertion plan without writing audio",
		Long: `Analyze a recording with the same settings as stretch and print what
would be done: the threshold used, every detected silence, the resulting
chunks, the silence inserted after each one and the predicted output length.

Use it to tune --threshold and --min-silence before processing a batch.`,
		Example: `  shadowing detect lesson.wav
  shadowing detect lesson.mp3 -t -45 -s 250
  shadowing detect lesson.wav --auto --json | jq .chunks`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, env, args[0], asJSON, &flags)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the analysis as JSON (offsets in ms)")
	addPolicyFlags(cmd, &flags)

	return cmd
}

// runDetect decodes input and prints its analysis to stdout.
func runDetect(cmd *cobra.Command, env *Env, input string, asJSON bool, flags *policyFlags) error {
	ctx := cmd.Context()

	if err := checkInput(input); err != nil {
		return err
	}

	s, err := newSession(cmd, env, loadConfig(ctx, env), flags, input)
	if err != nil {
		return err
	}

	rec, err := s.codec.Decode(ctx, input)
	if err != nil {
		return err
	}

	a, err := s.pipeline.Analyze(ctx, rec, s.policy)
	if err != nil {
		return err
	}

	if asJSON {
		return writeAnalysisJSON(env.Stdout, input, a)
	}
	writeAnalysisText(env.Stdout, input, a)
	return nil
}
