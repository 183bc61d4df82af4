package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alnah/go-shadowing/internal/calibrate"
	"github.com/alnah/go-shadowing/internal/policy"
)

// CalibrateCmd creates the calibrate command.
// The env parameter provides injectable dependencies for testing.
func CalibrateCmd(env *Env) *cobra.Command {
	var (
		around   float64
		relative float64
		flags    policyFlags
	)

	cmd := &cobra.Command{
		Use:   "calibrate <audio-file>",
		Short: "Find a silence threshold for a recording",
		Long: `Find a silence threshold for a recording and print it in dBFS.

By default the threshold rises from -60 dB in 1 dB steps until the
recording splits into chunks averaging --target. With --around, thresholds
within 8 dB of the given value are tried in 2 dB steps until 8 to 16
silences are found. --relative does the same around the recording's own
average loudness plus the given offset.

Recordings longer than two minutes are calibrated on their middle
20 seconds.`,
		Example: `  shadowing calibrate lesson.wav
  shadowing calibrate lesson.mp3 --target 3s
  shadowing calibrate lesson.wav --around -40
  shadowing calibrate lesson.wav --relative -16`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalibrate(cmd, env, args[0], around, relative, &flags)
		},
	}

	cmd.Flags().DurationVar(&flags.target, "target", policy.DefaultTarget, "Average chunk length to aim for")
	cmd.Flags().Float64Var(&around, "around", 0, "Search near this threshold in dBFS")
	cmd.Flags().Float64Var(&relative, "relative", 0, "Search near the recording's loudness plus this offset in dB")
	addDetectionFlags(cmd, &flags)
	cmd.MarkFlagsMutuallyExclusive("target", "around", "relative")

	return cmd
}

// runCalibrate prints the chosen threshold on stdout and the search details
// on stderr.
func runCalibrate(cmd *cobra.Command, env *Env, input string, around, relative float64, flags *policyFlags) error {
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

	c := calibrate.New(s.detector)
	var res calibrate.Result
	switch {
	case cmd.Flags().Changed("around"):
		res, err = c.Search(ctx, rec, around, s.policy.MinSilence)
	case cmd.Flags().Changed("relative"):
		center := calibrate.RelativeCenter(rec, relative)
		fmt.Fprintf(env.Stderr, "Searching around %.1f dBFS\n", center)
		res, err = c.Search(ctx, rec, center, s.policy.MinSilence)
	default:
		res, err = c.Calibrate(ctx, rec, s.policy.TargetChunk, s.policy.MinSilence)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(env.Stderr, "%s %d silences after %d step(s)\n", KeyStyle.Render("found:"), res.Silences, res.Steps)
	fmt.Fprintf(env.Stdout, "%.1f\n", res.ThresholdDB)
	return nil
}
