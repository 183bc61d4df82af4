package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/alnah/go-shadowing/internal/detect"
	"github.com/alnah/go-shadowing/internal/policy"
	"github.com/alnah/go-shadowing/internal/stretch"
)

// policyFlags holds the raw values of the flags shared by every command that
// runs detection. Durations are whole milliseconds, as in the config file.
type policyFlags struct {
	minSilence int
	percentage float64
	threshold  float64
	minSpeech  int
	maxSpeech  int
	auto       bool
	target     time.Duration
	reference  string
	keepGaps   bool
	detector   string
}

// addPolicyFlags registers the policy flags on cmd. Defaults shown in help
// are the built-in ones; the config file can change them.
func addPolicyFlags(cmd *cobra.Command, f *policyFlags) {
	d := policy.Default()
	addDetectionFlags(cmd, f)
	fs := cmd.Flags()
	fs.Float64VarP(&f.percentage, "percentage", "p", d.Percentage, "Silence inserted after each chunk, as a percentage of its reference")
	fs.Float64VarP(&f.threshold, "threshold", "t", d.ThresholdDB, "Silence threshold in dBFS")
	fs.IntVar(&f.minSpeech, "min-speech", int(d.MinSpeech.Milliseconds()), "Shortest chunk; shorter speech merges into the next one, in ms")
	fs.IntVar(&f.maxSpeech, "max-speech", 0, "No silence after chunks at least this long, in ms (0 = off)")
	fs.BoolVar(&f.auto, "auto", false, "Pick the threshold automatically")
	fs.DurationVar(&f.target, "target", d.TargetChunk, "Average chunk length aimed for by --auto")
	fs.StringVar(&f.reference, "reference", string(d.Reference), "Silence length reference: chunk, gap")
	fs.BoolVar(&f.keepGaps, "keep-gaps", false, "Keep the natural pause before the inserted silence")
	cmd.MarkFlagsMutuallyExclusive("auto", "threshold")
}

// addDetectionFlags registers the flags that shape silence detection itself.
func addDetectionFlags(cmd *cobra.Command, f *policyFlags) {
	d := policy.Default()
	fs := cmd.Flags()
	fs.IntVarP(&f.minSilence, "min-silence", "s", int(d.MinSilence.Milliseconds()), "Shortest pause treated as silence, in ms")
	fs.StringVar(&f.detector, "detector", string(d.Detector), "Silence detector: amplitude, ffmpeg")
}

// apply overlays the flags the user actually set onto base. Flags the
// command never registered count as unset.
func (f *policyFlags) apply(cmd *cobra.Command, base policy.Policy) policy.Policy {
	p := base
	changed := cmd.Flags().Changed
	if changed("min-silence") {
		p.MinSilence = ms(f.minSilence)
	}
	if changed("percentage") {
		p.Percentage = f.percentage
	}
	if changed("threshold") {
		p.ThresholdDB = f.threshold
	}
	if changed("min-speech") {
		p.MinSpeech = ms(f.minSpeech)
	}
	if changed("max-speech") {
		p.MaxSpeech = ms(f.maxSpeech)
	}
	if changed("auto") {
		p.AutoThreshold = f.auto
	}
	if changed("target") {
		p.TargetChunk = f.target
	}
	if changed("reference") {
		p.Reference = stretch.Reference(f.reference)
	}
	if changed("keep-gaps") {
		p.KeepGaps = f.keepGaps
	}
	if changed("detector") {
		p.Detector = detect.Kind(f.detector)
	}
	return p
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
