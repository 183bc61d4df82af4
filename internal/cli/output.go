package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/alnah/go-shadowing/internal/batch"
	"github.com/alnah/go-shadowing/internal/format"
	"github.com/alnah/go-shadowing/internal/pipeline"
)

// printResult writes the one-line outcome of a file and, for successes, its
// statistics.
func printResult(w io.Writer, r batch.Result) {
	name := filepath.Base(r.Input)
	if r.Err != nil {
		fmt.Fprintf(w, "%s %s: %v\n", ErrorStyle.Render("✗"), name, r.Err)
		return
	}
	fmt.Fprintf(w, "%s %s → %s\n", OKStyle.Render("✓"), name, r.Output)
	if r.Report != nil {
		fmt.Fprintf(w, "  %s\n", KeyStyle.Render(reportStats(r.Report)))
	}
	if r.URL != "" {
		fmt.Fprintf(w, "  %s %s\n", KeyStyle.Render("published:"), r.URL)
	}
}

// reportStats summarizes a run: chunk count, threshold and lengths.
func reportStats(r *pipeline.Report) string {
	return fmt.Sprintf("%d chunks at %.1f dB | %s → %s (%s)",
		len(r.Segmentation.Chunks),
		r.ThresholdDB,
		format.Timestamp(r.Source),
		format.Timestamp(r.Length()),
		format.Stretch(r.Length(), r.Source))
}

// printSummary lists failures again after a batch, then the tally.
func printSummary(w io.Writer, s batch.Summary) {
	failures := s.Failures()
	if len(failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, ErrorStyle.Render("Failed:"))
		for _, r := range failures {
			fmt.Fprintf(w, "  %s: %v\n", r.Input, r.Err)
		}
	}
	fmt.Fprintf(w, "\n%d succeeded, %d failed (%.1fs)\n", s.Succeeded(), s.Failed(), s.Elapsed.Seconds())
}

// progressPrinter returns a batch event callback writing one line per
// finished file, numbered in completion order.
func progressPrinter(w io.Writer, total int) func(batch.Event) {
	var (
		mu   sync.Mutex
		done int
	)
	return func(e batch.Event) {
		if e.Kind != batch.EventFinished || e.Result == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done++
		fmt.Fprintf(w, "[%d/%d] ", done, total)
		printResult(w, *e.Result)
	}
}

// ---------------------------------------------------------------------------
// detect output
// ---------------------------------------------------------------------------

// analysisJSON is the machine-readable form of an analysis. Offsets and
// lengths are whole milliseconds.
type analysisJSON struct {
	Input       string      `json:"input"`
	SourceMs    int64       `json:"source_ms"`
	ThresholdDB float64     `json:"threshold_db"`
	Calibrated  bool        `json:"calibrated"`
	StartMs     int64       `json:"start_ms"`
	EndMs       int64       `json:"end_ms"`
	Silences    [][2]int64  `json:"silences"`
	Chunks      [][2]int64  `json:"chunks"`
	Plan        []pieceJSON `json:"plan"`
	OutputMs    int64       `json:"output_ms"`
}

type pieceJSON struct {
	Chunk     int   `json:"chunk"`
	SpeechMs  int64 `json:"speech_ms"`
	GapMs     int64 `json:"gap_ms"`
	SilenceMs int64 `json:"silence_ms"`
	Capped    bool  `json:"capped,omitempty"`
}

func toJSON(input string, a pipeline.Analysis) analysisJSON {
	out := analysisJSON{
		Input:       input,
		SourceMs:    a.Source.Milliseconds(),
		ThresholdDB: a.ThresholdDB,
		Calibrated:  a.Calibration != nil,
		StartMs:     a.Segmentation.Start.Milliseconds(),
		EndMs:       a.Segmentation.End.Milliseconds(),
		Silences:    make([][2]int64, 0, len(a.Silences)),
		Chunks:      make([][2]int64, 0, len(a.Segmentation.Chunks)),
		Plan:        make([]pieceJSON, 0, len(a.Plan)),
		OutputMs:    a.Length().Milliseconds(),
	}
	for _, s := range a.Silences {
		out.Silences = append(out.Silences, [2]int64{s.Start.Milliseconds(), s.End.Milliseconds()})
	}
	for _, c := range a.Segmentation.Chunks {
		out.Chunks = append(out.Chunks, [2]int64{c.Start.Milliseconds(), c.End.Milliseconds()})
	}
	for _, p := range a.Plan {
		out.Plan = append(out.Plan, pieceJSON{
			Chunk:     p.Chunk.Index,
			SpeechMs:  p.Chunk.Duration().Milliseconds(),
			GapMs:     p.Gap.Milliseconds(),
			SilenceMs: p.Silence.Milliseconds(),
			Capped:    p.Capped,
		})
	}
	return out
}

func writeAnalysisJSON(w io.Writer, input string, a pipeline.Analysis) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(toJSON(input, a))
}

func writeAnalysisText(w io.Writer, input string, a pipeline.Analysis) {
	fmt.Fprintln(w, TitleStyle.Render(filepath.Base(input)))
	threshold := fmt.Sprintf("%.1f dBFS", a.ThresholdDB)
	if a.Calibration != nil {
		threshold += " (calibrated)"
	}
	fmt.Fprintf(w, "%s %s\n", KeyStyle.Render("threshold:"), threshold)
	fmt.Fprintf(w, "%s %s\n", KeyStyle.Render("length:   "), format.Timestamp(a.Source))

	fmt.Fprintf(w, "\n%s\n", KeyStyle.Render(fmt.Sprintf("%d silences", len(a.Silences))))
	for _, s := range a.Silences {
		fmt.Fprintf(w, "  %s  %s\n", s, format.Millis(s.Duration()))
	}

	fmt.Fprintf(w, "\n%s\n", KeyStyle.Render(fmt.Sprintf("%d chunks", len(a.Segmentation.Chunks))))
	for _, p := range a.Plan {
		line := fmt.Sprintf("  %s  %s + %s silence", p.Chunk, format.Millis(p.Chunk.Duration()), format.Millis(p.Silence))
		if p.Gap > 0 {
			line += fmt.Sprintf(" (kept gap %s)", format.Millis(p.Gap))
		}
		if p.Capped {
			line += " (capped)"
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintf(w, "\n%s %s (%s)\n", KeyStyle.Render("output:"),
		format.Timestamp(a.Length()), format.Stretch(a.Length(), a.Source))
}
