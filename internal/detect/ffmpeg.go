package detect

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-shadowing/internal/audio"
	"github.com/alnah/go-shadowing/internal/ffmpeg"
	"github.com/alnah/go-shadowing/internal/segment"
)

// commandRunner runs ffmpeg with optional piped stdin/stdout and returns
// whatever it wrote to stderr.
type commandRunner interface {
	Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) (string, error)
}

var _ commandRunner = (*ffmpeg.Executor)(nil)

// FFmpegDetector runs ffmpeg's silencedetect filter over the in-memory
// recording. The recording is streamed on stdin, so no temporary file is
// written and the result lines up with what the pipeline later slices.
type FFmpegDetector struct {
	ffmpegPath string
	cmd        commandRunner
}

var _ Detector = (*FFmpegDetector)(nil)

// FFmpegOption configures an FFmpegDetector.
type FFmpegOption func(*FFmpegDetector)

// WithCommandRunner sets the ffmpeg runner.
func WithCommandRunner(r commandRunner) FFmpegOption {
	return func(d *FFmpegDetector) {
		d.cmd = r
	}
}

// NewFFmpegDetector creates a detector using the ffmpeg binary at ffmpegPath.
func NewFFmpegDetector(ffmpegPath string, opts ...FFmpegOption) *FFmpegDetector {
	d := &FFmpegDetector{
		ffmpegPath: ffmpegPath,
		cmd:        ffmpeg.NewExecutor(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect pipes rec through silencedetect and parses the reported intervals.
// A silence still open when the stream ends runs to the end of rec.
func (d *FFmpegDetector) Detect(ctx context.Context, rec *audio.Recording, p Params) ([]segment.Interval, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if d.ffmpegPath == "" {
		return nil, fmt.Errorf("%w: required by the ffmpeg detector", ffmpeg.ErrNotFound)
	}

	// silencedetect reports at info level, so the log level is left alone.
	args := []string{
		"-hide_banner", "-nostats",
		"-f", "s16le",
		"-ar", strconv.Itoa(rec.SampleRate),
		"-ac", strconv.Itoa(rec.Channels),
		"-i", "-",
		"-af", silenceFilter(p),
		"-f", "null",
		"-",
	}

	stderr, err := d.cmd.Run(ctx, d.ffmpegPath, args, pcmReader(rec.Samples), nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// ffmpeg may exit non-zero after reporting; keep whatever was parsed.
		if !strings.Contains(stderr, "silence_") {
			return nil, fmt.Errorf("%w: %v\nOutput: %s", ErrDetectFailed, err, stderr)
		}
	}

	return parseSilenceOutput(stderr, rec.Length()), nil
}

// silenceFilter builds the silencedetect filter argument.
func silenceFilter(p Params) string {
	return fmt.Sprintf("silencedetect=noise=%sdB:d=%s",
		strconv.FormatFloat(p.ThresholdDB, 'f', -1, 64),
		strconv.FormatFloat(p.MinSilence.Seconds(), 'f', -1, 64))
}

// pcmReader serializes samples as raw s16le for ffmpeg's stdin.
func pcmReader(samples []int16) io.Reader {
	buf := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
	}
	return bytes.NewReader(buf)
}

var (
	silenceStartRe = regexp.MustCompile(`silence_start:\s*(-?[\d.]+)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*(-?[\d.]+)`)
)

// parseSilenceOutput extracts intervals from silencedetect output.
// FFmpeg outputs lines like:
//
//	[silencedetect @ 0x...] silence_start: 42.123
//	[silencedetect @ 0x...] silence_end: 43.456 | silence_duration: 1.333
//
// Offsets are rounded to milliseconds and clamped to [0, total]. An end
// without a start is ignored; a start without an end closes at total.
func parseSilenceOutput(output string, total time.Duration) []segment.Interval {
	var intervals []segment.Interval
	var start time.Duration
	open := false

	for line := range strings.SplitSeq(output, "\n") {
		if m := silenceStartRe.FindStringSubmatch(line); m != nil {
			if v, ok := parseSeconds(m[1], total); ok {
				start = v
				open = true
			}
		}
		if m := silenceEndRe.FindStringSubmatch(line); m != nil && open {
			if v, ok := parseSeconds(m[1], total); ok {
				if v > start {
					intervals = append(intervals, segment.Interval{Start: start, End: v})
				}
				open = false
			}
		}
	}
	if open && total > start {
		intervals = append(intervals, segment.Interval{Start: start, End: total})
	}

	return intervals
}

// parseSeconds converts a decimal seconds value to a clamped millisecond offset.
func parseSeconds(s string, total time.Duration) (time.Duration, bool) {
	seconds, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	d := time.Duration(math.Round(seconds*1000)) * time.Millisecond
	return min(max(d, 0), total), true
}
