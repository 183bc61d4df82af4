package audio

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/alnah/go-shadowing/internal/ffmpeg"
)

// Default decode format: mono at CD sample rate. Speech drills do not need
// stereo, and a single channel halves the work of detection.
const (
	DefaultSampleRate = 44100
	DefaultChannels   = 1
)

// encoderArgs maps output extensions to ffmpeg codec arguments.
// A nil entry means the format is written natively.
var encoderArgs = map[string][]string{
	".wav":  nil,
	".mp3":  {"-c:a", "libmp3lame", "-q:a", "2"},
	".ogg":  {"-c:a", "libvorbis", "-q:a", "4"},
	".opus": {"-c:a", "libopus", "-b:a", "64k"},
	".flac": {"-c:a", "flac"},
	".m4a":  {"-c:a", "aac", "-b:a", "128k"},
}

// OutputFormats returns the supported output extensions, sorted.
func OutputFormats() []string {
	exts := make([]string, 0, len(encoderArgs))
	for ext := range encoderArgs {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Codec decodes input files into Recordings and encodes Recordings to files.
// WAV is handled natively; every other format goes through ffmpeg over raw
// s16le pipes, so no intermediate files are written while decoding.
type Codec struct {
	ffmpegPath string
	sampleRate int
	channels   int

	// Injectable dependencies (defaults to OS implementations).
	cmd     commandRunner
	temp    tempFileCreator
	opener  fileOpener
	statter fileStatter
	mover   fileMover
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithSampleRate resamples decoded audio to rate. Zero keeps the source rate.
func WithSampleRate(rate int) CodecOption {
	return func(c *Codec) {
		c.sampleRate = rate
	}
}

// WithChannels remixes decoded audio to n channels. Zero keeps the source layout.
func WithChannels(n int) CodecOption {
	return func(c *Codec) {
		c.channels = n
	}
}

// WithCommandRunner sets the ffmpeg runner.
func WithCommandRunner(r commandRunner) CodecOption {
	return func(c *Codec) {
		c.cmd = r
	}
}

// WithTempFileCreator sets the temp file creator used for atomic output.
func WithTempFileCreator(t tempFileCreator) CodecOption {
	return func(c *Codec) {
		c.temp = t
	}
}

// WithFileOpener sets the opener used for native WAV decoding.
func WithFileOpener(o fileOpener) CodecOption {
	return func(c *Codec) {
		c.opener = o
	}
}

// WithFileStatter sets the file statter.
func WithFileStatter(s fileStatter) CodecOption {
	return func(c *Codec) {
		c.statter = s
	}
}

// WithFileMover sets the rename/remove implementation.
func WithFileMover(m fileMover) CodecOption {
	return func(c *Codec) {
		c.mover = m
	}
}

// NewCodec creates a Codec. ffmpegPath may be empty, in which case only WAV
// input and output are available.
func NewCodec(ffmpegPath string, opts ...CodecOption) *Codec {
	c := &Codec{
		ffmpegPath: ffmpegPath,
		sampleRate: DefaultSampleRate,
		channels:   DefaultChannels,
		cmd:        ffmpeg.NewExecutor(),
		temp:       osTempFileCreator{},
		opener:     osFileOpener{},
		statter:    osFileStatter{},
		mover:      osFileMover{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NeedsFFmpeg reports whether reading or writing path requires ffmpeg.
func NeedsFFmpeg(path string) bool {
	return strings.ToLower(filepath.Ext(path)) != ".wav"
}

// Decode reads path into memory.
func (c *Codec) Decode(ctx context.Context, path string) (*Recording, error) {
	if _, err := c.statter.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}

	rec, err := c.decode(ctx, path)
	if err != nil {
		return nil, err
	}
	if rec.Frames() == 0 {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecodeFailed, path, ErrEmptyRecording)
	}
	return rec, nil
}

// decode picks the native WAV reader when it can serve the requested format
// and ffmpeg otherwise. Without ffmpeg, WAV input keeps its native layout.
func (c *Codec) decode(ctx context.Context, path string) (*Recording, error) {
	if NeedsFFmpeg(path) {
		return c.decodeFFmpeg(ctx, path)
	}

	rec, err := c.decodeWAV(path)
	if c.ffmpegPath == "" {
		return rec, err
	}
	// Non-PCM WAV (float, mu-law) and format conversions go through ffmpeg.
	if err != nil || !c.matches(rec) {
		return c.decodeFFmpeg(ctx, path)
	}
	return rec, nil
}

// matches reports whether rec already has the requested format.
func (c *Codec) matches(rec *Recording) bool {
	return (c.sampleRate == 0 || rec.SampleRate == c.sampleRate) &&
		(c.channels == 0 || rec.Channels == c.channels)
}

// decodeWAV reads a PCM WAV file natively.
func (c *Codec) decodeWAV(path string) (*Recording, error) {
	f, err := c.opener.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}
	defer func() { _ = f.Close() }()

	rec, err := readWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}

// decodeFFmpeg pipes path through ffmpeg as raw s16le.
func (c *Codec) decodeFFmpeg(ctx context.Context, path string) (*Recording, error) {
	if c.ffmpegPath == "" {
		return nil, fmt.Errorf("%w: required to decode %s", ffmpeg.ErrNotFound, filepath.Base(path))
	}

	rate, channels := c.sampleRate, c.channels
	if rate == 0 || channels == 0 {
		srcRate, srcChannels, err := c.probe(ctx, path)
		if err != nil {
			return nil, err
		}
		if rate == 0 {
			rate = srcRate
		}
		if channels == 0 {
			channels = srcChannels
		}
	}

	args := []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-i", path,
		"-vn",
		"-f", "s16le", "-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(rate),
		"-ac", strconv.Itoa(channels),
		"-",
	}

	var stdout bytes.Buffer
	stderr, err := c.cmd.Run(ctx, c.ffmpegPath, args, nil, &stdout)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v\nOutput: %s", ErrDecodeFailed, path, err, stderr)
	}

	return NewRecording(decodePCM(stdout.Bytes()), rate, channels), nil
}

// probe reads the source sample rate and channel count from ffmpeg's banner.
func (c *Codec) probe(ctx context.Context, path string) (rate, channels int, err error) {
	// Without an output ffmpeg exits non-zero, but the stream info is printed
	// before that, so the exit status is ignored when there is output.
	stderr, runErr := c.cmd.Run(ctx, c.ffmpegPath, []string{"-hide_banner", "-i", path}, nil, nil)
	if runErr != nil && stderr == "" {
		return 0, 0, fmt.Errorf("%w: probe %s: %v", ErrDecodeFailed, path, runErr)
	}
	rate, channels, err = parseStreamInfo(stderr)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s: %v", ErrDecodeFailed, path, err)
	}
	return rate, channels, nil
}

// streamInfoRe matches the first audio stream line, for example:
//
//	Stream #0:0: Audio: mp3, 44100 Hz, stereo, fltp, 128 kb/s
var streamInfoRe = regexp.MustCompile(`Audio:[^\n]*?,\s*(\d+)\s*Hz,\s*([^,\n]+)`)

// channelLayouts maps ffmpeg layout names to channel counts.
var channelLayouts = map[string]int{
	"mono":   1,
	"stereo": 2,
	"2.1":    3,
	"3.0":    3,
	"quad":   4,
	"4.0":    4,
	"5.0":    5,
	"5.1":    6,
	"6.1":    7,
	"7.1":    8,
}

var channelCountRe = regexp.MustCompile(`^(\d+)\s+channels`)

// parseStreamInfo extracts sample rate and channel count from ffmpeg stderr.
func parseStreamInfo(output string) (rate, channels int, err error) {
	m := streamInfoRe.FindStringSubmatch(output)
	if m == nil {
		return 0, 0, fmt.Errorf("no audio stream found")
	}
	rate, err = strconv.Atoi(m[1])
	if err != nil || rate <= 0 {
		return 0, 0, fmt.Errorf("invalid sample rate %q", m[1])
	}

	layout := strings.TrimSpace(m[2])
	// "5.1(side)" and similar variants share the base layout's count.
	if i := strings.IndexByte(layout, '('); i > 0 {
		layout = layout[:i]
	}
	if n, ok := channelLayouts[layout]; ok {
		return rate, n, nil
	}
	if cm := channelCountRe.FindStringSubmatch(layout); cm != nil {
		n, _ := strconv.Atoi(cm[1])
		if n > 0 {
			return rate, n, nil
		}
	}
	return 0, 0, fmt.Errorf("unknown channel layout %q", layout)
}

// Encode writes rec to path. The output is first written to a temporary file
// in the destination directory and renamed into place on success, so a failed
// run never leaves a partial file at path.
func (c *Codec) Encode(ctx context.Context, rec *Recording, path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	args, ok := encoderArgs[ext]
	if !ok {
		return fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat, ext, strings.Join(OutputFormats(), ", "))
	}
	native := args == nil
	if !native && c.ffmpegPath == "" {
		return fmt.Errorf("%w: required to encode %s", ffmpeg.ErrNotFound, ext)
	}

	tmp, err := c.temp.CreateTemp(filepath.Dir(path), ".shadowing-*"+ext)
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrEncodeFailed, err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = c.mover.Remove(tmpPath) // best-effort cleanup; original error takes precedence
		}
	}()

	if native {
		writeErr := writeWAV(tmp, rec)
		closeErr := tmp.Close()
		if writeErr != nil {
			return fmt.Errorf("%w: %v", ErrEncodeFailed, writeErr)
		}
		if closeErr != nil {
			return fmt.Errorf("%w: %v", ErrEncodeFailed, closeErr)
		}
	} else {
		// ffmpeg reopens the path itself.
		_ = tmp.Close()
		if err := c.encodeFFmpeg(ctx, rec, tmpPath, args); err != nil {
			return err
		}
	}

	if err := c.mover.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	success = true
	return nil
}

// encodeFFmpeg feeds raw s16le to ffmpeg on stdin.
func (c *Codec) encodeFFmpeg(ctx context.Context, rec *Recording, dest string, codecArgs []string) error {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(rec.SampleRate),
		"-ac", strconv.Itoa(rec.Channels),
		"-i", "-",
	}
	args = append(args, codecArgs...)
	args = append(args, dest)

	stderr, err := c.cmd.Run(ctx, c.ffmpegPath, args, bytes.NewReader(encodePCM(rec.Samples)), nil)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %v\nOutput: %s", ErrEncodeFailed, filepath.Base(dest), err, stderr)
	}
	return nil
}
