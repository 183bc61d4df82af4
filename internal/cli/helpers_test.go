package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/alnah/go-shadowing/internal/audio"
	"github.com/alnah/go-shadowing/internal/config"
)

// ---------------------------------------------------------------------------
// syncBuffer - thread-safe bytes.Buffer for concurrent test output
// ---------------------------------------------------------------------------

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Compile-time check that syncBuffer implements io.Writer.
var _ io.Writer = (*syncBuffer)(nil)

// ---------------------------------------------------------------------------
// testEnv - creates an Env with mocked setup and real audio processing
// ---------------------------------------------------------------------------

type testMocks struct {
	ffmpegResolver *mockFFmpegResolver
	configLoader   *mockConfigLoader
	publisher      *mockPublisherFactory
	stdout         *syncBuffer
	stderr         *syncBuffer
}

// testEnv creates an Env whose FFmpeg resolution, configuration and
// publishing are mocked. Codec and detector are the real ones, so WAV files
// are processed end to end without ffmpeg.
func testEnv() (*Env, *testMocks) {
	m := &testMocks{
		ffmpegResolver: &mockFFmpegResolver{},
		configLoader:   &mockConfigLoader{},
		publisher:      &mockPublisherFactory{},
		stdout:         &syncBuffer{},
		stderr:         &syncBuffer{},
	}

	env := &Env{
		Stderr:           m.stderr,
		Stdout:           m.stdout,
		Getenv:           staticEnv(nil),
		Now:              fixedTime(time.Date(2026, 1, 26, 14, 30, 52, 0, time.UTC)),
		FFmpegResolver:   m.ffmpegResolver,
		ConfigLoader:     m.configLoader,
		CodecFactory:     defaultCodecFactory{},
		DetectorFactory:  defaultDetectorFactory{},
		PublisherFactory: m.publisher,
	}
	return env, m
}

// withConfig makes the mocked loader return cfg.
func (m *testMocks) withConfig(cfg config.Config) {
	m.configLoader.LoadFunc = func(context.Context) (config.Config, error) {
		return cfg, nil
	}
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// fixedTime returns a function that always returns the given time.
func fixedTime(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// staticEnv returns a getenv function that returns values from the given map.
func staticEnv(env map[string]string) func(string) string {
	return func(key string) string {
		return env[key]
	}
}

// knownRecording is a 7628ms mono signal at 1kHz that is loud everywhere
// except [1407,1912), [3397,3945) and [5426,5876). Its chunks are 1407,
// 1485, 1481 and 1752ms long.
func knownRecording() *audio.Recording {
	samples := make([]int16, 7628)
	for i := range samples {
		quiet := (i >= 1407 && i < 1912) || (i >= 3397 && i < 3945) || (i >= 5426 && i < 5876)
		if !quiet {
			samples[i] = 12000
			if i%2 == 1 {
				samples[i] = -12000
			}
		}
	}
	return audio.NewRecording(samples, 1000, 1)
}

// writeKnownWAV writes knownRecording to dir/name and returns its path.
func writeKnownWAV(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := audio.NewCodec("").Encode(context.Background(), knownRecording(), path); err != nil {
		t.Fatalf("failed to write test WAV: %v", err)
	}
	return path
}

// wavLength decodes path and returns its duration.
func wavLength(t *testing.T, path string) time.Duration {
	t.Helper()
	rec, err := audio.NewCodec("").Decode(context.Background(), path)
	if err != nil {
		t.Fatalf("failed to decode %s: %v", path, err)
	}
	return rec.Length()
}

// execute runs cmd with args and returns its error.
func execute(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.ExecuteContext(context.Background())
}
