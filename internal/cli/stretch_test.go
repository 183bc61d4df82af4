package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alnah/go-shadowing/internal/config"
	"github.com/alnah/go-shadowing/internal/ffmpeg"
	"github.com/alnah/go-shadowing/internal/pipeline"
	"github.com/alnah/go-shadowing/internal/policy"
	"github.com/alnah/go-shadowing/internal/storage"
)

// Notes:
// - WAV input and output never need ffmpeg, so these tests run the real codec
//   and amplitude detector on a 1kHz synthetic recording.
// - Config, ffmpeg resolution and publishing are mocked through Env.

// ---------------------------------------------------------------------------
// TestStretchCmd - end to end on WAV
// ---------------------------------------------------------------------------

func TestStretchCmd_KnownScenario(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want time.Duration
	}{
		{"default doubles speech", nil, 12250 * time.Millisecond},
		{"percentage 200", []string{"-p", "200"}, 18375 * time.Millisecond},
		{"percentage 0 keeps speech only", []string{"--percentage", "0"}, 6125 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			input := writeKnownWAV(t, dir, "lesson.wav")
			env, mocks := testEnv()

			err := execute(t, StretchCmd(env), append([]string{input}, tt.args...)...)
			if err != nil {
				t.Fatalf("stretch %v unexpected error: %v", tt.args, err)
			}

			output := filepath.Join(dir, "lesson_ext.wav")
			if got := wavLength(t, output); got != tt.want {
				t.Errorf("output length = %v, want %v", got, tt.want)
			}
			if mocks.ffmpegResolver.ResolveCalls() != 0 {
				t.Errorf("ffmpeg resolved %d times, want 0 for WAV", mocks.ffmpegResolver.ResolveCalls())
			}
			if !strings.Contains(mocks.stderr.String(), "4 chunks") {
				t.Errorf("stderr = %q, want chunk statistics", mocks.stderr.String())
			}
		})
	}
}

func TestStretchCmd_ExplicitOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := writeKnownWAV(t, dir, "lesson.wav")
	output := filepath.Join(dir, "drill.wav")
	env, _ := testEnv()

	if err := execute(t, StretchCmd(env), input, "-o", output); err != nil {
		t.Fatalf("stretch -o unexpected error: %v", err)
	}
	if _, err := os.Stat(output); err != nil {
		t.Errorf("output %s not written: %v", output, err)
	}
}

func TestStretchCmd_OutputDirFromConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	outDir := t.TempDir()
	input := writeKnownWAV(t, dir, "lesson.wav")
	env, mocks := testEnv()
	mocks.withConfig(config.Config{OutputDir: outDir})

	if err := execute(t, StretchCmd(env), input); err != nil {
		t.Fatalf("stretch unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "lesson_ext.wav")); err != nil {
		t.Errorf("output not written to output-dir: %v", err)
	}
}

func TestStretchCmd_ConfigPolicy(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := writeKnownWAV(t, dir, "lesson.wav")
	env, mocks := testEnv()
	pct := 200.0
	mocks.withConfig(config.Config{Percentage: &pct})

	if err := execute(t, StretchCmd(env), input); err != nil {
		t.Fatalf("stretch unexpected error: %v", err)
	}
	if got := wavLength(t, filepath.Join(dir, "lesson_ext.wav")); got != 18375*time.Millisecond {
		t.Errorf("output length = %v, want 18.375s from config percentage", got)
	}

	// A flag wins over the file.
	if err := execute(t, StretchCmd(env), input, "-p", "0", "--force"); err != nil {
		t.Fatalf("stretch -p 0 unexpected error: %v", err)
	}
	if got := wavLength(t, filepath.Join(dir, "lesson_ext.wav")); got != 6125*time.Millisecond {
		t.Errorf("output length = %v, want 6.125s from flag", got)
	}
}

// ---------------------------------------------------------------------------
// TestStretchCmd - validation
// ---------------------------------------------------------------------------

func TestStretchCmd_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(t *testing.T, dir string) []string
		wantErr error
	}{
		{
			name: "missing input",
			setup: func(t *testing.T, dir string) []string {
				return []string{filepath.Join(dir, "nope.wav")}
			},
			wantErr: ErrFileNotFound,
		},
		{
			name: "output exists",
			setup: func(t *testing.T, dir string) []string {
				input := writeKnownWAV(t, dir, "lesson.wav")
				if err := os.WriteFile(filepath.Join(dir, "lesson_ext.wav"), []byte("old"), 0o644); err != nil {
					t.Fatal(err)
				}
				return []string{input}
			},
			wantErr: ErrOutputExists,
		},
		{
			name: "output is input",
			setup: func(t *testing.T, dir string) []string {
				input := writeKnownWAV(t, dir, "lesson.wav")
				return []string{input, "-o", input, "--force"}
			},
			wantErr: ErrSameFile,
		},
		{
			name: "invalid policy",
			setup: func(t *testing.T, dir string) []string {
				return []string{writeKnownWAV(t, dir, "lesson.wav"), "-p", "5000"}
			},
			wantErr: policy.ErrInvalidPolicy,
		},
		{
			name: "all silent at this threshold",
			setup: func(t *testing.T, dir string) []string {
				return []string{writeKnownWAV(t, dir, "lesson.wav"), "-t", "0"}
			},
			wantErr: pipeline.ErrNoSpeech,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			env, _ := testEnv()

			err := execute(t, StretchCmd(env), tt.setup(t, dir)...)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("stretch error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStretchCmd_ExistingOutputUntouched(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := writeKnownWAV(t, dir, "lesson.wav")
	output := filepath.Join(dir, "lesson_ext.wav")
	if err := os.WriteFile(output, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	env, _ := testEnv()

	_ = execute(t, StretchCmd(env), input)

	data, err := os.ReadFile(output)
	if err != nil || string(data) != "old" {
		t.Errorf("existing output changed: %q, %v", data, err)
	}
}

func TestStretchCmd_AutoAndThresholdExclusive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	env, _ := testEnv()

	err := execute(t, StretchCmd(env), writeKnownWAV(t, dir, "lesson.wav"), "--auto", "-t", "-40")
	if err == nil || !strings.Contains(err.Error(), "if any flags in the group") {
		t.Errorf("stretch --auto -t error = %v, want mutually exclusive flag error", err)
	}
}

// ---------------------------------------------------------------------------
// TestStretchCmd - ffmpeg and publishing
// ---------------------------------------------------------------------------

func TestStretchCmd_FFmpegResolvedForNonWAV(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := writeKnownWAV(t, dir, "lesson.wav")
	env, mocks := testEnv()
	mocks.ffmpegResolver.ResolveFunc = func(context.Context) (string, error) {
		return "", ffmpeg.ErrNotFound
	}

	err := execute(t, StretchCmd(env), input, "-o", filepath.Join(dir, "drill.mp3"))
	if !errors.Is(err, ffmpeg.ErrNotFound) {
		t.Errorf("stretch to mp3 error = %v, want ffmpeg.ErrNotFound", err)
	}
	if mocks.ffmpegResolver.ResolveCalls() != 1 {
		t.Errorf("ffmpeg resolved %d times, want 1", mocks.ffmpegResolver.ResolveCalls())
	}
}

func TestStretchCmd_Publishes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := writeKnownWAV(t, dir, "lesson.wav")
	env, mocks := testEnv()
	mocks.withConfig(config.Config{S3Bucket: "drills", S3Region: "eu-west-3", S3Prefix: "week-1"})

	if err := execute(t, StretchCmd(env), input); err != nil {
		t.Fatalf("stretch unexpected error: %v", err)
	}

	cfgs := mocks.publisher.Configs()
	if len(cfgs) != 1 || cfgs[0].Bucket != "drills" || cfgs[0].Prefix != "week-1" {
		t.Errorf("publisher configs = %+v, want one for bucket drills", cfgs)
	}
	if !strings.Contains(mocks.stderr.String(), "https://drills.example/lesson_ext.wav") {
		t.Errorf("stderr = %q, want published URL", mocks.stderr.String())
	}
}

func TestStretchCmd_PublishFailureKeepsOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := writeKnownWAV(t, dir, "lesson.wav")
	env, mocks := testEnv()
	mocks.withConfig(config.Config{S3Bucket: "drills", S3Region: "eu-west-3"})
	mocks.publisher.mockPublisher = &mockPublisher{
		PublishFunc: func(context.Context, string) (string, error) {
			return "", storage.ErrNotConfigured
		},
	}

	err := execute(t, StretchCmd(env), input)
	if !errors.Is(err, storage.ErrNotConfigured) {
		t.Errorf("stretch error = %v, want publish failure", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "lesson_ext.wav")); statErr != nil {
		t.Errorf("local output should be kept: %v", statErr)
	}
}

// ---------------------------------------------------------------------------
// TestStretchOutputPath
// ---------------------------------------------------------------------------

func TestStretchOutputPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		output    string
		outputDir string
		want      string
	}{
		{"next to input", "/data/lesson.mp3", "", "", "/data/lesson_ext.mp3"},
		{"in output dir", "/data/lesson.mp3", "", "/out", "/out/lesson_ext.mp3"},
		{"relative output joined", "/data/lesson.mp3", "drill.ogg", "/out", "/out/drill.ogg"},
		{"absolute output kept", "/data/lesson.mp3", "/tmp/x.wav", "/out", "/tmp/x.wav"},
		{"unsupported extension falls back to wav", "/data/talk.aac", "", "", "/data/talk_ext.wav"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := stretchOutputPath(filepath.FromSlash(tt.input), filepath.FromSlash(tt.output), filepath.FromSlash(tt.outputDir))
			if got != filepath.FromSlash(tt.want) {
				t.Errorf("stretchOutputPath(%q, %q, %q) = %q, want %q", tt.input, tt.output, tt.outputDir, got, tt.want)
			}
		})
	}
}
