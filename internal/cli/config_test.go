package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alnah/go-shadowing/internal/config"
)

// Config commands read and write the real config file, so these tests point
// XDG_CONFIG_HOME at a temp dir. t.Setenv rules out t.Parallel.

func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

// ---------------------------------------------------------------------------
// Tests for runConfigSet
// ---------------------------------------------------------------------------

func TestRunConfigSet_ValidKeys(t *testing.T) {
	isolateConfig(t)

	tests := []struct {
		key, value string
	}{
		{config.KeyPercentage, "150"},
		{config.KeyMinSilence, "250"},
		{config.KeyMaxSpeech, "1.5s"},
		{config.KeyThreshold, "-42"},
		{config.KeyDetector, "ffmpeg"},
		{config.KeyReference, "gap"},
		{config.KeyS3Bucket, "drills"},
		{config.KeyLogLevel, "debug"},
	}

	for _, tt := range tests {
		env, mocks := testEnv()
		if err := runConfigSet(env, tt.key, tt.value); err != nil {
			t.Fatalf("runConfigSet(%q, %q) unexpected error: %v", tt.key, tt.value, err)
		}
		if want := "Set " + tt.key + " = " + tt.value; !strings.Contains(mocks.stderr.String(), want) {
			t.Errorf("stderr = %q, want %q", mocks.stderr.String(), want)
		}

		got, err := config.Get(tt.key)
		if err != nil {
			t.Fatalf("config.Get(%q) unexpected error: %v", tt.key, err)
		}
		if got != tt.value {
			t.Errorf("config.Get(%q) = %q, want %q", tt.key, got, tt.value)
		}
	}
}

func TestRunConfigSet_Errors(t *testing.T) {
	isolateConfig(t)

	file := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		key, value string
		wantErr    error
	}{
		{"unknown key", "language", "fr", config.ErrUnknownKey},
		{"underscore key", "output_dir", "/tmp", config.ErrUnknownKey},
		{"percentage not a number", config.KeyPercentage, "lots", config.ErrInvalidValue},
		{"unknown detector", config.KeyDetector, "webrtc", config.ErrInvalidValue},
		{"bad duration", config.KeyMinSpeech, "soon", config.ErrInvalidValue},
		{"output-dir is a file", config.KeyOutputDir, file, config.ErrNotDirectory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, mocks := testEnv()
			err := runConfigSet(env, tt.key, tt.value)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("runConfigSet(%q, %q) error = %v, want %v", tt.key, tt.value, err, tt.wantErr)
			}
			if mocks.stderr.String() != "" {
				t.Errorf("stderr = %q, want nothing on failure", mocks.stderr.String())
			}
		})
	}

	data, err := config.List()
	if err != nil {
		t.Fatalf("config.List() unexpected error: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("config.List() = %v, want nothing saved", data)
	}
}

func TestRunConfigSet_OutputDirCreated(t *testing.T) {
	isolateConfig(t)

	target := filepath.Join(t.TempDir(), "drills", "french")
	env, _ := testEnv()

	if err := runConfigSet(env, config.KeyOutputDir, target); err != nil {
		t.Fatalf("runConfigSet() unexpected error: %v", err)
	}
	if info, err := os.Stat(target); err != nil || !info.IsDir() {
		t.Errorf("output-dir %q was not created", target)
	}

	got, err := config.Get(config.KeyOutputDir)
	if err != nil {
		t.Fatalf("config.Get() unexpected error: %v", err)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("config.Get(output-dir) = %q, want absolute path", got)
	}
}

func TestRunConfigSet_ExpandsHome(t *testing.T) {
	isolateConfig(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	env, _ := testEnv()
	if err := runConfigSet(env, config.KeyOutputDir, "~/drills"); err != nil {
		t.Fatalf("runConfigSet() unexpected error: %v", err)
	}

	got, _ := config.Get(config.KeyOutputDir)
	if want := filepath.Join(home, "drills"); got != want {
		t.Errorf("config.Get(output-dir) = %q, want %q", got, want)
	}
}

// ---------------------------------------------------------------------------
// Tests for runConfigGet
// ---------------------------------------------------------------------------

func TestRunConfigGet(t *testing.T) {
	isolateConfig(t)
	if err := config.Save(config.KeyPercentage, "150"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		key  string
		env  map[string]string
		want string
	}{
		{"from file", config.KeyPercentage, nil, "150\n"},
		{"file wins over env", config.KeyPercentage, map[string]string{"SHADOWING_PERCENTAGE": "300"}, "150\n"},
		{"env fallback", config.KeyThreshold, map[string]string{"SHADOWING_THRESHOLD": "-38"}, "-38\n"},
		{"unset prints nothing", config.KeyS3Bucket, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, mocks := testEnv()
			env.Getenv = staticEnv(tt.env)

			if err := runConfigGet(env, tt.key); err != nil {
				t.Fatalf("runConfigGet(%q) unexpected error: %v", tt.key, err)
			}
			if got := mocks.stdout.String(); got != tt.want {
				t.Errorf("runConfigGet(%q) stdout = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestRunConfigGet_UnknownKey(t *testing.T) {
	isolateConfig(t)

	env, _ := testEnv()
	err := runConfigGet(env, "api-key")
	if !errors.Is(err, config.ErrUnknownKey) {
		t.Fatalf("runConfigGet() error = %v, want ErrUnknownKey", err)
	}
	if !strings.Contains(err.Error(), config.KeyPercentage) {
		t.Errorf("error = %q, want it to list valid keys", err)
	}
}

// ---------------------------------------------------------------------------
// Tests for runConfigList
// ---------------------------------------------------------------------------

func TestRunConfigList(t *testing.T) {
	isolateConfig(t)
	if err := config.Save(config.KeyPercentage, "150"); err != nil {
		t.Fatal(err)
	}
	if err := config.Save(config.KeyDetector, "ffmpeg"); err != nil {
		t.Fatal(err)
	}

	env, mocks := testEnv()
	env.Getenv = staticEnv(map[string]string{
		"SHADOWING_PERCENTAGE": "300",
		"SHADOWING_S3_BUCKET":  "drills",
	})

	if err := runConfigList(env); err != nil {
		t.Fatalf("runConfigList() unexpected error: %v", err)
	}

	want := "detector=ffmpeg\npercentage=150\ns3-bucket=drills (from env)\n"
	if got := mocks.stdout.String(); got != want {
		t.Errorf("runConfigList() stdout = %q, want %q", got, want)
	}
}

func TestRunConfigList_Empty(t *testing.T) {
	isolateConfig(t)

	env, mocks := testEnv()
	if err := runConfigList(env); err != nil {
		t.Fatalf("runConfigList() unexpected error: %v", err)
	}

	got := mocks.stdout.String()
	if !strings.Contains(got, "No configuration set.") {
		t.Errorf("stdout = %q, want empty notice", got)
	}
	for _, key := range config.Keys() {
		if !strings.Contains(got, "  "+key+"\n") {
			t.Errorf("stdout = %q, want available key %q", got, key)
		}
	}
}

// ---------------------------------------------------------------------------
// Tests for ConfigCmd (Cobra integration)
// ---------------------------------------------------------------------------

func TestConfigCmd_HasSubcommands(t *testing.T) {
	t.Parallel()

	env, _ := testEnv()
	cmd := ConfigCmd(env)

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}
	for _, name := range []string{"set", "get", "list"} {
		if !subcommands[name] {
			t.Errorf("expected subcommand %q", name)
		}
	}
}

func TestConfigCmd_HelpListsEnvNames(t *testing.T) {
	t.Parallel()

	help := keyHelp()
	for _, key := range config.Keys() {
		if !strings.Contains(help, config.EnvName(key)) {
			t.Errorf("keyHelp() missing %s", config.EnvName(key))
		}
	}
	if !strings.Contains(ConfigCmd(DefaultEnv()).Long, "SHADOWING_MIN_SILENCE") {
		t.Error("config help should list SHADOWING_MIN_SILENCE")
	}
}

func TestConfigCmd_ArgCounts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{"set without args", []string{"set"}},
		{"set without value", []string{"set", "percentage"}},
		{"get without key", []string{"get"}},
		{"list with args", []string{"list", "extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env, _ := testEnv()
			if err := execute(t, ConfigCmd(env), tt.args...); err == nil {
				t.Errorf("ConfigCmd %v expected error, got nil", tt.args)
			}
		})
	}
}

func TestConfigCmd_SetThenGet(t *testing.T) {
	isolateConfig(t)

	env, mocks := testEnv()
	if err := execute(t, ConfigCmd(env), "set", "min-silence", "300"); err != nil {
		t.Fatalf("config set unexpected error: %v", err)
	}
	if err := execute(t, ConfigCmd(env), "get", "min-silence"); err != nil {
		t.Fatalf("config get unexpected error: %v", err)
	}
	if got := mocks.stdout.String(); got != "300\n" {
		t.Errorf("config get stdout = %q, want %q", got, "300\n")
	}
}
