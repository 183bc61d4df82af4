// Package config loads persistent user defaults from
// ~/.config/go-shadowing/config and SHADOWING_* environment variables.
//
// Precedence, highest first: command-line flags (applied by the caller),
// config file, environment, built-in defaults.
package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/alnah/go-shadowing/internal/detect"
	"github.com/alnah/go-shadowing/internal/policy"
	"github.com/alnah/go-shadowing/internal/storage"
	"github.com/alnah/go-shadowing/internal/stretch"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "SHADOWING_"

// Config keys.
const (
	KeyOutputDir  = "output-dir"
	KeyPercentage = "percentage"
	KeyMinSilence = "min-silence"
	KeyMinSpeech  = "min-speech"
	KeyMaxSpeech  = "max-speech"
	KeyThreshold  = "threshold"
	KeyDetector   = "detector"
	KeyReference  = "reference"
	KeyS3Bucket   = "s3-bucket"
	KeyS3Region   = "s3-region"
	KeyS3Endpoint = "s3-endpoint"
	KeyS3Prefix   = "s3-prefix"
	KeyLogLevel   = "log-level"
	KeyLogFormat  = "log-format"
)

var (
	// ErrUnknownKey indicates a key that is not a supported setting.
	ErrUnknownKey = errors.New("unknown config key")

	// ErrInvalidValue indicates a value that cannot be parsed for its key.
	ErrInvalidValue = errors.New("invalid config value")

	// ErrInvalidSyntax indicates a config file line that is not key=value.
	ErrInvalidSyntax = errors.New("invalid config syntax")

	// ErrNotDirectory indicates output-dir points at a file.
	ErrNotDirectory = errors.New("path is not a directory")

	// ErrNotWritable indicates output-dir cannot be written to.
	ErrNotWritable = errors.New("directory is not writable")
)

// Config holds user configuration. Nil pointers mean "not set", so the
// built-in policy default applies.
type Config struct {
	OutputDir string `env:"OUTPUT_DIR"`

	Percentage  *float64 `env:"PERCENTAGE, noinit"`
	MinSilence  *Millis  `env:"MIN_SILENCE, noinit"`
	MinSpeech   *Millis  `env:"MIN_SPEECH, noinit"`
	MaxSpeech   *Millis  `env:"MAX_SPEECH, noinit"`
	ThresholdDB *float64 `env:"THRESHOLD, noinit"`
	Detector    string   `env:"DETECTOR"`
	Reference   string   `env:"REFERENCE"`

	S3Bucket   string `env:"S3_BUCKET"`
	S3Region   string `env:"S3_REGION"`
	S3Endpoint string `env:"S3_ENDPOINT"`
	S3Prefix   string `env:"S3_PREFIX"`
	// Credentials are read from the environment only, never from the file.
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`

	LogLevel  string `env:"LOG_LEVEL, default=warn"`
	LogFormat string `env:"LOG_FORMAT, default=text"`
}

// Millis is a duration written as whole milliseconds ("250") or as a Go
// duration ("1.5s").
type Millis time.Duration

// ParseMillis parses s as a Millis.
func ParseMillis(s string) (Millis, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Millis(time.Duration(n) * time.Millisecond), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%q is neither milliseconds nor a duration", s)
	}
	return Millis(d), nil
}

// EnvDecode implements envconfig.Decoder.
func (m *Millis) EnvDecode(val string) error {
	v, err := ParseMillis(val)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Duration returns m as a time.Duration.
func (m Millis) Duration() time.Duration { return time.Duration(m) }

// setter parses a file value into cfg.
type setter func(cfg *Config, value string) error

func setString(field func(*Config) *string) setter {
	return func(cfg *Config, v string) error {
		*field(cfg) = v
		return nil
	}
}

func setFloat(field func(*Config) **float64) setter {
	return func(cfg *Config, v string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%q is not a number", v)
		}
		*field(cfg) = &f
		return nil
	}
}

func setMillis(field func(*Config) **Millis) setter {
	return func(cfg *Config, v string) error {
		m, err := ParseMillis(v)
		if err != nil {
			return err
		}
		*field(cfg) = &m
		return nil
	}
}

func setOneOf(field func(*Config) *string, allowed ...string) setter {
	return func(cfg *Config, v string) error {
		if !slices.Contains(allowed, v) {
			return fmt.Errorf("%q is not one of %s", v, strings.Join(allowed, ", "))
		}
		*field(cfg) = v
		return nil
	}
}

var setters = map[string]setter{
	KeyOutputDir:  setString(func(c *Config) *string { return &c.OutputDir }),
	KeyPercentage: setFloat(func(c *Config) **float64 { return &c.Percentage }),
	KeyMinSilence: setMillis(func(c *Config) **Millis { return &c.MinSilence }),
	KeyMinSpeech:  setMillis(func(c *Config) **Millis { return &c.MinSpeech }),
	KeyMaxSpeech:  setMillis(func(c *Config) **Millis { return &c.MaxSpeech }),
	KeyThreshold:  setFloat(func(c *Config) **float64 { return &c.ThresholdDB }),
	KeyDetector: setOneOf(func(c *Config) *string { return &c.Detector },
		string(detect.KindAmplitude), string(detect.KindFFmpeg)),
	KeyReference: setOneOf(func(c *Config) *string { return &c.Reference },
		string(stretch.ReferenceChunk), string(stretch.ReferenceGap)),
	KeyS3Bucket:   setString(func(c *Config) *string { return &c.S3Bucket }),
	KeyS3Region:   setString(func(c *Config) *string { return &c.S3Region }),
	KeyS3Endpoint: setString(func(c *Config) *string { return &c.S3Endpoint }),
	KeyS3Prefix:   setString(func(c *Config) *string { return &c.S3Prefix }),
	KeyLogLevel:   setOneOf(func(c *Config) *string { return &c.LogLevel }, "debug", "info", "warn", "error"),
	KeyLogFormat:  setOneOf(func(c *Config) *string { return &c.LogFormat }, "text", "json"),
}

// Keys returns every supported key, sorted.
func Keys() []string {
	return slices.Sorted(maps.Keys(setters))
}

// EnvName returns the environment variable read for key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// ValidateValue checks that value is acceptable for key.
func ValidateValue(key, value string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("%w %q (valid keys: %s)", ErrUnknownKey, key, strings.Join(Keys(), ", "))
	}
	if err := set(&Config{}, value); err != nil {
		return fmt.Errorf("%w for %s: %v", ErrInvalidValue, key, err)
	}
	return nil
}

// dir returns the configuration directory path.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/go-shadowing.
func dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "go-shadowing"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "go-shadowing"), nil
}

// path returns the full path to the config file.
func path() (string, error) {
	d, err := dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "config"), nil
}

// Load reads the configuration file, then fills unset fields from
// SHADOWING_* environment variables.
// A missing file is not an error.
func Load(ctx context.Context) (Config, error) {
	p, err := path()
	if err != nil {
		return Config{}, err
	}
	return load(ctx, p, envconfig.OsLookuper())
}

func load(ctx context.Context, p string, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config

	data, err := parseFile(p)
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	for _, key := range slices.Sorted(maps.Keys(data)) {
		set, ok := setters[key]
		if !ok {
			return cfg, fmt.Errorf("%s: %w %q", p, ErrUnknownKey, key)
		}
		if err := set(&cfg, data[key]); err != nil {
			return cfg, fmt.Errorf("%s: %w for %s: %v", p, ErrInvalidValue, key, err)
		}
	}

	// envconfig leaves non-zero fields alone, so file values win.
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, lookuper),
	}); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	return cfg, nil
}

// Policy overlays the configured values on base.
func (c Config) Policy(base policy.Policy) policy.Policy {
	p := base
	if c.Percentage != nil {
		p.Percentage = *c.Percentage
	}
	if c.MinSilence != nil {
		p.MinSilence = c.MinSilence.Duration()
	}
	if c.MinSpeech != nil {
		p.MinSpeech = c.MinSpeech.Duration()
	}
	if c.MaxSpeech != nil {
		p.MaxSpeech = c.MaxSpeech.Duration()
	}
	if c.ThresholdDB != nil {
		p.ThresholdDB = *c.ThresholdDB
	}
	if c.Detector != "" {
		p.Detector = detect.Kind(c.Detector)
	}
	if c.Reference != "" {
		p.Reference = stretch.Reference(c.Reference)
	}
	return p
}

// S3 returns the publishing configuration. Publishing is off unless both
// bucket and region are set.
func (c Config) S3() storage.S3Config {
	return storage.S3Config{
		Bucket:          c.S3Bucket,
		Region:          c.S3Region,
		Endpoint:        c.S3Endpoint,
		Prefix:          c.S3Prefix,
		AccessKeyID:     c.S3AccessKeyID,
		SecretAccessKey: c.S3SecretAccessKey,
	}
}

// NewLogger creates a structured logger writing to w.
// When LogFormat is "json", it outputs JSON lines; otherwise text.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}
	if strings.ToLower(c.LogFormat) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// parseFile reads a key=value config file.
// Format: one key=value per line, # comments, empty lines ignored.
func parseFile(p string) (map[string]string, error) {
	f, err := os.Open(p) // #nosec G304 -- config path is constructed from home dir
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("%w at line %d: %q", ErrInvalidSyntax, lineNum, line)
		}
		data[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return data, nil
}

// Save validates and writes a single key=value to the config file.
// Creates the config directory and file if they don't exist.
// Preserves existing key=value pairs but discards comments.
func Save(key, value string) error {
	if err := ValidateValue(key, value); err != nil {
		return err
	}

	p, err := path()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(p), 0750); err != nil { // #nosec G301 -- user config dir
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	existing, _ := parseFile(p)
	if existing == nil {
		existing = make(map[string]string)
	}
	existing[key] = value

	return writeFile(p, existing)
}

// writeFile writes the config map to a file, keys sorted.
func writeFile(p string, data map[string]string) error {
	// #nosec G302 G304 -- config file with standard permissions, path from home dir
	f, err := os.OpenFile(p, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("cannot write config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	for _, key := range slices.Sorted(maps.Keys(data)) {
		if _, err := fmt.Fprintf(f, "%s=%s\n", key, data[key]); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	return nil
}

// Get reads a single value from the config file.
// Returns empty string if the key doesn't exist.
func Get(key string) (string, error) {
	data, err := List()
	if err != nil {
		return "", err
	}
	return data[key], nil
}

// List returns all config file values as a map.
func List() (map[string]string, error) {
	p, err := path()
	if err != nil {
		return nil, err
	}

	data, err := parseFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}

	return data, nil
}

// ResolveOutputPath resolves the final output path using the following precedence:
//  1. If output is absolute, use it as-is
//  2. If output is relative and outputDir is set, join them
//  3. If output is empty, use defaultName in outputDir (or cwd if no outputDir)
func ResolveOutputPath(output, outputDir, defaultName string) string {
	if output != "" && filepath.IsAbs(output) {
		return filepath.Clean(output)
	}

	if output != "" {
		if outputDir != "" {
			return filepath.Clean(filepath.Join(outputDir, output))
		}
		return filepath.Clean(output)
	}

	if outputDir != "" {
		return filepath.Clean(filepath.Join(outputDir, defaultName))
	}
	return filepath.Clean(defaultName)
}

// EnsureOutputDir checks that d can serve as output-dir, creating it if
// needed.
func EnsureOutputDir(d string) error {
	if d == "" {
		return fmt.Errorf("output-dir cannot be empty")
	}
	d = ExpandPath(d)

	info, err := os.Stat(d)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(d, 0750); err != nil { // #nosec G301 -- user output dir
				return fmt.Errorf("cannot create directory: %w", err)
			}
			return nil
		}
		return fmt.Errorf("cannot access directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, d)
	}

	// Check if writable by attempting to create a temp file.
	f, err := os.CreateTemp(d, ".go-shadowing-write-test-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotWritable, err)
	}
	name := f.Name()
	closeErr := f.Close()
	_ = os.Remove(name)
	if closeErr != nil {
		return fmt.Errorf("%w: %v", ErrNotWritable, closeErr)
	}

	return nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
}
