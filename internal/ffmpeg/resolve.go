// Package ffmpeg locates, installs and runs the ffmpeg binary used to decode
// and encode compressed audio.
package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Pinned static build from github.com/eugeneware/ffmpeg-static, release b6.1.1.
const (
	ffmpegVersion   = "6.1.1"
	downloadBaseURL = "https://github.com/eugeneware/ffmpeg-static/releases/download/b6.1.1"

	binaryName       = "ffmpeg"
	binaryExtWindows = ".exe"

	// versionFileName records which pinned build is installed.
	versionFileName = ".version"

	// appDirName is the per-user directory holding the private install.
	appDirName = ".go-shadowing"

	installDirPerm  = 0750
	downloadTimeout = 10 * time.Minute
)

// EnvFFmpegPath overrides binary resolution when set.
const EnvFFmpegPath = "FFMPEG_PATH"

// defaultHTTPClient bounds each phase of the download separately.
var defaultHTTPClient = &http.Client{
	Timeout: downloadTimeout,
	Transport: &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	},
}

// ---------------------------------------------------------------------------
// Pinned builds
// ---------------------------------------------------------------------------

// binaryInfo describes one downloadable gzipped build.
type binaryInfo struct {
	URL    string
	SHA256 string // checksum of the .gz archive
}

// platformBuild returns the pinned build for goos/goarch.
func platformBuild(goos, goarch string) (binaryInfo, bool) {
	builds := map[string]binaryInfo{
		"darwin-arm64": {
			URL:    downloadBaseURL + "/ffmpeg-darwin-arm64.gz",
			SHA256: "8923876afa8db5585022d7860ec7e589af192f441c56793971276d450ed3bbfa",
		},
		"darwin-amd64": {
			URL:    downloadBaseURL + "/ffmpeg-darwin-x64.gz",
			SHA256: "5d8fb6f280c428d0e82cd5ee68215f0734d64f88e37dcc9e082f818c9e5025f0",
		},
		"linux-amd64": {
			URL:    downloadBaseURL + "/ffmpeg-linux-x64.gz",
			SHA256: "bfe8a8fc511530457b528c48d77b5737527b504a3797a9bc4866aeca69c2dffa",
		},
		"windows-amd64": {
			URL:    downloadBaseURL + "/ffmpeg-win32-x64.gz",
			SHA256: "8883a3dffbd0a16cf4ef95206ea05283f78908dbfb118f73c83f4951dcc06d77",
		},
	}
	info, ok := builds[goos+"-"+goarch]
	return info, ok
}

// ---------------------------------------------------------------------------
// Resolver - testable FFmpeg resolution with dependency injection
// ---------------------------------------------------------------------------

// Resolver finds ffmpeg and installs the pinned build when none is available.
type Resolver struct {
	reader    fileReader
	writer    fileWriter
	http      httpDoer
	env       envProvider
	stderr    io.Writer
	goos      string
	goarch    string
	build     *binaryInfo // nil uses platformBuild
	noInstall bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithFileReader sets the file reader implementation.
func WithFileReader(r fileReader) ResolverOption {
	return func(res *Resolver) { res.reader = r }
}

// WithFileWriter sets the file writer implementation.
func WithFileWriter(w fileWriter) ResolverOption {
	return func(res *Resolver) { res.writer = w }
}

// WithHTTPClient sets the HTTP client implementation.
func WithHTTPClient(c httpDoer) ResolverOption {
	return func(res *Resolver) { res.http = c }
}

// WithEnvProvider sets the environment provider implementation.
func WithEnvProvider(e envProvider) ResolverOption {
	return func(res *Resolver) { res.env = e }
}

// WithStderr sets the writer for status messages.
func WithStderr(w io.Writer) ResolverOption {
	return func(res *Resolver) { res.stderr = w }
}

// WithPlatform sets the target platform.
func WithPlatform(goos, goarch string) ResolverOption {
	return func(res *Resolver) {
		res.goos = goos
		res.goarch = goarch
	}
}

// WithBuild overrides the download location and checksum.
func WithBuild(url, sha256 string) ResolverOption {
	return func(res *Resolver) {
		res.build = &binaryInfo{URL: url, SHA256: sha256}
	}
}

// WithoutInstall disables the automatic download.
func WithoutInstall() ResolverOption {
	return func(res *Resolver) { res.noInstall = true }
}

// NewResolver creates a Resolver with production defaults.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		reader: osFileReader{},
		writer: osFileWriter{},
		http:   defaultHTTPClient,
		env:    osEnvProvider{},
		stderr: os.Stderr,
		goos:   runtime.GOOS,
		goarch: runtime.GOARCH,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the ffmpeg binary to use, checking in order:
//  1. the FFMPEG_PATH environment variable (an invalid value is an error)
//  2. the private install under ~/.go-shadowing/bin
//  3. the system PATH
//  4. a fresh download of the pinned build
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	if p := r.env.Getenv(EnvFFmpegPath); p != "" {
		if _, err := r.reader.Stat(p); err != nil {
			return "", fmt.Errorf("%w: %s=%q does not exist (unset it to allow auto-download)",
				ErrNotFound, EnvFFmpegPath, p)
		}
		return p, nil
	}

	bin, err := r.binaryPath()
	if err != nil {
		return "", err
	}
	if r.hasCurrentInstall(bin) {
		return bin, nil
	}

	if p, err := r.env.LookPath(binaryName); err == nil {
		return p, nil
	}

	if r.noInstall {
		return "", fmt.Errorf("%w\n\n%s", ErrNotFound, r.manualInstallInstructions())
	}

	fmt.Fprintf(r.stderr, "ffmpeg not found, downloading %s...\n", ffmpegVersion)
	if err := r.install(ctx, bin); err != nil {
		return "", fmt.Errorf("%w: auto-download failed: %v\n\n%s",
			ErrNotFound, err, r.manualInstallInstructions())
	}
	return bin, nil
}

// binaryPath returns where the private install lives.
func (r *Resolver) binaryPath() (string, error) {
	home, err := r.env.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	name := binaryName
	if r.goos == "windows" {
		name += binaryExtWindows
	}
	return filepath.Join(home, appDirName, "bin", name), nil
}

// hasCurrentInstall reports whether bin exists and was installed from the
// pinned version. A stale or unmarked install is replaced by a new download.
func (r *Resolver) hasCurrentInstall(bin string) bool {
	if _, err := r.reader.Stat(bin); err != nil {
		return false
	}
	marker, err := r.reader.ReadFile(filepath.Join(filepath.Dir(bin), versionFileName))
	if err != nil {
		return false
	}
	return string(marker) == ffmpegVersion
}

// manualInstallInstructions returns platform-specific instructions.
func (r *Resolver) manualInstallInstructions() string {
	switch r.goos {
	case "darwin":
		return `Install FFmpeg with:
  brew install ffmpeg

or point FFMPEG_PATH at an existing ffmpeg binary.
WAV input and output work without FFmpeg.`
	case "linux":
		return `Install FFmpeg with your package manager:
  Ubuntu/Debian: sudo apt install ffmpeg
  Fedora:        sudo dnf install ffmpeg
  Arch:          sudo pacman -S ffmpeg

or point FFMPEG_PATH at an existing ffmpeg binary.
WAV input and output work without FFmpeg.`
	case "windows":
		return `Install FFmpeg with:
  winget install ffmpeg

or point FFMPEG_PATH at an existing ffmpeg.exe.
WAV input and output work without FFmpeg.`
	default:
		return `Download FFmpeg from https://ffmpeg.org/download.html
or point FFMPEG_PATH at an existing ffmpeg binary.
WAV input and output work without FFmpeg.`
	}
}
