package ffmpeg

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// maxBinarySize caps decompression. The static build is about 80MB.
const maxBinarySize = 200 * 1024 * 1024

// install downloads the pinned build to bin and writes the version marker.
func (r *Resolver) install(ctx context.Context, bin string) error {
	info, err := r.buildInfo()
	if err != nil {
		return err
	}

	dir := filepath.Dir(bin)
	if err := r.writer.MkdirAll(dir, installDirPerm); err != nil {
		return fmt.Errorf("cannot create install directory %s: %w", dir, err)
	}

	if err := r.fetch(ctx, info, bin); err != nil {
		_ = r.writer.Remove(bin)
		return fmt.Errorf("download ffmpeg: %w", err)
	}

	if err := r.writer.WriteFile(filepath.Join(dir, versionFileName), []byte(ffmpegVersion), 0644); err != nil {
		return fmt.Errorf("write version marker: %w", err)
	}
	return nil
}

// buildInfo returns the override build or the pinned one for this platform.
func (r *Resolver) buildInfo() (binaryInfo, error) {
	if r.build != nil {
		return *r.build, nil
	}
	info, ok := platformBuild(r.goos, r.goarch)
	if !ok {
		return binaryInfo{}, fmt.Errorf("%w: %s-%s (supported: darwin-arm64, darwin-amd64, linux-amd64, windows-amd64)",
			ErrUnsupportedPlatform, r.goos, r.goarch)
	}
	return info, nil
}

// fetch downloads the archive next to bin, verifies it, and extracts it.
func (r *Resolver) fetch(ctx context.Context, info binaryInfo, bin string) error {
	archive, err := r.writer.CreateTemp(filepath.Dir(bin), ".download-*")
	if err != nil {
		return fmt.Errorf("cannot create temp file: %w", err)
	}
	archivePath := archive.Name()
	defer func() {
		_ = archive.Close()
		_ = r.writer.Remove(archivePath)
	}()

	if err := r.get(ctx, info.URL, archive); err != nil {
		return err
	}
	if err := archive.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := verifyChecksum(archivePath, info.SHA256); err != nil {
		return err
	}
	if err := decompressGzip(archivePath, bin); err != nil {
		return err
	}

	if r.goos != "windows" {
		if err := r.writer.Chmod(bin, 0755); err != nil {
			return fmt.Errorf("make binary executable: %w", err)
		}
	}
	return nil
}

// get streams url into dest.
func (r *Resolver) get(ctx context.Context, url string, dest io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: invalid URL: %v", ErrDownloadFailed, err)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d from %s", ErrDownloadFailed, resp.StatusCode, url)
	}
	if _, err := io.Copy(dest, resp.Body); err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return nil
}

// verifyChecksum compares the SHA256 of a file with the expected hex digest.
func verifyChecksum(path, want string) error {
	f, err := os.Open(path) // #nosec G304 -- internal temp file
	if err != nil {
		return fmt.Errorf("cannot open file for checksum: %w", err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("compute checksum: %w", err)
	}

	if got := hex.EncodeToString(h.Sum(nil)); got != want {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, want, got)
	}
	return nil
}

// decompressGzip extracts gzPath to destPath through a temp file and a
// rename, refusing archives that expand past maxBinarySize.
func decompressGzip(gzPath, destPath string) error {
	in, err := os.Open(gzPath) // #nosec G304 -- internal temp file
	if err != nil {
		return fmt.Errorf("cannot open gzip file: %w", err)
	}
	defer func() { _ = in.Close() }()

	zr, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("invalid gzip file: %w", err)
	}
	defer func() { _ = zr.Close() }()

	out, err := os.CreateTemp(filepath.Dir(destPath), ".extract-*")
	if err != nil {
		return fmt.Errorf("cannot create temp file: %w", err)
	}
	outPath := out.Name()

	done := false
	defer func() {
		_ = out.Close()
		if !done {
			_ = os.Remove(outPath)
		}
	}()

	n, err := io.Copy(out, io.LimitReader(zr, maxBinarySize))
	if err != nil {
		return fmt.Errorf("decompression failed: %w", err)
	}
	if n >= maxBinarySize {
		return fmt.Errorf("decompression failed: file exceeds %d bytes limit", maxBinarySize)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(outPath, destPath); err != nil {
		return fmt.Errorf("install binary: %w", err)
	}
	done = true
	return nil
}
