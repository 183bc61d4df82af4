package ffmpeg

import "errors"

// ErrNotFound indicates no usable ffmpeg binary could be found or installed.
var ErrNotFound = errors.New("ffmpeg not found")

// ErrUnsupportedPlatform indicates no pinned build exists for this OS/architecture.
var ErrUnsupportedPlatform = errors.New("unsupported platform for FFmpeg auto-download")

// ErrChecksumMismatch indicates a downloaded archive failed SHA256 verification.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// ErrDownloadFailed indicates the archive could not be downloaded.
var ErrDownloadFailed = errors.New("download failed")
