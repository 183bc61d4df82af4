// Package storage publishes finished outputs to an S3-compatible object store.
package storage

import (
	"context"
	"errors"
	"path"
	"path/filepath"
	"strings"
)

// ErrNotConfigured indicates publishing was requested without a bucket or region.
var ErrNotConfigured = errors.New("object storage not configured")

// Publisher uploads a local file and returns the URL it can be fetched from.
type Publisher interface {
	Publish(ctx context.Context, localPath string) (url string, err error)
}

// ObjectKey returns the key for localPath under prefix. The prefix is
// treated as a directory whether or not it ends with a slash.
func ObjectKey(prefix, localPath string) string {
	base := filepath.Base(localPath)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return base
	}
	return path.Join(prefix, base)
}

var contentTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".flac": "audio/flac",
}

// ContentType guesses the MIME type of an audio output from its extension.
func ContentType(localPath string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(localPath))]; ok {
		return ct
	}
	return "application/octet-stream"
}
