package audio

import "io"

// Export internal functions for testing.
// This file is only compiled during tests (suffix _test.go).

// ParseStreamInfo exports parseStreamInfo for testing.
var ParseStreamInfo = parseStreamInfo

// EncodePCM exports encodePCM for testing.
var EncodePCM = encodePCM

// DecodePCM exports decodePCM for testing.
var DecodePCM = decodePCM

// ToInt16 exports toInt16 for testing.
var ToInt16 = toInt16

// ReadWAV exports readWAV for testing.
func ReadWAV(r io.ReadSeeker) (*Recording, error) {
	return readWAV(r)
}

// WriteWAV exports writeWAV for testing.
func WriteWAV(w io.WriteSeeker, rec *Recording) error {
	return writeWAV(w, rec)
}

// --- Codec dependency injection exports ---

// CommandRunner exports commandRunner interface for testing.
type CommandRunner = commandRunner

// TempFileCreator exports tempFileCreator interface for testing.
type TempFileCreator = tempFileCreator

// FileStatter exports fileStatter interface for testing.
type FileStatter = fileStatter

// FileMover exports fileMover interface for testing.
type FileMover = fileMover
