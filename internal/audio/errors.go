package audio

import "errors"

// ErrFileNotFound indicates the specified input file does not exist.
var ErrFileNotFound = errors.New("file not found")

// ErrDecodeFailed indicates the input could not be decoded to PCM.
var ErrDecodeFailed = errors.New("audio decoding failed")

// ErrEncodeFailed indicates the output could not be encoded or written.
var ErrEncodeFailed = errors.New("audio encoding failed")

// ErrUnsupportedFormat indicates an output extension with no known encoder.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// ErrEmptyRecording indicates a decoded input contains no audio frames.
var ErrEmptyRecording = errors.New("recording is empty")
