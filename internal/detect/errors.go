package detect

import "errors"

// ErrInvalidParams indicates detection parameters outside the usable range.
var ErrInvalidParams = errors.New("invalid detection parameters")

// ErrDetectFailed indicates the ffmpeg silencedetect run failed.
var ErrDetectFailed = errors.New("silence detection failed")
