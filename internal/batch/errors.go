package batch

import "errors"

// ErrFilesFailed indicates at least one file in a batch did not complete.
var ErrFilesFailed = errors.New("batch had failures")

// ErrPublishFailed indicates the output was written but could not be uploaded.
// The local file is kept.
var ErrPublishFailed = errors.New("publish failed")
