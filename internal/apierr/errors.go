// Package apierr classifies failures from remote object stores into shared
// sentinels and retries the transient ones with exponential backoff.
//
// Storage adapters pass SDK errors through Classify at their boundary.
// Callers check with errors.Is(err, apierr.ErrThrottled) etc.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/aws/smithy-go"
)

// Sentinel errors for remote store failures.
var (
	// ErrThrottled indicates the store asked the client to slow down (temporary, retryable).
	ErrThrottled = errors.New("request throttled")

	// ErrUnavailable indicates a server-side failure (5xx) or a dropped connection.
	ErrUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates a request timed out.
	ErrTimeout = errors.New("request timeout")

	// ErrAuthFailed indicates the credentials were rejected or lack permission.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrNoSuchBucket indicates the configured bucket does not exist.
	ErrNoSuchBucket = errors.New("bucket not found")

	// ErrBadRequest indicates a client error (4xx) that is not otherwise classified.
	ErrBadRequest = errors.New("bad request")
)

// statusCoder is implemented by the SDK's HTTP response errors.
type statusCoder interface {
	HTTPStatusCode() int
}

var codeSentinels = map[string]error{
	"SlowDown":              ErrThrottled,
	"Throttling":            ErrThrottled,
	"ThrottlingException":   ErrThrottled,
	"RequestLimitExceeded":  ErrThrottled,
	"AccessDenied":          ErrAuthFailed,
	"InvalidAccessKeyId":    ErrAuthFailed,
	"SignatureDoesNotMatch": ErrAuthFailed,
	"ExpiredToken":          ErrAuthFailed,
	"NoSuchBucket":          ErrNoSuchBucket,
	"RequestTimeout":        ErrTimeout,
	"InternalError":         ErrUnavailable,
	"ServiceUnavailable":    ErrUnavailable,
}

// Classify wraps err with the sentinel matching its error code or HTTP
// status. Context errors and errors that match nothing are returned as is.
func Classify(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if sentinel, ok := codeSentinels[apiErr.ErrorCode()]; ok {
			return fmt.Errorf("%w: %w", sentinel, err)
		}
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		switch code := sc.HTTPStatusCode(); {
		case code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", ErrThrottled, err)
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return fmt.Errorf("%w: %w", ErrAuthFailed, err)
		case code == http.StatusRequestTimeout:
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		case code >= 500:
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		case code >= 400:
			return fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

// Retryable reports whether a classified error is worth another attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrThrottled) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrTimeout)
}
