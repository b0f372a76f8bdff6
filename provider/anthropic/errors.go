package anthropic

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/spetersoncode/wizard"
)

// wrapError categorizes an Anthropic SDK error as transient or
// permanent, extracting the status code and Retry-After header so
// retry logic can fail fast on auth errors and honor server backoff
// hints.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		// Not an API error; likely a network failure, left
		// uncategorized so it stays retryable.
		return err
	}

	code := apiErr.StatusCode
	msg := err.Error()
	if retryAfter := parseRetryAfter(apiErr.Response); retryAfter > 0 {
		return wizard.NewTransientErrorWithRetry(msg, code, retryAfter, err)
	}
	if categorizeStatusCode(code) == wizard.ErrorTransient {
		return wizard.NewTransientError(msg, code, err)
	}
	return wizard.NewPermanentError(msg, code, err)
}

// categorizeStatusCode determines the error category from an HTTP
// status code. Anthropic uses 529 for overload alongside the usual
// rate-limit and server-error codes.
func categorizeStatusCode(code int) wizard.ErrorCategory {
	switch {
	case code == http.StatusTooManyRequests:
		return wizard.ErrorTransient
	case code >= 500 && code < 600:
		return wizard.ErrorTransient
	default:
		return wizard.ErrorPermanent
	}
}

// parseRetryAfter extracts the Retry-After duration from an HTTP
// response. Returns 0 if the header is absent or unparseable.
func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}

	return 0
}
