package google

import (
	"errors"
	"net/http"

	"github.com/spetersoncode/wizard"
	"google.golang.org/genai"
)

// wrapError categorizes a Google GenAI error as transient or permanent
// by status code. genai.APIError does not expose response headers, so
// no Retry-After hint is available.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		// Not an API error; likely a network failure, left
		// uncategorized so it stays retryable.
		return err
	}

	code := apiErr.Code
	msg := err.Error()
	if categorizeStatusCode(code) == wizard.ErrorTransient {
		return wizard.NewTransientError(msg, code, err)
	}
	return wizard.NewPermanentError(msg, code, err)
}

// categorizeStatusCode determines the error category from an HTTP
// status code.
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
