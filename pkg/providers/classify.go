package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// TransientError marks a provider failure the caller may retry: rate
// limits, timeouts, overload, network flakes. Anything not classified as
// transient is treated as a hard failure.
type TransientError struct {
	Reason string
	Err    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient provider failure (%s): %v", e.Reason, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// transientPatterns are matched case-insensitively against the error
// text. Both SDKs fold HTTP status details into the message, so string
// matching is the common denominator across vendors.
var transientPatterns = map[string]string{
	"rate limit":          "rate_limit",
	"rate_limit":          "rate_limit",
	"status=429":          "rate_limit",
	"too many requests":   "rate_limit",
	"overloaded":          "overloaded",
	"status=529":          "overloaded",
	"status=503":          "overloaded",
	"service unavailable": "overloaded",
	"status=500":          "upstream",
	"status=502":          "upstream",
	"status=504":          "timeout",
	"timeout":             "timeout",
	"timed out":           "timeout",
	"connection refused":  "network",
	"connection reset":    "network",
	"no such host":        "network",
	"unexpected eof":      "network",
}

// Classify wraps err in a TransientError when it matches a retryable
// signature, and returns err unchanged otherwise.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &TransientError{Reason: "timeout", Err: err}
	}

	msg := strings.ToLower(err.Error())
	for pattern, reason := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return &TransientError{Reason: reason, Err: err}
		}
	}
	// io.EOF stringifies to just "EOF"; match it as a whole word so text
	// that merely contains the letters (geofence, eof-prefixed IDs) is
	// not treated as retryable.
	if containsWord(msg, "eof") {
		return &TransientError{Reason: "network", Err: err}
	}
	return err
}

// containsWord reports whether w appears in s with no letter, digit or
// underscore touching either side.
func containsWord(s, w string) bool {
	for idx := 0; ; {
		i := strings.Index(s[idx:], w)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(w)
		startOK := start == 0 || !isAlphanumeric(s[start-1])
		endOK := end == len(s) || !isAlphanumeric(s[end])
		if startOK && endOK {
			return true
		}
		idx = start + 1
	}
}

func isAlphanumeric(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
