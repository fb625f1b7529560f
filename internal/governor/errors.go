package governor

import (
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/plx/internal/shared"
)

// RateLimitError carries a remote rate-limit signal through the call stack.
type RateLimitError struct {
	RetryAfter time.Duration // zero when the response carried no usable Retry-After
	Kind       Kind          // set by the gate once classified
	Original   error
}

func (e *RateLimitError) Error() string {
	msg := "catalog rate limited"
	if e.Kind != "" && e.Kind != None {
		msg += " (" + string(e.Kind) + ")"
	}
	if e.RetryAfter > 0 {
		msg = fmt.Sprintf("%s: retry after %s", msg, e.RetryAfter)
	}
	if e.Original != nil {
		msg += ": " + e.Original.Error()
	}
	return msg
}

func (e *RateLimitError) Unwrap() error {
	return e.Original
}

// Is matches [shared.ErrRateLimited] so callers need not import this package to test for it.
func (e *RateLimitError) Is(target error) bool {
	return target == shared.ErrRateLimited
}

// AsRateLimit extracts a [RateLimitError] from err.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

// Retryable reports whether err is worth another attempt after a short backoff.
func Retryable(err error) bool {
	return errors.Is(err, shared.ErrTransientNetwork)
}
