package transport

import (
	"fmt"
	"time"
)

// RateLimitedError is the platform telling us to slow down. RetryAfter is
// the server-specified wait; callers are expected to honor it.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// TimeoutError marks a send that did not complete in time. Transient.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string {
	if e.Err == nil {
		return "send timed out"
	}
	return "send timed out: " + e.Err.Error()
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// SendError is a platform API error with a human-readable description.
// Whether it is permanent is decided by the retry policy, not here.
type SendError struct {
	Code        int
	Description string
}

func (e *SendError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("send failed (%d): %s", e.Code, e.Description)
	}
	return "send failed: " + e.Description
}
