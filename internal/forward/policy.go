package forward

import (
	"errors"
	"strings"
	"time"

	"relaybot/internal/transport"
)

// failureClass buckets a send error for retry decisions.
type failureClass int

const (
	classRateLimited failureClass = iota
	classTimeout
	classPermanent
	classTransient
	classUnknown
)

func (c failureClass) String() string {
	switch c {
	case classRateLimited:
		return "rate_limited"
	case classTimeout:
		return "timeout"
	case classPermanent:
		return "permanent"
	case classTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Error descriptions that mean the destination itself is gone or unusable.
// Retrying these cannot help.
var permanentVocabulary = []string{
	"chat not found",
	"bot was kicked",
	"not a member",
	"have no rights",
}

// retryRule says whether a failure class is retried and how long to wait
// before the next attempt. serverWait is only meaningful for rate limits.
type retryRule struct {
	retry   bool
	backoff func(serverWait time.Duration) time.Duration
}

func fixed(d time.Duration) func(time.Duration) time.Duration {
	return func(time.Duration) time.Duration { return d }
}

// retryPolicy is the single source of truth for the copier's retry loop.
// Rate limits honor the server-specified wait plus one second of slack;
// unknown failure classes fail fast rather than retry blind.
var retryPolicy = map[failureClass]retryRule{
	classRateLimited: {retry: true, backoff: func(w time.Duration) time.Duration { return w + time.Second }},
	classTimeout:     {retry: true, backoff: fixed(2 * time.Second)},
	classTransient:   {retry: true, backoff: fixed(time.Second)},
	classPermanent:   {retry: false},
	classUnknown:     {retry: false},
}

// classifyFailure maps a transport error to its failure class. For rate
// limits it also returns the server-specified wait.
func classifyFailure(err error) (failureClass, time.Duration) {
	var rl *transport.RateLimitedError
	if errors.As(err, &rl) {
		return classRateLimited, rl.RetryAfter
	}
	var to *transport.TimeoutError
	if errors.As(err, &to) {
		return classTimeout, 0
	}
	var se *transport.SendError
	if errors.As(err, &se) {
		desc := strings.ToLower(se.Description)
		for _, v := range permanentVocabulary {
			if strings.Contains(desc, v) {
				return classPermanent, 0
			}
		}
		return classTransient, 0
	}
	return classUnknown, 0
}
