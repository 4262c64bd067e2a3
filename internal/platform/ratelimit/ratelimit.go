// Package ratelimit provides admission control for the public API: a
// fixed-window counter per (identity, bucket), with in-memory, Redis and
// noop backends.
package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

var ErrLimited = errors.New("rate limit exceeded")

// LimitError reports a rejection together with the remaining window time,
// rounded up to whole seconds. It matches ErrLimited under errors.Is.
type LimitError struct {
	RetryAfter int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry in %ds", e.RetryAfter)
}

func (e *LimitError) Is(target error) bool {
	return target == ErrLimited
}

// Bucket configures one admission class. Window and Max come from config;
// a non-positive value disables the bucket.
type Bucket struct {
	Max    int
	Window time.Duration
}

func retryAfterSeconds(remaining time.Duration) int {
	secs := int((remaining + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
