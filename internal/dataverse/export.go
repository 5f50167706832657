package dataverse

import (
	"time"
)

// WithMaxAttempts overrides the bounded attempt count of the retry policy.
func WithMaxAttempts(n int) Options {
	return func(o *options) {
		o.maxAttempts = n
	}
}

// WithSleep overrides the sleep function consumed by the retry policy.
func WithSleep(sleep func(time.Duration)) Options {
	return func(o *options) {
		o.sleep = sleep
	}
}

// WithJitter overrides the jitter function consumed by the retry policy.
func WithJitter(jitter func() time.Duration) Options {
	return func(o *options) {
		o.jitter = jitter
	}
}
