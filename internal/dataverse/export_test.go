package dataverse

import (
	"net/http"
	"time"
)

// WithHTTPClient overrides the HTTP client used by the executor.
func WithHTTPClient(c *http.Client) Options {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithBaseDelay overrides the initial backoff delay of the retry policy.
func WithBaseDelay(d time.Duration) Options {
	return func(o *options) {
		o.baseDelay = d
	}
}

