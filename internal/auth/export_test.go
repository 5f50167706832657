package auth

import (
	"net/http"
	"time"
)

// WithTokenURL overrides the identity provider token endpoint.
func WithTokenURL(url string) Options {
	return func(o *options) {
		o.tokenURL = url
	}
}

// WithExpiryMargin overrides the credential expiry safety margin.
func WithExpiryMargin(d time.Duration) Options {
	return func(o *options) {
		o.expiryMargin = d
	}
}

// WithHTTPClient overrides the HTTP client used for token requests.
func WithHTTPClient(c *http.Client) Options {
	return func(o *options) {
		o.httpClient = c
	}
}
