// Package dataverse implements the Dataverse Web API client.
// It covers the resilient request executor, the row paginator and the table
// metadata resolver used by the ingestion engine.
package dataverse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tendersync/tendersync/internal/constants"
	"golang.org/x/oauth2"
)

// UpstreamError reports a request that failed with a non-transient status,
// or that exhausted its retry allowance. Status is zero for transport-level
// failures.
type UpstreamError struct {
	Status int
	Body   string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("dataverse request failed: %s", e.Body)
	}
	return fmt.Sprintf("dataverse request failed with status %d: %s", e.Status, e.Body)
}

// TokenProvider supplies a valid bearer credential for an authorization scope.
type TokenProvider interface {
	Token(ctx context.Context, scope string) (*oauth2.Token, error)
}

// Client issues authenticated requests against one Dataverse organization.
type Client struct {
	orgURL  string
	apiBase string
	scope   string

	tokens TokenProvider
	http   *http.Client
	retry  retryPolicy

	log *slog.Logger
}

// retryPolicy bounds the retry loop of the request executor.
// sleep and jitter are injectable so the policy stays testable without real delays.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	sleep       func(time.Duration)
	jitter      func() time.Duration
}

// delay computes the wait before the next attempt. A server-supplied
// Retry-After hint overrides the exponential backoff; jitter is always added
// to avoid synchronized retry storms across tenants.
func (p retryPolicy) delay(attempt int, retryAfter time.Duration) time.Duration {
	d := min(p.baseDelay<<(attempt-1), p.maxDelay)
	if retryAfter > 0 {
		d = retryAfter
	}
	return d + p.jitter()
}

type options struct {
	httpClient  *http.Client
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	sleep       func(time.Duration)
	jitter      func() time.Duration
}

// Options represents an optional function to override Client default values.
type Options func(*options)

// New returns a new Client for the given organization URL.
func New(l *slog.Logger, orgURL string, tokens TokenProvider, args ...Options) *Client {
	opts := options{
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		maxAttempts: 4,
		baseDelay:   800 * time.Millisecond,
		maxDelay:    30 * time.Second,
		sleep:       time.Sleep,
	}
	opts.jitter = func() time.Duration {
		return time.Duration(rand.Int63n(max(int64(opts.baseDelay), 1))) // #nosec:G404 We don't need cryptographic randomness.
	}
	for _, opt := range args {
		opt(&opts)
	}

	orgURL = strings.TrimRight(orgURL, "/")
	return &Client{
		orgURL:  orgURL,
		apiBase: orgURL + "/api/data/" + constants.WebAPIVersion,
		scope:   orgURL + constants.DefaultScopeSuffix,
		tokens:  tokens,
		http:    opts.httpClient,
		retry: retryPolicy{
			maxAttempts: opts.maxAttempts,
			baseDelay:   opts.baseDelay,
			maxDelay:    opts.maxDelay,
			sleep:       opts.sleep,
			jitter:      opts.jitter,
		},
		log: l,
	}
}

// Get issues a GET request against a relative Web API path or an absolute
// continuation link. Continuation links are requested verbatim: caller
// parameters are dropped because the link already embeds its own query.
func (c *Client) Get(ctx context.Context, pathOrURL string, params url.Values, pageSize int) (map[string]any, error) {
	return c.do(ctx, http.MethodGet, pathOrURL, params, nil, pageSize)
}

// Post issues a POST request against a relative Web API path.
func (c *Client) Post(ctx context.Context, path string, payload any) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, path, nil, payload, 0)
}

// WhoAmI verifies connectivity and credentials against the organization.
func (c *Client) WhoAmI(ctx context.Context) (map[string]any, error) {
	return c.Get(ctx, "/WhoAmI", nil, 0)
}

func (c *Client) do(ctx context.Context, method, pathOrURL string, params url.Values, payload any, pageSize int) (map[string]any, error) {
	target := pathOrURL
	if isAbsolute(pathOrURL) {
		params = nil
	} else {
		target = c.apiBase + pathOrURL
		if len(params) > 0 {
			target += "?" + params.Encode()
		}
	}

	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("could not encode request body: %v", err)
		}
	}

	tok, err := c.tokens.Token(ctx, c.scope)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		resp, reqErr := c.send(ctx, method, target, body, tok.AccessToken, params, pageSize)
		if reqErr != nil {
			// Transport-level timeouts and resets are transient.
			if attempt >= c.retry.maxAttempts {
				return nil, &UpstreamError{Body: reqErr.Error()}
			}
			c.log.Debug("Request failed, retrying", "url", target, "attempt", attempt, "error", reqErr)
			c.retry.sleep(c.retry.delay(attempt, 0))
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("could not read response body: %v", err)
		}

		switch {
		case resp.StatusCode < 400:
			return parseBody(respBody)
		case isRetryable(resp.StatusCode):
			if attempt >= c.retry.maxAttempts {
				return nil, &UpstreamError{Status: resp.StatusCode, Body: string(respBody)}
			}
			wait := c.retry.delay(attempt, retryAfter(resp.Header))
			c.log.Debug("Throttled or transient status, retrying", "status", resp.StatusCode, "attempt", attempt, "wait", wait)
			c.retry.sleep(wait)
		default:
			return nil, &UpstreamError{Status: resp.StatusCode, Body: string(respBody)}
		}
	}
}

func (c *Client) send(ctx context.Context, method, target string, body []byte, bearer string, params url.Values, pageSize int) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if needsConsistency(params) {
		req.Header.Set("ConsistencyLevel", "eventual")
	}
	if pageSize > 0 {
		req.Header.Set("Prefer", fmt.Sprintf("odata.maxpagesize=%d", pageSize))
	}

	return c.http.Do(req)
}

func parseBody(body []byte) (map[string]any, error) {
	if len(body) == 0 {
		return map[string]any{}, nil
	}
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("could not parse response body: %v", err)
	}
	return parsed, nil
}

func isAbsolute(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func isRetryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// needsConsistency reports whether the query requests an approximate count,
// which Dataverse only honors together with a consistency directive.
func needsConsistency(params url.Values) bool {
	v := params.Get("$count")
	return v != "" && !strings.EqualFold(v, "false")
}

func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
