// Package auth implements the token manager component.
// The token manager acquires and caches access credentials for the Dataverse
// organization through the OAuth2 client-credentials grant.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tendersync/tendersync/internal/constants"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var (
	// ErrTokenAcquisition is returned when the identity provider rejects the
	// client credentials or the token request fails.
	ErrTokenAcquisition = errors.New("could not acquire access token")
)

// Manager caches one token source per authorization scope.
// Cached credentials are replaced on refresh, never mutated in place, and the
// cache holds at most one entry per distinct scope.
type Manager struct {
	clientID     string
	clientSecret string
	tokenURL     string
	expiryMargin time.Duration
	httpClient   *http.Client

	mu      sync.Mutex
	sources map[string]oauth2.TokenSource

	log *slog.Logger
}

type options struct {
	tokenURL     string
	expiryMargin time.Duration
	httpClient   *http.Client
}

// Options represents an optional function to override Manager default values.
type Options func(*options)

// New returns a new token Manager for the given identity tenant and client credentials.
func New(l *slog.Logger, tenantID, clientID, clientSecret string, args ...Options) *Manager {
	opts := options{
		tokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID),
		expiryMargin: time.Minute,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range args {
		opt(&opts)
	}

	l.Debug("Creating new token manager", "tenant", Mask(tenantID), "client", Mask(clientID))

	return &Manager{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     opts.tokenURL,
		expiryMargin: opts.expiryMargin,
		httpClient:   opts.httpClient,
		sources:      make(map[string]oauth2.TokenSource),
		log:          l,
	}
}

// Token returns a valid credential for the given scope.
// A cached credential is reused as long as its expiry is at least the safety
// margin away; otherwise a fresh one is fetched from the identity provider.
func (m *Manager) Token(ctx context.Context, scope string) (*oauth2.Token, error) {
	tok, err := m.source(scope).Token()
	if err != nil {
		m.log.Warn("Token acquisition failed", "client", Mask(m.clientID), "error", err)
		return nil, errors.Join(ErrTokenAcquisition, err)
	}
	return tok, nil
}

// source returns the cached token source for scope, creating it on first use.
// The token source itself is safe for concurrent use; a refresh race between
// two callers leaves an equally valid fresh token in place.
func (m *Manager) source(scope string) oauth2.TokenSource {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ts, ok := m.sources[scope]; ok {
		return ts
	}

	cfg := clientcredentials.Config{
		ClientID:     m.clientID,
		ClientSecret: m.clientSecret,
		TokenURL:     m.tokenURL,
		Scopes:       []string{scope},
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, m.httpClient)
	ts := oauth2.ReuseTokenSourceWithExpiry(nil, cfg.TokenSource(ctx), m.expiryMargin)
	m.sources[scope] = ts
	return ts
}

// Scope derives the authorization scope from the organization URL.
func Scope(orgURL string) string {
	return strings.TrimRight(orgURL, "/") + constants.DefaultScopeSuffix
}

// Mask redacts an identifier for diagnostics, keeping only a short prefix and suffix.
func Mask(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-2:]
}
