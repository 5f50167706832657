package auth_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tendersync/tendersync/internal/auth"
	"golang.org/x/oauth2"
)

func TestToken(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		expiresIn    int
		expiryMargin time.Duration
		calls        int
		reject       bool

		wantRequests int32
		wantErr      bool
	}{
		"Fresh token is fetched once":          {expiresIn: 3600, calls: 1, wantRequests: 1},
		"Cached token causes no network call":  {expiresIn: 3600, calls: 3, wantRequests: 1},
		"Near-expiry token is refetched":       {expiresIn: 5, expiryMargin: time.Minute, calls: 2, wantRequests: 2},

		"Error when the identity provider rejects credentials": {reject: true, calls: 1, wantRequests: 1, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var requests atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests.Add(1)
				if tc.reject {
					w.WriteHeader(http.StatusUnauthorized)
					fmt.Fprint(w, `{"error":"invalid_client"}`)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprintf(w, `{"access_token":"token-%d","token_type":"Bearer","expires_in":%d}`, requests.Load(), tc.expiresIn)
			}))
			t.Cleanup(server.Close)

			margin := tc.expiryMargin
			if margin == 0 {
				margin = time.Minute
			}
			m := auth.New(slog.Default(), "directory", "client-id", "client-secret",
				auth.WithTokenURL(server.URL),
				auth.WithExpiryMargin(margin))

			var err error
			for range tc.calls {
				var tok *oauth2.Token
				tok, err = m.Token(context.Background(), "https://org.crm.dynamics.com/.default")
				if err != nil {
					break
				}
				require.True(t, tok.Valid(), "returned credential should be valid")
			}

			if tc.wantErr {
				require.Error(t, err, "Token should fail")
				require.ErrorIs(t, err, auth.ErrTokenAcquisition, "failure should wrap ErrTokenAcquisition")
				return
			}
			require.NoError(t, err, "Token should not fail")
			require.Equal(t, tc.wantRequests, requests.Load(), "unexpected number of token endpoint requests")
		})
	}
}

func TestTokenCacheIsPerScope(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"token","token_type":"Bearer","expires_in":3600}`)
	}))
	t.Cleanup(server.Close)

	m := auth.New(slog.Default(), "directory", "client-id", "client-secret", auth.WithTokenURL(server.URL))

	_, err := m.Token(context.Background(), "https://one.crm.dynamics.com/.default")
	require.NoError(t, err)
	_, err = m.Token(context.Background(), "https://two.crm.dynamics.com/.default")
	require.NoError(t, err)
	_, err = m.Token(context.Background(), "https://one.crm.dynamics.com/.default")
	require.NoError(t, err)

	require.Equal(t, int32(2), requests.Load(), "one network call per distinct scope")
}

func TestScope(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		orgURL string
		want   string
	}{
		"Plain organization URL": {orgURL: "https://org.crm.dynamics.com", want: "https://org.crm.dynamics.com/.default"},
		"Trailing slash trimmed": {orgURL: "https://org.crm.dynamics.com/", want: "https://org.crm.dynamics.com/.default"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, auth.Scope(tc.orgURL))
		})
	}
}

func TestMask(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		in   string
		want string
	}{
		"Empty identifier":      {in: "", want: "****"},
		"Short identifier":      {in: "secret", want: "****"},
		"Long identifier keeps prefix and suffix": {in: "11112222-3333-4444", want: "1111...44"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got := auth.Mask(tc.in)
			require.Equal(t, tc.want, got)
			require.NotContains(t, got, "2222-3333", "masked identifier should not leak its middle")
		})
	}
}
