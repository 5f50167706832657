package dataverse_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tendersync/tendersync/internal/dataverse"
)

// pagedServer serves rows split into pages chained by @odata.nextLink.
// Each request's URL is recorded for later assertions.
func pagedServer(t *testing.T, pages [][]map[string]any, failAt int) (*httptest.Server, *[]url.URL) {
	t.Helper()

	var seen []url.URL
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, *r.URL)

		idx, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if failAt >= 0 && idx == failAt {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"message":"boom"}}`)
			return
		}

		body := map[string]any{"value": pages[idx]}
		if idx+1 < len(pages) {
			body["@odata.nextLink"] = fmt.Sprintf("%s/api/data/v9.2/items?page=%d", server.URL, idx+1)
		}
		require.NoError(t, json.NewEncoder(w).Encode(body))
	}))
	t.Cleanup(server.Close)
	return server, &seen
}

func makePages(sizes ...int) [][]map[string]any {
	var pages [][]map[string]any
	n := 0
	for _, size := range sizes {
		page := make([]map[string]any, 0, size)
		for range size {
			page = append(page, map[string]any{"id": fmt.Sprintf("row-%d", n)})
			n++
		}
		pages = append(pages, page)
	}
	return pages
}

func TestRows(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		pages  [][]map[string]any
		failAt int
		stopAt int

		wantRows       int
		wantPageStarts int
		wantRequests   int
		wantErr        bool
	}{
		"Single page":                      {pages: makePages(3), failAt: -1, stopAt: -1, wantRows: 3, wantPageStarts: 1, wantRequests: 1},
		"Rows span pages until the last":   {pages: makePages(3, 3, 2), failAt: -1, stopAt: -1, wantRows: 8, wantPageStarts: 3, wantRequests: 3},
		"Empty result":                     {pages: makePages(0), failAt: -1, stopAt: -1, wantRows: 0, wantPageStarts: 0, wantRequests: 1},
		"Early break stops fetching pages": {pages: makePages(3, 3, 2), failAt: -1, stopAt: 2, wantRows: 2, wantPageStarts: 1, wantRequests: 1},

		"Error surfaces mid-stream after yielded rows": {pages: makePages(3, 3, 2), failAt: 1, stopAt: -1, wantRows: 3, wantPageStarts: 1, wantRequests: 2, wantErr: true},
		"Error on the first page yields no rows":       {pages: makePages(3), failAt: 0, stopAt: -1, wantRows: 0, wantPageStarts: 0, wantRequests: 1, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			server, seen := pagedServer(t, tc.pages, tc.failAt)
			c := dataverse.New(slog.Default(), server.URL, staticTokens{},
				dataverse.WithMaxAttempts(1),
				dataverse.WithSleep(func(d time.Duration) {}),
				dataverse.WithJitter(noJitter))

			params := url.Values{}
			params.Set("page", "0")
			params.Set("$select", "id")

			var rows []dataverse.Row
			var pageStarts int
			var gotErr error
			for row, err := range c.Rows(context.Background(), "/items", params, 100) {
				if err != nil {
					gotErr = err
					break
				}
				rows = append(rows, row)
				if row.PageStart {
					pageStarts++
				}
				if tc.stopAt > 0 && len(rows) == tc.stopAt {
					break
				}
			}

			if tc.wantErr {
				require.Error(t, gotErr, "sequence should surface the upstream failure")
			} else {
				require.NoError(t, gotErr, "sequence should not fail")
			}
			require.Len(t, rows, tc.wantRows, "unexpected number of rows")
			require.Equal(t, tc.wantPageStarts, pageStarts, "PageStart should mark the first row of each page exactly once")
			require.Len(t, *seen, tc.wantRequests, "unexpected number of upstream requests")

			// Rows arrive in server order.
			for i, row := range rows {
				require.Equal(t, fmt.Sprintf("row-%d", i), row.Data["id"], "rows should preserve server order")
			}

			// Continuation requests carry only what the link embeds.
			for _, u := range (*seen)[1:] {
				require.Empty(t, u.Query().Get("$select"), "original parameters should not leak into continuation requests")
			}
		})
	}
}
