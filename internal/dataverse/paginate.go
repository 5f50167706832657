package dataverse

import (
	"context"
	"iter"
	"net/url"
)

const nextLinkField = "@odata.nextLink"

// Row is one record produced by a paged query.
type Row struct {
	// Data is the raw record as returned by the Web API.
	Data map[string]any
	// PageStart is true exactly for the first row of each server page,
	// including the first one, letting consumers count pages without buffering.
	PageStart bool
}

// Rows turns a single query into a lazy, finite sequence of rows spanning
// multiple server pages. The sequence follows the server's continuation link
// until absent; continuation links are requested verbatim. It restarts from
// scratch on every range; it is not resumable mid-stream.
//
// Executor failures surface at the point of the next requested row; rows
// already yielded are not rolled back.
func (c *Client) Rows(ctx context.Context, path string, params url.Values, pageSize int) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		page, err := c.Get(ctx, path, params, pageSize)
		for {
			if err != nil {
				yield(Row{}, err)
				return
			}

			pageStart := true
			for _, item := range pageValue(page) {
				if !yield(Row{Data: item, PageStart: pageStart}, nil) {
					return
				}
				pageStart = false
			}

			next, _ := page[nextLinkField].(string)
			if next == "" {
				return
			}
			page, err = c.Get(ctx, next, nil, pageSize)
		}
	}
}

// pageValue extracts the record list from a page body, tolerating rows of
// unexpected shape.
func pageValue(page map[string]any) []map[string]any {
	raw, _ := page["value"].([]any)
	items := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		if item, ok := r.(map[string]any); ok {
			items = append(items, item)
		}
	}
	return items
}
