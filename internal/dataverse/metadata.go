package dataverse

import (
	"context"
	"errors"
	"strings"
)

// ErrTableNotFound is returned by callers resolving a logical name the
// organization does not know about.
var ErrTableNotFound = errors.New("unknown logical table")

// TableMetadata maps a logical table name to its physical access parameters.
type TableMetadata struct {
	LogicalName          string
	EntitySetName        string
	PrimaryIDAttribute   string
	PrimaryNameAttribute string
}

// Found reports whether the metadata resolved to a known table.
// Callers must check it before building queries; an unknown logical name
// resolves to a zero value, never to an error.
func (m TableMetadata) Found() bool {
	return m.EntitySetName != ""
}

// FindTables fetches the full entity catalog and returns the definitions
// whose logical name starts with prefix (case-insensitive). An empty prefix
// returns the whole catalog.
//
// The catalog endpoint does not reliably combine server-side filtering with
// paging, so the scan sends no query parameters and filters client-side.
func (c *Client) FindTables(ctx context.Context, prefix string) ([]TableMetadata, error) {
	prefix = strings.ToLower(prefix)

	var out []TableMetadata
	for row, err := range c.Rows(ctx, "/EntityDefinitions", nil, 0) {
		if err != nil {
			return nil, err
		}

		logical, _ := row.Data["LogicalName"].(string)
		if logical == "" {
			continue
		}
		if prefix != "" && !strings.HasPrefix(strings.ToLower(logical), prefix) {
			continue
		}

		out = append(out, TableMetadata{
			LogicalName:          logical,
			EntitySetName:        stringField(row.Data, "EntitySetName"),
			PrimaryIDAttribute:   stringField(row.Data, "PrimaryIdAttribute"),
			PrimaryNameAttribute: stringField(row.Data, "PrimaryNameAttribute"),
		})
	}
	return out, nil
}

// GetTable resolves one table by exact case-insensitive logical name match
// against the full catalog. It returns a zero value when the name is unknown.
func (c *Client) GetTable(ctx context.Context, logical string) (TableMetadata, error) {
	tables, err := c.FindTables(ctx, "")
	if err != nil {
		return TableMetadata{}, err
	}

	for _, t := range tables {
		if strings.EqualFold(t.LogicalName, logical) {
			return t, nil
		}
	}
	return TableMetadata{}, nil
}

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}
