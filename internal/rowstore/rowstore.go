// Package rowstore is the implementation of the raw row log component.
// Rows pulled from the remote platform are appended, one JSON document per
// line, to a log per (tenant, table). Rows are never mutated after write;
// deduplication is the reader's responsibility based on the declared
// primary key.
package rowstore

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/tendersync/tendersync/internal/constants"
	"github.com/ubuntu/decorate"
)

// maxRowSize bounds a single persisted row when scanning the log back.
const maxRowSize = 4 * 1024 * 1024

// Store manages append-only raw row logs, laid out as a directory per tenant.
type Store struct {
	path string

	mu  sync.Mutex
	log *slog.Logger
}

// New returns a new row Store.
// path is the folder the per-tenant row logs are stored into.
func New(l *slog.Logger, path string) *Store {
	return &Store{log: l, path: path}
}

// Append persists one raw row to the (tenant, table) log.
// Ownership of the row transfers to the log once written.
func (s *Store) Append(tenant, table string, row map[string]any) (err error) {
	defer decorate.OnError(&err, "could not store row for %s/%s", tenant, table)

	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("could not encode row: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.file(tenant, table)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("could not create row log directory: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("could not open row log: %v", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("could not append row: %v", err)
	}
	return f.Close()
}

// Read returns up to limit rows from the (tenant, table) log starting at
// offset, along with the total number of rows in the log. A non-positive
// limit returns all remaining rows.
func (s *Store) Read(tenant, table string, offset, limit int) (rows []map[string]any, total int, err error) {
	defer decorate.OnError(&err, "could not read rows for %s/%s", tenant, table)

	err = s.scan(tenant, table, func(row map[string]any) {
		if total >= offset && (limit <= 0 || len(rows) < limit) {
			rows = append(rows, row)
		}
		total++
	})
	return rows, total, err
}

// ExportCSV writes the whole (tenant, table) log to w as CSV and returns the
// number of rows written. Columns are the sorted union of keys across rows.
func (s *Store) ExportCSV(tenant, table string, w io.Writer) (count int, err error) {
	defer decorate.OnError(&err, "could not export rows for %s/%s", tenant, table)

	var rows []map[string]any
	columnSet := make(map[string]bool)
	err = s.scan(tenant, table, func(row map[string]any) {
		for k := range row {
			columnSet[k] = true
		}
		rows = append(rows, row)
	})
	if err != nil {
		return 0, err
	}

	columns := make([]string, 0, len(columnSet))
	for k := range columnSet {
		columns = append(columns, k)
	}
	slices.Sort(columns)

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return 0, err
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			record[i] = formatValue(row[col])
		}
		if err := cw.Write(record); err != nil {
			return count, err
		}
		count++
	}
	cw.Flush()
	return count, cw.Error()
}

// scan streams every decodable row of the log to fn.
// A missing log is an empty log. Undecodable lines (e.g. a torn trailing
// write) are skipped with a warning rather than poisoning the whole read.
func (s *Store) scan(tenant, table string, fn func(map[string]any)) error {
	f, err := os.Open(s.file(tenant, table))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not open row log: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRowSize)
	for scanner.Scan() {
		var row map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			s.log.Warn("Skipping undecodable row log line", "tenant", tenant, "table", table, "error", err)
			continue
		}
		fn(row)
	}
	return scanner.Err()
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	}
}

func (s *Store) file(tenant, table string) string {
	return filepath.Join(s.path, tenant, table+constants.RowFileExt)
}
