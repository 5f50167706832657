// Package ingest implements the ingestion engine component.
// The engine combines the metadata resolver, cursor store, paginator and raw
// row log to pull new or changed rows per tenant and table, advancing the
// persisted watermark monotonically.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/url"
	"sync"

	"github.com/tendersync/tendersync/internal/constants"
	"github.com/tendersync/tendersync/internal/cursors"
	"github.com/tendersync/tendersync/internal/dataverse"
)

const (
	modifiedField = "modifiedon"
	createdField  = "createdon"
)

// Source resolves table metadata and produces paged rows for a query.
type Source interface {
	GetTable(ctx context.Context, logical string) (dataverse.TableMetadata, error)
	Rows(ctx context.Context, path string, params url.Values, pageSize int) iter.Seq2[dataverse.Row, error]
}

// CursorStore persists per-(tenant, resource) watermarks.
type CursorStore interface {
	Get(tenant, resource string) (string, error)
	Set(tenant, resource, stamp string) error
}

// RowSink persists raw rows per (tenant, table).
type RowSink interface {
	Append(tenant, table string, row map[string]any) error
}

// Engine is the incremental poller.
type Engine struct {
	source  Source
	cursors CursorStore
	rows    RowSink

	log *slog.Logger
}

// PollOptions bound and steer a single poll run.
type PollOptions struct {
	// ForceFull ignores all cursors and pulls from the beginning.
	ForceFull bool
	// Since is a one-shot watermark override for this call only. It takes
	// precedence over the stored cursor when it is a valid ISO-8601 UTC
	// literal, but is never itself persisted unless the run advanced past
	// the stored value.
	Since string
	// MaxPages stops consumption after this many server pages. Zero means unbounded.
	MaxPages int
	// MaxRecords stops consumption after this many rows. Zero means unbounded.
	MaxRecords int
	// PageSize is the page size preference sent to the server.
	PageSize int
}

// Result reports the outcome of one table's poll run.
type Result struct {
	Table     string `json:"table"`
	Processed int    `json:"processed"`
	Pages     int    `json:"pages"`
	Cursor    string `json:"cursor,omitempty"`
	Error     string `json:"error,omitempty"`
}

// New returns a new ingestion Engine.
func New(l *slog.Logger, source Source, cursorStore CursorStore, rows RowSink) *Engine {
	return &Engine{source: source, cursors: cursorStore, rows: rows, log: l}
}

// Poll runs PollTable for every table, concurrently. Tables are independent
// units of work: one table's failure does not stop its siblings, and the
// returned results report partial success per table alongside the joined error.
func (e *Engine) Poll(ctx context.Context, tenant string, tables []string, opts PollOptions) ([]Result, error) {
	results := make([]Result, len(tables))
	var pollErr error
	mu := &sync.Mutex{}
	var wg sync.WaitGroup
	for i, table := range tables {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.PollTable(ctx, tenant, table, opts)
			mu.Lock()
			defer mu.Unlock()
			results[i] = res
			if err != nil {
				pollErr = errors.Join(pollErr, fmt.Errorf("poll failed for table %s: %w", table, err))
			}
		}()
	}
	wg.Wait()
	return results, pollErr
}

// PollTable pulls new or changed rows for one (tenant, table) pair.
//
// Cursor precedence, evaluated once per call: force-full disables filtering
// entirely; otherwise a valid one-shot override wins over the stored
// watermark; with neither, the pull is a full first-run catch-up. The
// effective watermark becomes a strictly-after filter with a null guard, and
// rows are requested in ascending modification order so the frontier stays
// resumable.
//
// Every consumed row is persisted before the engine moves on. When the run
// ends, by exhaustion, by a bound, or by a mid-stream failure, the watermark
// computed from fully processed rows is persisted; the store refuses
// regressions so a stale override or concurrent run can never move it back.
func (e *Engine) PollTable(ctx context.Context, tenant, logical string, opts PollOptions) (Result, error) {
	res := Result{Table: logical}

	fail := func(err error) (Result, error) {
		res.Error = err.Error()
		return res, err
	}

	meta, err := e.source.GetTable(ctx, logical)
	if err != nil {
		return fail(err)
	}
	if !meta.Found() {
		return fail(fmt.Errorf("%w: %s", dataverse.ErrTableNotFound, logical))
	}

	stored, err := e.cursors.Get(tenant, logical)
	if err != nil {
		return fail(err)
	}
	effective := e.effectiveCursor(opts, stored)

	params := url.Values{}
	params.Set("$orderby", modifiedField+" asc")
	if effective != "" {
		// Dataverse accepts unquoted datetimeoffset literals. The null guard
		// covers rows that never got a modification time.
		params.Set("$filter", fmt.Sprintf("(%s ne null) and (%s gt %s)", modifiedField, modifiedField, effective))
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}

	e.log.Debug("Polling table", "tenant", tenant, "table", logical, "cursor", effective, "forceFull", opts.ForceFull)

	latest := effective
	var runErr error
	for row, err := range e.source.Rows(ctx, "/"+meta.EntitySetName, params, pageSize) {
		if err != nil {
			runErr = err
			break
		}

		if row.PageStart {
			if opts.MaxPages > 0 && res.Pages >= opts.MaxPages {
				break
			}
			res.Pages++
		}

		if err := e.rows.Append(tenant, logical, row.Data); err != nil {
			runErr = err
			break
		}
		latest = laterStamp(latest, rowStamp(row.Data))
		res.Processed++

		if opts.MaxRecords > 0 && res.Processed >= opts.MaxRecords {
			break
		}
	}

	// Advance the frontier for the rows that were fully processed, even when
	// the run aborted afterwards. The store skips non-advancing writes.
	if latest != "" {
		if err := e.cursors.Set(tenant, logical, latest); err != nil {
			runErr = errors.Join(runErr, err)
		} else {
			res.Cursor = latest
		}
	}

	if runErr != nil {
		res.Error = runErr.Error()
	}
	return res, runErr
}

func (e *Engine) effectiveCursor(opts PollOptions, stored string) string {
	if opts.ForceFull {
		return ""
	}
	if opts.Since != "" {
		if _, err := cursors.ParseStamp(opts.Since); err == nil {
			return opts.Since
		}
		e.log.Warn("Ignoring invalid since override", "since", opts.Since)
	}
	if stored != "" {
		if _, err := cursors.ParseStamp(stored); err == nil {
			return stored
		}
		e.log.Warn("Ignoring invalid stored cursor", "stamp", stored)
	}
	return ""
}

// rowStamp returns the row's modification timestamp, falling back to its
// creation timestamp when modification is absent.
func rowStamp(row map[string]any) string {
	if mod, _ := row[modifiedField].(string); mod != "" {
		return mod
	}
	created, _ := row[createdField].(string)
	return created
}

// laterStamp returns the later of two watermark literals, ignoring invalid ones.
func laterStamp(a, b string) string {
	tb, err := cursors.ParseStamp(b)
	if err != nil {
		return a
	}
	ta, err := cursors.ParseStamp(a)
	if err != nil {
		return b
	}
	if tb.After(ta) {
		return b
	}
	return a
}
