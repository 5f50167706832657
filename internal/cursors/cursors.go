// Package cursors is the implementation of the cursor store component.
// The cursor store persists, per (tenant, resource) pair, the last confirmed
// synchronization watermark used to resume incremental pulls. It is the
// single source of truth for how far a resource has been synchronized.
package cursors

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tendersync/tendersync/internal/constants"
	"github.com/tendersync/tendersync/internal/fileutils"
	"github.com/ubuntu/decorate"
)

// StampLayout is the watermark format: ISO-8601 UTC, second precision,
// no fractional seconds.
const StampLayout = "2006-01-02T15:04:05Z"

// ErrInvalidStamp is returned when a watermark is not a valid ISO-8601 UTC literal.
var ErrInvalidStamp = errors.New("invalid watermark timestamp")

// Store manages watermark files, one per (tenant, resource) pair, laid out
// as a directory per tenant.
type Store struct {
	path string

	mu  sync.Mutex
	log *slog.Logger
}

// cursorFile is the persisted shape of one watermark.
type cursorFile struct {
	LastSeen string `toml:"last_seen"`
}

// New returns a new cursor Store.
// path is the folder the per-tenant cursor directories are stored into.
func New(l *slog.Logger, path string) *Store {
	return &Store{log: l, path: path}
}

// Get returns the stored watermark for the given (tenant, resource) pair,
// or the empty string when none has been persisted yet.
func (s *Store) Get(tenant, resource string) (string, error) {
	var cursor cursorFile
	_, err := toml.DecodeFile(s.file(tenant, resource), &cursor)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("could not read cursor file: %v", err)
	}

	s.log.Debug("Read cursor", "tenant", tenant, "resource", resource, "stamp", cursor.LastSeen)
	return cursor.LastSeen, nil
}

// Set persists the watermark for the given (tenant, resource) pair.
// The stored value is monotonically non-decreasing: a stamp earlier than the
// stored one is skipped, and writing an equal stamp is a no-op, which makes
// Set idempotent under retry.
func (s *Store) Set(tenant, resource, stamp string) (err error) {
	defer decorate.OnError(&err, "could not set cursor for %s/%s", tenant, resource)

	next, err := ParseStamp(stamp)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.Get(tenant, resource)
	if err != nil {
		return err
	}
	if stored != "" {
		prev, err := ParseStamp(stored)
		if err == nil && !next.After(prev) {
			s.log.Debug("Cursor not advanced, skipping write", "tenant", tenant, "resource", resource, "stored", stored, "stamp", stamp)
			return nil
		}
	}

	path := s.file(tenant, resource)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("could not create cursor directory: %v", err)
	}

	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(cursorFile{LastSeen: stamp}); err != nil {
		return fmt.Errorf("could not encode cursor file: %v", err)
	}
	if err := fileutils.AtomicWrite(path, []byte(buf.String())); err != nil {
		return err
	}

	s.log.Debug("Wrote cursor", "tenant", tenant, "resource", resource, "stamp", stamp)
	return nil
}

// List returns all stored watermarks for a tenant, keyed by resource.
func (s *Store) List(tenant string) (map[string]string, error) {
	out := make(map[string]string)

	entries, err := os.ReadDir(filepath.Join(s.path, tenant))
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not list cursors for tenant %s: %v", tenant, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), constants.CursorFileExt) {
			continue
		}
		resource := strings.TrimSuffix(entry.Name(), constants.CursorFileExt)
		stamp, err := s.Get(tenant, resource)
		if err != nil {
			s.log.Warn("Skipping unreadable cursor file", "tenant", tenant, "resource", resource, "error", err)
			continue
		}
		out[resource] = stamp
	}

	return out, nil
}

// Reset clears stored watermarks for a tenant and returns the number cleared.
// With no explicit resources, all of the tenant's watermarks are cleared;
// otherwise only the named ones that are present.
func (s *Store) Reset(tenant string, resources ...string) (count int, err error) {
	defer decorate.OnError(&err, "could not reset cursors for %s", tenant)

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.List(tenant)
	if err != nil {
		return 0, err
	}

	keep := func(string) bool { return true }
	if len(resources) > 0 {
		wanted := make(map[string]bool, len(resources))
		for _, r := range resources {
			wanted[r] = true
		}
		keep = func(r string) bool { return wanted[r] }
	}

	for resource := range stored {
		if !keep(resource) {
			continue
		}
		if err := os.Remove(s.file(tenant, resource)); err != nil {
			return count, fmt.Errorf("could not remove cursor file: %v", err)
		}
		count++
	}

	return count, nil
}

// ParseStamp validates a watermark literal and returns its instant.
func ParseStamp(stamp string) (time.Time, error) {
	t, err := time.Parse(StampLayout, stamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidStamp, stamp)
	}
	return t, nil
}

// FormatStamp renders an instant as a watermark literal.
func FormatStamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(StampLayout)
}

func (s *Store) file(tenant, resource string) string {
	return filepath.Join(s.path, tenant, resource+constants.CursorFileExt)
}
