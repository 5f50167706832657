// Package registry is the implementation of the tenant table registry component.
// The registry tracks which logical tables each tenant has opted into
// synchronizing, persisted as one document per tenant. The registry owns
// these documents exclusively.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/tendersync/tendersync/internal/constants"
	"github.com/tendersync/tendersync/internal/fileutils"
	"github.com/ubuntu/decorate"
	"gopkg.in/yaml.v3"
)

// Manager manages per-tenant table registry documents.
type Manager struct {
	path string

	mu  sync.Mutex
	log *slog.Logger
}

// document is the persisted shape of one tenant's registry.
type document struct {
	Tables []string `yaml:"tables"`
}

// New returns a new registry Manager.
// path is the folder the registry documents are stored into.
func New(l *slog.Logger, path string) *Manager {
	return &Manager{log: l, path: path}
}

// Register merges the given logical table names into the tenant's registry
// and returns the resulting list, sorted with duplicates removed. It is
// idempotent: registering an already known table changes nothing.
func (m *Manager) Register(tenant string, names []string) (tables []string, err error) {
	defer decorate.OnError(&err, "could not register tables for %s", tenant)

	m.mu.Lock()
	defer m.mu.Unlock()

	tables, err = m.List(tenant)
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		if name == "" {
			continue
		}
		tables = append(tables, name)
	}
	slices.Sort(tables)
	tables = slices.Compact(tables)

	if err := m.write(tenant, tables); err != nil {
		return nil, err
	}
	return tables, nil
}

// List returns the logical table names registered for a tenant.
// A tenant without a registry document has no registered tables.
func (m *Manager) List(tenant string) ([]string, error) {
	data, err := os.ReadFile(m.file(tenant))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read registry document: %v", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("could not parse registry document: %v", err)
	}

	return doc.Tables, nil
}

func (m *Manager) write(tenant string, tables []string) error {
	path := m.file(tenant)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("could not create registry directory: %v", err)
	}

	data, err := yaml.Marshal(document{Tables: tables})
	if err != nil {
		return fmt.Errorf("could not encode registry document: %v", err)
	}
	if err := fileutils.AtomicWrite(path, data); err != nil {
		return err
	}

	m.log.Debug("Wrote registry document", "tenant", tenant, "tables", len(tables))
	return nil
}

func (m *Manager) file(tenant string) string {
	return filepath.Join(m.path, tenant+constants.RegistryFileExt)
}
