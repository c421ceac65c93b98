package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pangraphs/invfind/internal/detect"
)

// MemoryStore is an in-memory implementation of Store for testing and
// for watch mode, where results are republished on every change and
// never need to survive the process.
type MemoryStore struct {
	mu       sync.RWMutex
	readOnly bool
	hasRun   bool
	meta     RunMeta
	rows     []detect.Row
	queries  []detect.QueryResult
	diags    []detect.Diagnostic
}

// NewMemoryStore creates a new in-memory run store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Initialize implements Store.
func (m *MemoryStore) Initialize(path string, readOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readOnly = readOnly
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hasRun = false
	m.rows = nil
	m.queries = nil
	m.diags = nil
	return nil
}

// SaveRun implements Store.
func (m *MemoryStore) SaveRun(ctx context.Context, meta RunMeta, rs *detect.ResultSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.readOnly {
		return errors.New("store is read-only")
	}

	meta.Rows = len(rs.Rows)
	m.meta = meta
	m.rows = append([]detect.Row(nil), rs.Rows...)
	m.queries = append([]detect.QueryResult(nil), rs.PerQuery...)
	m.diags = append([]detect.Diagnostic(nil), rs.Diagnostics...)
	m.hasRun = true
	return nil
}

// Meta implements Store.
func (m *MemoryStore) Meta(ctx context.Context) (RunMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.hasRun {
		return RunMeta{}, ErrNoRun
	}
	return m.meta, nil
}

// RowRange implements Store.
func (m *MemoryStore) RowRange(ctx context.Context, start, end int64) ([]detect.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rows []detect.Row
	for _, row := range m.rows {
		if end > 0 && row.Start > end {
			break
		}
		if row.End < start {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Queries implements Store.
func (m *MemoryStore) Queries(ctx context.Context) ([]detect.QueryResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]detect.QueryResult(nil), m.queries...), nil
}

// Query implements Store.
func (m *MemoryStore) Query(ctx context.Context, path string) (*detect.QueryResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.queries {
		if m.queries[i].Path == path {
			qr := m.queries[i]
			return &qr, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownQuery, path)
}

// Diagnostics implements Store.
func (m *MemoryStore) Diagnostics(ctx context.Context) ([]detect.Diagnostic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]detect.Diagnostic(nil), m.diags...), nil
}
