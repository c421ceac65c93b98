package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/pangraphs/invfind/internal/detect"
)

// Key prefixes for different record types
const (
	keyMeta     = "m:run" // run metadata, single record
	prefixRow   = "w:"    // output rows by zero-padded start coordinate
	prefixQuery = "q:"    // per-query results by column ordinal
	prefixDiag  = "d:"    // diagnostics by emission ordinal
)

func rowKey(start int64) []byte {
	return []byte(fmt.Sprintf("%s%012d", prefixRow, start))
}

func queryKey(ordinal int) []byte {
	return []byte(fmt.Sprintf("%s%04d", prefixQuery, ordinal))
}

func diagKey(ordinal int) []byte {
	return []byte(fmt.Sprintf("%s%06d", prefixDiag, ordinal))
}

// BadgerStore is a BadgerDB-backed run store.
type BadgerStore struct {
	db       *badger.DB
	readOnly bool
	mu       sync.RWMutex
}

// NewBadgerStore creates a new BadgerDB store.
func NewBadgerStore() *BadgerStore {
	return &BadgerStore{}
}

// Initialize opens or creates the BadgerDB database at the given path.
func (b *BadgerStore) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	var err error
	b.db, err = badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}
	b.readOnly = readOnly
	return nil
}

// Close releases all resources held by the store.
func (b *BadgerStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

// SaveRun replaces the store contents with one run.
func (b *BadgerStore) SaveRun(ctx context.Context, meta RunMeta, rs *detect.ResultSet) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.readOnly {
		return errors.New("store is read-only")
	}

	// One run per store: clear whatever the previous run left behind.
	if err := b.db.DropAll(); err != nil {
		return fmt.Errorf("clearing previous run: %w", err)
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	meta.Rows = len(rs.Rows)
	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshaling run meta: %w", err)
	}
	if err := wb.Set([]byte(keyMeta), metaData); err != nil {
		return fmt.Errorf("setting run meta: %w", err)
	}

	for _, row := range rs.Rows {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshaling row: %w", err)
		}
		if err := wb.Set(rowKey(row.Start), data); err != nil {
			return fmt.Errorf("setting row: %w", err)
		}
	}

	for i, qr := range rs.PerQuery {
		data, err := json.Marshal(qr)
		if err != nil {
			return fmt.Errorf("marshaling query result: %w", err)
		}
		if err := wb.Set(queryKey(i), data); err != nil {
			return fmt.Errorf("setting query result: %w", err)
		}
	}

	for i, d := range rs.Diagnostics {
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("marshaling diagnostic: %w", err)
		}
		if err := wb.Set(diagKey(i), data); err != nil {
			return fmt.Errorf("setting diagnostic: %w", err)
		}
	}

	return wb.Flush()
}

// Meta returns the stored run description.
func (b *BadgerStore) Meta(ctx context.Context) (RunMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var meta RunMeta
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyMeta))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return RunMeta{}, ErrNoRun
	}
	if err != nil {
		return RunMeta{}, fmt.Errorf("reading run meta: %w", err)
	}
	return meta, nil
}

// RowRange returns stored output rows intersecting [start, end] in
// coordinate order. Keys are zero-padded start coordinates, so Badger's
// iteration order is already table order.
func (b *BadgerStore) RowRange(ctx context.Context, start, end int64) ([]detect.Row, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var rows []detect.Row
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixRow)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var row detect.Row
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &row)
			}); err != nil {
				return fmt.Errorf("decoding row: %w", err)
			}
			if end > 0 && row.Start > end {
				break
			}
			if row.End < start {
				continue
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Queries returns the stored per-query results in call-column order.
func (b *BadgerStore) Queries(ctx context.Context) ([]detect.QueryResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var results []detect.QueryResult
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixQuery)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var qr detect.QueryResult
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &qr)
			}); err != nil {
				return fmt.Errorf("decoding query result: %w", err)
			}
			results = append(results, qr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Query returns one query's stored result by path name.
func (b *BadgerStore) Query(ctx context.Context, path string) (*detect.QueryResult, error) {
	results, err := b.Queries(ctx)
	if err != nil {
		return nil, err
	}
	for i := range results {
		if results[i].Path == path {
			return &results[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownQuery, path)
}

// Diagnostics returns stored diagnostics in emission order.
func (b *BadgerStore) Diagnostics(ctx context.Context) ([]detect.Diagnostic, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var ds []detect.Diagnostic
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixDiag)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var d detect.Diagnostic
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &d)
			}); err != nil {
				return fmt.Errorf("decoding diagnostic: %w", err)
			}
			ds = append(ds, d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ds, nil
}
