// Inkstore - Handwriting Pipeline Caching and Storage Engine
// Copyright 2026 Inkwell AI
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-ai/inkstore

package notebook

import (
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// recordKeyPrefix namespaces metadata records in the index keyspace.
const recordKeyPrefix = "record:"

// Index is the always-resident id -> record map, persisted to an embedded
// BadgerDB keyspace so it survives restarts. A single lock guards the map,
// so List and duplicate scans observe a point-in-time snapshot and never a
// torn record.
type Index struct {
	mu      sync.RWMutex
	db      *badger.DB
	records map[string]*Record
}

// OpenIndex opens (or creates) the index keyspace at dir and loads every
// record into memory.
func OpenIndex(dir string) (*Index, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	ix := &Index{
		db:      db,
		records: make(map[string]*Record),
	}

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(recordKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var rec Record
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("unmarshal record %s: %w", item.Key(), err)
				}
				ix.records[rec.ID] = &rec
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load index: %w", err)
	}

	return ix, nil
}

// Get returns a copy of the record for id.
func (ix *Index) Get(id string) (*Record, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	rec, ok := ix.records[id]
	if !ok {
		return nil, false
	}
	return rec.clone(), true
}

// Put durably persists a record and then updates the resident map. The
// durable write comes first so a crash never leaves the map ahead of disk.
func (ix *Index) Put(rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	err = ix.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(recordKeyPrefix+rec.ID), data)
	})
	if err != nil {
		return fmt.Errorf("persist record: %w", err)
	}

	ix.records[rec.ID] = rec.clone()
	return nil
}

// Delete removes a record, returning the removed copy.
func (ix *Index) Delete(id string) (*Record, bool, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	rec, ok := ix.records[id]
	if !ok {
		return nil, false, nil
	}

	err := ix.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(recordKeyPrefix + id))
	})
	if err != nil {
		return nil, false, fmt.Errorf("delete record: %w", err)
	}

	delete(ix.records, id)
	return rec, true, nil
}

// Touch updates a record's last-accessed time, write-through.
func (ix *Index) Touch(id string, at time.Time) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	rec, ok := ix.records[id]
	if !ok {
		return ErrNotFound
	}

	updated := rec.clone()
	updated.LastAccessed = at

	data, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	err = ix.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(recordKeyPrefix+id), data)
	})
	if err != nil {
		return fmt.Errorf("persist record: %w", err)
	}

	ix.records[id] = updated
	return nil
}

// Has reports whether id is indexed.
func (ix *Index) Has(id string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.records[id]
	return ok
}

// List returns copies of all records matching the filter, as a consistent
// point-in-time snapshot.
func (ix *Index) List(f Filter) []*Record {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]*Record, 0, len(ix.records))
	for _, rec := range ix.records {
		if f.matches(rec) {
			out = append(out, rec.clone())
		}
	}
	return out
}

// Len returns the number of indexed records.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.records)
}

// Close closes the underlying keyspace.
func (ix *Index) Close() error {
	return ix.db.Close()
}
