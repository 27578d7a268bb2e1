// Inkstore - Handwriting Pipeline Caching and Storage Engine
// Copyright 2026 Inkwell AI
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-ai/inkstore

package notebook

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/inkwell-ai/inkstore/internal/cache"
	"github.com/inkwell-ai/inkstore/internal/chunk"
	"github.com/inkwell-ai/inkstore/internal/logging"
	"github.com/inkwell-ai/inkstore/internal/metrics"
)

// indexDirName is the store subdirectory holding the metadata index
// keyspace. It is reserved and can never be a notebook id.
const indexDirName = "index"

// Config configures a notebook store instance.
type Config struct {
	// Dir is the store root: one subdirectory per notebook id.
	Dir string

	// LRUCapacity bounds the in-memory window of materialized documents.
	LRUCapacity int

	// ChunkSize is the uncompressed chunk size in bytes.
	ChunkSize int

	// ChunkThreshold is the serialized size above which content is chunked.
	ChunkThreshold int

	// CompressionLevel is the zstd level, 1-4.
	CompressionLevel int
}

// Store is the notebook store façade. Operations on the same id serialize on
// a per-id lock; operations on distinct ids proceed concurrently. Metadata
// records commit only after the durable content write succeeds, so a failed
// Store leaves no state and a failed Update leaves the prior state.
type Store struct {
	cfg    Config
	index  *Index
	chunks *chunk.Store
	lru    *cache.LRU[*Document]
	locks  sync.Map // id -> *sync.Mutex
}

// Open opens (or creates) a notebook store rooted at cfg.Dir.
func Open(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("store directory is required")
	}
	if cfg.LRUCapacity <= 0 {
		return nil, fmt.Errorf("LRU capacity must be positive, got %d", cfg.LRUCapacity)
	}
	if cfg.ChunkThreshold <= 0 {
		return nil, fmt.Errorf("chunk threshold must be positive, got %d", cfg.ChunkThreshold)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	chunks, err := chunk.New(cfg.ChunkSize, cfg.CompressionLevel)
	if err != nil {
		return nil, err
	}

	index, err := OpenIndex(filepath.Join(cfg.Dir, indexDirName))
	if err != nil {
		return nil, err
	}

	s := &Store{
		cfg:    cfg,
		index:  index,
		chunks: chunks,
	}
	s.lru = cache.New[*Document](cfg.LRUCapacity, func(id string, _ *Document) {
		// In-memory copy only; the durable copy always exists first.
		metrics.LRUEvictions.Inc()
		logging.Debug().Str("id", id).Msg("notebook evicted from LRU window")
	})

	return s, nil
}

// Close releases the metadata index keyspace.
func (s *Store) Close() error {
	return s.index.Close()
}

// Store durably persists a document under id and returns its fresh metadata
// record. An empty id gets a generated UUID. Content larger than the chunk
// threshold is chunked; otherwise it is written as one compressed blob.
func (s *Store) Store(id string, doc *Document, meta *Metadata) (*Record, error) {
	defer metrics.ObserveStoreOperation("store", time.Now())

	if id == "" {
		id = uuid.NewString()
	}
	if err := validateID(id); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("document is required")
	}

	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	now := time.Now()
	rec := &Record{
		ID:           id,
		CreatedAt:    now,
		LastAccessed: now,
		Version:      1,
	}
	applyMetadata(rec, meta)

	if err := s.writeDocument(rec, doc); err != nil {
		metrics.RecordStoreError("store", "io")
		return nil, err
	}

	logging.Debug().Str("id", id).Bool("chunked", rec.Chunked).
		Int64("size_bytes", rec.SizeBytes).Msg("notebook stored")

	return rec.clone(), nil
}

// Update rewrites an existing notebook exactly as Store does, but preserves
// created_at and increments the version counter. Unknown ids fail with
// ErrNotFound. A nil meta preserves the existing tags and custom fields.
func (s *Store) Update(id string, doc *Document, meta *Metadata) (*Record, error) {
	defer metrics.ObserveStoreOperation("update", time.Now())

	if err := validateID(id); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("document is required")
	}

	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	prior, ok := s.index.Get(id)
	if !ok {
		return nil, ErrNotFound
	}

	now := time.Now()
	rec := &Record{
		ID:           id,
		Tags:         prior.Tags,
		Custom:       prior.Custom,
		CreatedAt:    prior.CreatedAt,
		LastAccessed: now,
		Version:      prior.Version + 1,
	}
	applyMetadata(rec, meta)

	if err := s.writeDocument(rec, doc); err != nil {
		metrics.RecordStoreError("update", "io")
		return nil, err
	}

	return rec.clone(), nil
}

// writeDocument serializes, writes content durably (staged, then swapped in)
// and only then commits the metadata record. Must hold the id lock. On
// failure the prior durable state remains observable.
func (s *Store) writeDocument(rec *Record, doc *Document) error {
	data, hash, err := canonicalize(doc)
	if err != nil {
		return err
	}
	rec.ContentHash = hash
	rec.SizeBytes = int64(len(data))

	dir := s.notebookDir(rec.ID)
	stage := dir + ".tmp"
	if err := os.RemoveAll(stage); err != nil {
		return fmt.Errorf("clear staging directory: %w", err)
	}

	if len(data) > s.cfg.ChunkThreshold {
		m, err := s.chunks.WriteChunked(stage, rec.ID, data)
		if err != nil {
			return err
		}
		rec.Chunked = true
		rec.ChunkCount = m.ChunkCount
		metrics.StoreBytesWritten.WithLabelValues("chunked").Add(float64(len(data)))
	} else {
		if err := s.chunks.WriteBlob(stage, data); err != nil {
			return err
		}
		metrics.StoreBytesWritten.WithLabelValues("inline").Add(float64(len(data)))
	}

	// Swap the staged content in, keeping the prior content aside until the
	// record commits. A failed commit rolls the swap back, so the record and
	// the bytes it describes stay consistent.
	prev := dir + ".prev"
	if err := os.RemoveAll(prev); err != nil {
		return fmt.Errorf("clear prior-content holding directory: %w", err)
	}
	hadPrior := true
	if err := os.Rename(dir, prev); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("set aside prior content: %w", err)
		}
		hadPrior = false
	}
	if err := s.activate(stage, dir, prev, hadPrior); err != nil {
		return err
	}

	// The record commits only after the durable write succeeded. A crash in
	// between leaves directories for Reconcile to sweep.
	if err := s.index.Put(rec); err != nil {
		s.rollback(dir, prev, hadPrior)
		return err
	}
	if hadPrior {
		if err := os.RemoveAll(prev); err != nil {
			logging.Warn().Err(err).Str("id", rec.ID).Msg("could not remove superseded content")
		}
	}

	s.cacheDocument(rec.ID, data)
	return nil
}

// activate moves staged content into place, restoring the prior content if
// the move itself fails.
func (s *Store) activate(stage, dir, prev string, hadPrior bool) error {
	if err := os.Rename(stage, dir); err != nil {
		if hadPrior {
			s.rollback(dir, prev, hadPrior)
		}
		return fmt.Errorf("activate content: %w", err)
	}
	return nil
}

// rollback undoes a content swap after a failed record commit. Failures here
// are logged; the stray directories are reaped by Reconcile.
func (s *Store) rollback(dir, prev string, hadPrior bool) {
	if err := os.RemoveAll(dir); err != nil {
		logging.Warn().Err(err).Str("dir", dir).Msg("could not undo content swap")
		return
	}
	if !hadPrior {
		return
	}
	if err := os.Rename(prev, dir); err != nil {
		logging.Warn().Err(err).Str("dir", dir).Msg("could not restore prior content")
	}
}

// cacheDocument materializes its own copy of the document into the LRU.
func (s *Store) cacheDocument(id string, data []byte) {
	var cached Document
	if err := json.Unmarshal(data, &cached); err != nil {
		// The canonical bytes were produced by Marshal; treat this as a bug
		// but never let the cache break a successful write.
		logging.Warn().Err(err).Str("id", id).Msg("could not materialize document for LRU")
		return
	}
	s.lru.Add(id, &cached)
	metrics.LRUEntries.Set(float64(s.lru.Len()))
}

// Retrieve returns the document stored under id. An LRU hit returns
// immediately; otherwise content is loaded, verified against the record's
// content hash, deserialized and repopulated into the LRU. Both paths update
// last_accessed.
func (s *Store) Retrieve(id string) (*Document, error) {
	defer metrics.ObserveStoreOperation("retrieve", time.Now())

	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	if doc, ok := s.lru.Get(id); ok {
		s.touch(id)
		return doc.Clone()
	}

	rec, ok := s.index.Get(id)
	if !ok {
		return nil, ErrNotFound
	}

	data, err := s.readContent(rec)
	if err != nil {
		metrics.RecordStoreError("retrieve", "corrupted")
		return nil, fmt.Errorf("%w: %s", ErrCorruptedContent, err)
	}
	if hashBytes(data) != rec.ContentHash {
		metrics.RecordStoreError("retrieve", "corrupted")
		return nil, fmt.Errorf("%w: content hash mismatch", ErrCorruptedContent)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		metrics.RecordStoreError("retrieve", "corrupted")
		return nil, fmt.Errorf("%w: %s", ErrCorruptedContent, err)
	}

	s.lru.Add(id, &doc)
	metrics.LRUEntries.Set(float64(s.lru.Len()))
	s.touch(id)

	return doc.Clone()
}

// RetrieveSection returns only the named top-level section of the stored
// document without materializing the rest. Unrelated malformed fields do not
// fail the extraction. Returns ErrSectionNotFound if the section is absent.
func (s *Store) RetrieveSection(id, section string) (json.RawMessage, error) {
	defer metrics.ObserveStoreOperation("retrieve", time.Now())

	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	rec, ok := s.index.Get(id)
	if !ok {
		return nil, ErrNotFound
	}

	data, err := s.readContent(rec)
	if err != nil {
		metrics.RecordStoreError("retrieve", "corrupted")
		return nil, fmt.Errorf("%w: %s", ErrCorruptedContent, err)
	}

	result := gjson.GetBytes(data, section)
	if !result.Exists() {
		return nil, fmt.Errorf("%w: %q", ErrSectionNotFound, section)
	}

	s.touch(id)
	return json.RawMessage(result.Raw), nil
}

// readContent loads the raw serialized bytes for a record.
func (s *Store) readContent(rec *Record) ([]byte, error) {
	dir := s.notebookDir(rec.ID)
	if rec.Chunked {
		return s.chunks.ReadChunked(dir)
	}
	return s.chunks.ReadBlob(dir)
}

// Delete removes the durable content, the metadata record and any cached
// copy, returning the deleted record.
func (s *Store) Delete(id string) (*Record, error) {
	defer metrics.ObserveStoreOperation("delete", time.Now())

	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	return s.deleteLocked(id)
}

// deleteLocked removes one notebook. Must hold the id lock.
func (s *Store) deleteLocked(id string) (*Record, error) {
	if !s.index.Has(id) {
		return nil, ErrNotFound
	}

	if err := os.RemoveAll(s.notebookDir(id)); err != nil {
		metrics.RecordStoreError("delete", "io")
		return nil, fmt.Errorf("remove content: %w", err)
	}

	rec, ok, err := s.index.Delete(id)
	if err != nil {
		metrics.RecordStoreError("delete", "io")
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}

	s.lru.Remove(id)
	metrics.LRUEntries.Set(float64(s.lru.Len()))

	logging.Debug().Str("id", id).Msg("notebook deleted")
	return rec, nil
}

// List returns metadata records matching the filter. It scans only the
// resident index and never touches durable content.
func (s *Store) List(f Filter) []*Record {
	records := s.index.List(f)
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records
}

// GetMetadata returns the metadata record for id without touching content.
func (s *Store) GetMetadata(id string) (*Record, error) {
	rec, ok := s.index.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// UpdateMetadata applies a metadata-only patch. Content, content hash and
// version are untouched; version tracks content rewrites only.
func (s *Store) UpdateMetadata(id string, patch Metadata) (*Record, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	rec, ok := s.index.Get(id)
	if !ok {
		return nil, ErrNotFound
	}

	if patch.Tags != nil {
		rec.Tags = append([]string(nil), patch.Tags...)
	}
	if len(patch.Custom) > 0 {
		if rec.Custom == nil {
			rec.Custom = make(map[string]string, len(patch.Custom))
		}
		for k, v := range patch.Custom {
			rec.Custom[k] = v
		}
	}

	if err := s.index.Put(rec); err != nil {
		return nil, err
	}
	return rec.clone(), nil
}

// FindDuplicates groups records by identical content hash. Groups with a
// single member are excluded. Grouping is exact: documents differing by a
// single byte never share a group.
func (s *Store) FindDuplicates() map[string][]*Record {
	byHash := make(map[string][]*Record)
	for _, rec := range s.index.List(Filter{}) {
		byHash[rec.ContentHash] = append(byHash[rec.ContentHash], rec)
	}

	out := make(map[string][]*Record)
	for hash, group := range byHash {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
		out[hash] = group
	}
	return out
}

// CleanStorage deletes every notebook whose last access is strictly older
// than the given number of days, via the same path as Delete. Returns the
// number of notebooks cleaned.
func (s *Store) CleanStorage(days int) (int, error) {
	defer metrics.ObserveStoreOperation("clean", time.Now())

	cutoff := time.Now().AddDate(0, 0, -days)
	cleaned := 0

	for _, rec := range s.index.List(Filter{}) {
		if !rec.LastAccessed.Before(cutoff) {
			continue
		}
		mu := s.lockFor(rec.ID)
		mu.Lock()
		_, err := s.deleteLocked(rec.ID)
		mu.Unlock()
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue // deleted concurrently
			}
			return cleaned, err
		}
		cleaned++
	}

	logging.Info().Int("cleaned", cleaned).Int("days", days).Msg("storage cleanup finished")
	return cleaned, nil
}

// Reconcile deletes orphaned content: notebook directories on disk with no
// reachable metadata record, as left by a crash between the content write
// and the index commit. Returns the number of orphans removed.
func (s *Store) Reconcile() (int, error) {
	defer metrics.ObserveStoreOperation("reconcile", time.Now())

	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return 0, fmt.Errorf("read store directory: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if !e.IsDir() || e.Name() == indexDirName {
			continue
		}
		name := e.Name()
		stray := strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, ".prev")
		id := strings.TrimSuffix(strings.TrimSuffix(name, ".tmp"), ".prev")

		mu := s.lockFor(id)
		mu.Lock()
		orphan := stray || !s.index.Has(name)
		if orphan {
			if err := os.RemoveAll(filepath.Join(s.cfg.Dir, e.Name())); err != nil {
				mu.Unlock()
				return removed, fmt.Errorf("remove orphan %s: %w", e.Name(), err)
			}
			removed++
			logging.Info().Str("dir", e.Name()).Msg("removed orphaned notebook content")
		}
		mu.Unlock()
	}

	return removed, nil
}

// LRUStats exposes the in-memory window's hit/miss counters and size.
func (s *Store) LRUStats() (hits, misses int64, size int) {
	return s.lru.Stats()
}

// Len returns the number of stored notebooks.
func (s *Store) Len() int {
	return s.index.Len()
}

// touch updates last_accessed, logging rather than failing: access-time
// bookkeeping never breaks a successful read.
func (s *Store) touch(id string) {
	if err := s.index.Touch(id, time.Now()); err != nil {
		logging.Warn().Err(err).Str("id", id).Msg("could not update last accessed time")
	}
}

func (s *Store) notebookDir(id string) string {
	return filepath.Join(s.cfg.Dir, id)
}

// lockFor returns the per-id mutex, creating it on first use.
func (s *Store) lockFor(id string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// validateID rejects ids that cannot safely name a storage directory.
func validateID(id string) error {
	if id == "" || id == indexDirName {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidID, id)
		}
	}
	if strings.HasPrefix(id, ".") || strings.HasSuffix(id, ".tmp") || strings.HasSuffix(id, ".prev") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
