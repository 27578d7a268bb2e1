// Inkstore - Handwriting Pipeline Caching and Storage Engine
// Copyright 2026 Inkwell AI
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-ai/inkstore

// Package notebook persists recognized and generated documents durably with
// bounded memory use: content is compressed (inline or chunked), metadata
// lives in an always-resident index, and an LRU window keeps recently used
// documents materialized in memory.
package notebook

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Page is one page of a notebook document.
type Page struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Document is a notebook document. The caller owns its copy; the store keeps
// its own durable and cached copies, so there is no shared mutable state.
type Document struct {
	Title    string         `json:"title"`
	Pages    []Page         `json:"pages"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Clone returns a deep copy via the canonical serialization, so cached and
// returned documents never share mutable state with the caller.
func (d *Document) Clone() (*Document, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var out Document
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return &out, nil
}

// canonicalize serializes a document to its canonical byte form and returns
// the bytes with their content hash. Map keys serialize sorted, so documents
// with equal content always produce identical bytes and hashes.
func canonicalize(d *Document) ([]byte, string, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, "", fmt.Errorf("marshal document: %w", err)
	}
	return raw, hashBytes(raw), nil
}

// hashBytes returns the hex sha256 of b.
func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Record is the metadata record for one stored notebook: the single source
// of truth for listing, filtering and deduplication.
type Record struct {
	ID           string            `json:"id"`
	ContentHash  string            `json:"content_hash"`
	SizeBytes    int64             `json:"size_bytes"`
	Chunked      bool              `json:"chunked"`
	ChunkCount   int               `json:"chunk_count"`
	Tags         []string          `json:"tags,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	LastAccessed time.Time         `json:"last_accessed"`
	Version      int               `json:"version"`
	Custom       map[string]string `json:"custom,omitempty"`
}

// clone returns an independent copy so index scans never expose records the
// index may later mutate.
func (r *Record) clone() *Record {
	out := *r
	if r.Tags != nil {
		out.Tags = append([]string(nil), r.Tags...)
	}
	if r.Custom != nil {
		out.Custom = make(map[string]string, len(r.Custom))
		for k, v := range r.Custom {
			out.Custom[k] = v
		}
	}
	return &out
}

// Metadata is caller-supplied record metadata for Store/Update, and the
// patch shape for UpdateMetadata.
type Metadata struct {
	Tags   []string
	Custom map[string]string
}

// applyMetadata copies caller-supplied metadata onto the record. A nil meta
// leaves the record untouched, so Update preserves prior tags and custom
// fields. Copies are defensive, so the record never shares mutable state
// with the caller.
func applyMetadata(rec *Record, meta *Metadata) {
	if meta == nil {
		return
	}
	rec.Tags = nil
	if meta.Tags != nil {
		rec.Tags = append([]string(nil), meta.Tags...)
	}
	rec.Custom = nil
	if meta.Custom != nil {
		rec.Custom = make(map[string]string, len(meta.Custom))
		for k, v := range meta.Custom {
			rec.Custom[k] = v
		}
	}
}

// Filter selects records by equality. Zero-value fields do not filter.
type Filter struct {
	// Tag matches records carrying the tag.
	Tag string

	// ContentHash matches records with exactly this content hash.
	ContentHash string

	// Chunked, if set, matches records by storage path.
	Chunked *bool

	// Custom matches records whose custom fields include every given pair.
	Custom map[string]string
}

// matches reports whether a record satisfies the filter.
func (f Filter) matches(r *Record) bool {
	if f.Tag != "" && !containsTag(r.Tags, f.Tag) {
		return false
	}
	if f.ContentHash != "" && r.ContentHash != f.ContentHash {
		return false
	}
	if f.Chunked != nil && r.Chunked != *f.Chunked {
		return false
	}
	for k, v := range f.Custom {
		if r.Custom[k] != v {
			return false
		}
	}
	return true
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
