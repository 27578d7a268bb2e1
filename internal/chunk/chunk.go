// Inkstore - Handwriting Pipeline Caching and Storage Engine
// Copyright 2026 Inkwell AI
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-ai/inkstore

// Package chunk persists serialized documents as compressed bytes on disk.
// Small payloads are written as a single zstd blob; large payloads are split
// into fixed-size chunks, each compressed independently, plus a manifest.
// Bounded chunks keep any single write to one chunk-sized I/O quantum.
package chunk

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"
)

const (
	// ManifestFile is the manifest filename inside a chunked directory.
	ManifestFile = "manifest.json"

	// BlobFile is the filename of a single-blob document.
	BlobFile = "content.zst"

	// chunkPattern names numbered chunk files.
	chunkPattern = "chunk_%06d.zst"
)

// Manifest describes a chunked document.
type Manifest struct {
	NotebookID            string `json:"notebook_id"`
	ChunkCount            int    `json:"chunk_count"`
	ChunkSize             int    `json:"chunk_size"`
	TotalUncompressedSize int64  `json:"total_uncompressed_size"`
}

// Store compresses and splits payloads. A single Store is safe for
// concurrent use; the zstd encoder and decoder are stateless for the
// EncodeAll/DecodeAll paths.
type Store struct {
	chunkSize int
	enc       *zstd.Encoder
	dec       *zstd.Decoder
}

// New creates a chunk store. compressionLevel maps onto the zstd encoder
// levels: 1 fastest, 2 default, 3 better, 4 best.
func New(chunkSize, compressionLevel int) (*Store, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if compressionLevel < 1 || compressionLevel > 4 {
		return nil, fmt.Errorf("compression level must be 1-4, got %d", compressionLevel)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevel(compressionLevel)))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &Store{chunkSize: chunkSize, enc: enc, dec: dec}, nil
}

// WriteBlob writes data as a single compressed blob under dir.
func (s *Store) WriteBlob(dir string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create blob directory: %w", err)
	}

	compressed := s.enc.EncodeAll(data, nil)
	if err := os.WriteFile(filepath.Join(dir, BlobFile), compressed, 0o644); err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	return nil
}

// ReadBlob reads and decompresses a single-blob document from dir.
func (s *Store) ReadBlob(dir string) ([]byte, error) {
	compressed, err := os.ReadFile(filepath.Join(dir, BlobFile))
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}

	data, err := s.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress blob: %w", err)
	}
	return data, nil
}

// WriteChunked splits data into fixed-size chunks, compresses each, writes
// numbered chunk files and finally the manifest. Chunks are written in
// parallel with bounded concurrency; the manifest is written last so a
// partially written directory never carries a complete-looking manifest.
func (s *Store) WriteChunked(dir, notebookID string, data []byte) (*Manifest, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chunk directory: %w", err)
	}

	count := (len(data) + s.chunkSize - 1) / s.chunkSize
	if count == 0 {
		count = 1 // empty payload still gets one (empty) chunk
	}

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())

	for i := 0; i < count; i++ {
		start := i * s.chunkSize
		end := start + s.chunkSize
		if end > len(data) {
			end = len(data)
		}
		piece := data[start:end]
		path := filepath.Join(dir, fmt.Sprintf(chunkPattern, i))

		g.Go(func() error {
			compressed := s.enc.EncodeAll(piece, nil)
			if err := os.WriteFile(path, compressed, 0o644); err != nil {
				return fmt.Errorf("write chunk %s: %w", filepath.Base(path), err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := &Manifest{
		NotebookID:            notebookID,
		ChunkCount:            count,
		ChunkSize:             s.chunkSize,
		TotalUncompressedSize: int64(len(data)),
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), raw, 0o644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	return m, nil
}

// ReadManifest reads the manifest of a chunked directory.
func (s *Store) ReadManifest(dir string) (*Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if m.ChunkCount <= 0 || m.ChunkSize <= 0 {
		return nil, fmt.Errorf("manifest has invalid geometry: count=%d size=%d", m.ChunkCount, m.ChunkSize)
	}
	return &m, nil
}

// ReadChunked reassembles a chunked document from dir. Chunks decompress in
// parallel; the result is verified against the manifest's uncompressed size.
func (s *Store) ReadChunked(dir string) ([]byte, error) {
	m, err := s.ReadManifest(dir)
	if err != nil {
		return nil, err
	}

	pieces := make([][]byte, m.ChunkCount)

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())

	for i := 0; i < m.ChunkCount; i++ {
		g.Go(func() error {
			path := filepath.Join(dir, fmt.Sprintf(chunkPattern, i))
			compressed, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read chunk %d: %w", i, err)
			}
			piece, err := s.dec.DecodeAll(compressed, nil)
			if err != nil {
				return fmt.Errorf("decompress chunk %d: %w", i, err)
			}
			pieces[i] = piece
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	data := make([]byte, 0, m.TotalUncompressedSize)
	for _, piece := range pieces {
		data = append(data, piece...)
	}

	if int64(len(data)) != m.TotalUncompressedSize {
		return nil, fmt.Errorf("reassembled size %d does not match manifest size %d", len(data), m.TotalUncompressedSize)
	}

	return data, nil
}

// IsChunked reports whether dir holds a chunked document (manifest present).
func IsChunked(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ManifestFile))
	return err == nil
}
