// Inkstore - Handwriting Pipeline Caching and Storage Engine
// Copyright 2026 Inkwell AI
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-ai/inkstore

package chunk

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func newStore(t *testing.T, chunkSize int) *Store {
	t.Helper()
	s, err := New(chunkSize, 2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestNew_InvalidParameters(t *testing.T) {
	if _, err := New(0, 2); err == nil {
		t.Error("Expected error for zero chunk size")
	}
	if _, err := New(1024, 0); err == nil {
		t.Error("Expected error for compression level 0")
	}
	if _, err := New(1024, 5); err == nil {
		t.Error("Expected error for compression level 5")
	}
}

func TestBlob_RoundTrip(t *testing.T) {
	s := newStore(t, 1024)
	dir := filepath.Join(t.TempDir(), "n1")
	data := []byte(`{"title":"T","pages":[{"id":"p1","content":"x"}]}`)

	if err := s.WriteBlob(dir, data); err != nil {
		t.Fatalf("WriteBlob failed: %v", err)
	}

	got, err := s.ReadBlob(dir)
	if err != nil {
		t.Fatalf("ReadBlob failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Round trip mismatch: got %q, want %q", got, data)
	}
}

func TestChunked_RoundTrip(t *testing.T) {
	s := newStore(t, 64)
	dir := filepath.Join(t.TempDir(), "n1")

	// Payload spanning several chunks, not chunk-aligned.
	data := bytes.Repeat([]byte("handwriting sample payload "), 20)

	m, err := s.WriteChunked(dir, "n1", data)
	if err != nil {
		t.Fatalf("WriteChunked failed: %v", err)
	}

	wantChunks := (len(data) + 63) / 64
	if m.ChunkCount != wantChunks {
		t.Errorf("Expected %d chunks, got %d", wantChunks, m.ChunkCount)
	}
	if m.TotalUncompressedSize != int64(len(data)) {
		t.Errorf("Expected total size %d, got %d", len(data), m.TotalUncompressedSize)
	}

	got, err := s.ReadChunked(dir)
	if err != nil {
		t.Fatalf("ReadChunked failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("Chunked round trip mismatch")
	}
}

func TestChunked_SingleChunk(t *testing.T) {
	s := newStore(t, 1024)
	dir := filepath.Join(t.TempDir(), "n1")
	data := []byte("small")

	m, err := s.WriteChunked(dir, "n1", data)
	if err != nil {
		t.Fatalf("WriteChunked failed: %v", err)
	}
	if m.ChunkCount != 1 {
		t.Errorf("Expected 1 chunk, got %d", m.ChunkCount)
	}

	got, err := s.ReadChunked(dir)
	if err != nil {
		t.Fatalf("ReadChunked failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("Single chunk round trip mismatch")
	}
}

func TestChunked_EmptyPayload(t *testing.T) {
	s := newStore(t, 64)
	dir := filepath.Join(t.TempDir(), "n1")

	m, err := s.WriteChunked(dir, "n1", nil)
	if err != nil {
		t.Fatalf("WriteChunked failed: %v", err)
	}
	if m.ChunkCount != 1 {
		t.Errorf("Expected 1 chunk for empty payload, got %d", m.ChunkCount)
	}

	got, err := s.ReadChunked(dir)
	if err != nil {
		t.Fatalf("ReadChunked failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected empty payload, got %d bytes", len(got))
	}
}

func TestReadChunked_CorruptedChunk(t *testing.T) {
	s := newStore(t, 64)
	dir := filepath.Join(t.TempDir(), "n1")
	data := bytes.Repeat([]byte("x"), 200)

	if _, err := s.WriteChunked(dir, "n1", data); err != nil {
		t.Fatalf("WriteChunked failed: %v", err)
	}

	// Corrupt the second chunk.
	if err := os.WriteFile(filepath.Join(dir, "chunk_000001.zst"), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("corrupt chunk: %v", err)
	}

	if _, err := s.ReadChunked(dir); err == nil {
		t.Error("Expected error reading corrupted chunk")
	}
}

func TestReadChunked_MissingChunk(t *testing.T) {
	s := newStore(t, 64)
	dir := filepath.Join(t.TempDir(), "n1")
	data := bytes.Repeat([]byte("y"), 200)

	if _, err := s.WriteChunked(dir, "n1", data); err != nil {
		t.Fatalf("WriteChunked failed: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "chunk_000002.zst")); err != nil {
		t.Fatalf("remove chunk: %v", err)
	}

	if _, err := s.ReadChunked(dir); err == nil {
		t.Error("Expected error for missing chunk")
	}
}

func TestReadManifest_Invalid(t *testing.T) {
	s := newStore(t, 64)
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte(`{"chunk_count":0}`), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	if _, err := s.ReadManifest(dir); err == nil {
		t.Error("Expected error for invalid manifest geometry")
	}
}

func TestIsChunked(t *testing.T) {
	s := newStore(t, 64)
	base := t.TempDir()

	blobDir := filepath.Join(base, "blob")
	if err := s.WriteBlob(blobDir, []byte("data")); err != nil {
		t.Fatalf("WriteBlob failed: %v", err)
	}
	chunkDir := filepath.Join(base, "chunked")
	if _, err := s.WriteChunked(chunkDir, "n1", bytes.Repeat([]byte("z"), 200)); err != nil {
		t.Fatalf("WriteChunked failed: %v", err)
	}

	if IsChunked(blobDir) {
		t.Error("Expected blob directory not to be chunked")
	}
	if !IsChunked(chunkDir) {
		t.Error("Expected chunked directory to be chunked")
	}
}
