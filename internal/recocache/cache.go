// Inkstore - Handwriting Pipeline Caching and Storage Engine
// Copyright 2026 Inkwell AI
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-ai/inkstore

// Package recocache memoizes expensive recognition calls. Entries are
// content-addressed by the canonical stroke-geometry digest combined with
// the recognition profile (content type and language), since identical
// geometry can be interpreted differently under different profiles.
//
// The cache never breaks the primary recognition flow: every failure
// degrades to "as if the cache were empty". Write failures are reported as
// a boolean at the cache boundary and logged, never propagated.
package recocache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/inkwell-ai/inkstore/internal/logging"
	"github.com/inkwell-ai/inkstore/internal/metrics"
	"github.com/inkwell-ai/inkstore/internal/stroke"
)

// Config configures a recognition cache instance. All fields are explicit;
// independently configured instances can coexist.
type Config struct {
	// Dir holds one file per entry, named {digest}_{contentType}_{language}.
	Dir string

	// MaxAge is the entry TTL. Entries older than this read as misses and
	// are deleted on encounter.
	MaxAge time.Duration

	// SweepRate throttles how many entries per second Sweep examines.
	// Zero means unthrottled.
	SweepRate rate.Limit
}

// Metadata describes a cached recognition result.
type Metadata struct {
	ContentType string `json:"content_type"`
	Language    string `json:"language"`
	StrokeCount int    `json:"stroke_count"`
	PointCount  int    `json:"point_count"`
}

// entryFile is the on-disk entry format.
type entryFile struct {
	// Timestamp is epoch seconds at write time.
	Timestamp int64 `json:"timestamp"`

	// Result is the opaque recognizer output.
	Result json.RawMessage `json:"result"`

	Metadata Metadata `json:"metadata"`
}

// Stats summarizes the cache contents.
type Stats struct {
	Entries        int            `json:"entries"`
	TotalSizeBytes int64          `json:"total_size_bytes"`
	ByContentType  map[string]int `json:"by_content_type"`
	ByLanguage     map[string]int `json:"by_language"`
}

// Cache is a persistent, TTL-expiring recognition cache. Operations on
// distinct (geometry, content type, language) tuples never block each other;
// concurrent puts on the same tuple are last-writer-wins, acceptable because
// entries are idempotent recomputations of identical geometry.
type Cache struct {
	dir     string
	maxAge  time.Duration
	limiter *rate.Limiter
}

// New creates the cache directory if needed and sweeps expired entries,
// so a restart never resurrects stale results.
func New(cfg Config) (*Cache, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if cfg.MaxAge <= 0 {
		return nil, fmt.Errorf("max age must be positive, got %s", cfg.MaxAge)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	limit := cfg.SweepRate
	if limit <= 0 {
		limit = rate.Inf
	}

	c := &Cache{
		dir:     cfg.Dir,
		maxAge:  cfg.MaxAge,
		limiter: rate.NewLimiter(limit, burstFor(limit)),
	}

	if removed, err := c.Sweep(context.Background()); err != nil {
		logging.Warn().Err(err).Msg("recognition cache startup sweep incomplete")
	} else if removed > 0 {
		logging.Info().Int("removed", removed).Msg("recognition cache startup sweep")
	}

	return c, nil
}

// burstFor sizes the limiter burst so sweeps proceed in small batches.
func burstFor(limit rate.Limit) int {
	if limit == rate.Inf {
		return 1
	}
	if limit < 1 {
		return 1
	}
	return int(limit)
}

// Get returns the cached recognition result for the stroke geometry under
// the given profile, or ok=false on a miss. An expired or corrupted entry is
// deleted as a side effect of the miss; a genuine miss has no side effects.
func (c *Cache) Get(strokes []stroke.Stroke, contentType, language string) (json.RawMessage, bool) {
	path := c.entryPath(strokes, contentType, language)

	raw, err := os.ReadFile(path)
	if err != nil {
		metrics.RecognitionCacheMisses.Inc()
		return nil, false
	}

	var entry entryFile
	if err := json.Unmarshal(raw, &entry); err != nil {
		// Corrupted entries read as absent and are removed on encounter.
		logging.Warn().Err(err).Str("entry", filepath.Base(path)).Msg("removing corrupted cache entry")
		c.removeQuiet(path)
		metrics.RecognitionCacheMisses.Inc()
		return nil, false
	}

	if c.expired(entry.Timestamp, time.Now()) {
		c.removeQuiet(path)
		metrics.RecognitionCacheExpirations.Inc()
		metrics.RecognitionCacheMisses.Inc()
		return nil, false
	}

	metrics.RecognitionCacheHits.Inc()
	return entry.Result, true
}

// Put stores a recognition result, overwriting any prior entry for the same
// tuple. It returns false on write failure; the caller still holds the
// value, so nothing is lost and the primary flow is never disturbed.
func (c *Cache) Put(strokes []stroke.Stroke, contentType, language string, result json.RawMessage) bool {
	entry := entryFile{
		Timestamp: time.Now().Unix(),
		Result:    result,
		Metadata: Metadata{
			ContentType: contentType,
			Language:    language,
			StrokeCount: len(strokes),
			PointCount:  stroke.PointCount(strokes),
		},
	}

	raw, err := json.Marshal(&entry)
	if err != nil {
		return c.reportWriteFailure(err, contentType, language)
	}

	path := c.entryPath(strokes, contentType, language)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return c.reportWriteFailure(err, contentType, language)
	}
	if err := os.Rename(tmp, path); err != nil {
		c.removeQuiet(tmp)
		return c.reportWriteFailure(err, contentType, language)
	}

	return true
}

// reportWriteFailure logs and counts a suppressed write failure so the
// "cache never breaks the primary flow" guarantee stays auditable.
func (c *Cache) reportWriteFailure(err error, contentType, language string) bool {
	logging.Warn().Err(err).
		Str("content_type", contentType).
		Str("language", language).
		Msg("recognition cache write failed, result discarded")
	metrics.RecognitionCacheWriteFailures.Inc()
	return false
}

// Invalidate deletes the entry for the tuple if present. Idempotent: returns
// true even if the entry was already absent, false only on a storage error.
func (c *Cache) Invalidate(strokes []stroke.Stroke, contentType, language string) bool {
	err := os.Remove(c.entryPath(strokes, contentType, language))
	if err != nil && !os.IsNotExist(err) {
		logging.Warn().Err(err).Msg("recognition cache invalidate failed")
		return false
	}
	return true
}

// Clear deletes all entries unconditionally and returns the number removed.
func (c *Cache) Clear() int {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		logging.Warn().Err(err).Msg("recognition cache clear failed")
		return 0
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			logging.Warn().Err(err).Str("entry", e.Name()).Msg("could not remove cache entry")
			continue
		}
		removed++
	}
	return removed
}

// Sweep removes expired and unreadable entries, throttled by the configured
// sweep rate. Returns the number of entries removed.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("read cache directory: %w", err)
	}

	now := time.Now()
	removed := 0

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return removed, err
		}

		path := filepath.Join(c.dir, e.Name())
		// Leftover temp files from interrupted writes are always stale.
		if strings.HasSuffix(e.Name(), ".tmp") {
			c.removeQuiet(path)
			removed++
			continue
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var entry entryFile
		if err := json.Unmarshal(raw, &entry); err != nil {
			c.removeQuiet(path)
			removed++
			continue
		}
		if c.expired(entry.Timestamp, now) {
			c.removeQuiet(path)
			metrics.RecognitionCacheExpirations.Inc()
			removed++
		}
	}

	return removed, nil
}

// Stats scans the cache directory and returns entry counts, total size and
// breakdowns by content type and language. Unreadable entries are skipped;
// they are reaped by Get or Sweep, never by Stats.
func (c *Cache) Stats() (Stats, error) {
	s := Stats{
		ByContentType: make(map[string]int),
		ByLanguage:    make(map[string]int),
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return s, fmt.Errorf("read cache directory: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}

		path := filepath.Join(c.dir, e.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var entry entryFile
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}

		s.Entries++
		s.TotalSizeBytes += int64(len(raw))
		s.ByContentType[entry.Metadata.ContentType]++
		s.ByLanguage[entry.Metadata.Language]++
	}

	return s, nil
}

// expired is the single expiry check: an entry written at ts is expired once
// its age exceeds the configured max age.
func (c *Cache) expired(ts int64, now time.Time) bool {
	return now.Sub(time.Unix(ts, 0)) > c.maxAge
}

// entryPath builds the on-disk path {digest}_{contentType}_{language}.
func (c *Cache) entryPath(strokes []stroke.Stroke, contentType, language string) string {
	name := stroke.Digest(strokes) + "_" + encodeProfile(contentType) + "_" + encodeProfile(language)
	return filepath.Join(c.dir, name)
}

// encodeProfile makes a profile component filesystem-safe without collisions:
// unsafe bytes (including '_', the filename separator) become _XX hex, so
// distinct components can never map to the same entry file.
func encodeProfile(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
			b.WriteByte(ch)
		case ch == '-' || ch == '.':
			b.WriteByte(ch)
		default:
			fmt.Fprintf(&b, "_%02X", ch)
		}
	}
	return b.String()
}

func (c *Cache) removeQuiet(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warn().Err(err).Str("path", path).Msg("could not remove cache file")
	}
}
