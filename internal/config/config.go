// Inkstore - Handwriting Pipeline Caching and Storage Engine
// Copyright 2026 Inkwell AI
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-ai/inkstore

// Package config holds the engine's explicit configuration. There are no
// hidden globals: every store and cache instance is constructed from a Config
// (or a section of one), so independently configured instances can coexist,
// including in tests.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the engine and its maintenance CLI.
type Config struct {
	Cache   CacheConfig   `koanf:"cache"`
	Store   StoreConfig   `koanf:"store"`
	Janitor JanitorConfig `koanf:"janitor"`
	Logging LoggingConfig `koanf:"logging"`
}

// CacheConfig configures the recognition cache.
type CacheConfig struct {
	// Dir is the directory holding one file per cache entry.
	Dir string `koanf:"dir"`

	// MaxAgeSeconds is the entry TTL. Entries older than this are misses
	// and are deleted lazily on read or by the sweep.
	MaxAgeSeconds int `koanf:"max_age_seconds"`

	// SweepRatePerSecond throttles how many entries per second the expiry
	// sweep examines, so maintenance never monopolizes disk I/O.
	// Zero means unthrottled.
	SweepRatePerSecond int `koanf:"sweep_rate_per_second"`
}

// MaxAge returns the entry TTL as a duration.
func (c CacheConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeSeconds) * time.Second
}

// StoreConfig configures the notebook store.
type StoreConfig struct {
	// Dir is the store root: one subdirectory per notebook id, plus the
	// metadata index keyspace under Dir/index.
	Dir string `koanf:"dir"`

	// LRUCapacity bounds the in-memory window of materialized documents.
	LRUCapacity int `koanf:"lru_capacity"`

	// ChunkSize is the uncompressed size of each chunk in bytes.
	ChunkSize int `koanf:"chunk_size"`

	// ChunkThreshold is the serialized size above which a document is
	// stored chunked instead of as a single compressed blob.
	ChunkThreshold int `koanf:"chunk_threshold"`

	// CompressionLevel selects the zstd encoder level: 1 fastest,
	// 2 default, 3 better, 4 best.
	CompressionLevel int `koanf:"compression_level"`
}

// JanitorConfig configures background maintenance.
type JanitorConfig struct {
	// Interval between maintenance runs.
	Interval time.Duration `koanf:"interval"`

	// CleanAfterDays deletes notebooks whose last access is older than
	// this many days. Zero disables age-based cleanup.
	CleanAfterDays int `koanf:"clean_after_days"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns a Config with all default values. Defaults are applied
// first, then overridden by the config file and environment variables.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			Dir:                "data/recognition_cache",
			MaxAgeSeconds:      604800, // 7 days
			SweepRatePerSecond: 200,
		},
		Store: StoreConfig{
			Dir:              "data/notebooks",
			LRUCapacity:      50,
			ChunkSize:        1 << 20, // 1MB
			ChunkThreshold:   1 << 20,
			CompressionLevel: 2,
		},
		Janitor: JanitorConfig{
			Interval:       time.Hour,
			CleanAfterDays: 0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	return c.validateJanitor()
}

func (c *Config) validateCache() error {
	if c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir is required")
	}
	if c.Cache.MaxAgeSeconds <= 0 {
		return fmt.Errorf("cache.max_age_seconds must be positive, got %d", c.Cache.MaxAgeSeconds)
	}
	if c.Cache.SweepRatePerSecond < 0 {
		return fmt.Errorf("cache.sweep_rate_per_second must not be negative, got %d", c.Cache.SweepRatePerSecond)
	}
	return nil
}

func (c *Config) validateStore() error {
	if c.Store.Dir == "" {
		return fmt.Errorf("store.dir is required")
	}
	if c.Store.LRUCapacity <= 0 {
		return fmt.Errorf("store.lru_capacity must be positive, got %d", c.Store.LRUCapacity)
	}
	if c.Store.ChunkSize <= 0 {
		return fmt.Errorf("store.chunk_size must be positive, got %d", c.Store.ChunkSize)
	}
	if c.Store.ChunkThreshold <= 0 {
		return fmt.Errorf("store.chunk_threshold must be positive, got %d", c.Store.ChunkThreshold)
	}
	if c.Store.CompressionLevel < 1 || c.Store.CompressionLevel > 4 {
		return fmt.Errorf("store.compression_level must be 1-4, got %d", c.Store.CompressionLevel)
	}
	return nil
}

func (c *Config) validateJanitor() error {
	if c.Janitor.Interval <= 0 {
		return fmt.Errorf("janitor.interval must be positive, got %s", c.Janitor.Interval)
	}
	if c.Janitor.CleanAfterDays < 0 {
		return fmt.Errorf("janitor.clean_after_days must not be negative, got %d", c.Janitor.CleanAfterDays)
	}
	return nil
}
