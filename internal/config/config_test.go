// Inkstore - Handwriting Pipeline Caching and Storage Engine
// Copyright 2026 Inkwell AI
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-ai/inkstore

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Cache.MaxAgeSeconds != 604800 {
		t.Errorf("Expected default max age 604800, got %d", cfg.Cache.MaxAgeSeconds)
	}
	if cfg.Store.LRUCapacity != 50 {
		t.Errorf("Expected default LRU capacity 50, got %d", cfg.Store.LRUCapacity)
	}
	if cfg.Store.CompressionLevel != 2 {
		t.Errorf("Expected default compression level 2, got %d", cfg.Store.CompressionLevel)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
cache:
  dir: /var/lib/inkstore/cache
  max_age_seconds: 3600
store:
  lru_capacity: 10
  compression_level: 4
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Cache.Dir != "/var/lib/inkstore/cache" {
		t.Errorf("Expected cache dir from file, got %q", cfg.Cache.Dir)
	}
	if cfg.Cache.MaxAge() != time.Hour {
		t.Errorf("Expected 1h max age, got %s", cfg.Cache.MaxAge())
	}
	if cfg.Store.LRUCapacity != 10 {
		t.Errorf("Expected LRU capacity 10, got %d", cfg.Store.LRUCapacity)
	}
	// Unset fields keep their defaults.
	if cfg.Store.ChunkSize != 1<<20 {
		t.Errorf("Expected default chunk size, got %d", cfg.Store.ChunkSize)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("store:\n  lru_capacity: 10\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("INKSTORE_STORE_LRU_CAPACITY", "99")
	t.Setenv("INKSTORE_CACHE_MAX_AGE_SECONDS", "120")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Store.LRUCapacity != 99 {
		t.Errorf("Expected env to override file, got %d", cfg.Store.LRUCapacity)
	}
	if cfg.Cache.MaxAgeSeconds != 120 {
		t.Errorf("Expected env to override default, got %d", cfg.Cache.MaxAgeSeconds)
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"INKSTORE_CACHE_MAX_AGE_SECONDS", "cache.max_age_seconds"},
		{"INKSTORE_STORE_LRU_CAPACITY", "store.lru_capacity"},
		{"INKSTORE_LOGGING_LEVEL", "logging.level"},
	}

	for _, tt := range tests {
		if got := envTransform(tt.in); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty cache dir", func(c *Config) { c.Cache.Dir = "" }},
		{"zero max age", func(c *Config) { c.Cache.MaxAgeSeconds = 0 }},
		{"zero lru capacity", func(c *Config) { c.Store.LRUCapacity = 0 }},
		{"zero chunk size", func(c *Config) { c.Store.ChunkSize = 0 }},
		{"zero chunk threshold", func(c *Config) { c.Store.ChunkThreshold = 0 }},
		{"compression level too low", func(c *Config) { c.Store.CompressionLevel = 0 }},
		{"compression level too high", func(c *Config) { c.Store.CompressionLevel = 5 }},
		{"negative clean days", func(c *Config) { c.Janitor.CleanAfterDays = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
