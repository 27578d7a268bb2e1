// Inkstore - Handwriting Pipeline Caching and Storage Engine
// Copyright 2026 Inkwell AI
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-ai/inkstore

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in priority
// order. The first file found wins.
var DefaultConfigPaths = []string{
	"inkstore.yaml",
	"inkstore.yml",
	"/etc/inkstore/config.yaml",
	"/etc/inkstore/config.yml",
}

// EnvPrefix is the prefix of configuration environment variables.
const EnvPrefix = "INKSTORE_"

// Load builds the configuration in three layers: struct defaults, then an
// optional yaml config file, then INKSTORE_* environment variables (highest
// priority). An empty path falls back to DefaultConfigPaths.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Layer 3: environment variables
	// INKSTORE_CACHE_MAX_AGE_SECONDS -> cache.max_age_seconds
	// INKSTORE_STORE_LRU_CAPACITY    -> store.lru_capacity
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing default config path, or "".
func findConfigFile() string {
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransform maps an environment variable name to a koanf path: the first
// token after the prefix is the section, the rest joins with underscores.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	parts := strings.SplitN(key, "_", 2)
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}
