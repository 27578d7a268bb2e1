// Inkstore - Handwriting Pipeline Caching and Storage Engine
// Copyright 2026 Inkwell AI
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-ai/inkstore

// Package janitor runs the engine's background maintenance under a suture
// supervisor: recognition-cache expiry sweeps, orphaned-content
// reconciliation and optional age-based cleanup. Maintenance is best-effort;
// a failed run is logged and retried on the next tick.
package janitor

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/inkwell-ai/inkstore/internal/logging"
	"github.com/inkwell-ai/inkstore/internal/notebook"
	"github.com/inkwell-ai/inkstore/internal/recocache"
)

// Config configures maintenance cadence.
type Config struct {
	// Interval between maintenance runs.
	Interval time.Duration

	// CleanAfterDays deletes notebooks whose last access is older than this
	// many days. Zero disables age-based cleanup.
	CleanAfterDays int
}

// Janitor periodically sweeps the recognition cache and reconciles the
// notebook store. It implements suture.Service.
type Janitor struct {
	cache *recocache.Cache
	store *notebook.Store
	cfg   Config
}

// New creates a janitor over the given cache and store.
func New(cache *recocache.Cache, store *notebook.Store, cfg Config) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Janitor{cache: cache, store: store, cfg: cfg}
}

// String names the service in supervisor logs.
func (j *Janitor) String() string { return "janitor" }

// Serve implements suture.Service: it runs maintenance every interval until
// the context is canceled.
func (j *Janitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single maintenance pass.
func (j *Janitor) RunOnce(ctx context.Context) {
	start := time.Now()

	swept, err := j.cache.Sweep(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("cache sweep incomplete")
	}

	orphans, err := j.store.Reconcile()
	if err != nil {
		logging.Warn().Err(err).Msg("orphan reconciliation incomplete")
	}

	cleaned := 0
	if j.cfg.CleanAfterDays > 0 {
		cleaned, err = j.store.CleanStorage(j.cfg.CleanAfterDays)
		if err != nil {
			logging.Warn().Err(err).Msg("age cleanup incomplete")
		}
	}

	logging.Info().
		Int("swept", swept).
		Int("orphans", orphans).
		Int("cleaned", cleaned).
		Dur("elapsed", time.Since(start)).
		Msg("maintenance pass finished")
}

// NewSupervisor wraps the janitor in a suture supervisor whose events log
// through the engine's zerolog backend.
func NewSupervisor(j *Janitor) *suture.Supervisor {
	handler := &sutureslog.Handler{Logger: logging.Slog()}
	sup := suture.New("inkstore-maintenance", suture.Spec{
		EventHook: handler.MustHook(),
	})
	sup.Add(j)
	return sup
}
