// Inkstore - Handwriting Pipeline Caching and Storage Engine
// Copyright 2026 Inkwell AI
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-ai/inkstore

// Command inkstore is the maintenance CLI for the engine: cache statistics,
// expiry sweeps, orphan reconciliation, age-based cleanup and the supervised
// janitor loop. It operates directly on the configured directories; the
// engine itself exposes no network surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/inkwell-ai/inkstore/internal/config"
	"github.com/inkwell-ai/inkstore/internal/janitor"
	"github.com/inkwell-ai/inkstore/internal/logging"
	"github.com/inkwell-ai/inkstore/internal/notebook"
	"github.com/inkwell-ai/inkstore/internal/recocache"
	"golang.org/x/time/rate"
)

func main() {
	cmd := &cli.Command{
		Name:  "inkstore",
		Usage: "Maintenance tooling for the inkstore caching/storage engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Sources: cli.EnvVars("INKSTORE_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			statsCommand(),
			sweepCommand(),
			reconcileCommand(),
			cleanCommand(),
			janitorCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logging.Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// loadConfig loads configuration and initializes logging from it.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	return cfg, nil
}

func openCache(cfg *config.Config) (*recocache.Cache, error) {
	return recocache.New(recocache.Config{
		Dir:       cfg.Cache.Dir,
		MaxAge:    cfg.Cache.MaxAge(),
		SweepRate: rate.Limit(cfg.Cache.SweepRatePerSecond),
	})
}

func openStore(cfg *config.Config) (*notebook.Store, error) {
	return notebook.Open(notebook.Config{
		Dir:              cfg.Store.Dir,
		LRUCapacity:      cfg.Store.LRUCapacity,
		ChunkSize:        cfg.Store.ChunkSize,
		ChunkThreshold:   cfg.Store.ChunkThreshold,
		CompressionLevel: cfg.Store.CompressionLevel,
	})
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Print recognition cache and notebook store statistics",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			cache, err := openCache(cfg)
			if err != nil {
				return err
			}
			stats, err := cache.Stats()
			if err != nil {
				return err
			}

			fmt.Printf("recognition cache (%s)\n", cfg.Cache.Dir)
			fmt.Printf("  entries: %d\n", stats.Entries)
			fmt.Printf("  size:    %s\n", humanize.Bytes(uint64(stats.TotalSizeBytes)))
			printBreakdown("  by content type", stats.ByContentType)
			printBreakdown("  by language", stats.ByLanguage)

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			records := store.List(notebook.Filter{})
			var total int64
			chunked := 0
			for _, rec := range records {
				total += rec.SizeBytes
				if rec.Chunked {
					chunked++
				}
			}

			fmt.Printf("notebook store (%s)\n", cfg.Store.Dir)
			fmt.Printf("  notebooks: %d (%d chunked)\n", len(records), chunked)
			fmt.Printf("  content:   %s uncompressed\n", humanize.Bytes(uint64(total)))
			fmt.Printf("  duplicate groups: %d\n", len(store.FindDuplicates()))

			return nil
		},
	}
}

func printBreakdown(label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("%s:\n", label)
	for _, k := range keys {
		fmt.Printf("    %-12s %d\n", k, counts[k])
	}
}

func sweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Remove expired recognition cache entries",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cache, err := openCache(cfg)
			if err != nil {
				return err
			}

			removed, err := cache.Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("swept %d expired entries\n", removed)
			return nil
		},
	}
}

func reconcileCommand() *cli.Command {
	return &cli.Command{
		Name:  "reconcile",
		Usage: "Delete orphaned notebook content left by interrupted writes",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Reconcile()
			if err != nil {
				return err
			}
			fmt.Printf("removed %d orphaned content directories\n", removed)
			return nil
		},
	}
}

func cleanCommand() *cli.Command {
	return &cli.Command{
		Name:  "clean",
		Usage: "Delete notebooks not accessed within the given number of days",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:     "days",
				Usage:    "Last-access age threshold in days",
				Required: true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			cleaned, err := store.CleanStorage(int(cmd.Int("days")))
			if err != nil {
				return err
			}
			fmt.Printf("cleaned %d notebooks\n", cleaned)
			return nil
		},
	}
}

func janitorCommand() *cli.Command {
	return &cli.Command{
		Name:  "janitor",
		Usage: "Run supervised background maintenance until interrupted",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cache, err := openCache(cfg)
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			j := janitor.New(cache, store, janitor.Config{
				Interval:       cfg.Janitor.Interval,
				CleanAfterDays: cfg.Janitor.CleanAfterDays,
			})

			logging.Info().Dur("interval", cfg.Janitor.Interval).Msg("janitor starting")
			err = janitor.NewSupervisor(j).Serve(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
