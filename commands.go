package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"sjsage522/immunescraper/config"
	"sjsage522/immunescraper/internal/crawler"
	"sjsage522/immunescraper/internal/manifest"
	"sjsage522/immunescraper/internal/refine"
	"sjsage522/immunescraper/logger"
	"sjsage522/immunescraper/services/cache"
	"sjsage522/immunescraper/services/publisher"
	"sjsage522/immunescraper/services/store"
	"sjsage522/immunescraper/services/worker"
)

type rootFlags struct {
	scrape bool
	file   string
	output string
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "immunescraper",
		Short:         "Scrape raid and dungeon spells and refine them into an instances document",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd.Context(), cfg, flags, cmd.OutOrStdout())
		},
	}

	cmd.PersistentFlags().StringVar(&flags.file, "file", cfg.InstancesFile, "instances document to read")
	cmd.Flags().BoolVar(&flags.scrape, "scrape", false, "scrape fresh data before refining")
	cmd.Flags().StringVar(&flags.output, "output", "", "where to write the refined document (defaults to --file)")

	cmd.AddCommand(newDBCmd(cfg, flags))
	return cmd
}

func newDBCmd(cfg *config.Config, flags *rootFlags) *cobra.Command {
	var databasePath string

	cmd := &cobra.Command{
		Use:   "db",
		Short: "Export the instances document into SQLite",
	}
	cmd.PersistentFlags().StringVar(&databasePath, "database", cfg.DatabasePath, "SQLite database path")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "reset",
			Short: "Drop and recreate all tables, then load the document",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDB(cmd.Context(), databasePath, flags.file, true, cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "populate",
			Short: "Load the document into the existing tables",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDB(cmd.Context(), databasePath, flags.file, false, cmd.OutOrStdout())
			},
		},
	)
	return cmd
}

func runRoot(ctx context.Context, cfg *config.Config, flags *rootFlags, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m, err := manifest.Load(cfg.ManifestFile)
	if err != nil {
		return err
	}

	services := initializeServices(ctx, cfg)
	defer services.Cleanup()

	mode := worker.ModeRefine
	var c crawler.Crawler
	if flags.scrape {
		mode = worker.ModeScrape
		c = crawler.NewFromConfig(cfg, services.Cache)
	}

	logger.ForComponent("main").Info().
		Str("environment", cfg.Environment).
		Str("mode", mode.String()).
		Int("max_concurrent", cfg.MaxConcurrent).
		Msg("Starting application")

	w := worker.NewWorker(c, m, refine.FromManifest(m), services.Publisher, worker.Files{
		Input:  flags.file,
		Output: flags.output,
	})

	summary, err := w.Run(ctx, mode)
	if err != nil {
		return err
	}
	summary.Print(out)
	return nil
}

func runDB(ctx context.Context, databasePath, file string, reset bool, out io.Writer) error {
	doc, _, err := refine.LoadDocument(file)
	if err != nil {
		return err
	}

	s, err := store.Open(ctx, databasePath)
	if err != nil {
		return err
	}
	defer s.Close()

	if reset {
		if err := s.Reset(ctx); err != nil {
			return err
		}
	}
	if err := s.Populate(ctx, doc); err != nil {
		return err
	}

	counts, err := s.Counts(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Database %s: %d instances, %d NPCs, %d spells\n",
		databasePath, counts.Instances, counts.Npcs, counts.Spells)
	return nil
}

// Services holds the optional services
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
}

// initializeServices connects the page cache and the publisher when they are
// configured. An unreachable service is disabled rather than failing the run.
func initializeServices(ctx context.Context, cfg *config.Config) *Services {
	services := &Services{}

	if cfg.MemcacheAddr != "" {
		cacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := cacheService.Ping(); err != nil {
			logger.ForCache().Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unreachable, page cache disabled")
		} else {
			services.Cache = cacheService
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	}

	if cfg.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamMaxLength)
		if err := redisPublisher.Ping(ctx); err != nil {
			logger.ForPublisher().Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unreachable, publishing disabled")
			redisPublisher.Close()
		} else {
			services.Publisher = redisPublisher
			logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)", cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
		}
	}

	return services
}
