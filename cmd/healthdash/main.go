package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/healthdash/internal/config"
	"github.com/ehr/healthdash/internal/dashboard"
	"github.com/ehr/healthdash/internal/export"
	"github.com/ehr/healthdash/internal/platform/cache"
	"github.com/ehr/healthdash/internal/platform/db"
	"github.com/ehr/healthdash/internal/platform/middleware"
	"github.com/ehr/healthdash/internal/platform/telemetry"
	"github.com/ehr/healthdash/internal/sample"
	"github.com/ehr/healthdash/internal/stats"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "healthdash",
		Short: "Healthcare demand dashboard over synthetic appointment data",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(loadCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// logOutput is human-readable on stderr in development and JSON on stdout
// everywhere else. Every command picks it from the loaded config.
func logOutput(cfg *config.Config) io.Writer {
	if cfg.IsDev() {
		return zerolog.ConsoleWriter{Out: os.Stderr}
	}
	return os.Stdout
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return zerolog.New(logOutput(cfg)).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// datasetFlags registers --seed, --rows and --year with defaults from cfg.
func datasetFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("seed", 0, "Random seed (default from SEED)")
	cmd.Flags().Int("rows", 0, "Number of appointments (default from ROWS)")
	cmd.Flags().Int("year", 0, "Calendar year of appointment dates (default from YEAR)")
}

func datasetFromFlags(cmd *cobra.Command, cfg *config.Config) (int64, sample.Options) {
	seed := cfg.Seed
	opts := sample.DefaultOptions()
	opts.Rows = cfg.Rows
	opts.Year = cfg.Year

	if cmd.Flags().Changed("seed") {
		seed, _ = cmd.Flags().GetInt64("seed")
	}
	if cmd.Flags().Changed("rows") {
		opts.Rows, _ = cmd.Flags().GetInt("rows")
	}
	if cmd.Flags().Changed("year") {
		opts.Year, _ = cmd.Flags().GetInt("year")
	}
	return seed, opts
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a dataset and write it to a file or stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			table, _ := cmd.Flags().GetString("table")
			out, _ := cmd.Flags().GetString("out")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			seed, opts := datasetFromFlags(cmd, cfg)

			start := time.Now()
			t, err := sample.Generate(sample.NewRand(seed), opts)
			if err != nil {
				return err
			}
			logger.Debug().
				Int64("seed", seed).
				Int("rows", opts.Rows).
				Dur("duration", time.Since(start)).
				Msg("dataset generated")

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}

			if err := writeDataset(w, format, table, seed, t); err != nil {
				return err
			}
			if out != "" && out != "-" {
				logger.Info().Str("file", out).Str("format", format).Msg("dataset written")
			}
			return nil
		},
	}
	cmd.Flags().String("format", "summary", "Output format: summary, xlsx, csv or ndjson")
	cmd.Flags().String("table", export.TableAppointments, "Table for csv/ndjson: appointments or doctors")
	cmd.Flags().String("out", "", "Output file (default stdout)")
	datasetFlags(cmd)
	return cmd
}

// datasetSummary is the JSON document printed by generate --format summary.
type datasetSummary struct {
	Seed    int64          `json:"seed"`
	Options sample.Options `json:"options"`
	Summary *stats.Summary `json:"summary"`
	Status  []stats.Count  `json:"status"`
	Monthly []stats.Count  `json:"monthly"`
}

func writeDataset(w io.Writer, format, table string, seed int64, t *sample.Tables) error {
	switch format {
	case "summary":
		s, err := stats.Summarize(t)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(datasetSummary{
			Seed:    seed,
			Options: t.Options,
			Summary: s,
			Status:  stats.StatusCounts(t),
			Monthly: stats.MonthlyDemand(t),
		})
	case "xlsx":
		return export.WriteWorkbook(w, t)
	case "csv":
		return export.WriteCSV(w, table, t)
	case "ndjson":
		return export.WriteNDJSON(w, table, t)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func loadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Generate a dataset and copy it into PostgreSQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.HasDatabase() {
				return fmt.Errorf("DATABASE_URL is required for load")
			}
			logger := newLogger(cfg)
			seed, opts := datasetFromFlags(cmd, cfg)

			t, err := sample.Generate(sample.NewRand(seed), opts)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := db.NewMigrator(pool, db.Migrations()).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			if applied > 0 {
				logger.Info().Int("applied", applied).Msg("schema migrated")
			}

			res, err := db.LoadTables(ctx, pool, seed, t)
			if err != nil {
				return err
			}
			logger.Info().
				Str("batch_id", res.BatchID.String()).
				Int64("seed", res.Seed).
				Int64("doctors", res.Doctors).
				Int64("appointments", res.Appointments).
				Msg("dataset loaded")
			fmt.Fprintln(cmd.OutOrStdout(), res.BatchID)
			return nil
		},
	}
	datasetFlags(cmd)
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema used by load",
	}

	withMigrator := func(fn func(ctx context.Context, m *db.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.HasDatabase() {
				return fmt.Errorf("DATABASE_URL is required for migrate")
			}
			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()
			return fn(ctx, db.NewMigrator(pool, db.Migrations()))
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator) error {
			count, err := m.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator) error {
			statuses, err := m.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("%-10s %-30s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-30s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		}),
	})

	return cmd
}

// newServer wires middleware and routes. pool may be nil, in which case
// /health/db is not registered.
func newServer(cfg *config.Config, logger zerolog.Logger, charts cache.Store, tables *sample.Cache, pool *pgxpool.Pool) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger, "/health", "/metrics"))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost},
		AllowHeaders:  []string{"Content-Type", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, dashboard.HeaderCache},
	}))
	metrics := telemetry.NewMetrics()
	e.Use(metrics.Middleware())
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	opts := sample.DefaultOptions()
	opts.Rows = cfg.Rows
	opts.Year = cfg.Year

	metrics.GaugeFunc("table_cache_entries", "Datasets memoized in process.", func() float64 {
		return float64(tables.Stats().Entries)
	})
	metrics.GaugeFunc("table_cache_rows", "Appointment rows held by memoized datasets.", func() float64 {
		return float64(tables.Stats().Rows)
	})
	e.GET("/metrics", metrics.Handler())

	h := dashboard.NewHandler(dashboard.Config{
		Seed:     cfg.Seed,
		Options:  opts,
		CacheTTL: cfg.CacheTTL,
	}, tables, charts, logger).WithRecorder(metrics)
	h.RegisterRoutes(e, middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))

	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
		metrics.GaugeFunc("db_pool_total_connections", "Open database pool connections.", func() float64 {
			return float64(db.GetPoolStats(pool).TotalConns)
		})
	}
	return e
}

// chartStore returns a Redis store when REDIS_URL is set and reachable,
// otherwise an in-process store with a background sweeper.
func chartStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.Store, func()) {
	if cfg.RedisURL != "" {
		rs, err := cache.NewRedisStore(ctx, cfg.RedisURL, "healthdash:")
		if err == nil {
			logger.Info().Msg("caching charts in redis")
			return rs, func() { _ = rs.Close() }
		}
		logger.Warn().Err(err).Msg("redis unavailable, caching charts in memory")
	}

	ms := cache.NewMemoryStore()
	ctx, cancel := context.WithCancel(ctx)
	ms.StartCleanup(ctx, time.Minute)
	return ms, cancel
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var pool *pgxpool.Pool
	if cfg.HasDatabase() {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")
	}

	charts, closeCharts := chartStore(ctx, cfg, logger)
	defer closeCharts()

	tables := sample.NewCache(cfg.CacheTTL, cfg.TableCacheSize)
	tables.StartCleanup(ctx, time.Minute)

	e := newServer(cfg, logger, charts, tables, pool)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().
			Str("addr", addr).
			Int64("seed", cfg.Seed).
			Int("rows", cfg.Rows).
			Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
