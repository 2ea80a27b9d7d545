/*
main.go - Application entry point

PURPOSE:
  Starts the asset maintenance server and offers offline helpers for
  projecting a schedule and browsing templates.

COMMANDS:
  serve      HTTP API with the overdue sweeper (default)
  project    Print a projected schedule without touching the database
  templates  List registered maintenance templates

STARTUP SEQUENCE (serve):
  1. Load configuration (flags > ASSETS_* env > defaults)
  2. Build the zap logger
  3. Register custom templates from --templates-file
  4. Initialize SQLite store
  5. Wire service, metrics and handler
  6. Start the overdue sweeper and the HTTP server with graceful shutdown

FLAGS / ENVIRONMENT:
  --port            ASSETS_PORT            HTTP server port (default: 8080)
  --db              ASSETS_DB              SQLite path, ":memory:" for in-memory
  --log-level       ASSETS_LOG_LEVEL       debug, info, warn, error
  --sweep-interval  ASSETS_SWEEP_INTERVAL  Overdue sweep period, 0 disables
  --templates-file  ASSETS_TEMPLATES_FILE  YAML file of custom templates
  --cors-origins    ASSETS_CORS_ORIGINS    Comma-separated allowed origins

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the sweeper
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server --db=":memory:" --sweep-interval=5m
  ./server project --rate 150 --usage-interval 10000 --time-interval 6 --offset 45000 --from 2024-01-01

SEE ALSO:
  - config/config.go: Settings and logger
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/warp/asset-engine/api"
	"github.com/warp/asset-engine/config"
	"github.com/warp/asset-engine/factory"
	"github.com/warp/asset-engine/generic"
	"github.com/warp/asset-engine/maintenance"
	"github.com/warp/asset-engine/store/sqlite"
)

var (
	cfg    config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Preventive maintenance projection engine",
	Long: `Projects preventive maintenance events for assets from usage and
calendar criteria, reconciles them against work orders at read time and
regularizes overdue work with a recorded justification.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(viper.GetViper()); err != nil {
			return err
		}
		if logger, err = cfg.NewLogger(); err != nil {
			return err
		}
		if cfg.TemplatesFile != "" {
			n, err := factory.RegisterFromFile(cfg.TemplatesFile)
			if err != nil {
				return err
			}
			logger.Info("custom templates registered", zap.Int("count", n), zap.String("file", cfg.TemplatesFile))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(templatesCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	config.SetDefaults(viper.GetViper())
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.Int(config.KeyPort, 8080, "HTTP server port")
	flags.String(config.KeyDB, "assets.db", `SQLite database path (":memory:" for in-memory)`)
	flags.String(config.KeyLogLevel, "info", "log level: debug, info, warn, error")
	flags.Duration(config.KeySweepInterval, time.Hour, "overdue sweep interval, 0 disables")
	flags.String(config.KeyTemplatesFile, "", "YAML file of custom maintenance templates")
	flags.StringSlice(config.KeyCORSOrigins, nil, "allowed CORS origins")
	for _, key := range []string{
		config.KeyPort, config.KeyDB, config.KeyLogLevel,
		config.KeySweepInterval, config.KeyTemplatesFile, config.KeyCORSOrigins,
	} {
		_ = viper.BindPFlag(key, flags.Lookup(key))
	}
}

// =============================================================================
// SERVE
// =============================================================================

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := api.MustNewMetrics(reg)

	handler := api.NewHandler(store, logger)
	handler.Service.Observer = metrics

	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		Gatherer:    reg,
	})

	var sweeper *api.OverdueSweeper
	if cfg.SweepInterval > 0 {
		sweeper = api.NewOverdueSweeper(handler.Service, store, metrics, logger)
		sweeper.Interval = cfg.SweepInterval
		sweeper.Start()
		logger.Info("next overdue sweep", zap.Time("at", sweeper.NextRunTime()))
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("db", cfg.DBPath),
			zap.String("api", fmt.Sprintf("http://localhost:%d/api", cfg.Port)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if sweeper != nil {
			sweeper.Stop()
		}
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("shutting down server")
	if sweeper != nil {
		sweeper.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// =============================================================================
// PROJECT
// =============================================================================

func projectCmd() *cobra.Command {
	var (
		current, rate, interval, offset string
		unit, timeUnit, from           string
		timeInterval, count            int
	)
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Print a projected maintenance schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			nums, err := decimalFlags(map[string]string{
				"current": current, "rate": rate, "usage-interval": interval, "offset": offset,
			})
			if err != nil {
				return err
			}
			usage, err := maintenance.NewUsageProfile(nums["current"], nums["rate"])
			if err != nil {
				return err
			}
			freq := maintenance.FrequencyConfig{
				UsageInterval: nums["usage-interval"],
				UsageUnit:     generic.UsageUnit(unit),
				TimeInterval:  timeInterval,
				TimeUnit:      maintenance.TimeUnit(timeUnit),
			}
			if err := freq.Validate(); err != nil {
				return err
			}

			ref := generic.Today()
			if from != "" {
				if ref, err = generic.ParseDate(from); err != nil {
					return err
				}
			}

			start := nums["offset"]
			if start.IsZero() {
				start = usage.CurrentUsage
			}
			events, err := maintenance.Project(usage, freq, start, count, ref)
			if err != nil {
				return err
			}
			printSchedule(events, freq, ref)
			return nil
		},
	}
	cmd.Flags().StringVar(&current, "current", "0", "current usage reading")
	cmd.Flags().StringVar(&rate, "rate", "0", "average usage per day")
	cmd.Flags().StringVar(&interval, "usage-interval", "0", "usage between services, 0 disables")
	cmd.Flags().StringVar(&unit, "unit", string(generic.UnitKilometers), "usage unit: km, hours")
	cmd.Flags().IntVar(&timeInterval, "time-interval", 0, "time between services, 0 disables")
	cmd.Flags().StringVar(&timeUnit, "time-unit", string(maintenance.TimeMonth), "time unit: day, week, month, year")
	cmd.Flags().StringVar(&offset, "offset", "0", "usage the plan starts from (default: current)")
	cmd.Flags().IntVar(&count, "count", 4, "number of events")
	cmd.Flags().StringVar(&from, "from", "", "reference date YYYY-MM-DD (default: today)")
	return cmd
}

func printSchedule(events []maintenance.ProjectedEvent, freq maintenance.FrequencyConfig, ref generic.TimePoint) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"#", "Due", "When", "Trigger", "Usage target", "Priority"})
	for i, e := range events {
		target := "-"
		if e.Trigger == maintenance.TriggerUsage {
			target = generic.NewQuantity(e.TriggerUsageValue, freq.UsageUnit).String()
		}
		tw.AppendRow(table.Row{
			i + 1,
			e.DueDate.String(),
			humanize.RelTime(e.DueDate.Time, ref.Time, "before", "after"),
			e.Trigger,
			target,
			e.Priority,
		})
	}
	tw.Render()
}

// =============================================================================
// TEMPLATES
// =============================================================================

func templatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List registered maintenance templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Key", "Name", "Category", "Interval", "Months", "Entries"})
			for _, t := range maintenance.ListTemplates() {
				interval := "-"
				if t.BaseInterval.IsPositive() {
					interval = generic.NewQuantity(t.BaseInterval, t.UsageUnit).String()
				}
				tw.AppendRow(table.Row{t.Key, t.Name, t.Category, interval, t.BaseMonths, len(t.Entries)})
			}
			tw.Render()
			return nil
		},
	}
}

// decimalFlags parses numeric flags by name.
func decimalFlags(flags map[string]string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(flags))
	for name, s := range flags {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", name, err)
		}
		out[name] = d
	}
	return out, nil
}
