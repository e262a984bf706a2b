package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/haukened/geoblock/internal/geoblock/common/clock"
	"github.com/haukened/geoblock/internal/geoblock/common/iso3166"
	"github.com/haukened/geoblock/internal/geoblock/common/log"
	"github.com/haukened/geoblock/internal/geoblock/config"
	"github.com/haukened/geoblock/internal/geoblock/gateways/geolocation"
	"github.com/haukened/geoblock/internal/geoblock/gateways/httpapi"
	"github.com/haukened/geoblock/internal/geoblock/metrics"
	"github.com/haukened/geoblock/internal/geoblock/repos/archive"
	"github.com/haukened/geoblock/internal/geoblock/repos/geocache"
	"github.com/haukened/geoblock/internal/geoblock/repos/registry"
	"github.com/haukened/geoblock/internal/geoblock/services/blocking"
	"github.com/haukened/geoblock/internal/geoblock/services/sweeper"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "geoblockd"

	defaultShutdownTimeout = 10 * time.Second
)

// Application holds all the components of the geoblock server
type Application struct {
	config   *config.AppConfig
	registry *registry.Registry
	service  *blocking.Service
	sweeper  *sweeper.Sweeper
	server   *httpapi.Server
	closers  []io.Closer
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. The root command runs the server.
func newRootCmd() *cobra.Command {
	var envFile string

	serve := func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context(), envFile)
	}

	rootCmd := &cobra.Command{
		Use:          appName,
		Short:        "Country-level access control service",
		Long:         "geoblockd keeps a registry of permanently and temporarily blocked countries and checks callers against it by IP geolocation.",
		SilenceUsage: true,
		RunE:         serve,
		Version:      version,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading GEOBLOCK_* variables (default .env if present)")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and expiry sweeper (default)",
			Args:  cobra.NoArgs,
			RunE:  serve,
		},
		&cobra.Command{
			Use:   "countries",
			Short: "Print the ISO 3166-1 alpha-2 table used for validation",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return printCountries(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (iso3166 table %s)\n", appName, version, iso3166.TableVersion)
			},
		},
	)
	return rootCmd
}

func printCountries(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "# ISO 3166-1 alpha-2, table version %s\n", iso3166.TableVersion)
	fmt.Fprintln(tw, "CODE\tNAME")
	for _, c := range iso3166.All() {
		fmt.Fprintf(tw, "%s\t%s\n", c.Code, c.Name)
	}
	return tw.Flush()
}

// runServe loads configuration, builds the application, and runs it until
// SIGINT or SIGTERM.
func runServe(parent context.Context, envFile string) error {
	if parent == nil {
		parent = context.Background()
	}
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	err = log.Configure(cfg.Env, cfg.LogLevel, log.FileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("logging configuration error: %w", err)
	}

	log.Info(map[string]any{
		"version":        version,
		"env":            cfg.Env,
		"log_level":      cfg.LogLevel,
		"listen":         cfg.Listen,
		"sweep_interval": cfg.SweepInterval.String(),
		"geo_provider":   cfg.GeoProvider,
		"geo_cache_size": cfg.GeoCacheSize,
		"archive":        cfg.ArchivePath != "",
	}, "Starting geoblock server")

	app, err := buildApplication(cfg)
	if err != nil {
		log.Error(map[string]any{"error": err.Error()}, "Failed to build application")
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Error(map[string]any{"error": err.Error()}, "Server failed")
		return err
	}

	log.Info(nil, "geoblock server stopped gracefully")
	return nil
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	clk := clock.RealClock{}
	logger := log.GetLogger()

	reg := registry.New(clk)
	m := metrics.New(reg)

	app := &Application{config: cfg, registry: reg}

	geo, err := buildGeoLookup(cfg, logger, app)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("failed to build geolocation lookup: %w", err)
	}

	var attempts blocking.AttemptArchive
	if cfg.ArchivePath != "" {
		a, err := archive.Open(cfg.ArchivePath)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("failed to open attempt archive: %w", err)
		}
		app.closers = append(app.closers, a)
		attempts = a
		log.Info(map[string]any{"path": cfg.ArchivePath}, "Attempt archive enabled")
	}

	app.service, err = blocking.New(blocking.Options{
		Registry: reg,
		Geo:      geo,
		Archive:  attempts,
		Metrics:  m,
		Clock:    clk,
		Logger:   logger,
	})
	if err != nil {
		app.close()
		return nil, fmt.Errorf("failed to build blocking service: %w", err)
	}

	app.sweeper, err = sweeper.New(sweeper.Options{
		Registry: reg,
		Interval: cfg.SweepInterval,
		Logger:   logger,
		Metrics:  m,
	})
	if err != nil {
		app.close()
		return nil, fmt.Errorf("failed to build sweeper: %w", err)
	}

	app.server, err = httpapi.New(httpapi.Options{
		Addr:           cfg.Listen,
		MaxConnections: cfg.MaxConnections,
		TrustedProxies: cfg.TrustedProxies,
		Dev:            cfg.Env == "dev",
		Service:        app.service,
		Stats:          reg,
		Metrics:        m.Handler(),
		Logger:         logger,
	})
	if err != nil {
		app.close()
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	return app, nil
}

// buildGeoLookup creates the configured provider behind a lookup cache.
// Closable providers are registered on app.
func buildGeoLookup(cfg *config.AppConfig, logger log.Logger, app *Application) (blocking.GeoLookup, error) {
	var provider geolocation.Lookup
	switch cfg.GeoProvider {
	case "mmdb":
		db, err := geolocation.OpenMMDB(cfg.GeoMMDBPath, logger)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, db)
		provider = db
	case "ipgeolocation":
		if cfg.GeoAPIKey == "" {
			log.Warn(nil, "No geolocation API key configured; IP checks will not resolve countries")
		}
		provider = geolocation.NewIPGeolocation(geolocation.Options{
			APIKey:  cfg.GeoAPIKey,
			BaseURL: cfg.GeoBaseURL,
			Timeout: cfg.GeoTimeout,
			Logger:  logger,
		})
	default:
		return nil, fmt.Errorf("unknown geolocation provider %q", cfg.GeoProvider)
	}

	log.Info(map[string]any{
		"provider":   cfg.GeoProvider,
		"cache_size": cfg.GeoCacheSize,
		"cache_ttl":  cfg.GeoCacheTTL.String(),
	}, "Geolocation lookup configured")

	return geolocation.NewCached(provider, geocache.New(cfg.GeoCacheSize, cfg.GeoCacheTTL)), nil
}

// Run starts the HTTP server and the expiry sweeper and blocks until ctx is
// cancelled, then shuts both down.
func (app *Application) Run(ctx context.Context) error {
	if err := app.server.Start(ctx); err != nil {
		app.close()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()

	log.Info(map[string]any{"address": app.server.Address()}, "geoblock server started")

	<-ctx.Done()
	log.Info(nil, "Shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	var errs []error
	if err := app.server.Stop(shutdownCtx); err != nil {
		log.Warn(map[string]any{"error": err.Error()}, "Error during HTTP server shutdown")
		errs = append(errs, err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn(map[string]any{"timeout": defaultShutdownTimeout.String()}, "Shutdown timeout exceeded")
		errs = append(errs, fmt.Errorf("shutdown timeout"))
	}

	if err := app.close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// close releases the archive and any open geolocation database.
func (app *Application) close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			log.Warn(map[string]any{"error": err.Error()}, "Error releasing resource")
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}
