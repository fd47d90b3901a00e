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

	"github.com/okian/deathlog/internal/adapters/feed"
	"github.com/okian/deathlog/internal/adapters/http/api"
	"github.com/okian/deathlog/internal/adapters/repository"
	"github.com/okian/deathlog/internal/adapters/repository/sqlite"
	"github.com/okian/deathlog/internal/adapters/sink"
	"github.com/okian/deathlog/internal/adapters/snapshotfile"
	app "github.com/okian/deathlog/internal/app"
	"github.com/okian/deathlog/internal/config"
	"github.com/okian/deathlog/internal/domain/window"
	"github.com/okian/deathlog/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitWith(os.Stdout, cfg.LogFormat); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, loggerInstance); err != nil {
		loggerInstance.Error(ctx, "death recorder failed", logger.Error(err))
		os.Exit(1)
	}
}

// components are the long-lived parts wired from a Config.
type components struct {
	svc    *app.Service
	db     *sqlite.Store
	sinks  *sink.Multi
	tailer *feed.Tailer
	mux    *http.ServeMux
}

// build wires every component described by cfg. Nothing is started.
func build(cfg *config.Config, l logger.Logger) (*components, error) {
	c := &components{sinks: sink.NewMulti().Add("log", sink.NewLog(l.Named("deaths")))}

	if cfg.ExportPath != "" {
		out, err := sink.NewFile(cfg.ExportPath, sink.WithMaxSize(cfg.ExportMaxBytes))
		if err != nil {
			return nil, err
		}
		c.sinks.Add("file", out)
	}

	opts := []app.Option{
		app.WithLogger(l),
		app.WithSettings(cfg.Settings()),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithEmitter(c.sinks),
	}
	if cfg.DBPath != "" {
		db, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			_ = c.sinks.Close()
			return nil, err
		}
		c.db = db
		opts = append(opts, app.WithStateStore(db))
	}
	if cfg.SnapshotPath != "" {
		opts = append(opts, app.WithProviders(snapshotfile.New(cfg.SnapshotPath).Providers()))
	}

	w := window.New(window.WithWindow(cfg.Window()), window.WithSubject(cfg.SubjectID))
	history := repository.NewHistory(repository.WithCapacity(cfg.MaxEntries))
	c.svc = app.New(w, history, opts...)

	if cfg.CombatLogPath != "" {
		c.tailer = feed.New(cfg.CombatLogPath, c.svc,
			feed.WithFromStart(cfg.CombatLogFromStart),
			feed.WithLogger(l.Named("feed")),
		)
	}

	c.mux = http.NewServeMux()
	api.NewServer(c.svc, c.svc).Register(c.mux)
	return c, nil
}

// close releases the sinks and the database.
func (c *components) close() error {
	var errs []error
	if err := c.sinks.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sinks: %w", err))
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

func run(ctx context.Context, cfg *config.Config, l logger.Logger) error {
	c, err := build(cfg, l)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.close(); err != nil {
			l.Error(ctx, "failed to release resources", logger.Error(err))
		}
	}()

	if err := c.svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	go startServiceMetricsUpdater(ctx, c.svc)

	if c.tailer != nil {
		go func() {
			if err := c.tailer.Run(ctx); err != nil {
				l.Error(ctx, "combat log tailer stopped", logger.Error(err))
			}
		}()
	}

	var srv *http.Server
	if cfg.Addr != "" {
		srv = &http.Server{
			Addr:              cfg.Addr,
			Handler:           c.mux,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
		}
		go func() {
			l.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				l.Error(ctx, "HTTP server failed", logger.Error(err))
			}
		}()
	}

	// Wait for shutdown signal
	<-ctx.Done()
	l.Info(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
		}
	}
	if err := c.svc.Stop(shutdownCtx); err != nil {
		l.Error(shutdownCtx, "service shutdown failed", logger.Error(err))
	}

	l.Info(shutdownCtx, "stopped")
	return nil
}

// startServiceMetricsUpdater refreshes the service gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats updates the queue gauge as a side effect
			_ = svc.GetStats()
		}
	}
}
