package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"peregrine/internal/bootstrap"
	"peregrine/internal/config"
	"peregrine/internal/controller"
	"peregrine/internal/fetcher"
	server "peregrine/internal/http"
	"peregrine/internal/jobs"
	"peregrine/internal/logger"
	"peregrine/internal/migrate"
	"peregrine/internal/oracle"
	"peregrine/internal/store"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg := config.Load(*configPath)

	lg, err := logger.New(cfg.Logging.Environment)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer lg.Sync()

	// Run migrations on a short-lived connection.
	if err := migrate.Run(cfg.Database.DSN); err != nil {
		lg.Fatal("migrations failed", logger.Err(err))
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(rootCtx, cfg.Database.DSN)
	if err != nil {
		lg.Fatal("database connect failed", logger.Err(err))
	}
	defer db.Close()
	st := store.New(db)

	if err := bootstrap.Run(rootCtx, st, lg); err != nil {
		lg.Fatal("catalogue seed failed", logger.Err(err))
	}

	var perfOracle *oracle.Client
	if cfg.Oracle.APIKey != "" {
		perfOracle = oracle.New(cfg.Oracle.BaseURL, cfg.Oracle.APIKey,
			time.Duration(cfg.Oracle.TimeoutMs)*time.Millisecond)
	}

	newFetcher := func(ctx context.Context, opts fetcher.Options) (fetcher.Fetcher, error) {
		opts.NavTimeout = time.Duration(cfg.Crawler.NavTimeoutMs) * time.Millisecond
		opts.ControlURL = cfg.Browser.ControlURL
		opts.Retry = fetcher.RetryPolicy{
			MaxRetries:     cfg.Crawler.MaxRetries,
			InitialBackoff: time.Duration(cfg.Crawler.RetryDelayMs) * time.Millisecond,
			Multiplier:     2,
		}
		if opts.RenderJavascript {
			return fetcher.NewRodFetcher(ctx, opts, lg)
		}
		return fetcher.NewHTTPFetcher(opts, lg), nil
	}

	newListener := func(ctx context.Context) (<-chan store.JobEvent, func(), error) {
		l, err := store.NewListener(ctx, cfg.Database.DSN, lg)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = l.Close(closeCtx)
		}
		return l.Events(ctx), cleanup, nil
	}

	ctrl := controller.New(controller.Config{
		Cfg:         cfg,
		Store:       st,
		Pages:       st,
		Oracle:      perfOracle,
		NewListener: newListener,
		NewFetcher:  newFetcher,
		Log:         lg,
	})

	if cfg.Retention.Enabled {
		go runRetention(rootCtx, cfg, st, lg)
	}

	srv := server.NewServer(cfg, st, lg)
	go func() {
		if err := srv.Listen(); err != nil {
			lg.Fatal("status API failed", logger.Err(err))
		}
	}()

	lg.Info("worker started",
		logger.String("user_agent", cfg.Crawler.UserAgent),
		logger.Bool("oracle", perfOracle != nil))

	// Blocks until a signal arrives; the controller cancels the active job and
	// waits for its terminal write before returning.
	ctrl.Run(rootCtx)

	if err := srv.Shutdown(); err != nil {
		lg.Warn("status API shutdown failed", logger.Err(err))
	}
	lg.Info("worker stopped")
}

// runRetention deletes expired terminal jobs on a fixed interval. Pages and
// issues follow their job via FK cascade.
func runRetention(ctx context.Context, cfg *config.Config, st *store.Store, lg logger.Logger) {
	interval := time.Duration(cfg.Retention.CleanupIntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := jobs.CleanupExpiredData(ctx, cfg, st)
			for status, n := range stats.JobsDeleted {
				lg.Info("retention cleanup",
					logger.String("status", status),
					logger.Int64("jobs_deleted", n))
			}
		}
	}
}
