package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/importcheck/internal/cache"
	"github.com/JonMunkholm/importcheck/internal/config"
	"github.com/JonMunkholm/importcheck/internal/core"
	"github.com/JonMunkholm/importcheck/internal/logging"
	"github.com/JonMunkholm/importcheck/internal/storage"
	"github.com/JonMunkholm/importcheck/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists; real environment variables win.
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logFile := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	defer logFile.Close()

	slog.Info("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var snapshots core.SnapshotCache
	if cfg.Redis.Addr != "" {
		rc, err := cache.Connect(ctx, cache.Config{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       cfg.Redis.TTL,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rc.Close()
		snapshots = rc
		slog.Info("snapshot cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL.String())
	}

	service := core.NewService(store, snapshots, core.Options{
		DefaultDateFormat:    cfg.Validation.DefaultDateFormat,
		AggregateWorkers:     cfg.Aggregate.Workers,
		AggregateChunkSize:   cfg.Aggregate.ChunkSize,
		StatusConcurrency:    cfg.Aggregate.StatusConcurrency,
		MaxConcurrentImports: cfg.Import.MaxConcurrent,
		ImportWait:           cfg.Import.MaxWaitTime,
		ImportBatchSize:      cfg.Import.BatchSize,
		MaxFileSize:          cfg.Import.MaxFileSize,
		RevalidateWorkers:    cfg.Aggregate.RevalidateWorkers,
	})

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	if _, err := service.StartActivityRetention(jobCtx, core.RetentionConfig{
		Schedule:  cfg.Activity.PurgeSchedule,
		Retention: cfg.Activity.Retention(),
	}); err != nil {
		return err
	}

	server := web.NewServer(service, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Addr())
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	cancelJobs()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Let running imports finish before the server stops accepting.
	if st := service.Limiter().Status(); st.Active > 0 {
		slog.Info("waiting for imports to complete", "active", st.Active)
		if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
			slog.Warn("imports did not complete in time", "error", err)
		} else {
			slog.Info("all imports completed")
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
