// Package cli holds the start-up steps shared by cmd/zhangdan and cmd/zhangdan-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"zhangdan/internal/cache"
	"zhangdan/internal/config"
	"zhangdan/internal/core"
	"zhangdan/internal/log"
	"zhangdan/internal/monthstore"
	"zhangdan/internal/storage"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger for level and installs it as the slog default.
func SetupLogger(level, component string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	cfg.Component = component
	cfg.JSON = os.Getenv("LOG_FORMAT") == "json"
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration for the API server and exits on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// LoadAndValidateWorkerConfig is LoadAndValidateConfig with the worker requirements.
func LoadAndValidateWorkerConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the mirror database or exits.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// InitMonthStore opens the shard directory with the configured cache and starts the
// cache janitor. The returned manager must be stopped on shutdown; cached is nil
// when caching is disabled.
func InitMonthStore(logger *log.Logger, cfg *config.Config) (*monthstore.Store, *cache.LRUCache[core.Shard], *cache.Manager) {
	opts := []monthstore.Option{monthstore.WithLogger(logger)}
	manager := cache.NewManager(logger)

	var cached *cache.LRUCache[core.Shard]
	if cfg.ShardCacheSize > 0 {
		cached = cache.NewLRUCache[core.Shard](cfg.ShardCacheSize, cfg.ShardCacheTTL)
		opts = append(opts, monthstore.WithCache(cached))
		manager.Register(cached)
		manager.StartCleanup(cfg.ShardCacheTTL)
	}

	store := monthstore.New(cfg.DataDir, opts...)
	if err := store.EnsureDir(); err != nil {
		logger.Error("Failed to prepare data directory", log.FieldError, err, "path", cfg.DataDir)
		os.Exit(1)
	}
	return store, cached, manager
}

// LoadClassifier reads the category rules file, falling back to the built-in rules when none is set.
func LoadClassifier(logger *log.Logger, path string) *core.Classifier {
	c, err := core.LoadClassifier(path)
	if err != nil {
		logger.Error("Failed to load category rules", log.FieldError, err, "path", path)
		os.Exit(1)
	}
	return c
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. cleanup runs
// with a context bounded by timeout before the returned done channel closes.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}
