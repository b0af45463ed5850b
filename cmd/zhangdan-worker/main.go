package main

import (
	"context"
	"errors"
	"os"
	"time"

	"zhangdan/internal/amqp"
	"zhangdan/internal/backend"
	"zhangdan/internal/cli"
	"zhangdan/internal/log"
	"zhangdan/internal/monthstore"
	"zhangdan/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting zhangdan-worker")

	cfg := cli.LoadAndValidateWorkerConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// The API process owns the shards; the worker reads them uncached so reconcile sees fresh files.
	store := monthstore.New(cfg.DataDir, monthstore.WithLogger(logger))

	journalCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid journal configuration", log.FieldError, err)
		os.Exit(1)
	}
	journal, err := backend.NewFactory(logger).CreateJournal(context.Background(), journalCfg)
	if err != nil {
		logger.Error("Failed to initialize journal", log.FieldError, err, "backend", journalCfg.Type.String())
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	mirrorWorker := worker.NewMirrorWorker(repo, journal, store, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close error", log.FieldError, err)
		}
	})

	go mirrorWorker.Run(ctx, cfg.ReconcileInterval)

	if err := amqpClient.Consume(ctx, mirrorWorker.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Event consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	<-done
	logger.Info("Worker stopped")
}
