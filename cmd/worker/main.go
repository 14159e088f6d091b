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

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hoopcentral/achievements-worker/internal/badge"
	"github.com/hoopcentral/achievements-worker/internal/config"
	"github.com/hoopcentral/achievements-worker/internal/handlers"
	"github.com/hoopcentral/achievements-worker/internal/store"
	"github.com/hoopcentral/achievements-worker/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var zl *zap.Logger
	if cfg.Env == "production" {
		zl, err = zap.NewProduction()
	} else {
		zl, err = zap.NewDevelopment()
	}
	if err != nil {
		return err
	}
	defer zl.Sync()
	logger := zl.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Relational store. The pool is shared by every component.
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = 20
	poolCfg.MaxConnIdleTime = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	defer pool.Close()

	// The store may still be coming up alongside us; retry the first ping.
	ping := func() error { return pool.Ping(ctx) }
	if err := backoff.Retry(ping, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 8), ctx)); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	logger.Infow("connected to database")

	// Optional rule cache.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnw("redis unreachable, rule cache disabled", "error", err)
			redisClient = nil
		}
	}

	// Object store.
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.ObjectStoreRegion),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.ObjectStoreAccessKey, cfg.ObjectStoreSecretKey, ""),
		),
	)
	if err != nil {
		return fmt.Errorf("object store config: %w", err)
	}
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.ObjectStoreEndpoint)
		o.UsePathStyle = true
	})

	queueStore := store.NewQueueStore(pool, logger, cfg.MaxAttempts, cfg.LeaseTTL)
	counterStore := store.NewCounterStore(pool, logger)
	ruleStore := store.NewRuleStore(pool, redisClient, cfg.RuleCacheTTL, logger)
	awardStore := store.NewAwardStore(pool, logger)
	uploader := badge.NewUploader(s3Client, cfg.ObjectStoreBucket, cfg.PublicBaseURL, logger)

	// Optional analytics archive.
	var archiver *worker.Archiver
	if cfg.ClickHouseURL != "" {
		chOpts, err := clickhouse.ParseDSN(cfg.ClickHouseURL)
		if err != nil {
			return fmt.Errorf("parse clickhouse url: %w", err)
		}
		chConn, err := clickhouse.Open(chOpts)
		if err != nil {
			return fmt.Errorf("connect clickhouse: %w", err)
		}
		defer chConn.Close()
		archiver = worker.NewArchiver(chConn, logger)
		archiver.Start()
		defer archiver.Stop()
	}

	var pipelineArchiver worker.EventArchiver
	if archiver != nil {
		pipelineArchiver = archiver
	}
	pipeline := worker.NewPipeline(counterStore, ruleStore, awardStore, uploader, pipelineArchiver, logger)
	supervisor := worker.NewSupervisor(queueStore, pipeline, logger, cfg.BatchSize, cfg.PollInterval)

	handler := handlers.New(queueStore, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return supervisor.Run(gctx)
	})

	g.Go(func() error {
		logger.Infow("health server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("worker shut down cleanly")
	return nil
}
