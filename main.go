// linkguard resolves short links with cached, safety-gated redirects and
// analyzes link destinations asynchronously.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonesrussell/linkguard/internal/analysis"
	"github.com/jonesrussell/linkguard/internal/api"
	"github.com/jonesrussell/linkguard/internal/cache"
	"github.com/jonesrussell/linkguard/internal/config"
	"github.com/jonesrussell/linkguard/internal/database"
	"github.com/jonesrussell/linkguard/internal/fetcher"
	"github.com/jonesrussell/linkguard/internal/links"
	"github.com/jonesrussell/linkguard/internal/logger"
	"github.com/jonesrussell/linkguard/internal/membership"
	"github.com/jonesrussell/linkguard/internal/queue"
	"github.com/jonesrussell/linkguard/internal/resolver"
	"github.com/jonesrussell/linkguard/internal/textai"
	"github.com/jonesrussell/linkguard/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(config.GetConfigPath("config.yml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		return 1
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting linkguard",
		logger.String("version", cfg.Service.Version),
		logger.Int("port", cfg.Service.Port),
	)

	db, err := database.Connect(cfg.Database.DSN())
	if err != nil {
		log.Error("Failed to connect to database", logger.Error(err))
		return 1
	}
	defer func() { _ = db.Close() }()

	redisClient, err := cache.NewClient(cache.Config{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Error("Failed to connect to redis", logger.Error(err))
		return 1
	}
	defer func() { _ = redisClient.Close() }()

	linkRepo := database.NewLinkRepository(db)
	collectionRepo := database.NewCollectionRepository(db)
	linkCache := cache.NewLinkCache(redisClient, cfg.Resolver.CacheTTL)
	jobQueue := queue.New(db, queue.Config{
		MaxRetries: cfg.Queue.MaxRetries,
		RetryBase:  cfg.Queue.RetryBase,
	})

	hits := resolver.NewHitBuffer(linkRepo, cfg.Resolver.HitBufferSize, cfg.Resolver.HitFlushEvery, log)
	hits.Start()
	defer hits.Stop()

	resolve := resolver.New(linkRepo, linkCache, hits, cfg.Resolver.SafetyThreshold, log)
	memberships := membership.NewService(linkRepo, collectionRepo, log)
	linkService := links.NewService(linkRepo, jobQueue, linkCache, memberships, log)

	engine := analysis.NewEngine(textai.NewClient(cfg.Analysis, log), cfg.Analysis, log)
	contentFetcher := fetcher.New(cfg.Fetcher, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	analysisWorker := worker.New(
		jobQueue, linkRepo, contentFetcher, engine, linkCache, memberships,
		cfg.Queue, log,
	)
	analysisWorker.Start(ctx)

	handler := api.NewHandler(resolve, linkService, memberships, collectionRepo, jobQueue, log)
	server := api.NewServer(cfg.Service, handler, db, redisClient, log)

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Error("HTTP server failed", logger.Error(err))
			return 1
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed", logger.Error(err))
	}
	analysisWorker.Wait()

	log.Info("Shutdown complete")
	return 0
}
