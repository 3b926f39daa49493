package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/semaphore"

	"github.com/qiranapp/qiran/config"
	"github.com/qiranapp/qiran/internal/api/handlers"
	"github.com/qiranapp/qiran/internal/api/middleware"
	"github.com/qiranapp/qiran/internal/api/routes"
	"github.com/qiranapp/qiran/internal/budget"
	"github.com/qiranapp/qiran/internal/cache"
	"github.com/qiranapp/qiran/internal/logger"
	"github.com/qiranapp/qiran/internal/providers/embedding"
	mongorepo "github.com/qiranapp/qiran/internal/repositories/mongo"
	pgrepo "github.com/qiranapp/qiran/internal/repositories/postgres"
	"github.com/qiranapp/qiran/internal/resilience"
	"github.com/qiranapp/qiran/internal/services"
	"github.com/qiranapp/qiran/internal/telemetry"
	"github.com/qiranapp/qiran/internal/workers"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stores
	db, err := config.NewPostgres()
	if err != nil {
		log.WithError(err).Fatal("PostgreSQL init failed")
	}
	rdb, err := config.NewRedis(ctx)
	if err != nil {
		log.WithError(err).Fatal("Redis init failed")
	}
	mongoClient, err := config.NewMongo()
	if err != nil {
		log.WithError(err).Fatal("MongoDB init failed")
	}
	mongoDB := config.MongoDatabase(mongoClient)
	if err := config.EnsureMongoIndexes(mongoDB); err != nil {
		log.WithError(err).Fatal("MongoDB index setup failed")
	}

	// Upstream embedding provider
	provider, err := embedding.NewFromEnv(ctx)
	if err != nil {
		log.WithError(err).Fatal("embedding provider init failed")
	}
	defer provider.Close()

	// Core state: explicitly constructed, injected everywhere
	sink := telemetry.NewRedisSink(rdb, os.Getenv("ALERT_CHANNEL"), log)
	vectorCache := cache.NewVectorCache()
	guard := budget.NewGuard(budget.DefaultLimits(), sink, log)
	guard.Start(ctx)
	breakers := resilience.NewBreakerSet()
	caller := resilience.NewCaller(breakers, resilience.DefaultRetryConfig(), log, sink)

	// Repositories
	profileRepo := pgrepo.NewProfileRepo(db)
	embeddingRepo := pgrepo.NewEmbeddingRepo(db)
	interactionRepo := mongorepo.NewInteractionRepo(mongoDB)
	matchRunRepo := mongorepo.NewMatchRunRepo(mongoDB)

	// Services
	embedSvc := services.NewEmbeddingService(services.EmbeddingServiceDeps{
		Provider:    provider,
		Caller:      caller,
		Guard:       guard,
		Local:       vectorCache,
		Distributed: cache.NewRedisCache(rdb),
		Store:       embeddingRepo,
		Limiter:     semaphore.NewWeighted(services.DefaultEmbedConcurrency),
		Logger:      log,
	})
	profileSvc := services.NewProfileService(profileRepo, rdb, log)
	matchSvc := services.NewMatchService(profileRepo, embedSvc, interactionRepo, matchRunRepo, log)

	// Background embedding regeneration
	pool := &workers.EmbeddingWorkerPool{
		Redis:      rdb,
		Profiles:   profileRepo,
		Embeddings: embedSvc,
		Logger:     log,
	}
	if err := pool.Start(ctx); err != nil {
		log.WithError(err).Fatal("embedding worker pool start failed")
	}

	// HTTP
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	routes.RegisterRoutes(r, routes.Deps{
		Profile:   handlers.NewProfileHandler(profileSvc),
		Match:     handlers.NewMatchHandler(matchSvc),
		Telemetry: handlers.NewTelemetryHandler(vectorCache, guard, breakers),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
