package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"voyago/backend/internal/api"
	"voyago/backend/internal/cache"
	"voyago/backend/internal/config"
	"voyago/backend/internal/db"
	"voyago/backend/internal/email"
	"voyago/backend/internal/logger"
	"voyago/backend/internal/metrics"
	"voyago/backend/internal/services"
	"voyago/backend/internal/storage"
	"voyago/backend/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'all' (default)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*runMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.FromConfig(cfg))
	defer func() { _ = log.Sync() }()
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient, log); err != nil {
			log.Error("Error disconnecting from MongoDB", zap.Error(err))
		}
	}()
	if err := db.EnsureIndexes(ctx, mongoDb, log); err != nil {
		// Queries fall back to in-memory sorting without indexes.
		log.Warn("Index bootstrap incomplete", zap.Error(err))
	}

	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient, log); err != nil {
			log.Error("Error disconnecting from Redis", zap.Error(err))
		}
	}()

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// Services
	configSvc := services.NewConfigService(ctx, mongoDb, cfg, redisClient, log)
	userService := services.NewUserService(mongoDb)
	listingService := services.NewListingService(mongoDb, cfg, log)
	walletService := services.NewWalletService(mongoDb, cfg, log, m)
	bookingService := services.NewBookingService(mongoDb, listingService, userService, walletService, log)
	recommendationService := services.NewRecommendationService(bookingService, listingService, redisClient, cfg, log, m)
	chatService := services.NewChatService(mongoDb, bookingService, userService,
		services.NewRedisChatHub(redisClient, log, m), services.NewRedisTypingStore(redisClient), cfg, log, m)
	favoriteService := services.NewFavoriteService(mongoDb, listingService)
	reviewService := services.NewReviewService(mongoDb, bookingService, log)

	taskClient := tasks.NewClient(redisClient)
	defer taskClient.Close()

	var wg sync.WaitGroup
	shutdownChan := make(chan struct{}, 1)

	// Service API (always runs)
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(taskClient, shutdownChan, log),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Service API listening", zap.String("port", cfg.ServiceApiPort))
		if err := serviceSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Service API ListenAndServe error", zap.Error(err))
		}
	}()

	var (
		mainApiSrv   *http.Server
		taskSrv      *asynq.Server
		taskSchedule *asynq.Scheduler
	)

	log.Info("Starting application", zap.String("mode", cfg.RunMode))

	apiMode := func() {
		storageService, err := storage.NewS3Storage(ctx, cfg, log)
		if err != nil {
			log.Fatal("Failed to initialize S3 storage", zap.Error(err))
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := recommendationService.ListenForInvalidations(ctx); err != nil {
				log.Error("Recommendation invalidation listener stopped", zap.Error(err))
			}
		}()

		router := api.SetupRouter(ctx, cfg, api.Services{
			Config:         configSvc,
			User:           userService,
			Listing:        listingService,
			Booking:        bookingService,
			Chat:           chatService,
			Recommendation: recommendationService,
			Wallet:         walletService,
			Favorite:       favoriteService,
			Review:         reviewService,
			Storage:        storageService,
			TaskClient:     taskClient,
		}, m, log)
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: router,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("Main API listening", zap.String("port", cfg.ApiPort))
			if err := mainApiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal("Main API ListenAndServe error", zap.Error(err))
			}
		}()
	}

	bgMode := func() {
		processor := tasks.NewTaskProcessor(cfg, bookingService, walletService, recommendationService,
			email.NewFromConfig(cfg, redisClient, log), m, log)
		taskSrv = tasks.NewServer(redisClient, log)
		if err := taskSrv.Start(processor.Mux()); err != nil {
			log.Fatal("Could not start task server", zap.Error(err))
		}

		taskSchedule, err = tasks.NewScheduler(redisClient, cfg, log)
		if err != nil {
			log.Fatal("Could not configure task scheduler", zap.Error(err))
		}
		if err := taskSchedule.Start(); err != nil {
			log.Fatal("Could not start task scheduler", zap.Error(err))
		}
		log.Info("Background worker started")
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		bgMode()
	case "all":
		apiMode()
		bgMode()
	default:
		log.Fatal("Invalid run mode", zap.String("mode", cfg.RunMode))
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case <-shutdownChan:
		log.Info("Shutdown requested via service API")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		log.Error("Service API shutdown error", zap.Error(err))
	}
	if mainApiSrv != nil {
		// Open SSE streams end when ctx is cancelled below.
		mainApiSrv.RegisterOnShutdown(cancel)
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			log.Error("Main API shutdown error", zap.Error(err))
		}
	}
	if taskSchedule != nil {
		taskSchedule.Shutdown()
	}
	if taskSrv != nil {
		taskSrv.Shutdown()
	}

	cancel()
	wg.Wait()
	log.Info("Shutdown complete")
}
