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
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/clubkit/tournament-engine/cache"
	"github.com/clubkit/tournament-engine/config"
	"github.com/clubkit/tournament-engine/db"
	"github.com/clubkit/tournament-engine/events"
	"github.com/clubkit/tournament-engine/handlers"
	"github.com/clubkit/tournament-engine/live"
	"github.com/clubkit/tournament-engine/repositories"
	api "github.com/clubkit/tournament-engine/routes"
	"github.com/clubkit/tournament-engine/services"
	"github.com/clubkit/tournament-engine/storage"
)

const roundsCacheTTL = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	// Optional infrastructure: every piece degrades to a no-op when its
	// address is not configured.
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		publisher = events.NewAMQPPublisher(cfg.RabbitMQURL, logger)
		logger.Info("rabbitmq publisher initialized")
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		logger.Info("redis client initialized", slog.String("addr", cfg.RedisAddr))
	}
	roundsCache := cache.NewRoundsCache(redisClient, roundsCacheTTL)

	var uploader storage.FileUploader
	if cfg.R2AccountID != "" {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2Bucket,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	}

	wsHub := live.NewHub(logger)
	go wsHub.Run()

	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	divisionRepo := repositories.NewPostgresDivisionRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	roundRepo := repositories.NewPostgresRoundRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	courtRepo := repositories.NewPostgresCourtRepository(dbConn)
	resultRepo := repositories.NewPostgresResultRepository(dbConn)

	advancementService := services.NewAdvancementService(
		dbConn, tournamentRepo, divisionRepo, teamRepo, roundRepo, matchRepo,
		publisher, wsHub, roundsCache, uploader, logger,
	)
	bracketService := services.NewBracketService(
		dbConn, tournamentRepo, divisionRepo, teamRepo, roundRepo, matchRepo,
		roundsCache, logger,
	)
	scheduleService := services.NewScheduleService(
		dbConn, tournamentRepo, divisionRepo, matchRepo, courtRepo,
		publisher, wsHub, roundsCache, cfg.DayStartHour, cfg.DayEndHour, logger,
	)
	resultService := services.NewResultService(
		dbConn, matchRepo, divisionRepo, resultRepo, advancementService, publisher,
		roundsCache, time.Duration(cfg.ResultGraceMinutes)*time.Minute, logger,
	)
	tournamentService := services.NewTournamentService(
		tournamentRepo, divisionRepo, teamRepo, roundRepo, matchRepo,
		resultService, roundsCache, logger,
	)
	ledgerService := services.NewCourtLedgerService(dbConn, courtRepo)
	logger.Info("services initialized")

	tournamentHandler := handlers.NewTournamentHandler(tournamentService, bracketService, scheduleService)
	scheduleHandler := handlers.NewScheduleHandler(scheduleService, ledgerService)
	resultHandler := handlers.NewResultHandler(resultService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, logger)
	healthHandler := handlers.NewHealthHandler(dbConn)

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		cfg.JWTSecretKey,
		tournamentHandler,
		scheduleHandler,
		resultHandler,
		webSocketHandler,
		healthHandler,
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
	}
	logger.Info("application exited")
}
