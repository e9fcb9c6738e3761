package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/click2call/relay-server-go/internal/config"
	"github.com/click2call/relay-server-go/internal/database"
	"github.com/click2call/relay-server-go/internal/handler"
	"github.com/click2call/relay-server-go/internal/middleware"
	"github.com/click2call/relay-server-go/internal/push"
	"github.com/click2call/relay-server-go/internal/redis"
	"github.com/click2call/relay-server-go/internal/repository"
	"github.com/click2call/relay-server-go/internal/service"
	"github.com/click2call/relay-server-go/internal/util"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	if cfg.RunMigrations {
		ctx, cancel := context.WithTimeout(context.Background(), config.MigrationTimeout)
		if err := db.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		cancel()
	}

	var limiter middleware.Limiter
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
		redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		limiter = middleware.NewRedisRateLimiter(redisClient.Client)
		log.Info().Msg("redis connected, using shared rate limiter")
	} else {
		limiter = middleware.NewMemoryRateLimiter()
		log.Info().Msg("REDIS_URL not set, using in-memory rate limiter")
	}

	var sender service.Sender
	saJSON, err := cfg.ServiceAccountJSON()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read FCM service account")
	}
	if saJSON != nil {
		account, err := push.ParseServiceAccount(saJSON)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to parse FCM service account")
		}
		sender = push.NewClient(account, cfg.FCMBaseURL, cfg.PushTimeout())
		log.Info().Str("projectId", account.ProjectID).Msg("fcm push configured")
	} else {
		log.Warn().Msg("FCM service account not configured: call requests will fail")
	}

	deviceRepo := repository.NewDeviceRepository(db.DB)
	callLogRepo := repository.NewCallLogRepository(db.DB)

	var sealer *util.Sealer
	if cfg.EncryptionKey != "" {
		sealer, err = util.NewSealer(cfg.EncryptionKey)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid ENCRYPTION_KEY")
		}
	} else {
		log.Warn().Msg("ENCRYPTION_KEY not set: push tokens stored unencrypted")
	}
	tokenCipher := service.NewTokenCipher(sealer)
	deviceService := service.NewDeviceService(deviceRepo, tokenCipher)
	pairingService := service.NewPairingService(deviceRepo)
	relayService := service.NewRelayService(deviceRepo, callLogRepo, sender, tokenCipher)

	corsMiddleware := middleware.NewCORSMiddleware()
	apiKeyMiddleware := middleware.NewAPIKeyMiddleware(cfg.APIKey)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(limiter, cfg.RateLimitPerMin)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	functionsHandler := handler.NewFunctionsHandler(deviceService, pairingService, relayService)
	healthHandler := handler.NewHealthHandler(db)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", healthHandler.ServeHTTP)

	r.Mount("/functions/v1", functionsHandler.Group(handler.GroupMiddleware{
		CORS:      corsMiddleware.Handler,
		BodyLimit: bodyLimitMiddleware.Handler,
		RateLimit: rateLimitMiddleware.Handler,
		APIKey:    apiKeyMiddleware.Handler,
	}))

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
