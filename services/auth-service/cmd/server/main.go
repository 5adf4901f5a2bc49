package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/config"
	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/handler"
	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/notifier"
	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/usecase"
	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/worker"
	"github.com/vasapolrittideah/vaadi-booking-api/shared/auth"
	"github.com/vasapolrittideah/vaadi-booking-api/shared/logger"
	"github.com/vasapolrittideah/vaadi-booking-api/shared/mailer"
	"github.com/vasapolrittideah/vaadi-booking-api/shared/observability"
	"github.com/vasapolrittideah/vaadi-booking-api/shared/ratelimit"
	"github.com/vasapolrittideah/vaadi-booking-api/shared/security"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.New("info", false).Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(cfg.LogLevel, cfg.LogPretty)

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Environment); err != nil {
		log.Error().Err(err).Msg("failed to initialize sentry")
	}
	defer observability.FlushSentry()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoClient, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := mongoClient.Ping(pingCtx, readpref.Primary()); err != nil {
		log.Fatal().Err(err).Msg("failed to ping mongodb")
	}
	cancel()

	db := mongoClient.Database(cfg.Mongo.Database)
	accountRepo := repository.NewAccountMongoRepository(ctx, log, db)
	resetTokenRepo := repository.NewPasswordResetTokenMongoRepository(ctx, log, db)

	healthChecks := map[string]handler.HealthCheck{
		"mongo": func(ctx context.Context) error { return mongoClient.Ping(ctx, readpref.Primary()) },
	}

	redisClient, resetLimiter, verifyLimiter := newLimiters(cfg, log, healthChecks)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close redis client")
			}
		}()
	}

	smtpMailer, err := mailer.NewMailer(cfg.SMTP)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to validate mailer configuration")
	}

	reporter := observability.NewSentryReporter()
	dispatcher := notifier.NewDispatcher(notifier.DispatcherConfig{
		Workers:     cfg.Notification.Workers,
		BufferSize:  cfg.Notification.BufferSize,
		SendTimeout: cfg.Notification.SendTimeout,
	}, notifier.NewEmailNotifier(smtpMailer), reporter, log)

	hasher := security.NewArgon2Hasher()
	jwtAuth := auth.NewJWTAuthenticator(cfg.Token.Audience, cfg.Token.Issuer)

	sessionUsecase := usecase.NewSessionUsecase(accountRepo, jwtAuth, cfg, log)
	verificationUsecase := usecase.NewVerificationUsecase(accountRepo, dispatcher, verifyLimiter, cfg, log)
	passwordResetUsecase := usecase.NewPasswordResetUsecase(
		accountRepo, resetTokenRepo, hasher, dispatcher, resetLimiter, cfg, log,
	)
	authUsecase := usecase.NewAuthUsecase(accountRepo, sessionUsecase, verificationUsecase, hasher, dispatcher, cfg, log)

	sweeper := worker.NewSweeper(resetTokenRepo, accountRepo, cfg.Sweeper.Interval, log)
	go sweeper.Run(ctx)

	server := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: handler.NewRouter(handler.RouterDeps{
			Handler:              handler.NewAuthHTTPHandler(authUsecase, verificationUsecase, passwordResetUsecase, cfg, log),
			Verifier:             sessionUsecase,
			HealthChecks:         healthChecks,
			NotificationFailures: dispatcher.Degraded,
			Reporter:             reporter,
			Logger:               log,
		}),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("auth service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shut down http server")
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("pending notifications were not delivered")
	}
}

// newLimiters builds the Redis-backed limiters and returns the client they share so the
// caller can close it. Without REDIS_ADDR limiting is disabled and the client is nil.
func newLimiters(
	cfg *config.AuthServiceConfig,
	log *zerolog.Logger,
	healthChecks map[string]handler.HealthCheck,
) (redisClient *redis.Client, reset, verify ratelimit.Limiter) {
	if cfg.Redis.Addr == "" {
		log.Warn().Msg("REDIS_ADDR is not set, rate limiting is disabled")
		return nil, ratelimit.Noop{}, ratelimit.Noop{}
	}

	redisClient = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	healthChecks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }

	reset = ratelimit.NewRedisLimiter(redisClient, ratelimit.Config{
		Prefix:      "rl:auth",
		Window:      cfg.RateLimit.Window,
		MaxAttempts: cfg.RateLimit.PasswordResetRequests,
	})
	verify = ratelimit.NewRedisLimiter(redisClient, ratelimit.Config{
		Prefix:      "rl:auth",
		Window:      cfg.RateLimit.Window,
		MaxAttempts: cfg.RateLimit.VerificationResends,
	})

	return redisClient, reset, verify
}
