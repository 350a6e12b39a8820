/**
 * @description
 * This is the main entry point for the payment service. It loads configuration,
 * connects to PostgreSQL, RabbitMQ and Redis, builds the application services and
 * the HTTP router, starts the billing scheduler and serves until SIGINT or SIGTERM.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/joho/godotenv: local .env loading.
 * - github.com/redis/go-redis/v9: optional rate limiting backend.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/logger, pkg/rabbitmq: logging and event publishing.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/paymybuddy/payment-service/internal/api"
	"github.com/paymybuddy/payment-service/internal/app"
	"github.com/paymybuddy/payment-service/internal/config"
	"github.com/paymybuddy/payment-service/internal/domain"
	"github.com/paymybuddy/payment-service/internal/store"
	"github.com/paymybuddy/payment-service/pkg/logger"
	rmrabbit "github.com/paymybuddy/payment-service/pkg/rabbitmq"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"logger init failed\" err=%v", err)
	}
	defer logger.Sync()

	if strings.TrimSpace(cfg.JWTSecret) == "" {
		logger.Log.Fatal("JWT_SECRET must be configured")
	}
	logger.Log.Info("starting payment-service", logger.String("port", cfg.ServerPort))

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatal("database url parse failed", logger.Error(err))
	}
	poolConfig.MaxConns = cfg.DBMaxConns
	poolConfig.MinConns = cfg.DBMinConns
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Log.Fatal("database connection failed", logger.Error(err))
	}
	defer dbpool.Close()

	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.EnsureSchema(schemaCtx, dbpool); err != nil {
		cancelSchema()
		logger.Log.Fatal("schema setup failed", logger.Error(err))
	}
	cancelSchema()
	logger.Log.Info("database connected")

	// Events are best-effort; without a broker the fallback logs and drops them.
	var publisher rmrabbit.Publisher = &rmrabbit.EventProducerFallback{}
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		logger.Log.Warn("rabbitmq url missing; using fallback producer")
	} else if rabbitProducer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL); err != nil {
		logger.Log.Warn("rabbitmq producer unavailable; using fallback", logger.Error(err))
	} else {
		defer rabbitProducer.Close()
		publisher = rabbitProducer
		logger.Log.Info("rabbitmq producer connected")
	}

	var limiter app.RateLimiter
	if redisClient := connectRedis(cfg.RedisURL); redisClient != nil {
		defer redisClient.Close()
		limiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
	}

	repository := store.NewPostgresRepository(dbpool)
	hasher := app.NewBcryptHasher(cfg.BcryptCost)

	userService := app.NewUserService(repository, hasher, publisher, cfg.EventsExchange)
	connectionService := app.NewConnectionService(repository, publisher, cfg.EventsExchange)
	transferService := app.NewTransferService(repository, publisher, cfg.EventsExchange)
	billingService := app.NewBillingService(repository, domain.NewEmail(cfg.BillingDemoUserEmail))

	if strings.TrimSpace(cfg.AdminEmail) != "" {
		adminCtx, cancelAdmin := context.WithTimeout(context.Background(), 10*time.Second)
		err := userService.EnsureAdmin(adminCtx, cfg.AdminName, domain.NewEmail(cfg.AdminEmail), cfg.AdminPassword)
		cancelAdmin()
		if err != nil {
			logger.Log.Fatal("admin bootstrap failed", logger.Error(err))
		}
	}

	scheduler := app.NewScheduler(billingService, cfg.BillingCronSchedule)
	if err := scheduler.Start(); err != nil {
		logger.Log.Fatal("billing scheduler start failed", logger.Error(err))
	}

	handlers := api.NewHandlers(
		userService,
		connectionService,
		transferService,
		billingService,
		api.NewTokenIssuer(cfg.JWTSecret, time.Duration(cfg.JWTTTLMinutes)*time.Minute),
		limiter,
		api.RateLimits{
			TransfersPerMinute: cfg.TransferRateLimitPerMinute,
			LoginsPerMinute:    cfg.LoginRateLimitPerMinute,
		},
	)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           api.NewRouter(handlers, cfg.AllowedOrigins()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("server listening", logger.String("addr", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("server stopped unexpectedly", logger.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Log.Info("shutdown started")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.Error("http shutdown failed", logger.Error(err))
	}

	select {
	case <-scheduler.Stop().Done():
	case <-ctx.Done():
		logger.Log.Warn("billing run still in progress at shutdown")
	}

	logger.Log.Info("shutdown complete")
}

// connectRedis returns a connected client, or nil when Redis is not
// configured or unreachable. Rate limiting is disabled in that case.
func connectRedis(redisURL string) *redis.Client {
	if strings.TrimSpace(redisURL) == "" {
		logger.Log.Warn("redis url missing; rate limiting disabled")
		return nil
	}

	redisOptions, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Log.Warn("redis url parse failed; rate limiting disabled", logger.Error(err))
		return nil
	}

	client := redis.NewClient(redisOptions)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Log.Warn("redis ping failed; rate limiting disabled", logger.Error(err))
		client.Close()
		return nil
	}

	logger.Log.Info("redis connected")
	return client
}
