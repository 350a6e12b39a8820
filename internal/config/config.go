/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables and an optional
 * .env file, providing a single place to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 * - pkg/logger: warnings about coerced values.
 */

package config

import (
	"os"
	"strings"

	"github.com/paymybuddy/payment-service/pkg/logger"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultRateLimitPrefix     = "paymybuddy:rate_limit"
	defaultEventsExchange      = "paymybuddy.events"
	defaultBillingSchedule     = "0 2 1 * *"
	defaultJWTTTLMinutes       = 60
	defaultTransferLimitPerMin = 20
	defaultLoginLimitPerMin    = 10
	defaultDBMaxConns          = 20
	defaultDBMinConns          = 2
)

// Config holds all the configuration variables for the payment service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                  string `mapstructure:"SERVER_PORT"`
	DatabaseURL                 string `mapstructure:"DATABASE_URL"`
	DBMaxConns                  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns                  int32  `mapstructure:"DB_MIN_CONNS"`
	JWTSecret                   string `mapstructure:"JWT_SECRET"`
	JWTTTLMinutes               int    `mapstructure:"JWT_TTL_MINUTES"`
	BcryptCost                  int    `mapstructure:"BCRYPT_COST"`
	RabbitMQURL                 string `mapstructure:"RABBITMQ_URL"`
	EventsExchange              string `mapstructure:"EVENTS_EXCHANGE"`
	RedisURL                    string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix        string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	TransferRateLimitPerMinute  int    `mapstructure:"TRANSFER_RATE_LIMIT_PER_MINUTE"`
	LoginRateLimitPerMinute     int    `mapstructure:"LOGIN_RATE_LIMIT_PER_MINUTE"`
	BillingCronSchedule         string `mapstructure:"BILLING_CRON_SCHEDULE"`
	BillingDemoUserEmail        string `mapstructure:"BILLING_DEMO_USER_EMAIL"`
	AdminName                   string `mapstructure:"ADMIN_NAME"`
	AdminEmail                  string `mapstructure:"ADMIN_EMAIL"`
	AdminPassword               string `mapstructure:"ADMIN_PASSWORD"`
	LogLevel                    string `mapstructure:"LOG_LEVEL"`
	CORSAllowedOrigins          string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

// AllowedOrigins splits CORSAllowedOrigins on commas.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// LoadConfig reads configuration from environment variables and an optional
// .env file in the given path.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DB_MAX_CONNS", defaultDBMaxConns)
	viper.SetDefault("DB_MIN_CONNS", defaultDBMinConns)
	viper.SetDefault("JWT_TTL_MINUTES", defaultJWTTTLMinutes)
	viper.SetDefault("BCRYPT_COST", bcrypt.DefaultCost)
	viper.SetDefault("EVENTS_EXCHANGE", defaultEventsExchange)
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", defaultRateLimitPrefix)
	viper.SetDefault("TRANSFER_RATE_LIMIT_PER_MINUTE", defaultTransferLimitPerMin)
	viper.SetDefault("LOGIN_RATE_LIMIT_PER_MINUTE", defaultLoginLimitPerMin)
	viper.SetDefault("BILLING_CRON_SCHEDULE", defaultBillingSchedule)
	viper.SetDefault("ADMIN_NAME", "Admin")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "https://*,http://*")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("DB_MAX_CONNS")
	_ = viper.BindEnv("DB_MIN_CONNS")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("JWT_TTL_MINUTES")
	_ = viper.BindEnv("BCRYPT_COST")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "PAYMYBUDDY_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("TRANSFER_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("LOGIN_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("BILLING_CRON_SCHEDULE")
	_ = viper.BindEnv("BILLING_DEMO_USER_EMAIL")
	_ = viper.BindEnv("ADMIN_NAME")
	_ = viper.BindEnv("ADMIN_EMAIL")
	_ = viper.BindEnv("ADMIN_PASSWORD")
	_ = viper.BindEnv("LOG_LEVEL")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logger.Log.Warn("failed to read config file; using environment values", logger.Error(err))
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = defaultRateLimitPrefix
	}
	config.EventsExchange = strings.TrimSpace(config.EventsExchange)
	if config.EventsExchange == "" {
		config.EventsExchange = defaultEventsExchange
	}
	config.BillingCronSchedule = strings.TrimSpace(config.BillingCronSchedule)
	if config.BillingCronSchedule == "" {
		config.BillingCronSchedule = defaultBillingSchedule
	}

	if config.BcryptCost < bcrypt.MinCost || config.BcryptCost > bcrypt.MaxCost {
		logger.Log.Warn("bcrypt cost out of range; using default",
			logger.Int("bcrypt_cost", config.BcryptCost),
			logger.Int("default", bcrypt.DefaultCost),
		)
		config.BcryptCost = bcrypt.DefaultCost
	}
	if config.JWTTTLMinutes <= 0 {
		config.JWTTTLMinutes = defaultJWTTTLMinutes
	}
	if config.TransferRateLimitPerMinute < 0 {
		config.TransferRateLimitPerMinute = defaultTransferLimitPerMin
	}
	if config.LoginRateLimitPerMinute < 0 {
		config.LoginRateLimitPerMinute = defaultLoginLimitPerMin
	}
	if config.DBMaxConns <= 0 {
		config.DBMaxConns = defaultDBMaxConns
	}
	if config.DBMinConns < 0 || config.DBMinConns > config.DBMaxConns {
		logger.Log.Warn("db min conns out of range; coercing",
			logger.Int("db_min_conns", int(config.DBMinConns)),
			logger.Int("db_max_conns", int(config.DBMaxConns)),
		)
		config.DBMinConns = 0
	}

	return
}
