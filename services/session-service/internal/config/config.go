package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// SessionServiceConfig holds all configuration for the session service.
type SessionServiceConfig struct {
	ServiceName   string `env:"SERVICE_NAME"   envDefault:"session-service"`
	HTTPAddr      string `env:"HTTP_ADDR"      envDefault:":8084"`
	AdvertiseAddr string `env:"ADVERTISE_ADDR" envDefault:"127.0.0.1"`
	AdvertisePort int    `env:"ADVERTISE_PORT" envDefault:"8084"`

	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"healthmate"`

	StoreDriver    string `env:"STORE_DRIVER"    envDefault:"memory"`
	StoreNamespace string `env:"STORE_NAMESPACE" envDefault:"session"`
	RedisAddr      string `env:"REDIS_ADDR"`
	RedisUsername  string `env:"REDIS_USERNAME"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB"`

	Gateway GatewayConfig

	ConsulAddr string `env:"CONSUL_ADDR"`

	VerificationTokenTTL     time.Duration `env:"VERIFICATION_TOKEN_TTL" envDefault:"10m"`
	ActivityQueueSize        int           `env:"ACTIVITY_QUEUE_SIZE"    envDefault:"256"`
	PasswordResetRedirectURL string        `env:"PASSWORD_RESET_REDIRECT_URL"`
}

// GatewayConfig holds the remote auth backend connection parameters.
type GatewayConfig struct {
	BaseURL   string        `env:"AUTH_GATEWAY_URL"`
	APIKey    string        `env:"AUTH_GATEWAY_API_KEY"`
	JWTSecret string        `env:"AUTH_GATEWAY_JWT_SECRET"`
	Audience  string        `env:"AUTH_GATEWAY_AUDIENCE" envDefault:"healthmate"`
	Issuer    string        `env:"AUTH_GATEWAY_ISSUER"   envDefault:"healthmate-auth"`
	Timeout   time.Duration `env:"AUTH_GATEWAY_TIMEOUT"  envDefault:"10s"`
}

// NewSessionServiceConfig creates a SessionServiceConfig from environment variables.
func NewSessionServiceConfig(logger *zerolog.Logger) *SessionServiceConfig {
	cfg, err := env.ParseAs[SessionServiceConfig]()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse environment variables")
	}

	if err := cfg.validate(); err != nil {
		logger.Fatal().Err(err).Msg("failed to validate session service configuration")
	}

	return &cfg
}

// validate checks if the configuration is valid.
func (c *SessionServiceConfig) validate() error {
	if c.MongoURI == "" {
		return fmt.Errorf("missing MONGO_URI environment variable")
	}
	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("missing AUTH_GATEWAY_URL environment variable")
	}
	if c.Gateway.JWTSecret == "" {
		return fmt.Errorf("missing AUTH_GATEWAY_JWT_SECRET environment variable")
	}
	if c.StoreDriver == "redis" && c.RedisAddr == "" {
		return fmt.Errorf("missing REDIS_ADDR environment variable for redis store driver")
	}

	return nil
}
