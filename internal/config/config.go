package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "apikey", "api-key", "password",
}

type Config struct {
	Port                  int    `env:"PORT" envDefault:"8080"`
	DatabaseURL           string `env:"DATABASE_URL,required"`
	RedisURL              string `env:"REDIS_URL"`
	APIKey                string `env:"API_KEY"`
	FCMServiceAccount     string `env:"FCM_SERVICE_ACCOUNT"`
	FCMServiceAccountFile string `env:"FCM_SERVICE_ACCOUNT_FILE"`
	FCMBaseURL            string `env:"FCM_BASE_URL" envDefault:"https://fcm.googleapis.com"`
	PushTimeoutSeconds    int    `env:"PUSH_TIMEOUT_SECONDS" envDefault:"10"`
	EncryptionKey         string `env:"ENCRYPTION_KEY"`
	RateLimitPerMin       int    `env:"RATE_LIMIT_PER_MIN" envDefault:"60"`
	RunMigrations         bool   `env:"RUN_MIGRATIONS" envDefault:"true"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) PushTimeout() time.Duration {
	return time.Duration(c.PushTimeoutSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// ServiceAccountJSON returns the FCM service-account document, preferring the
// inline value over the file. An empty result means push is not configured.
func (c *Config) ServiceAccountJSON() ([]byte, error) {
	if strings.TrimSpace(c.FCMServiceAccount) != "" {
		return []byte(c.FCMServiceAccount), nil
	}
	if c.FCMServiceAccountFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.FCMServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("read FCM_SERVICE_ACCOUNT_FILE: %w", err)
	}
	return data, nil
}

func (c *Config) Validate(isProduction bool) error {
	if c.EncryptionKey != "" {
		key, err := hex.DecodeString(c.EncryptionKey)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("ENCRYPTION_KEY must be 64 hex characters (generate with: openssl rand -hex 32)")
		}
	}

	if c.RateLimitPerMin < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must not be negative")
	}

	if isProduction {
		if err := validateSecret("API_KEY", c.APIKey); err != nil {
			return err
		}

		if c.FCMServiceAccount == "" && c.FCMServiceAccountFile == "" {
			log.Warn().Msg("FCM_SERVICE_ACCOUNT is empty in production: call requests will fail")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.EncryptionKey == "" {
			log.Warn().Msg("ENCRYPTION_KEY is empty in production: push tokens will not be encrypted at rest")
		}
	} else if c.APIKey == "" {
		log.Warn().Msg("API_KEY is empty: endpoints are unauthenticated")
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: go run scripts/gen-api-key.go)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
