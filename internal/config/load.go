package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load,
// e.g. ACCOUNTS_AUTH_TOKEN_SECRET.
const EnvPrefix = "ACCOUNTS"

// defaults lists every key Load knows about. Registering each key is what lets
// viper's AutomaticEnv resolve nested keys during Unmarshal.
var defaults = map[string]any{
	"server.log_level":              "info",
	"database.url":                  "",
	"database.max_open_conns":       10,
	"database.max_idle_conns":       5,
	"database.conn_max_lifetime":    5 * time.Minute,
	"auth.token_secret":             "",
	"auth.bcrypt_cost":              10,
	"auth.verification_token_ttl":   14 * 24 * time.Hour,
	"auth.password_reset_token_ttl": 30 * time.Minute,
	"email.from_address":            "",
	"email.base_url":                "",
	"email.smtp_host":               "",
	"email.smtp_port":               465,
	"email.smtp_username":           "",
	"email.smtp_password":           "",
	"email.use_starttls":            false,
	"events.kafka_brokers":          []string{},
	"events.topic":                  "storefront.accounts",
}

// Load reads configuration from environment variables and, when present, a
// config.yaml in the working directory or ./config. Environment variables take
// precedence over the file. The result is validated before it is returned.
func Load() (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate runs the struct tag validation for cfg.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
