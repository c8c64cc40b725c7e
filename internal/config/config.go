package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Email    EmailConfig    `mapstructure:"email" validate:"required"`
	Events   EventsConfig   `mapstructure:"events"`
}

// ServerConfig contains process-wide settings.
type ServerConfig struct {
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AuthConfig controls credential hashing and token issuance.
type AuthConfig struct {
	TokenSecret           string        `mapstructure:"token_secret" validate:"required,min=32"`
	BcryptCost            int           `mapstructure:"bcrypt_cost" validate:"gte=4,lte=31"`
	VerificationTokenTTL  time.Duration `mapstructure:"verification_token_ttl" validate:"gt=0"`
	PasswordResetTokenTTL time.Duration `mapstructure:"password_reset_token_ttl" validate:"gt=0"`
}

// EmailConfig contains outbound notification settings. When SMTPHost is
// empty, messages are logged instead of delivered.
type EmailConfig struct {
	FromAddress  string `mapstructure:"from_address" validate:"required,email"`
	BaseURL      string `mapstructure:"base_url" validate:"required,url"`
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port" validate:"omitempty,gt=0,lt=65536"`
	SMTPUsername string `mapstructure:"smtp_username"`
	SMTPPassword string `mapstructure:"smtp_password"`
	UseStartTLS  bool   `mapstructure:"use_starttls"`
}

// EventsConfig configures lifecycle event publishing. Publishing is disabled
// when no brokers are configured.
type EventsConfig struct {
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	Topic        string   `mapstructure:"topic" validate:"required_with=KafkaBrokers"`
}
