// Package config loads server settings from an optional YAML file and POCKET_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// ErrMissingSecret is returned when no JWT secret is configured outside development.
var ErrMissingSecret = errors.New("jwt.secret must be set outside development")

// devSecret signs tokens in development when no secret is configured.
const devSecret = "pocketledger-development-secret"

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type SecurityConfig struct {
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

// SessionConfig drives the client-side session cache.
type SessionConfig struct {
	ExpiryDays int    `mapstructure:"expiry_days"`
	Prefix     string `mapstructure:"prefix"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Security SecurityConfig `mapstructure:"security"`
	Log      LogConfig      `mapstructure:"log"`
	App      AppConfig      `mapstructure:"app"`
	Session  SessionConfig  `mapstructure:"session"`
}

var defaults = map[string]any{
	"server.port":          8080,
	"database.path":        "./data/pocketledger.db",
	"jwt.secret":           "",
	"jwt.expire_hours":     24,
	"security.bcrypt_cost": 0,
	"log.level":            "info",
	"app.env":              EnvProduction,
	"session.expiry_days":  30,
	"session.prefix":       "pocketledger:",
}

// Load reads configuration from path (e.g. "config.yaml").
// If path is empty, config.yaml in the working directory is used when present; a missing
// default file is not an error. Environment variables override the file, e.g.
// POCKET_SERVER_PORT=9000.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("POCKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// IsDevelopment reports whether the app runs in development mode.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.App.Env, EnvDevelopment)
}

// TokenDuration is how long issued tokens stay valid.
func (c *Config) TokenDuration() time.Duration {
	return time.Duration(c.JWT.ExpireHours) * time.Hour
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		if !c.IsDevelopment() {
			return ErrMissingSecret
		}
		c.JWT.Secret = devSecret
	}
	if c.JWT.ExpireHours <= 0 {
		return fmt.Errorf("jwt.expire_hours must be positive, got %d", c.JWT.ExpireHours)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Session.ExpiryDays <= 0 {
		return fmt.Errorf("session.expiry_days must be positive, got %d", c.Session.ExpiryDays)
	}
	return nil
}
