// Package config loads process configuration from a TOML file, merging
// defaults first and validating the result.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath  = "config.toml"
	DefaultHTTPAddr    = ":8080"
	DefaultPGHost      = "127.0.0.1"
	DefaultPGPort      = 5432
	DefaultPGUser      = "postgres"
	DefaultPGDatabase  = "datachat"
	DefaultPGSSLMode   = "disable"
	DefaultSweepSpec   = "*/5 * * * *"
	DefaultSweepIdle   = "2h"
	DefaultHistoryCap  = 1024
	DefaultJWTExpires  = "24h"
)

// DefaultEndpointTimeoutSeconds bounds the answer endpoint's control calls.
const DefaultEndpointTimeoutSeconds = 30

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Endpoint EndpointConfig `toml:"endpoint"`
	Postgres PostgresConfig `toml:"postgres"`
	History  HistoryConfig  `toml:"history"`
	Render   RenderConfig   `toml:"render"`
	Telegram TelegramConfig `toml:"telegram"`
	Discord  DiscordConfig  `toml:"discord"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `toml:"format" validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

// EndpointConfig points at the answer-generation service.
type EndpointConfig struct {
	URL            string `toml:"url" validate:"required,url"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"gte=0"`
}

// Timeout returns the control-call timeout. The streamed response body is
// not covered by it.
func (c EndpointConfig) Timeout() time.Duration {
	secs := c.TimeoutSeconds
	if secs <= 0 {
		secs = DefaultEndpointTimeoutSeconds
	}
	return time.Duration(secs) * time.Second
}

type PostgresConfig struct {
	Enabled  bool   `toml:"enabled"`
	Host     string `toml:"host"`
	Port     int    `toml:"port" validate:"gte=0,lte=65535"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

type HistoryConfig struct {
	Capacity  int    `toml:"capacity" validate:"gte=0"`
	SweepSpec string `toml:"sweep_spec"`
	SweepIdle string `toml:"sweep_idle"`
}

// SweepIdleDuration parses the idle window, falling back to the default on
// an empty value.
func (c HistoryConfig) SweepIdleDuration() (time.Duration, error) {
	raw := c.SweepIdle
	if raw == "" {
		raw = DefaultSweepIdle
	}
	return time.ParseDuration(raw)
}

// RenderConfig tunes the rendering policy. ResendCards switches citation
// cards from update-in-place to delete-and-resend for platforms whose card
// payloads cannot be edited.
type RenderConfig struct {
	ResendCards bool `toml:"resend_cards"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
}

type DiscordConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
}

func defaults() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpires,
		},
		Endpoint: EndpointConfig{
			TimeoutSeconds: DefaultEndpointTimeoutSeconds,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		History: HistoryConfig{
			Capacity:  DefaultHistoryCap,
			SweepSpec: DefaultSweepSpec,
			SweepIdle: DefaultSweepIdle,
		},
	}
}

// Load reads the config file at path (DefaultConfigPath when empty). A
// missing file yields the defaults, which still must validate.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
