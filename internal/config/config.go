// Package config provides configuration management for the XUMM tooling
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/alexbotov/xumm/pkg/xumm"
)

// Config holds all configuration for the XUMM CLI and its servers
type Config struct {
	API          APIConfig
	Log          LogConfig
	JWTStore     JWTStoreConfig
	Metrics      ServerConfig
	Webhook      ServerConfig
	Subscription xumm.SubscriptionConfig
}

// APIConfig holds the platform credentials
type APIConfig struct {
	Key     string
	Secret  string
	BaseURL string
	Timeout time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level       string
	Development bool
}

// JWTStoreConfig selects where bearer tokens of the JWT flow are kept.
// An empty DSN keeps them in memory.
type JWTStoreConfig struct {
	Driver string
	DSN    string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Enabled reports whether the server has an address to listen on
func (s ServerConfig) Enabled() bool {
	return strings.TrimSpace(s.Addr) != ""
}

// fileConfig is the TOML layout of the optional config file
type fileConfig struct {
	API struct {
		Key     string `toml:"key"`
		Secret  string `toml:"secret"`
		BaseURL string `toml:"base_url"`
		Timeout string `toml:"timeout"`
	} `toml:"api"`
	Log struct {
		Level       string `toml:"level"`
		Development bool   `toml:"development"`
	} `toml:"log"`
	JWTStore struct {
		DSN string `toml:"dsn"`
	} `toml:"jwt_store"`
	Metrics struct {
		Addr string `toml:"addr"`
	} `toml:"metrics"`
	Webhook struct {
		Addr string `toml:"addr"`
	} `toml:"webhook"`
	Subscription struct {
		SubscribeDelay       string `toml:"subscribe_delay"`
		KeepaliveInterval    string `toml:"keepalive_interval"`
		KeepaliveTimeout     string `toml:"keepalive_timeout"`
		ReconnectDelay       string `toml:"reconnect_delay"`
		MaxReconnectAttempts uint64 `toml:"max_reconnect_attempts"`
	} `toml:"subscription"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: xumm.DefaultBaseURL,
			Timeout: 30 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		JWTStore: JWTStoreConfig{
			Driver: "postgres",
		},
		Metrics: ServerConfig{
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Webhook: ServerConfig{
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Subscription: xumm.DefaultSubscriptionConfig(),
	}
}

// Load builds the configuration from defaults, the TOML file at path (when
// path is set and the file exists) and the environment, in that order
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if strings.TrimSpace(path) != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var raw fileConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	setString(&c.API.Key, raw.API.Key)
	setString(&c.API.Secret, raw.API.Secret)
	setString(&c.API.BaseURL, raw.API.BaseURL)
	setString(&c.Log.Level, raw.Log.Level)
	c.Log.Development = c.Log.Development || raw.Log.Development
	setString(&c.JWTStore.DSN, raw.JWTStore.DSN)
	setString(&c.Metrics.Addr, raw.Metrics.Addr)
	setString(&c.Webhook.Addr, raw.Webhook.Addr)
	if raw.Subscription.MaxReconnectAttempts > 0 {
		c.Subscription.MaxReconnectAttempts = raw.Subscription.MaxReconnectAttempts
	}

	durations := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"api.timeout", raw.API.Timeout, &c.API.Timeout},
		{"subscription.subscribe_delay", raw.Subscription.SubscribeDelay, &c.Subscription.SubscribeDelay},
		{"subscription.keepalive_interval", raw.Subscription.KeepaliveInterval, &c.Subscription.KeepaliveInterval},
		{"subscription.keepalive_timeout", raw.Subscription.KeepaliveTimeout, &c.Subscription.KeepaliveTimeout},
		{"subscription.reconnect_delay", raw.Subscription.ReconnectDelay, &c.Subscription.ReconnectDelay},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, d.value); err != nil {
			return fmt.Errorf("parse config %s: %w", d.key, err)
		}
	}
	return nil
}

func (c *Config) loadEnv() error {
	c.API.Key = getEnv("XUMM_APIKEY", c.API.Key)
	c.API.Secret = getEnv("XUMM_APISECRET", c.API.Secret)
	c.API.BaseURL = getEnv("XUMM_BASE_URL", c.API.BaseURL)
	c.Log.Level = getEnv("XUMM_LOG_LEVEL", c.Log.Level)
	c.JWTStore.DSN = getEnv("XUMM_JWT_STORE_DSN", c.JWTStore.DSN)
	c.Metrics.Addr = getEnv("XUMM_METRICS_ADDR", c.Metrics.Addr)
	c.Webhook.Addr = getEnv("XUMM_WEBHOOK_ADDR", c.Webhook.Addr)

	if v := os.Getenv("XUMM_LOG_DEVELOPMENT"); v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse XUMM_LOG_DEVELOPMENT: %w", err)
		}
		c.Log.Development = dev
	}
	if err := setDuration(&c.API.Timeout, os.Getenv("XUMM_TIMEOUT")); err != nil {
		return fmt.Errorf("parse XUMM_TIMEOUT: %w", err)
	}
	return nil
}

// ClientConfig turns the API section into an SDK client configuration
func (c *Config) ClientConfig() *xumm.ClientConfig {
	cc := xumm.DefaultConfig()
	cc.BaseURL = c.API.BaseURL
	cc.APIKey = c.API.Key
	cc.APISecret = c.API.Secret
	cc.Timeout = c.API.Timeout
	cc.Subscription = c.Subscription
	return cc
}

func setString(dst *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, value string) error {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
