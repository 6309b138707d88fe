package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/clockroom/clockroom/go/internal/relay"
	"github.com/clockroom/clockroom/go/internal/store"
)

// Config is the YAML file shape. Every value can be overridden through
// environment variables at load time.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	Store struct {
		Addr               string `yaml:"addr"`
		Password           string `yaml:"password"`
		DB                 int    `yaml:"db"`
		ConnectTimeoutMs   int    `yaml:"connect_timeout_ms"`
		OperationTimeoutMs int    `yaml:"operation_timeout_ms"`
		RetryAttempts      int    `yaml:"retry_attempts"`
		RetryDelayMs       int    `yaml:"retry_delay_ms"`
	} `yaml:"store"`

	Relay struct {
		MaxFieldBytes  int `yaml:"max_field_bytes"`
		RoomTTLSeconds int `yaml:"room_ttl_seconds"`
	} `yaml:"relay"`

	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	var config Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Server.Port = getEnv("PORT", defaultString(config.Server.Port, "8080"))
	config.Log.Level = getEnv("LOG_LEVEL", defaultString(config.Log.Level, "info"))

	config.Store.Addr = getEnv("REDIS_ADDR", defaultString(config.Store.Addr, "localhost:6379"))
	config.Store.Password = getEnv("REDIS_PASSWORD", config.Store.Password)
	config.Store.DB = getEnvAsInt("REDIS_DB", config.Store.DB)
	config.Store.RetryAttempts = getEnvAsInt("STORE_RETRY_ATTEMPTS", defaultInt(config.Store.RetryAttempts, 2))
	config.Store.RetryDelayMs = getEnvAsInt("STORE_RETRY_DELAY_MS", defaultInt(config.Store.RetryDelayMs, 500))
	config.Store.ConnectTimeoutMs = getEnvAsInt("STORE_CONNECT_TIMEOUT_MS", defaultInt(config.Store.ConnectTimeoutMs, 3000))
	config.Store.OperationTimeoutMs = getEnvAsInt("STORE_OPERATION_TIMEOUT_MS", defaultInt(config.Store.OperationTimeoutMs, 2000))

	config.Relay.MaxFieldBytes = getEnvAsInt("RELAY_MAX_FIELD_BYTES", defaultInt(config.Relay.MaxFieldBytes, 1024))
	config.Relay.RoomTTLSeconds = getEnvAsInt("ROOM_TTL_SECONDS", defaultInt(config.Relay.RoomTTLSeconds, 86400))

	config.NATS.URL = getEnv("NATS_URL", config.NATS.URL)
	config.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", defaultString(config.NATS.SubjectPrefix, "clock.room"))

	return &config, nil
}

func (c *Config) storeConfig() store.Config {
	cfg := store.DefaultConfig()
	cfg.Addr = c.Store.Addr
	cfg.Password = c.Store.Password
	cfg.DB = c.Store.DB
	cfg.ConnectTimeout = time.Duration(c.Store.ConnectTimeoutMs) * time.Millisecond
	cfg.OperationTimeout = time.Duration(c.Store.OperationTimeoutMs) * time.Millisecond
	cfg.RetryAttempts = c.Store.RetryAttempts
	cfg.RetryDelay = time.Duration(c.Store.RetryDelayMs) * time.Millisecond
	return cfg
}

func (c *Config) relayConfig() relay.Config {
	cfg := relay.DefaultConfig()
	cfg.MaxFieldBytes = c.Relay.MaxFieldBytes
	cfg.RoomTTL = time.Duration(c.Relay.RoomTTLSeconds) * time.Second
	cfg.StoreTimeout = time.Duration(c.Store.OperationTimeoutMs) * time.Millisecond
	return cfg
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func defaultInt(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}
