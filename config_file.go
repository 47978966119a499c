package goAuthClient

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables applied on top of a loaded config file.
const (
	EnvBaseURL       = "GOAUTHCLIENT_API_BASE_URL"
	EnvTimeout       = "GOAUTHCLIENT_API_TIMEOUT"
	EnvStoreDriver   = "GOAUTHCLIENT_STORE_DRIVER"
	EnvStorePath     = "GOAUTHCLIENT_STORE_PATH"
	EnvClientID      = "GOAUTHCLIENT_STORE_CLIENT_ID"
	EnvRedisAddr     = "GOAUTHCLIENT_REDIS_ADDR"
	EnvRedisPassword = "GOAUTHCLIENT_REDIS_PASSWORD"
	EnvRedisDB       = "GOAUTHCLIENT_REDIS_DB"
	EnvLogLevel      = "GOAUTHCLIENT_LOG_LEVEL"
)

// LoadConfig reads a YAML file over [DefaultConfig], applies GOAUTHCLIENT_*
// environment overrides and validates the result. Durations accept Go
// duration strings ("10s", "1m30s").
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		cfg.API.Timeout = d
	}
	if v := os.Getenv(EnvStoreDriver); v != "" {
		cfg.Store.Driver = StoreDriver(strings.ToLower(v))
	}
	if v := os.Getenv(EnvStorePath); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv(EnvClientID); v != "" {
		cfg.Store.ClientID = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		cfg.Store.RedisAddr = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		cfg.Store.RedisPassword = v
	}
	if v := os.Getenv(EnvRedisDB); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRedisDB, err)
		}
		cfg.Store.RedisDB = db
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Enabled = true
		cfg.Logging.Level = v
	}
	return nil
}
