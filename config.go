package goAuthClient

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrEthical07/goAuthClient/api"
	"github.com/MrEthical07/goAuthClient/internal/logging"
)

// Config is the complete Engine configuration. Obtain one from
// [DefaultConfig] or [LoadConfig] and adjust fields before passing it to
// [Builder.WithConfig]; the Builder keeps its own copy.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	Store   StoreConfig   `yaml:"store"`
	Audit   AuditConfig   `yaml:"audit"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig locates the authentication API.
type APIConfig struct {
	BaseURL   string          `yaml:"base_url"`
	Timeout   time.Duration   `yaml:"timeout"`
	UserAgent string          `yaml:"user_agent"`
	Endpoints EndpointsConfig `yaml:"endpoints"`
}

// EndpointsConfig overrides individual endpoint paths. Empty fields keep the
// defaults (/register, /login, /refresh, /profile, /logout).
type EndpointsConfig struct {
	Register string `yaml:"register"`
	Login    string `yaml:"login"`
	Refresh  string `yaml:"refresh"`
	Profile  string `yaml:"profile"`
	Logout   string `yaml:"logout"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the token lifecycle.
type SessionConfig struct {
	// RefreshTimeout bounds the shared refresh call, independently of the
	// cancellation of the caller that started it.
	RefreshTimeout time.Duration `yaml:"refresh_timeout"`

	// PreemptiveRefreshSkew refreshes before a protected call when the access
	// token is a JWT expiring within the skew. Zero disables it.
	PreemptiveRefreshSkew time.Duration `yaml:"preemptive_refresh_skew"`

	// NotifyServerOnLogout sends a best-effort POST to the logout endpoint
	// after the local session is cleared.
	NotifyServerOnLogout bool          `yaml:"notify_server_on_logout"`
	LogoutTimeout        time.Duration `yaml:"logout_timeout"`
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreDriver names a credential store backend.
type StoreDriver string

const (
	// StoreMemory keeps credentials in process memory only.
	StoreMemory StoreDriver = "memory"
	// StoreFile writes a versioned binary blob to Path.
	StoreFile StoreDriver = "file"
	// StoreRedis keeps one hash per ClientID.
	StoreRedis StoreDriver = "redis"
	// StoreSQLite keeps one row per ClientID in the database at Path.
	StoreSQLite StoreDriver = "sqlite"
)

// StoreDir is the directory under [os.UserConfigDir] that holds credentials
// when Store.Path is empty.
const StoreDir = "goauth-client"

// StoreConfig selects the credential store opened by [Builder.Build] when
// none is injected. An empty Path for the file and sqlite drivers resolves
// to [DefaultStorePath].
type StoreConfig struct {
	Driver   StoreDriver `yaml:"driver"`
	Path     string      `yaml:"path"`
	ClientID string      `yaml:"client_id"`

	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	RedisPrefix   string        `yaml:"redis_prefix"`
	RedisTTL      time.Duration `yaml:"redis_ttl"`
}

// DefaultStorePath returns the per-user credential location for driver.
// File stores get one file per client; the sqlite database is shared.
func DefaultStorePath(driver StoreDriver, clientID string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	name := "credentials"
	switch {
	case driver == StoreSQLite:
		name = "credentials.db"
	case clientID != "" && clientID != DefaultClientID:
		name = "credentials-" + clientID
	}
	return filepath.Join(dir, StoreDir, name), nil
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

// LoggingConfig builds the Engine logger when none is injected with
// [Builder.WithLogger]. Disabled means discard.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	Output  string `yaml:"output"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration: file store under the
// user config directory, 10s request timeout, refresh on 401 only,
// observability off.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:   "http://localhost:8080",
			Timeout:   api.DefaultTimeout,
			UserAgent: "goAuthClient",
		},
		Session: SessionConfig{
			RefreshTimeout:        15 * time.Second,
			PreemptiveRefreshSkew: 0,
			NotifyServerOnLogout:  false,
			LogoutTimeout:         3 * time.Second,
		},
		Store: StoreConfig{
			Driver:      StoreFile,
			RedisPrefix: "gac",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Logging: LoggingConfig{
			Enabled: false,
			Level:   "info",
			Format:  "json",
			Output:  "stderr",
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

func (c APIConfig) endpoints() api.Endpoints {
	return api.Endpoints{
		Register: c.Endpoints.Register,
		Login:    c.Endpoints.Login,
		Refresh:  c.Endpoints.Refresh,
		Profile:  c.Endpoints.Profile,
		Logout:   c.Endpoints.Logout,
	}
}

func (c LoggingConfig) logging() logging.Config {
	return logging.Config{Level: c.Level, Format: c.Format, Output: c.Output}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// API
	base := strings.TrimSpace(c.API.BaseURL)
	if base == "" {
		return errors.New("API BaseURL is required")
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("API BaseURL must be an absolute http(s) URL")
	}
	if c.API.Timeout <= 0 {
		return errors.New("API Timeout must be > 0")
	}
	for _, p := range []string{
		c.API.Endpoints.Register,
		c.API.Endpoints.Login,
		c.API.Endpoints.Refresh,
		c.API.Endpoints.Profile,
		c.API.Endpoints.Logout,
	} {
		if p != "" && strings.TrimSpace(p) != p {
			return errors.New("API endpoint paths must not contain surrounding whitespace")
		}
	}

	// Session
	if c.Session.RefreshTimeout <= 0 {
		return errors.New("Session RefreshTimeout must be > 0")
	}
	if c.Session.PreemptiveRefreshSkew < 0 {
		return errors.New("Session PreemptiveRefreshSkew must be >= 0")
	}
	if c.Session.NotifyServerOnLogout && c.Session.LogoutTimeout <= 0 {
		return errors.New("Session LogoutTimeout must be > 0 when NotifyServerOnLogout is true")
	}

	// Store
	switch c.Store.Driver {
	case StoreMemory, StoreFile, StoreSQLite:
		if c.Store.Path != "" && strings.TrimSpace(c.Store.Path) == "" {
			return errors.New("Store Path must not be blank")
		}
	case StoreRedis:
		if strings.TrimSpace(c.Store.RedisAddr) == "" {
			return errors.New("Store RedisAddr is required for the redis driver")
		}
		if c.Store.RedisDB < 0 {
			return errors.New("Store RedisDB must be >= 0")
		}
		if c.Store.RedisTTL < 0 {
			return errors.New("Store RedisTTL must be >= 0")
		}
	default:
		return errors.New("Store Driver must be memory, file, redis or sqlite")
	}
	if strings.ContainsAny(c.Store.ClientID, " :\t\n") {
		return errors.New("Store ClientID must not contain whitespace or ':'")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Logging
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		return errors.New("Logging Format must be json or text")
	}

	return nil
}
