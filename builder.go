package goAuthClient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/goAuthClient/api"
	internalaudit "github.com/MrEthical07/goAuthClient/internal/audit"
	"github.com/MrEthical07/goAuthClient/internal/logging"
	"github.com/MrEthical07/goAuthClient/session"
	"github.com/redis/go-redis/v9"
)

// DefaultClientID keys the persisted credential set when Store.ClientID is
// empty.
const DefaultClientID = "default"

const redisPingTimeout = 3 * time.Second

// Builder assembles an [Engine]. Configure it during initialization; a
// Builder can be built once.
type Builder struct {
	config     Config
	store      Store
	redis      redis.UniversalClient
	httpClient *http.Client
	logger     *slog.Logger
	auditSink  AuditSink
	listeners  []Listener
	now        func() time.Time

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore injects a credential store. It takes precedence over
// [Builder.WithRedis] and Config.Store; the Engine does not close it.
func (b *Builder) WithStore(store Store) *Builder {
	b.store = store
	return b
}

// WithRedis backs the credential store with an existing Redis client, using
// Store.RedisPrefix, Store.ClientID and Store.RedisTTL. The Engine does not
// close the client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient overrides the transport used for API calls.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithLogger sets the logger. Without one the Logging section decides.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit destination and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

// WithListener registers a state change listener. Listeners are called in
// registration order.
func (b *Builder) WithListener(l Listener) *Builder {
	if l != nil {
		b.listeners = append(b.listeners, l)
	}
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides the time source used for preemptive refresh and
// transition timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration, opens the credential store and restores
// a persisted session: a complete credential set starts the Engine in
// [StateAuthenticated] without a network round trip; partial or corrupt data
// is cleared and the Engine starts in [StateAnonymous].
//
// Build fails when the store cannot be opened or read.
func (b *Builder) Build(ctx context.Context) (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		if cfg.Logging.Enabled {
			logger = logging.New(cfg.Logging.logging())
		} else {
			logger = logging.Discard()
		}
	}

	metrics := NewMetrics(cfg.Metrics)

	apiCfg := api.Config{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout,
		UserAgent:  cfg.API.UserAgent,
		Endpoints:  cfg.API.endpoints(),
		HTTPClient: b.httpClient,
		Logger:     logger,
	}
	if metrics.LatencyEnabled() {
		apiCfg.Observe = func(_ string, d time.Duration) {
			metrics.Observe(MetricRequestLatency, d)
		}
	}
	client, err := api.New(apiCfg)
	if err != nil {
		return nil, err
	}

	clientID := cfg.Store.ClientID
	if clientID == "" {
		clientID = DefaultClientID
	}

	store, closers, err := b.openStore(ctx, cfg.Store, clientID)
	if err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:    cfg,
		api:       client,
		store:     store,
		clientID:  clientID,
		logger:    logger,
		metrics:   metrics,
		now:       now,
		closers:   closers,
		listeners: append([]Listener(nil), b.listeners...),
		state:     StateAnonymous,
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	if err := engine.restore(ctx); err != nil {
		_ = engine.Close()
		return nil, err
	}

	b.built = true

	return engine, nil
}

func (b *Builder) openStore(ctx context.Context, cfg StoreConfig, clientID string) (Store, []func() error, error) {
	if b.store != nil {
		return b.store, nil, nil
	}
	if b.redis != nil {
		return session.NewRedisStore(b.redis, cfg.RedisPrefix, clientID, cfg.RedisTTL), nil, nil
	}

	path := cfg.Path
	if path == "" && (cfg.Driver == StoreFile || cfg.Driver == StoreSQLite) {
		p, err := DefaultStorePath(cfg.Driver, clientID)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: no store path: %v", ErrStoreUnavailable, err)
		}
		path = p
	}

	switch cfg.Driver {
	case StoreFile:
		return session.NewFileStore(path), nil, nil

	case StoreSQLite:
		s, err := session.OpenSQLiteStore(path, clientID)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return s, []func() error{s.Close}, nil

	case StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		s := session.NewRedisStore(rdb, cfg.RedisPrefix, clientID, cfg.RedisTTL)

		pctx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if _, err := s.Ping(pctx); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return s, []func() error{rdb.Close}, nil

	case StoreMemory:
		return session.NewMemoryStore(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
