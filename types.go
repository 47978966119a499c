package goAuthClient

import (
	"io"
	"time"

	"github.com/MrEthical07/goAuthClient/api"
	internalaudit "github.com/MrEthical07/goAuthClient/internal/audit"
	internalmetrics "github.com/MrEthical07/goAuthClient/internal/metrics"
	"github.com/MrEthical07/goAuthClient/session"
)

// MessageNetworkFailure is the user-facing text for a request that never
// reached the server.
const MessageNetworkFailure = "Failed to connect to server."

// MessageSessionExpired is the user-facing text after a forced logout.
const MessageSessionExpired = "Your session has expired. Please log in again."

// State is the Engine's authentication state.
type State uint8

const (
	// StateAnonymous: no usable credentials.
	StateAnonymous State = iota
	// StateAuthenticated: a complete credential set is held.
	StateAuthenticated
	// StateRefreshing: a refresh round trip is in flight.
	StateRefreshing
	// StateExpired: the refresh token was rejected; the session is being torn
	// down. Observable only transiently.
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// TransitionReason says why the state changed.
type TransitionReason string

const (
	ReasonRestored     TransitionReason = "restored"
	ReasonLogin        TransitionReason = "login"
	ReasonRegister     TransitionReason = "register"
	ReasonRefreshStart TransitionReason = "refresh_start"
	ReasonRefreshed    TransitionReason = "refreshed"
	ReasonRefreshError TransitionReason = "refresh_error"
	ReasonExpired      TransitionReason = "expired"
	ReasonForcedLogout TransitionReason = "forced_logout"
	ReasonLogout       TransitionReason = "logout"
)

// Transition is delivered to every [Listener] after the Engine's lock is
// released, in the order the transitions happened.
type Transition struct {
	From     State
	To       State
	Reason   TransitionReason
	Username string
	At       time.Time
}

// Listener observes state changes. It runs on the goroutine that caused the
// change and must not block for long.
type Listener func(Transition)

// Status is a read-only view for status displays. ExpiresAt is zero when the
// access token is not a JWT or carries no exp claim.
type Status struct {
	State     State
	Username  string
	ExpiresAt time.Time
}

// Session is the persisted credential triple.
type Session = session.Session

// Store persists a [Session]; see the session package for implementations.
type Store = session.Store

// AuthResult is the outcome of [Engine.Login] and [Engine.Register].
type AuthResult = api.AuthResult

// RefreshResult is the raw outcome of a refresh call.
type RefreshResult = api.RefreshResult

// ProfileResult is the body of a successful profile call.
type ProfileResult = api.ProfileResult

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// AuditSinkFunc adapts a function to [AuditSink].
type AuditSinkFunc = internalaudit.SinkFunc

// MultiAuditSink delivers each event to every sink in order.
func MultiAuditSink(sinks ...AuditSink) AuditSink {
	return internalaudit.MultiSink(sinks...)
}

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies a counter or histogram in the in-process metrics.
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess      = MetricID(internalmetrics.MetricLoginSuccess)
	MetricLoginFailure      = MetricID(internalmetrics.MetricLoginFailure)
	MetricRegisterSuccess   = MetricID(internalmetrics.MetricRegisterSuccess)
	MetricRegisterFailure   = MetricID(internalmetrics.MetricRegisterFailure)
	MetricNetworkFailure    = MetricID(internalmetrics.MetricNetworkFailure)
	MetricRefreshSuccess    = MetricID(internalmetrics.MetricRefreshSuccess)
	MetricRefreshFailure    = MetricID(internalmetrics.MetricRefreshFailure)
	MetricRefreshCoalesced  = MetricID(internalmetrics.MetricRefreshCoalesced)
	MetricRefreshDiscarded  = MetricID(internalmetrics.MetricRefreshDiscarded)
	MetricPreemptiveRefresh = MetricID(internalmetrics.MetricPreemptiveRefresh)
	MetricUnauthorized      = MetricID(internalmetrics.MetricUnauthorized)
	MetricRetryUnauthorized = MetricID(internalmetrics.MetricRetryUnauthorized)
	MetricLogout            = MetricID(internalmetrics.MetricLogout)
	MetricForcedLogout      = MetricID(internalmetrics.MetricForcedLogout)
	MetricSessionRestored   = MetricID(internalmetrics.MetricSessionRestored)
	MetricStoreFailure      = MetricID(internalmetrics.MetricStoreFailure)
	MetricRequestLatency    = MetricID(internalmetrics.MetricRequestLatency)
)

// Metrics holds atomic counters and the optional latency histogram.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] configured by cfg. When Enabled is false,
// all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
