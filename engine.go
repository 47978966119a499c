package goAuthClient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goAuthClient/api"
	internalaudit "github.com/MrEthical07/goAuthClient/internal/audit"
	"github.com/MrEthical07/goAuthClient/jwt"
	"github.com/MrEthical07/goAuthClient/session"
	"golang.org/x/sync/singleflight"
)

// Engine is the session controller. It owns the credential set, drives the
// token lifecycle and is the only writer of the credential store.
//
// All methods are safe for concurrent use. Construct one with [New] and
// [Builder.Build]; release it with [Engine.Close].
type Engine struct {
	config   Config
	api      *api.Client
	store    Store
	clientID string
	logger   *slog.Logger
	audit    *internalaudit.Dispatcher
	metrics  *Metrics
	now      func() time.Time
	closers  []func() error

	listeners []Listener

	// mu guards every field below and serializes store writes with state
	// changes, so a stale refresh can never overwrite a newer session.
	mu    sync.Mutex
	state State
	sess  *session.Session
	// epoch identifies the current session. It changes on login, register,
	// logout and forced logout.
	epoch uint64
	// endReason is what callers holding a token from an ended epoch receive.
	endReason error
	// settled is closed when StateRefreshing is left.
	settled chan struct{}
	closed  bool

	pending  []Transition
	flushing bool

	refreshGroup singleflight.Group
}

// Close releases the store resources opened by Build and drains the audit
// dispatcher. Calls after Close return [ErrEngineNotReady]. The credential
// store is left as is, so the next process restores the session.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	if e.audit != nil {
		e.audit.Close()
	}

	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AuditDropped returns the number of audit events dropped because the buffer
// was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the Engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:      map[MetricID]uint64{},
			Histograms:    map[MetricID][]uint64{},
			HistogramSums: map[MetricID]time.Duration{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

/*
====================================
STATE
====================================
*/

// State returns the current authentication state.
func (e *Engine) State() State {
	if e == nil {
		return StateAnonymous
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Status returns a read-only view for status displays.
func (e *Engine) Status() Status {
	if e == nil {
		return Status{State: StateAnonymous}
	}

	e.mu.Lock()
	st := Status{State: e.state}
	var token string
	if e.sess != nil {
		st.Username = e.sess.Username
		token = e.sess.AccessToken
	}
	e.mu.Unlock()

	if token != "" {
		if info, err := jwt.Inspect(token); err == nil && info.HasExpiry() {
			st.ExpiresAt = info.ExpiresAt
		}
	}
	return st
}

// AwaitState returns the state once it is not [StateRefreshing]. It waits for
// an in-flight refresh to settle, or for ctx.
func (e *Engine) AwaitState(ctx context.Context) (State, error) {
	if e == nil {
		return StateAnonymous, ErrEngineNotReady
	}

	for {
		e.mu.Lock()
		st, settled := e.state, e.settled
		e.mu.Unlock()

		if st != StateRefreshing {
			return st, nil
		}
		select {
		case <-settled:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

// transitionLocked records a state change for delivery by flush. e.mu must
// be held.
func (e *Engine) transitionLocked(to State, reason TransitionReason, username string) {
	from := e.state
	if from == to && reason != ReasonLogin && reason != ReasonRegister {
		return
	}
	e.state = to

	if to == StateRefreshing && from != StateRefreshing {
		e.settled = make(chan struct{})
	}
	if from == StateRefreshing && to != StateRefreshing && e.settled != nil {
		close(e.settled)
		e.settled = nil
	}

	e.pending = append(e.pending, Transition{
		From:     from,
		To:       to,
		Reason:   reason,
		Username: username,
		At:       e.now(),
	})
}

// flush delivers pending transitions to the listeners outside e.mu. Only one
// goroutine delivers at a time, which keeps delivery in transition order; a
// listener that changes the state has its transitions delivered by the same
// loop.
func (e *Engine) flush() {
	e.mu.Lock()
	if e.flushing {
		e.mu.Unlock()
		return
	}
	e.flushing = true
	for len(e.pending) > 0 {
		batch := e.pending
		e.pending = nil
		e.mu.Unlock()

		for _, t := range batch {
			for _, l := range e.listeners {
				l(t)
			}
		}

		e.mu.Lock()
	}
	e.flushing = false
	e.mu.Unlock()
}

// endLocked drops the current session and clears the store. e.mu must be
// held. The in-memory session is gone even when the clear fails.
func (e *Engine) endLocked(ctx context.Context, cause error, reason TransitionReason) error {
	username := ""
	if e.sess != nil {
		username = e.sess.Username
	}

	e.epoch++
	e.endReason = cause
	e.sess = nil
	e.transitionLocked(StateAnonymous, reason, username)

	if err := e.store.Clear(context.WithoutCancel(ctx)); err != nil {
		e.metricInc(MetricStoreFailure)
		e.logger.Warn("clearing credential store failed", slog.String("reason", string(reason)), slog.Any("error", err))
		return storeError(err)
	}
	return nil
}

func storeError(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

/*
====================================
RESTORE
====================================
*/

// restore loads the persisted session. A complete set authenticates without a
// round trip; anything else is cleared.
func (e *Engine) restore(ctx context.Context) error {
	sess, err := e.store.Load(ctx)
	if err != nil && !errors.Is(err, ErrSessionCorrupt) {
		e.metricInc(MetricStoreFailure)
		return storeError(err)
	}

	e.mu.Lock()
	defer e.flush()
	defer e.mu.Unlock()

	if err == nil && sess.Complete() {
		e.sess = sess.Clone()
		e.epoch++
		e.transitionLocked(StateAuthenticated, ReasonRestored, sess.Username)
		e.metricInc(MetricSessionRestored)
		e.logger.Info("session restored", slog.String("username", sess.Username))
		e.emitAudit(ctx, auditEventSessionRestored, true, sess.Username, StateAnonymous, StateAuthenticated, nil, nil)
		return nil
	}

	if err != nil {
		e.logger.Warn("discarding corrupt credential data", slog.Any("error", err))
		e.emitAudit(ctx, auditEventSessionDiscarded, false, "", StateAnonymous, StateAnonymous, err, nil)
	}
	e.state = StateAnonymous
	e.endReason = ErrNotAuthenticated
	if cerr := e.store.Clear(ctx); cerr != nil {
		e.metricInc(MetricStoreFailure)
		e.logger.Warn("clearing credential store failed", slog.Any("error", cerr))
	}
	return nil
}

/*
====================================
LOGIN / REGISTER / LOGOUT
====================================
*/

// Login authenticates against the API and persists the returned credential
// set.
//
// Rejected credentials return the server message in AuthResult.Message
// together with an error matching [ErrValidation]; the state is unchanged. A
// network failure returns [MessageNetworkFailure] and an error matching
// [ErrNetwork]. If the credentials cannot be persisted the state is unchanged
// and the error matches [ErrStoreUnavailable].
func (e *Engine) Login(ctx context.Context, username, password string) (AuthResult, error) {
	if e == nil || e.api == nil {
		return AuthResult{}, ErrEngineNotReady
	}
	if strings.TrimSpace(username) == "" || password == "" {
		return AuthResult{Message: UserMessage(ErrCredentialsRequired)}, ErrCredentialsRequired
	}

	res, err := e.api.Login(ctx, username, password)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		res = e.failedAuth(ctx, auditEventLoginFailure, username, res, err)
		return res, err
	}

	if err := e.establish(ctx, res.Session, ReasonLogin); err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, username, StateAnonymous, StateAnonymous, err, nil)
		return AuthResult{Message: UserMessage(err)}, err
	}

	e.metricInc(MetricLoginSuccess)
	e.logger.Info("logged in", slog.String("username", res.Session.Username))
	e.emitAudit(ctx, auditEventLoginSuccess, true, res.Session.Username, StateAnonymous, StateAuthenticated, nil, nil)
	return res, nil
}

// Register creates an account. When the server also returns a token payload
// the Engine is authenticated as with [Engine.Login]; otherwise only the
// success message is returned and the state is unchanged.
func (e *Engine) Register(ctx context.Context, username, password string) (AuthResult, error) {
	if e == nil || e.api == nil {
		return AuthResult{}, ErrEngineNotReady
	}
	if strings.TrimSpace(username) == "" || password == "" {
		return AuthResult{Message: UserMessage(ErrCredentialsRequired)}, ErrCredentialsRequired
	}

	res, err := e.api.Register(ctx, username, password)
	if err != nil {
		e.metricInc(MetricRegisterFailure)
		res = e.failedAuth(ctx, auditEventRegisterFailure, username, res, err)
		return res, err
	}

	if res.Session == nil {
		e.metricInc(MetricRegisterSuccess)
		e.emitAudit(ctx, auditEventRegisterSuccess, true, username, StateAnonymous, StateAnonymous, nil, nil)
		return res, nil
	}

	if err := e.establish(ctx, res.Session, ReasonRegister); err != nil {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, username, StateAnonymous, StateAnonymous, err, nil)
		return AuthResult{Message: UserMessage(err)}, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.logger.Info("registered", slog.String("username", res.Session.Username))
	e.emitAudit(ctx, auditEventRegisterSuccess, true, res.Session.Username, StateAnonymous, StateAuthenticated, nil, nil)
	return res, nil
}

func (e *Engine) failedAuth(ctx context.Context, eventType, username string, res AuthResult, err error) AuthResult {
	if errors.Is(err, ErrNetwork) {
		e.metricInc(MetricNetworkFailure)
		e.logger.Warn("auth request failed", slog.String("event", eventType), slog.Any("error", err))
	}
	res.Success = false
	if res.Message == "" {
		res.Message = UserMessage(err)
	}
	e.emitAudit(ctx, eventType, false, username, StateAnonymous, StateAnonymous, err, nil)
	return res
}

// establish persists sess and makes it the current session. On a store
// failure nothing changes.
func (e *Engine) establish(ctx context.Context, sess *session.Session, reason TransitionReason) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineNotReady
	}
	if err := e.store.Save(ctx, sess); err != nil {
		e.mu.Unlock()
		e.metricInc(MetricStoreFailure)
		e.logger.Warn("persisting credentials failed", slog.String("reason", string(reason)), slog.Any("error", err))
		return storeError(err)
	}

	e.epoch++
	e.endReason = ErrSessionEnded
	e.sess = sess.Clone()
	e.transitionLocked(StateAuthenticated, reason, sess.Username)
	e.mu.Unlock()

	e.flush()
	return nil
}

// Logout ends the session locally and unconditionally: the state becomes
// [StateAnonymous] and the store is cleared whatever the network does. An
// in-flight refresh is discarded when it returns. With
// Session.NotifyServerOnLogout the server is told afterwards, best effort.
//
// The returned error is non-nil only when the store could not be cleared.
func (e *Engine) Logout(ctx context.Context) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineNotReady
	}
	var username, token string
	if e.sess != nil {
		username, token = e.sess.Username, e.sess.AccessToken
	}
	from := e.state
	err := e.endLocked(ctx, ErrSessionEnded, ReasonLogout)
	e.mu.Unlock()
	e.flush()

	e.metricInc(MetricLogout)
	e.logger.Info("logged out", slog.String("username", username))
	e.emitAudit(ctx, auditEventLogout, err == nil, username, from, StateAnonymous, err, nil)

	if token != "" && e.config.Session.NotifyServerOnLogout {
		e.notifyLogout(ctx, token)
	}
	return err
}

func (e *Engine) notifyLogout(ctx context.Context, token string) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.Session.LogoutTimeout)
	defer cancel()

	if err := e.api.Logout(nctx, token); err != nil {
		e.logger.Warn("server logout notification failed", slog.Any("error", err))
	}
}

/*
====================================
PROTECTED CALLS
====================================
*/

// Call is a protected API request made with the current access token. It must
// report HTTP 401 as an error matching [ErrUnauthorized].
type Call func(ctx context.Context, accessToken string) error

// Authorized runs call with the current access token. If the token is
// rejected it refreshes once (shared with every concurrent caller) and
// retries once; a second rejection returns [ErrUnauthorized].
//
// A rejected refresh token ends the session and returns [ErrSessionExpired].
// A logout during the call returns [ErrSessionEnded].
func (e *Engine) Authorized(ctx context.Context, call Call) error {
	if e == nil || e.api == nil {
		return ErrEngineNotReady
	}

	token, epoch, err := e.accessToken(ctx)
	if err != nil {
		return err
	}

	err = call(ctx, token)
	if !errors.Is(err, ErrUnauthorized) {
		e.countCallError(err)
		return err
	}
	e.metricInc(MetricUnauthorized)

	token, err = e.refresh(ctx, epoch, token)
	if err != nil {
		return err
	}

	err = call(ctx, token)
	if errors.Is(err, ErrUnauthorized) {
		e.metricInc(MetricRetryUnauthorized)
		e.logger.Warn("request rejected after refresh")
		return err
	}
	e.countCallError(err)
	return err
}

func (e *Engine) countCallError(err error) {
	if errors.Is(err, ErrNetwork) {
		e.metricInc(MetricNetworkFailure)
	}
}

// FetchProfile loads the authenticated profile through [Engine.Authorized].
func (e *Engine) FetchProfile(ctx context.Context) (ProfileResult, error) {
	if e == nil || e.api == nil {
		return ProfileResult{}, ErrEngineNotReady
	}

	var out ProfileResult
	err := e.Authorized(ctx, func(ctx context.Context, token string) error {
		res, err := e.api.FetchProfile(ctx, token)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	return out, err
}

// accessToken returns the token for a protected call and the epoch it belongs
// to. It joins an in-flight refresh and, with a preemptive skew configured,
// refreshes a JWT that is about to expire.
func (e *Engine) accessToken(ctx context.Context) (string, uint64, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", 0, ErrEngineNotReady
	}
	if e.sess == nil {
		e.mu.Unlock()
		return "", 0, ErrNotAuthenticated
	}
	token, epoch, st := e.sess.AccessToken, e.epoch, e.state
	e.mu.Unlock()

	if st == StateRefreshing {
		fresh, err := e.refresh(ctx, epoch, token)
		if err != nil {
			return "", 0, err
		}
		return fresh, epoch, nil
	}

	skew := e.config.Session.PreemptiveRefreshSkew
	if skew <= 0 {
		return token, epoch, nil
	}
	info, err := jwt.Inspect(token)
	if err != nil || !info.ExpiresWithin(e.now(), skew) {
		return token, epoch, nil
	}

	e.metricInc(MetricPreemptiveRefresh)
	fresh, err := e.refresh(ctx, epoch, token)
	switch {
	case err == nil:
		return fresh, epoch, nil
	case errors.Is(err, ErrNetwork):
		// The server may still accept the old token.
		return token, epoch, nil
	default:
		return "", 0, err
	}
}

/*
====================================
REFRESH
====================================
*/

// refresh returns an access token newer than stale for session epoch. At most
// one refresh per epoch is in flight; concurrent callers share its outcome,
// including callers whose stale token was already replaced by an earlier
// refresh. A cancelled ctx stops this caller waiting but not the shared
// refresh.
func (e *Engine) refresh(ctx context.Context, epoch uint64, stale string) (string, error) {
	e.mu.Lock()
	if e.epoch != epoch || e.sess == nil {
		err := e.endReasonLocked()
		e.mu.Unlock()
		return "", err
	}
	// While refreshing, the current token is the one being replaced.
	if e.sess.AccessToken != stale && e.state != StateRefreshing {
		token := e.sess.AccessToken
		e.mu.Unlock()
		e.metricInc(MetricRefreshCoalesced)
		return token, nil
	}
	e.mu.Unlock()

	key := fmt.Sprintf("refresh/%d", epoch)
	ch := e.refreshGroup.DoChan(key, func() (any, error) {
		return e.runRefresh(ctx, epoch, stale)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (e *Engine) endReasonLocked() error {
	if e.closed {
		return ErrEngineNotReady
	}
	if e.endReason != nil {
		return e.endReason
	}
	return ErrSessionEnded
}

// runRefresh is the single in-flight refresh for epoch.
func (e *Engine) runRefresh(ctx context.Context, epoch uint64, stale string) (string, error) {
	e.mu.Lock()
	if e.epoch != epoch || e.sess == nil {
		err := e.endReasonLocked()
		e.mu.Unlock()
		return "", err
	}
	if e.sess.AccessToken != stale {
		// An earlier refresh for this epoch already replaced the token.
		token := e.sess.AccessToken
		e.mu.Unlock()
		e.metricInc(MetricRefreshCoalesced)
		return token, nil
	}
	username, refreshToken := e.sess.Username, e.sess.RefreshToken
	e.transitionLocked(StateRefreshing, ReasonRefreshStart, username)
	e.mu.Unlock()
	e.flush()

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.Session.RefreshTimeout)
	defer cancel()

	res, err := e.api.Refresh(rctx, refreshToken)

	e.mu.Lock()
	if e.closed {
		// The store may already be released.
		e.transitionLocked(StateAuthenticated, ReasonRefreshError, username)
		e.mu.Unlock()
		e.flush()
		e.metricInc(MetricRefreshDiscarded)
		e.logger.Info("discarding refresh result after close", slog.String("username", username))
		return "", ErrEngineNotReady
	}
	if e.epoch != epoch {
		e.mu.Unlock()
		e.metricInc(MetricRefreshDiscarded)
		e.logger.Info("discarding refresh result for ended session", slog.String("username", username))
		e.emitAudit(ctx, auditEventRefreshDiscarded, false, username, StateRefreshing, StateAnonymous, ErrSessionEnded, nil)
		return "", ErrSessionEnded
	}

	switch {
	case err == nil:
		next := e.sess.WithAccessToken(res.NewAccessToken)
		if serr := e.store.Save(rctx, next); serr != nil {
			e.transitionLocked(StateAuthenticated, ReasonRefreshError, username)
			e.mu.Unlock()
			e.flush()

			e.metricInc(MetricStoreFailure)
			e.metricInc(MetricRefreshFailure)
			e.logger.Warn("persisting refreshed token failed", slog.Any("error", serr))
			e.emitAudit(ctx, auditEventStoreFailure, false, username, StateRefreshing, StateAuthenticated, serr, nil)
			return "", storeError(serr)
		}
		e.sess = next
		e.transitionLocked(StateAuthenticated, ReasonRefreshed, username)
		e.mu.Unlock()
		e.flush()

		e.metricInc(MetricRefreshSuccess)
		e.logger.Debug("access token refreshed", slog.String("username", username))
		e.emitAudit(ctx, auditEventRefreshSuccess, true, username, StateRefreshing, StateAuthenticated, nil, nil)
		return res.NewAccessToken, nil

	case errors.Is(err, ErrRefreshRejected):
		e.transitionLocked(StateExpired, ReasonExpired, username)
		_ = e.endLocked(ctx, ErrSessionExpired, ReasonForcedLogout)
		e.mu.Unlock()
		e.flush()

		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricForcedLogout)
		e.logger.Info("refresh token rejected, session ended", slog.String("username", username))
		e.emitAudit(ctx, auditEventSessionExpired, false, username, StateRefreshing, StateAnonymous, err, nil)
		return "", ErrSessionExpired

	default:
		// Transport failure: the refresh token may still be good.
		e.transitionLocked(StateAuthenticated, ReasonRefreshError, username)
		e.mu.Unlock()
		e.flush()

		e.metricInc(MetricRefreshFailure)
		if errors.Is(err, ErrNetwork) {
			e.metricInc(MetricNetworkFailure)
		}
		e.logger.Warn("refresh failed", slog.Any("error", err))
		e.emitAudit(ctx, auditEventRefreshFailure, false, username, StateRefreshing, StateAuthenticated, err, nil)
		return "", err
	}
}
