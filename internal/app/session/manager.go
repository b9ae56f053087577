// Package session provides the session manager that owns the authenticated
// provider handle and keeps the authorization state in sync with it.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicshuffler/internal/app/apperr"
	"github.com/osa030/musicshuffler/internal/app/notification"
	"github.com/osa030/musicshuffler/internal/app/session/state"
	"github.com/osa030/musicshuffler/internal/infra/metrics"
)

const (
	DefaultPollInterval    = 10 * time.Second
	DefaultUserName        = "User"
	DefaultExpiredMessage  = "Your session has expired. Please sign in again."
	DefaultUnavailableText = "Music provider not initialized."
	authFailedPrefix       = "Authorization failed: "
)

// SDK is the provider session handle.
type SDK interface {
	// Configure prepares the SDK. Fails when developer credentials are missing.
	Configure(ctx context.Context) error
	// Authorize signs the user in. Returns an error marked
	// apperr.ErrAuthorizationDenied when the user declines.
	Authorize(ctx context.Context) error
	Unauthorize(ctx context.Context) error
	// Invalidate clears the authorized flag after the provider rejected the
	// credentials. The stored token is kept so Authorize can retry with it.
	Invalidate()
	IsAuthorized() bool
	// UserName returns the display name, or "" when unknown.
	UserName() string
	// StatusChanges emits the authorization flag whenever the provider reports
	// a change. May return nil.
	StatusChanges() <-chan bool
}

// Notifier receives session events.
type Notifier interface {
	Notify(eventType notification.EventType, payload any)
}

// Config represents session manager configuration.
type Config struct {
	PollInterval       time.Duration
	ExpiredMessage     string
	UnavailableMessage string
}

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier sets the event sink.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithMetrics sets the metrics sink.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// Manager owns the provider handle and the authorization state.
type Manager struct {
	sdk      SDK
	cfg      Config
	state    *state.Manager
	notifier Notifier
	metrics  *metrics.Metrics

	authMu    sync.Mutex // serializes Authorize/Unauthorize
	reauthing atomic.Bool

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewManager creates a new session manager. sdk may be nil, in which case
// Initialize reports apperr.ErrSdkUnavailable.
func NewManager(sdk SDK, cfg Config, opts ...Option) *Manager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ExpiredMessage == "" {
		cfg.ExpiredMessage = DefaultExpiredMessage
	}
	if cfg.UnavailableMessage == "" {
		cfg.UnavailableMessage = DefaultUnavailableText
	}

	m := &Manager{
		sdk:   sdk,
		cfg:   cfg,
		state: state.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize configures the SDK, syncs the authorization state and starts the
// status listener and the reconciliation loop. Close stops them.
func (m *Manager) Initialize(ctx context.Context) error {
	if m.sdk == nil {
		m.state.SetLastError(m.cfg.UnavailableMessage)
		m.publish()
		return apperr.New(apperr.ErrSdkUnavailable, m.cfg.UnavailableMessage, "provider sdk not available")
	}

	if err := m.sdk.Configure(ctx); err != nil {
		msg := authFailedPrefix + err.Error()
		m.state.SetLastError(msg)
		m.publish()
		return apperr.Wrap(errors.Wrap(err, "configure provider sdk"), apperr.ErrConfiguration, msg)
	}

	m.reconcile()

	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()
	if m.cancel != nil {
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	if ch := m.sdk.StatusChanges(); ch != nil {
		m.wg.Add(1)
		go m.listen(loopCtx, ch)
	}
	m.wg.Add(1)
	go m.pollLoop(loopCtx)

	zlog.Info().Msgf("session initialized: state=%s poll_interval=%v", m.state.GetState(), m.cfg.PollInterval)
	return nil
}

// Close stops the background loops. It is safe to call more than once.
func (m *Manager) Close() {
	m.lifecycleMu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.lifecycleMu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// Authorize signs the user in. It is a no-op when already authorized.
func (m *Manager) Authorize(ctx context.Context) error {
	if m.sdk == nil {
		return apperr.New(apperr.ErrSdkUnavailable, m.cfg.UnavailableMessage, "provider sdk not available")
	}
	return m.authorize(ctx, false)
}

func (m *Manager) authorize(ctx context.Context, silent bool) error {
	m.authMu.Lock()
	defer m.authMu.Unlock()

	if m.state.GetState() == state.Authorized && m.sdk.IsAuthorized() {
		return nil
	}

	m.transition(state.Authorizing)

	if err := m.sdk.Authorize(ctx); err != nil {
		kind := apperr.ErrAuthorizationFailed
		if errors.Is(err, apperr.ErrAuthorizationDenied) {
			kind = apperr.ErrAuthorizationDenied
		}
		msg := authFailedPrefix + err.Error()
		if silent {
			msg = ""
		}
		if m.state.SetUnauthorized(msg) {
			m.metrics.AuthTransition(state.Unauthorized.String())
		}
		m.publish()
		return apperr.Wrap(errors.Wrap(err, "authorize"), kind, msg)
	}

	m.setAuthorized()
	zlog.Info().Msgf("session authorized: user=%s", m.state.GetUserName())
	return nil
}

// Unauthorize signs the user out. Local state is cleared even when the SDK
// call fails.
func (m *Manager) Unauthorize(ctx context.Context) error {
	if m.sdk == nil {
		return apperr.New(apperr.ErrSdkUnavailable, m.cfg.UnavailableMessage, "provider sdk not available")
	}

	m.authMu.Lock()
	defer m.authMu.Unlock()

	err := m.sdk.Unauthorize(ctx)
	if m.state.SetUnauthorized("") {
		m.metrics.AuthTransition(state.Unauthorized.String())
	}
	m.publish()
	if err != nil {
		zlog.Error().Msgf("failed to unauthorize: %v", err)
		return errors.Wrap(err, "unauthorize")
	}
	zlog.Info().Msg("session unauthorized")
	return nil
}

// HandleAPIError inspects a provider error. For 401/403 errors the session is
// marked Unauthorized with the expiry message and one silent re-authorization
// is attempted; its failure is only logged. Reports whether err was an
// authorization error.
func (m *Manager) HandleAPIError(ctx context.Context, err error) bool {
	if !apperr.IsAuthError(err) {
		return false
	}

	zlog.Warn().Msgf("provider rejected session: status=%d err=%v", apperr.StatusCode(err), err)
	if m.sdk != nil {
		m.sdk.Invalidate()
	}
	if m.state.SetUnauthorized(m.cfg.ExpiredMessage) {
		m.metrics.AuthTransition(state.Unauthorized.String())
	}
	m.publish()

	if m.sdk == nil || !m.reauthing.CompareAndSwap(false, true) {
		return true
	}
	defer m.reauthing.Store(false)

	if rerr := m.authorize(ctx, true); rerr != nil {
		zlog.Error().Msgf("silent re-authorization failed: %v", rerr)
		m.state.SetLastError(m.cfg.ExpiredMessage)
		m.publish()
	}
	return true
}

// Snapshot returns a copy of the session state.
func (m *Manager) Snapshot() state.Snapshot {
	return m.state.Snapshot()
}

// IsAuthorized returns true if the session is authorized.
func (m *Manager) IsAuthorized() bool {
	return m.state.GetState() == state.Authorized
}

// Handle returns the provider SDK.
func (m *Manager) Handle() SDK {
	return m.sdk
}

func (m *Manager) listen(ctx context.Context, ch <-chan bool) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case authorized, ok := <-ch:
			if !ok {
				return
			}
			zlog.Debug().Msgf("authorization status changed: authorized=%t", authorized)
			if authorized {
				// Buffered values can be stale; the SDK flag is authoritative.
				if m.sdk.IsAuthorized() && m.state.GetState() != state.Authorizing {
					m.setAuthorized()
				}
			} else if m.state.SetUnauthorized("") {
				m.metrics.AuthTransition(state.Unauthorized.String())
				m.publish()
			}
		}
	}
}

func (m *Manager) pollLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reconcile()
		}
	}
}

// reconcile corrects drift between the SDK flag and the local state without
// network calls. An in-progress sign-in is left alone.
func (m *Manager) reconcile() {
	authorized := m.sdk.IsAuthorized()
	current := m.state.GetState()

	switch {
	case current == state.Authorizing:
		return
	case authorized && current != state.Authorized:
		m.setAuthorized()
	case !authorized && current != state.Unauthorized:
		if m.state.SetUnauthorized("") {
			m.metrics.AuthTransition(state.Unauthorized.String())
			m.publish()
		}
	}
}

func (m *Manager) setAuthorized() {
	name := m.sdk.UserName()
	if name == "" {
		name = DefaultUserName
	}
	if m.state.SetAuthorized(name) {
		m.metrics.AuthTransition(state.Authorized.String())
		m.publish()
	}
}

func (m *Manager) transition(s state.AuthorizationState) {
	if m.state.SetState(s) {
		m.metrics.AuthTransition(s.String())
		m.publish()
	}
}

func (m *Manager) publish() {
	if m.notifier == nil {
		return
	}
	m.notifier.Notify(notification.EventSessionChanged, m.state.Snapshot())
}
