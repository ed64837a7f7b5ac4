package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/sitesnap/sitesnap/internal/config"
	"github.com/sitesnap/sitesnap/internal/render"
)

// DefaultValidityMargin is subtracted from the estimated expiry when
// judging validity. Refreshing slightly early is cheap; rendering a page
// with a session that dies mid-navigation wastes a whole retry cycle.
const DefaultValidityMargin = 30 * time.Second

// Session is an established authenticated session.
//
// Sessions are immutable once published; the Manager swaps in a new value
// on refresh rather than mutating the old one.
type Session struct {
	// ID identifies the session in logs and reports.
	ID string

	// EstablishedAt is when the login flow completed.
	EstablishedAt time.Time

	// ExpiresAt is the estimated expiry. It is a heuristic derived from
	// the configured TTL and any session cookie expiry seen at login.
	ExpiresAt time.Time

	// LandedURL is where the browser ended up after login.
	LandedURL string

	// Cookies are the cookies captured after login.
	Cookies []render.Cookie
}

// Manager establishes and refreshes the authenticated session.
//
// All methods are safe for concurrent use by render workers.
type Manager struct {
	auth    render.Authenticator
	ttl     time.Duration
	retries int
	backoff time.Duration
	margin  time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	current *Session

	group     singleflight.Group
	refreshMu sync.Mutex
	refreshes int
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTTL sets the assumed session lifetime.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.ttl = ttl
	}
}

// WithRetries sets how many additional login attempts follow a failure.
func WithRetries(n int) ManagerOption {
	return func(m *Manager) {
		m.retries = n
	}
}

// WithBackoff sets the delay before the first retry. The delay doubles
// on each subsequent retry.
func WithBackoff(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.backoff = d
	}
}

// WithValidityMargin sets how long before the estimated expiry the
// session is already treated as stale.
func WithValidityMargin(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.margin = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source. Used by tests to control expiry.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a session manager around an authenticator.
func NewManager(auth render.Authenticator, opts ...ManagerOption) *Manager {
	m := &Manager{
		auth:    auth,
		ttl:     config.DefaultSessionTTL,
		retries: config.DefaultLoginRetries,
		backoff: config.DefaultBackoffBase,
		margin:  DefaultValidityMargin,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Establish runs the login flow and publishes the resulting session.
//
// On failure it retries up to the configured count with doubling backoff
// between attempts. When every attempt fails it returns an *AuthError
// wrapping the last failure. Context cancellation aborts immediately and
// is returned as-is, not wrapped.
func (m *Manager) Establish(ctx context.Context) error {
	_, err := m.establish(ctx)
	return err
}

// Current returns the current session, or nil before Establish succeeds.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// IsValid reports whether the current session is still usable according
// to the expiry heuristic.
func (m *Manager) IsValid() bool {
	return m.validSession() != nil
}

// EnsureValid returns a valid session, refreshing first if the current
// one has expired. Concurrent callers share a single refresh: one runs
// the login flow, the rest wait for its result.
func (m *Manager) EnsureValid(ctx context.Context) (*Session, error) {
	if s := m.validSession(); s != nil {
		return s, nil
	}
	v, err, _ := m.group.Do("refresh", func() (any, error) {
		// A refresh that finished while this caller queued already
		// produced a fresh session; reuse it.
		if s := m.validSession(); s != nil {
			return s, nil
		}
		m.refreshMu.Lock()
		m.refreshes++
		n := m.refreshes
		m.refreshMu.Unlock()
		m.logger.Info("session stale, refreshing", "refresh", n)
		return m.establish(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Invalidate drops the current session so the next EnsureValid refreshes.
//
// Workers call this when a render lands on the login page even though the
// expiry heuristic still considered the session valid.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
}

// Refreshes returns how many refreshes have run, not counting the
// initial Establish.
func (m *Manager) Refreshes() int {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()
	return m.refreshes
}

func (m *Manager) establish(ctx context.Context) (*Session, error) {
	var lastErr error
	attempts := m.retries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := m.backoff << (attempt - 2)
			m.logger.Debug("waiting before login retry", "attempt", attempt, "delay", delay)
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}
		}

		state, err := m.auth.Login(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			m.logger.Warn("login attempt failed", "attempt", attempt, "max_attempts", attempts, "error", err)
			continue
		}

		sess := &Session{
			ID:            uuid.NewString(),
			EstablishedAt: state.EstablishedAt,
			ExpiresAt:     estimateExpiry(state.EstablishedAt, m.ttl, state.Cookies),
			LandedURL:     state.LandedURL,
			Cookies:       state.Cookies,
		}
		m.mu.Lock()
		m.current = sess
		m.mu.Unlock()

		m.logger.Info("session established",
			"attempt", attempt,
			"landed_url", state.LandedURL,
			"cookies", len(state.Cookies),
			"expires_at", sess.ExpiresAt.Format(time.RFC3339))
		return sess, nil
	}
	return nil, &AuthError{Attempts: attempts, Err: lastErr}
}

// validSession returns the current session if the heuristic still trusts
// it, nil otherwise.
func (m *Manager) validSession() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	if !m.now().Add(m.margin).Before(m.current.ExpiresAt) {
		return nil
	}
	return m.current
}

// estimateExpiry picks the expiry estimate for a session established at
// the given time. The configured TTL is the ceiling; a session cookie
// that expires sooner pulls the estimate down. Cookies without an expiry
// and cookies already expired at login carry no information.
func estimateExpiry(established time.Time, ttl time.Duration, cookies []render.Cookie) time.Time {
	expires := established.Add(ttl)
	for _, c := range cookies {
		if c.Session() || !c.Expires.After(established) {
			continue
		}
		if c.Expires.Before(expires) {
			expires = c.Expires
		}
	}
	return expires
}

// sleepCtx sleeps for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
