package service

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/aussiebroadwan/tokenguard/internal/auth/domain"
	"github.com/aussiebroadwan/tokenguard/internal/auth/metrics"
	"github.com/aussiebroadwan/tokenguard/internal/auth/store"
)

// Manager resolves guards by name and caches them for its lifetime. Guards
// are built on first use and never replaced.
type Manager struct {
	cfg       GuardsConfig
	users     store.Users
	tokens    store.Tokens
	passwords PasswordVerifier
	metrics   *metrics.Metrics
	now       func() time.Time

	mu     sync.RWMutex
	guards map[string]*Guard
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

func WithPasswordVerifier(v PasswordVerifier) ManagerOption {
	return func(m *Manager) { m.passwords = v }
}

func WithMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = mt }
}

// WithClock overrides the time source for issuance and expiry checks.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func NewManager(cfg GuardsConfig, users store.Users, tokens store.Tokens, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:       cfg,
		users:     users,
		tokens:    tokens,
		passwords: DefaultPasswordVerifier,
		now:       time.Now,
		guards:    make(map[string]*Guard),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DefaultGuard is the guard used when a caller names none.
func (m *Manager) DefaultGuard() string { return m.cfg.Default }

// Names lists the configured guard names in order.
func (m *Manager) Names() []string {
	return slices.Sorted(maps.Keys(m.cfg.Guards))
}

// Warm builds every configured guard, surfacing configuration errors before
// the first request.
func (m *Manager) Warm() error {
	if err := m.cfg.Validate(); err != nil {
		return err
	}
	var errs []error
	for _, name := range m.Names() {
		if _, err := m.Guard(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Guard returns the named guard, building it on first use. An empty name
// selects the default guard.
func (m *Manager) Guard(name string) (*Guard, error) {
	if name == "" {
		name = m.cfg.Default
	}

	m.mu.RLock()
	g, ok := m.guards[name]
	m.mu.RUnlock()
	if ok {
		return g, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.guards[name]; ok {
		return g, nil
	}

	g, err := m.build(name)
	if err != nil {
		return nil, err
	}
	m.guards[name] = g
	return g, nil
}

func (m *Manager) build(name string) (*Guard, error) {
	gc, pc, err := m.cfg.Resolve(name)
	if err != nil {
		return nil, err
	}

	resolver := &PrincipalResolver{Users: m.users, Provider: pc}
	session := &sessionTokens{
		guard:      name,
		tokens:     m.tokens,
		resolver:   resolver,
		accessTTL:  pc.AccessTTL(),
		refreshTTL: pc.RefreshTTL(),
		now:        m.now,
	}

	var driver Driver
	switch gc.Driver {
	case DriverJWT:
		driver, err = newJWTDriver(session, pc)
		if err != nil {
			return nil, err
		}
	case DriverToken:
		driver = newOpaqueDriver(session, pc)
	}

	return &Guard{
		name:      name,
		provider:  pc,
		driver:    driver,
		resolver:  resolver,
		tokens:    m.tokens,
		passwords: m.passwords,
		metrics:   m.metrics,
	}, nil
}

func (m *Manager) Login(ctx context.Context, guard string, creds map[string]string) (*domain.AuthResponse, error) {
	g, err := m.Guard(guard)
	if err != nil {
		return nil, err
	}
	return g.Login(ctx, creds)
}

func (m *Manager) Verify(ctx context.Context, guard, token string) (domain.Principal, error) {
	g, err := m.Guard(guard)
	if err != nil {
		return domain.Principal{}, err
	}
	return g.Verify(ctx, token)
}

func (m *Manager) Refresh(ctx context.Context, guard, refreshToken string) (*domain.AuthResponse, error) {
	g, err := m.Guard(guard)
	if err != nil {
		return nil, err
	}
	return g.Refresh(ctx, refreshToken)
}

func (m *Manager) Logout(ctx context.Context, guard, token string) (int64, error) {
	g, err := m.Guard(guard)
	if err != nil {
		return 0, err
	}
	return g.Logout(ctx, token)
}

func (m *Manager) LogoutAll(ctx context.Context, guard, tokenOrPrincipalID string) (int64, error) {
	g, err := m.Guard(guard)
	if err != nil {
		return 0, err
	}
	return g.LogoutAll(ctx, tokenOrPrincipalID)
}
