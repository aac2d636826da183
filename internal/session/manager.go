package session

import (
	"context"
	"sync"

	"stickyboard-server/internal/domain"
	"stickyboard-server/internal/metrics"
	"stickyboard-server/internal/repository"
	"stickyboard-server/internal/store"

	"go.uber.org/zap"
)

// Manager keeps one gate, and so one board store, per signed-in user. It is
// what the auth service signals on login and logout.
type Manager struct {
	mu       sync.Mutex
	gates    map[string]*Gate
	repo     repository.BoardRepository
	notifier store.Notifier
	clock    *domain.Clock
	metrics  *metrics.Collector
	logger   *zap.Logger
}

func NewManager(repo repository.BoardRepository, notifier store.Notifier, collector *metrics.Collector, logger *zap.Logger) *Manager {
	return &Manager{
		gates:    make(map[string]*Gate),
		repo:     repo,
		notifier: notifier,
		clock:    domain.NewClock(),
		metrics:  collector,
		logger:   logger,
	}
}

// SignIn opens a session for userID and loads its boards. The session stays
// open when the load fails; Store retries the load.
func (m *Manager) SignIn(ctx context.Context, userID string) error {
	return m.gate(userID).Observe(ctx, userID)
}

// SignOut clears the user's boards and forgets the session.
func (m *Manager) SignOut(userID string) {
	m.mu.Lock()
	g, ok := m.gates[userID]
	delete(m.gates, userID)
	m.mu.Unlock()

	if !ok {
		return
	}
	_ = g.Observe(context.Background(), "")
	m.metrics.SessionClosed()
}

// Store returns the user's loaded board store, signing the user in first if
// no session is open.
func (m *Manager) Store(ctx context.Context, userID string) (*store.Store, error) {
	g := m.gate(userID)
	if !g.SignedIn() {
		if err := g.Observe(ctx, userID); err != nil {
			return nil, err
		}
		return g.Store(), nil
	}
	if err := g.Ready(ctx); err != nil {
		return nil, err
	}
	return g.Store(), nil
}

// Reload refetches the user's boards from the document store.
func (m *Manager) Reload(ctx context.Context, userID string) (*store.Store, error) {
	g := m.gate(userID)
	if !g.SignedIn() {
		if err := g.Observe(ctx, userID); err != nil {
			return nil, err
		}
		return g.Store(), nil
	}
	if err := g.Reload(ctx); err != nil {
		return nil, err
	}
	return g.Store(), nil
}

func (m *Manager) SignedIn(userID string) bool {
	m.mu.Lock()
	g, ok := m.gates[userID]
	m.mu.Unlock()
	return ok && g.SignedIn()
}

func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.gates)
}

func (m *Manager) gate(userID string) *Gate {
	m.mu.Lock()
	defer m.mu.Unlock()

	if g, ok := m.gates[userID]; ok {
		return g
	}
	logger := m.logger.With(zap.String("user_id", userID))
	st := store.New(m.repo,
		store.WithNotifier(m.notifier),
		store.WithClock(m.clock),
		store.WithLogger(logger),
	)
	g := NewGate(st, logger)
	m.gates[userID] = g
	m.metrics.SessionOpened()
	return g
}
