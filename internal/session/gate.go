// Package session decides which boards are live for whom. A Gate follows a
// single auth signal (a user id, or none) and loads or clears its board store
// as that signal changes.
package session

import (
	"context"
	"fmt"
	"sync"

	"stickyboard-server/internal/store"

	"go.uber.org/zap"
)

const (
	HomePath = "/"
	AuthPath = "/auth"
)

// Redirect returns where a request for path should be sent instead, if
// anywhere. Signed-out users only see the auth view; signed-in users never do.
func Redirect(signedIn bool, path string) (string, bool) {
	switch {
	case !signedIn && path != AuthPath:
		return AuthPath, true
	case signedIn && path == AuthPath:
		return HomePath, true
	}
	return "", false
}

type Gate struct {
	mu     sync.Mutex
	store  *store.Store
	userID string
	loaded bool
	logger *zap.Logger
}

func NewGate(st *store.Store, logger *zap.Logger) *Gate {
	return &Gate{store: st, logger: logger}
}

func (g *Gate) Store() *store.Store {
	return g.store
}

func (g *Gate) SignedIn() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.userID != ""
}

// Observe feeds the gate the current auth signal. An empty userID means
// signed out. Repeating the current signal does nothing.
func (g *Gate) Observe(ctx context.Context, userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if userID == g.userID {
		return nil
	}

	if userID == "" {
		g.store.SignOut()
		g.userID = ""
		g.loaded = false
		g.logger.Info("signed out, boards cleared")
		return nil
	}

	g.store.SignIn(userID)
	g.userID = userID
	g.loaded = false
	return g.load(ctx)
}

// Ready makes sure a signed-in gate has loaded its boards, retrying a load
// that failed earlier.
func (g *Gate) Ready(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.userID == "" {
		return store.ErrNotSignedIn
	}
	if g.loaded {
		return nil
	}
	return g.load(ctx)
}

// Reload fetches the boards again even if they are already loaded.
func (g *Gate) Reload(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.userID == "" {
		return store.ErrNotSignedIn
	}
	return g.load(ctx)
}

// Watch applies every signal from changes until the channel closes or ctx is
// done. Load failures are logged; the gate stays signed in and Ready retries.
func (g *Gate) Watch(ctx context.Context, changes <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case userID, ok := <-changes:
			if !ok {
				return nil
			}
			if err := g.Observe(ctx, userID); err != nil {
				g.logger.Warn("board load after sign-in failed", zap.String("user_id", userID), zap.Error(err))
			}
		}
	}
}

func (g *Gate) load(ctx context.Context) error {
	if err := g.store.Load(ctx); err != nil {
		return fmt.Errorf("failed to load boards for %s: %w", g.userID, err)
	}
	g.loaded = true
	g.logger.Info("signed in, boards loaded", zap.String("user_id", g.userID))
	return nil
}
