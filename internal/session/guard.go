// Package session gates protected desk pages on a verified backend session.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockdesk/internal/domain/models"
	"github.com/mamadbah2/stockdesk/internal/repository/localstate"
)

// Verifier is the slice of the backend client the guard needs.
type Verifier interface {
	Login(ctx context.Context, username, password string) (*models.Session, error)
	VerifySession(ctx context.Context, token string) (*models.User, error)
	Logout(ctx context.Context, token string) error
}

// Guard verifies the persisted session before a protected page renders.
type Guard struct {
	verifier     Verifier
	store        localstate.Store
	loggedOutTTL time.Duration
	logger       *zap.Logger
	now          func() time.Time

	mu      sync.RWMutex
	current *models.User
}

// NewGuard wires a guard over store. A zero ttl defaults to 30 seconds.
func NewGuard(verifier Verifier, store localstate.Store, loggedOutTTL time.Duration, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loggedOutTTL <= 0 {
		loggedOutTTL = 30 * time.Second
	}
	return &Guard{
		verifier:     verifier,
		store:        store,
		loggedOutTTL: loggedOutTTL,
		logger:       logger,
		now:          time.Now,
	}
}

// Require returns the verified user when the persisted session is valid and
// holds role. An empty role accepts any verified user.
func (g *Guard) Require(ctx context.Context, role models.Role) (*models.User, error) {
	loggedOut, err := g.consumeLoggedOut(ctx)
	if err != nil {
		return nil, err
	}
	if loggedOut {
		g.clear(ctx)
		return nil, models.ErrUnauthenticated
	}

	token, err := g.store.Get(ctx, localstate.KeySessionToken)
	if err != nil {
		return nil, g.missing(ctx, err)
	}
	if _, err := g.store.Get(ctx, localstate.KeyUserData); err != nil {
		return nil, g.missing(ctx, err)
	}

	user, err := g.verifier.VerifySession(ctx, token)
	if err != nil {
		g.logger.Info("session verification failed", zap.Error(err))
		g.clear(ctx)
		return nil, fmt.Errorf("%w: %w", models.ErrSessionInvalid, err)
	}

	if role != "" && user.Role != role {
		g.logger.Info("role mismatch",
			zap.String("username", user.Username),
			zap.String("role", string(user.Role)),
			zap.String("required", string(role)),
		)
		return nil, models.ErrForbidden
	}

	if err := g.storeUser(ctx, user); err != nil {
		g.logger.Warn("failed to refresh cached user", zap.Error(err))
	}
	g.setCurrent(user)
	return user, nil
}

// Login exchanges credentials with the backend and persists the session.
func (g *Guard) Login(ctx context.Context, username, password string) (*models.User, error) {
	sess, err := g.verifier.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}

	if err := g.store.Delete(ctx, localstate.KeyLoggedOut); err != nil {
		return nil, fmt.Errorf("clear logout marker: %w", err)
	}
	if err := g.store.Set(ctx, localstate.KeySessionToken, sess.SessionToken); err != nil {
		return nil, fmt.Errorf("persist session token: %w", err)
	}
	if err := g.storeUser(ctx, &sess.User); err != nil {
		return nil, err
	}

	user := sess.User
	g.setCurrent(&user)
	g.logger.Info("user logged in", zap.String("username", user.Username), zap.String("role", string(user.Role)))
	return &user, nil
}

// Logout tells the backend (best effort), clears local credentials and
// leaves a one-shot marker so the next page load goes to the login page.
func (g *Guard) Logout(ctx context.Context) error {
	if token, err := g.store.Get(ctx, localstate.KeySessionToken); err == nil {
		if err := g.verifier.Logout(ctx, token); err != nil {
			g.logger.Warn("backend logout failed", zap.Error(err))
		}
	}

	g.clear(ctx)

	expiry := g.now().Add(g.loggedOutTTL).UnixMilli()
	if err := g.store.Set(ctx, localstate.KeyLoggedOut, strconv.FormatInt(expiry, 10)); err != nil {
		return fmt.Errorf("persist logout marker: %w", err)
	}
	return nil
}

// CurrentUser returns the last user bound by Require or Login.
func (g *Guard) CurrentUser() (*models.User, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.current == nil {
		return nil, false
	}
	u := *g.current
	return &u, true
}

// consumeLoggedOut reads and removes the marker. An expired marker is removed
// but does not count.
func (g *Guard) consumeLoggedOut(ctx context.Context) (bool, error) {
	raw, err := g.store.Get(ctx, localstate.KeyLoggedOut)
	if errors.Is(err, localstate.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read logout marker: %w", err)
	}
	if err := g.store.Delete(ctx, localstate.KeyLoggedOut); err != nil {
		return false, fmt.Errorf("consume logout marker: %w", err)
	}

	expiry, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return true, nil
	}
	return g.now().UnixMilli() < expiry, nil
}

func (g *Guard) missing(ctx context.Context, err error) error {
	if errors.Is(err, localstate.ErrNotFound) {
		g.clear(ctx)
		return models.ErrUnauthenticated
	}
	return fmt.Errorf("read credentials: %w", err)
}

func (g *Guard) storeUser(ctx context.Context, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := g.store.Set(ctx, localstate.KeyUserData, string(data)); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	return nil
}

func (g *Guard) clear(ctx context.Context) {
	if err := g.store.Delete(ctx, localstate.KeySessionToken, localstate.KeyUserData); err != nil {
		g.logger.Warn("failed to clear credentials", zap.Error(err))
	}
	g.setCurrent(nil)
}

func (g *Guard) setCurrent(user *models.User) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current = user
}
