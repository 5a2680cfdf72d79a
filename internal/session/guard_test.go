package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mamadbah2/stockdesk/internal/backendtest"
	"github.com/mamadbah2/stockdesk/internal/domain/models"
	"github.com/mamadbah2/stockdesk/internal/repository/localstate"
	"github.com/mamadbah2/stockdesk/pkg/clients/stockapi"
)

var admin = models.User{ID: 1, FullName: "Asha Rao", Username: "asha", Role: models.RoleAdmin, IsActive: true}

func setupGuard(t *testing.T) (*backendtest.Backend, *localstate.MemoryStore, *Guard) {
	t.Helper()
	backend := backendtest.New()
	t.Cleanup(backend.Close)

	store := localstate.NewMemoryStore()
	client := stockapi.NewClient(stockapi.Config{BaseURL: backend.URL(), Timeout: 2 * time.Second})
	return backend, store, NewGuard(client, store, time.Minute, nil)
}

func seedCredentials(t *testing.T, store localstate.Store, token string) {
	t.Helper()
	ctx := context.Background()
	if err := store.Set(ctx, localstate.KeySessionToken, token); err != nil {
		t.Fatalf("seed token: %v", err)
	}
	if err := store.Set(ctx, localstate.KeyUserData, `{"id":1}`); err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func TestRequire_NoCredentialsSkipsBackend(t *testing.T) {
	backend, _, guard := setupGuard(t)

	if _, err := guard.Require(context.Background(), models.RoleAdmin); !errors.Is(err, models.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if hits := backend.Hits("POST /auth/verify-session"); hits != 0 {
		t.Fatalf("expected no verification call, got %d", hits)
	}
}

func TestRequire_InvalidSessionClearsCredentials(t *testing.T) {
	_, store, guard := setupGuard(t)
	seedCredentials(t, store, "stale")

	_, err := guard.Require(context.Background(), models.RoleAdmin)
	if !errors.Is(err, models.ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
	if _, err := store.Get(context.Background(), localstate.KeySessionToken); !errors.Is(err, localstate.ErrNotFound) {
		t.Fatalf("expected token cleared, got %v", err)
	}
}

func TestRequire_RoleMismatch(t *testing.T) {
	backend, store, guard := setupGuard(t)
	backend.AddSession("tok", models.User{ID: 2, Username: "meena", Role: models.RoleSalesperson})
	seedCredentials(t, store, "tok")

	if _, err := guard.Require(context.Background(), models.RoleAdmin); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := store.Get(context.Background(), localstate.KeySessionToken); err != nil {
		t.Fatalf("forbidden must keep credentials: %v", err)
	}
	if user, err := guard.Require(context.Background(), ""); err != nil || user.Username != "meena" {
		t.Fatalf("any-role require: %+v %v", user, err)
	}
}

func TestRequire_BindsVerifiedUser(t *testing.T) {
	backend, store, guard := setupGuard(t)
	backend.AddSession("tok", admin)
	seedCredentials(t, store, "tok")

	user, err := guard.Require(context.Background(), models.RoleAdmin)
	if err != nil {
		t.Fatalf("require: %v", err)
	}
	if user.FullName != "Asha Rao" {
		t.Fatalf("unexpected user %+v", user)
	}
	current, ok := guard.CurrentUser()
	if !ok || current.ID != admin.ID {
		t.Fatalf("expected current user bound, got %+v", current)
	}
}

func TestLogout_MarkerForcesLogin(t *testing.T) {
	backend, store, guard := setupGuard(t)
	backend.AddSession("tok", admin)
	seedCredentials(t, store, "tok")
	ctx := context.Background()

	if err := guard.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if backend.Hits("POST /auth/logout") != 1 {
		t.Fatalf("expected backend logout call")
	}
	if _, ok := guard.CurrentUser(); ok {
		t.Fatalf("expected current user cleared")
	}

	// A cached page restored from history re-seeds stale credentials.
	seedCredentials(t, store, "tok")
	if _, err := guard.Require(ctx, models.RoleAdmin); !errors.Is(err, models.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated after logout, got %v", err)
	}
	if _, err := store.Get(ctx, localstate.KeyLoggedOut); !errors.Is(err, localstate.ErrNotFound) {
		t.Fatalf("marker must be consumed, got %v", err)
	}
}

func TestLogout_BackendFailureStillClears(t *testing.T) {
	backend, store, guard := setupGuard(t)
	seedCredentials(t, store, "tok")
	backend.Fail("POST /auth/logout", 1)

	if err := guard.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := store.Get(context.Background(), localstate.KeySessionToken); !errors.Is(err, localstate.ErrNotFound) {
		t.Fatalf("expected credentials cleared, got %v", err)
	}
}

func TestExpiredMarkerIsIgnored(t *testing.T) {
	backend, store, guard := setupGuard(t)
	backend.AddSession("tok", admin)
	ctx := context.Background()

	if err := guard.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	guard.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	seedCredentials(t, store, "tok")
	if _, err := guard.Require(ctx, models.RoleAdmin); err != nil {
		t.Fatalf("expired marker should not block: %v", err)
	}
}

func TestLogin_PersistsSession(t *testing.T) {
	backend, store, guard := setupGuard(t)
	backend.AddSession("seed", admin)
	ctx := context.Background()

	if _, err := guard.Login(ctx, "asha", "wrong"); err == nil {
		t.Fatalf("expected login failure")
	}

	user, err := guard.Login(ctx, "asha", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.Role != models.RoleAdmin {
		t.Fatalf("unexpected role %q", user.Role)
	}
	if _, err := store.Get(ctx, localstate.KeySessionToken); err != nil {
		t.Fatalf("token not persisted: %v", err)
	}
	if _, err := guard.Require(ctx, models.RoleAdmin); err != nil {
		t.Fatalf("require after login: %v", err)
	}
}
