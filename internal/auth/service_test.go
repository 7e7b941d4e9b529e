package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kitarena/kitarena/internal/shared"
)

type memoryRepo struct {
	users map[string]*User
}

func (r *memoryRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	if u, ok := r.users[email]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("%w: user", shared.ErrNotFound)
}

func (r *memoryRepo) FindByID(ctx context.Context, id int64) (*User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, fmt.Errorf("%w: user", shared.ErrNotFound)
}

func newTestService(t *testing.T) (*Service, *memoryRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "test:session", time.Hour)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &memoryRepo{users: map[string]*User{
		"admin@kitarena.test": {ID: 1, Email: "admin@kitarena.test", Role: shared.RoleAdmin, PasswordHash: string(hash), IsActive: true},
		"gone@kitarena.test":  {ID: 2, Email: "gone@kitarena.test", Role: shared.RoleSeller, PasswordHash: string(hash), IsActive: false},
	}}
	return NewService(repo, sessions), repo
}

func TestAuthenticateIssuesResolvableToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, token, err := svc.Authenticate(ctx, "admin@kitarena.test", "correct-horse")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, shared.RoleAdmin, user.Role)

	identity, err := svc.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, int64(1), identity.UserID)
	require.Equal(t, shared.RoleAdmin, identity.Role)

	require.NoError(t, svc.Logout(ctx, token))
	_, err = svc.Resolve(ctx, token)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Authenticate(ctx, "admin@kitarena.test", "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, _, err = svc.Authenticate(ctx, "nobody@kitarena.test", "correct-horse")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, _, err = svc.Authenticate(ctx, "gone@kitarena.test", "correct-horse")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestGateRequireRole(t *testing.T) {
	svc, _ := newTestService(t)
	gate := Gate{Service: svc}

	_, token, err := svc.Authenticate(context.Background(), "admin@kitarena.test", "correct-horse")
	require.NoError(t, err)

	var reached bool
	handler := gate.Resolve(gate.RequireRole(shared.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	})))

	// No token: 401, handler untouched.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.False(t, reached)

	// Garbage token: 401.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid admin token passes.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, reached)
}
