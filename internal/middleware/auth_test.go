package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/repository"
)

type stubUsers struct {
	users map[int64]*model.User
	err   error
}

func (s *stubUsers) GetUser(ctx context.Context, id int64) (*model.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func newStubUsers() *stubUsers {
	return &stubUsers{users: map[int64]*model.User{
		42: {ID: 42, Name: "Ann", Email: "ann@example.com", Role: model.RoleCustomer},
		1:  {ID: 1, Name: "Admin", Email: "admin@example.com", Role: model.RoleAdmin},
	}}
}

func serveProtected(t *testing.T, m *AuthMiddleware, header string, next http.Handler) *httptest.ResponseRecorder {
	t.Helper()

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		r.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	m.Middleware(next).ServeHTTP(w, r)
	return w
}

func withUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func mustNotBeCalled(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})
}

func TestAuthMiddleware_WithValidToken(t *testing.T) {
	m := NewAuthMiddleware("test-secret", time.Hour, newStubUsers(), zap.NewNop())

	token, err := m.IssueToken(42)
	require.NoError(t, err)

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		u, ok := GetUserFromContext(r.Context())
		require.True(t, ok, "user not in context")
		assert.Equal(t, int64(42), u.ID)
		assert.Equal(t, model.RoleCustomer, u.Role)
	})

	w := serveProtected(t, m, "Bearer "+token, next)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, nextCalled, "next handler was not called")
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	users := newStubUsers()
	m := NewAuthMiddleware("test-secret", time.Hour, users, zap.NewNop())

	valid, err := m.IssueToken(42)
	require.NoError(t, err)

	otherKey, err := NewAuthMiddleware("another-secret", time.Hour, users, zap.NewNop()).IssueToken(42)
	require.NoError(t, err)

	expired, err := NewAuthMiddleware("test-secret", -time.Minute, users, zap.NewNop()).IssueToken(42)
	require.NoError(t, err)

	deleted, err := m.IssueToken(7)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "not bearer", header: "Basic " + valid},
		{name: "empty bearer", header: "Bearer "},
		{name: "garbage", header: "Bearer not-a-jwt"},
		{name: "wrong key", header: "Bearer " + otherKey},
		{name: "expired", header: "Bearer " + expired},
		{name: "deleted user", header: "Bearer " + deleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serveProtected(t, m, tt.header, mustNotBeCalled(t))

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.JSONEq(t, `{"message":"Not authorized"}`, w.Body.String())
		})
	}
}

func TestAuthMiddleware_StoreUnavailable(t *testing.T) {
	users := newStubUsers()
	m := NewAuthMiddleware("test-secret", time.Hour, users, zap.NewNop())

	token, err := m.IssueToken(42)
	require.NoError(t, err)

	users.err = repository.ErrStoreUnavailable
	w := serveProtected(t, m, "Bearer "+token, mustNotBeCalled(t))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAuthMiddleware_UnexpectedErrorLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	users := newStubUsers()
	m := NewAuthMiddleware("test-secret", time.Hour, users, zap.New(core))

	token, err := m.IssueToken(42)
	require.NoError(t, err)

	users.err = errors.New("decode row: boom")
	w := serveProtected(t, m, "Bearer "+token, mustNotBeCalled(t))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"message":"Server error"}`, w.Body.String())

	entries := logs.FilterMessage("authentication failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "/protected", entries[0].ContextMap()["path"])
	assert.Contains(t, entries[0].ContextMap()["error"], "boom")
}

func TestAuthMiddleware_RoleChangeTakesEffect(t *testing.T) {
	users := newStubUsers()
	m := NewAuthMiddleware("test-secret", time.Hour, users, zap.NewNop())

	token, err := m.IssueToken(42)
	require.NoError(t, err)

	users.users[42].Role = model.RoleAdmin

	var got model.Role
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, _ := GetUserFromContext(r.Context())
		got = u.Role
	})
	serveProtected(t, m, "Bearer "+token, next)

	assert.Equal(t, model.RoleAdmin, got)
}

func TestParseToken(t *testing.T) {
	m := NewAuthMiddleware("test-secret", time.Hour, newStubUsers(), zap.NewNop())

	token, err := m.IssueToken(42)
	require.NoError(t, err)

	id, err := m.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	fixed := time.Now()
	m.now = func() time.Time { return fixed.Add(2 * time.Hour) }
	_, err = m.ParseToken(token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRequireRole(t *testing.T) {
	customer := &model.User{ID: 42, Role: model.RoleCustomer}
	admin := &model.User{ID: 1, Role: model.RoleAdmin}

	tests := []struct {
		name       string
		user       *model.User
		wantStatus int
	}{
		{name: "admin passes", user: admin, wantStatus: http.StatusOK},
		{name: "customer forbidden", user: customer, wantStatus: http.StatusForbidden},
		{name: "anonymous", user: nil, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			r := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.user != nil {
				r = r.WithContext(withUser(r.Context(), tt.user))
			}
			w := httptest.NewRecorder()
			RequireRole(model.RoleAdmin)(next).ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusForbidden {
				assert.JSONEq(t, `{"message":"Admin only"}`, w.Body.String())
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	assert.ErrorIs(t, Authorize(nil, model.RoleCustomer), ErrUnauthenticated)
	assert.NoError(t, Authorize(&model.User{Role: model.RoleCustomer}, model.RoleCustomer))
	assert.ErrorIs(t, Authorize(&model.User{Role: model.RoleCustomer}, model.RoleAdmin), ErrForbidden)
	assert.NoError(t, Authorize(&model.User{Role: model.RoleAdmin}, model.RoleAdmin))
}
