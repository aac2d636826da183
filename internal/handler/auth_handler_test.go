package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"stickyboard-server/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthFlowDrivesSession(t *testing.T) {
	s := newTestServer(t)
	register := domain.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "Password123!"}

	rec, _ := s.do(t, http.MethodPost, "/api/v1/auth/register", "", register)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := s.do(t, http.MethodPost, "/api/v1/auth/register", "", register)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)

	rec, _ = s.do(t, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env = s.do(t, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Email: "alice@example.com", Password: "Password123!"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login domain.LoginResponse
	decodeData(t, env, &login)
	assert.NotEmpty(t, login.AccessToken)
	assert.Empty(t, login.User.Password)
	assert.True(t, s.sessions.SignedIn(login.User.ID))

	rec, env = s.do(t, http.MethodPost, "/api/v1/auth/refresh", "", domain.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/v1/auth/refresh", "", domain.RefreshTokenRequest{RefreshToken: login.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env = s.do(t, http.MethodPost, "/api/v1/auth/logout", login.User.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logged out successfully", env.Message)
	assert.False(t, s.sessions.SignedIn(login.User.ID))
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodPost, "/api/v1/auth/register", "", domain.RegisterRequest{Username: "al", Email: "bad", Password: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserProfile(t *testing.T) {
	s := newTestServer(t)
	s.users.Create(context.Background(), &domain.User{ID: "u1", Username: "alice", Email: "a@example.com", Password: "hash"})
	s.users.Create(context.Background(), &domain.User{ID: "u2", Username: "bob", Email: "b@example.com", Password: "hash"})

	rec, env := s.do(t, http.MethodGet, "/api/v1/users/me", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var user domain.User
	decodeData(t, env, &user)
	assert.Equal(t, "alice", user.Username)
	assert.Empty(t, user.Password)

	rec, _ = s.do(t, http.MethodPut, "/api/v1/users/me", "u1", domain.UpdateUserRequest{Username: "bob"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/users/me", "ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogoutRevokesTheSessionTokens(t *testing.T) {
	s := newTestServer(t)
	register := domain.RegisterRequest{Username: "carol", Email: "carol@example.com", Password: "Password123!"}
	rec, _ := s.do(t, http.MethodPost, "/api/v1/auth/register", "", register)
	require.Equal(t, http.StatusCreated, rec.Code)

	creds := domain.LoginRequest{Email: "carol@example.com", Password: "Password123!"}
	rec, env := s.do(t, http.MethodPost, "/api/v1/auth/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	var login domain.LoginResponse
	decodeData(t, env, &login)

	rec, env = s.do(t, http.MethodPost, "/api/v1/auth/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	var otherDevice domain.LoginResponse
	decodeData(t, env, &otherDevice)

	rec, _ = s.doToken(t, http.MethodGet, "/api/v1/page", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.doToken(t, http.MethodPost, "/api/v1/auth/logout", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.doToken(t, http.MethodGet, "/api/v1/page", login.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.doToken(t, http.MethodPost, "/api/v1/auth/logout", login.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.doToken(t, http.MethodGet, "/", login.AccessToken, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth", rec.Header().Get("Location"))

	rec, _ = s.do(t, http.MethodPost, "/api/v1/auth/refresh", "", domain.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	ws := httptest.NewRecorder()
	s.handler.ServeHTTP(ws, httptest.NewRequest(http.MethodGet, "/ws?token="+login.AccessToken, nil))
	assert.Equal(t, http.StatusUnauthorized, ws.Code)

	// the other login keeps working
	rec, _ = s.doToken(t, http.MethodGet, "/api/v1/users/me", otherDevice.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.doToken(t, http.MethodGet, "/api/v1/page", otherDevice.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(t, http.MethodPost, "/api/v1/auth/refresh", "", domain.RefreshTokenRequest{RefreshToken: otherDevice.RefreshToken})
	assert.Equal(t, http.StatusOK, rec.Code)
}
