package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keepnotes/backend/middleware"
	"keepnotes/backend/models"
	"keepnotes/backend/service"
)

type fakeVerifier struct {
	ident *service.Identity
	err   error
}

func (f *fakeVerifier) Verify(_ context.Context, _ string) (*service.Identity, error) {
	return f.ident, f.err
}

func loginWith(t *testing.T, h *AuthHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.Login(rr, req)
	return rr
}

func parseSessionToken(t *testing.T, rr *httptest.ResponseRecorder, secret string) *middleware.Claims {
	t.Helper()
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	claims := &middleware.Claims{}
	token, err := jwt.ParseWithClaims(resp.Token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)
	return claims
}

func TestLoginCreatesAccountOnFirstLogin(t *testing.T) {
	users := newFakeUserStore()
	h := &AuthHandler{
		Users:     users,
		Verifier:  &fakeVerifier{ident: &service.Identity{Subject: "g-123", Email: "New@Example.com", Name: "New User", Picture: "https://p.example.com/a.png"}},
		JWTSecret: "test-secret",
	}

	rr := loginWith(t, h, `{"token":"google-id-token"}`)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	claims := parseSessionToken(t, rr, "test-secret")
	assert.Equal(t, "new@example.com", claims.Email, "email is lowercased")
	assert.Equal(t, models.RoleUser, claims.Role)

	created, err := users.UserByEmail(context.Background(), "new@example.com")
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "g-123", created.GoogleID)
	assert.Equal(t, models.RoleUser, created.Role)
	assert.True(t, created.IsActive)
}

func TestLoginAllowListedFirstLoginIsAdmin(t *testing.T) {
	users := newFakeUserStore()
	h := &AuthHandler{
		Users:       users,
		Verifier:    &fakeVerifier{ident: &service.Identity{Subject: "g-1", Email: "boss@example.com", Name: "Boss"}},
		JWTSecret:   "test-secret",
		AdminEmails: []string{"boss@example.com"},
	}

	rr := loginWith(t, h, `{"token":"tok"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	claims := parseSessionToken(t, rr, "test-secret")
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestLoginPromotesAllowListedUser(t *testing.T) {
	users := newFakeUserStore()
	users.add(models.User{Email: "boss@example.com", Role: models.RoleUser, IsActive: true})
	h := &AuthHandler{
		Users:       users,
		Verifier:    &fakeVerifier{ident: &service.Identity{Subject: "g-1", Email: "boss@example.com", Name: "Boss"}},
		JWTSecret:   "test-secret",
		AdminEmails: []string{"boss@example.com"},
	}

	rr := loginWith(t, h, `{"token":"tok"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	claims := parseSessionToken(t, rr, "test-secret")
	assert.Equal(t, models.RoleAdmin, claims.Role)
	stored, _ := users.UserByEmail(context.Background(), "boss@example.com")
	assert.Equal(t, models.RoleAdmin, stored.Role)
}

func TestLoginNeverDemotesAdmin(t *testing.T) {
	users := newFakeUserStore()
	users.add(models.User{Email: "ex-boss@example.com", Role: models.RoleAdmin, IsActive: true})
	h := &AuthHandler{
		Users:       users,
		Verifier:    &fakeVerifier{ident: &service.Identity{Subject: "g-1", Email: "ex-boss@example.com", Name: "Ex"}},
		JWTSecret:   "test-secret",
		AdminEmails: nil, // not on the allow-list anymore
	}

	rr := loginWith(t, h, `{"token":"tok"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	claims := parseSessionToken(t, rr, "test-secret")
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestLoginRejectsBadProviderToken(t *testing.T) {
	h := &AuthHandler{
		Users:     newFakeUserStore(),
		Verifier:  &fakeVerifier{err: errors.New("invalid token")},
		JWTSecret: "test-secret",
	}

	rr := loginWith(t, h, `{"token":"garbage"}`)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLoginRequiresToken(t *testing.T) {
	h := &AuthHandler{Users: newFakeUserStore(), Verifier: &fakeVerifier{}, JWTSecret: "s"}

	rr := loginWith(t, h, `{}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
