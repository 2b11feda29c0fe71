package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardledger/internal/auth"
	"cardledger/internal/config"
)

func newLoginRouter(t *testing.T, password string) *gin.Engine {
	t.Helper()

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)

	cfg := &config.Config{
		JWTSecret:         "test-secret",
		AdminPasswordHash: hash,
	}
	handler := NewLoginHandler(cfg)

	router := gin.New()
	router.POST("/auth/login", handler.Login)
	router.POST("/auth/refresh", handler.Refresh)
	return router
}

func postJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestLogin(t *testing.T) {
	router := newLoginRouter(t, "correct-horse-battery")

	t.Run("Successful login returns both tokens", func(t *testing.T) {
		w := postJSON(router, "/auth/login", gin.H{"password": "correct-horse-battery"})

		require.Equal(t, http.StatusOK, w.Code)

		var resp tokenResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.AccessToken)
		assert.NotEmpty(t, resp.RefreshToken)

		claims, err := auth.ValidateToken(resp.AccessToken, "test-secret")
		require.NoError(t, err)
		assert.Equal(t, auth.RoleAdmin, claims.Role)
	})

	t.Run("Wrong password", func(t *testing.T) {
		w := postJSON(router, "/auth/login", gin.H{"password": "wrong-password"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Short password fails validation", func(t *testing.T) {
		w := postJSON(router, "/auth/login", gin.H{"password": "short"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Missing password", func(t *testing.T) {
		w := postJSON(router, "/auth/login", gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLoginDisabledWithoutHash(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret"}
	handler := NewLoginHandler(cfg)

	router := gin.New()
	router.POST("/auth/login", handler.Login)

	w := postJSON(router, "/auth/login", gin.H{"password": "whatever-long-enough"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRefresh(t *testing.T) {
	router := newLoginRouter(t, "correct-horse-battery")

	t.Run("Valid refresh token", func(t *testing.T) {
		refreshToken, err := auth.GenerateRefreshToken(auth.RoleAdmin, "test-secret")
		require.NoError(t, err)

		w := postJSON(router, "/auth/refresh", gin.H{"refresh_token": refreshToken})

		require.Equal(t, http.StatusOK, w.Code)

		var resp tokenResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.AccessToken)
	})

	t.Run("Access token rejected", func(t *testing.T) {
		accessToken, err := auth.GenerateAccessToken(auth.RoleAdmin, "test-secret")
		require.NoError(t, err)

		w := postJSON(router, "/auth/refresh", gin.H{"refresh_token": accessToken})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Garbage token", func(t *testing.T) {
		w := postJSON(router, "/auth/refresh", gin.H{"refresh_token": "garbage"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
