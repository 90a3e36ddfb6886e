package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/thairide/service-booking/internal/platform/auth"
)

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	return r
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	jwtManager := auth.NewJWTManager("secret", time.Hour)
	userID := uuid.New()

	r := newRouter(AuthMiddleware(jwtManager))
	r.GET("/me", func(c *gin.Context) {
		id, _ := GetUserID(c)
		role, _ := GetUserRole(c)
		c.JSON(http.StatusOK, gin.H{"id": id.String(), "role": role})
	})

	t.Run("missing header", func(t *testing.T) {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("token from another secret", func(t *testing.T) {
		other, err := auth.NewJWTManager("other", time.Hour).Generate(userID.String(), auth.RoleCustomer)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+other)
		assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
	})

	t.Run("subject is not a uuid", func(t *testing.T) {
		tok, err := jwtManager.Generate("user-42", auth.RoleCustomer)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
	})

	t.Run("valid token", func(t *testing.T) {
		tok, err := jwtManager.Generate(userID.String(), auth.RoleDriver)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := serve(r, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), userID.String())
		assert.Contains(t, w.Body.String(), `"role":"driver"`)
	})
}

func TestRequireRole(t *testing.T) {
	jwtManager := auth.NewJWTManager("secret", time.Hour)
	r := newRouter(AuthMiddleware(jwtManager), RequireRole(auth.RoleAdmin))
	r.GET("/admin", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	call := func(role string) int {
		tok, err := jwtManager.Generate(uuid.NewString(), role)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		return serve(r, req).Code
	}

	assert.Equal(t, http.StatusForbidden, call(auth.RoleCustomer))
	assert.Equal(t, http.StatusForbidden, call(auth.RoleDriver))
	assert.Equal(t, http.StatusNoContent, call(auth.RoleAdmin))
}

func TestRequestIDMiddleware(t *testing.T) {
	r := newRouter(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(requestIDHeader)
	_, err := uuid.Parse(generated)
	assert.NoError(t, err)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-123")
	w = serve(r, req)
	assert.Equal(t, "req-123", w.Header().Get(requestIDHeader))
}

func TestSecurityHeadersAndRecovery(t *testing.T) {
	r := newRouter(RecoveryMiddleware(zap.NewNop()), SecurityHeadersMiddleware())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal_error")
}

func TestIdempotencyMiddleware_NoRedisPassesThrough(t *testing.T) {
	hits := 0
	r := newRouter(IdempotencyMiddleware(nil, zap.NewNop()))
	r.POST("/bookings", func(c *gin.Context) {
		hits++
		c.Status(http.StatusCreated)
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/bookings", nil)
		req.Header.Set(idempotencyHeader, "same-key")
		assert.Equal(t, http.StatusCreated, serve(r, req).Code)
	}
	assert.Equal(t, 2, hits)
}

func TestCacheable_OnlySuccess(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusOK, true},
		{http.StatusCreated, true},
		{http.StatusBadRequest, false},
		{http.StatusForbidden, false},
		{http.StatusNotFound, false},
		{http.StatusConflict, false},
		{http.StatusUnprocessableEntity, false},
		{http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cacheable(tt.status), "status %d", tt.status)
	}
}

func TestIdempotencyMiddleware_Redis(t *testing.T) {
	addr := os.Getenv("BOOKING_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BOOKING_TEST_REDIS_ADDR not set; skipping redis test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	hits := 0
	r := newRouter(IdempotencyMiddleware(client, zap.NewNop()))
	r.POST("/cancel", func(c *gin.Context) {
		hits++
		if hits == 1 {
			c.JSON(http.StatusConflict, gin.H{"code": "stale_state"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"hit": hits})
	})

	key := uuid.NewString()
	defer client.Del(context.Background(), "idempotency:anonymous:/cancel:"+key)
	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/cancel", nil)
		req.Header.Set(idempotencyHeader, key)
		return serve(r, req)
	}

	// the conflict is not remembered, so the retry reaches the handler
	assert.Equal(t, http.StatusConflict, call().Code)
	w := call()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, hits)

	// the success is replayed
	replay := call()
	assert.Equal(t, http.StatusOK, replay.Code)
	assert.JSONEq(t, w.Body.String(), replay.Body.String())
	assert.Equal(t, 2, hits)
}
