package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour
)

type cachedResponse struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
}

type capturingWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response for a repeated Idempotency-Key on POST.
// Keys are scoped per caller so two users cannot collide. Redis failures degrade to normal handling.
func IdempotencyMiddleware(client *redis.Client, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		caller := "anonymous"
		if id, ok := GetUserID(c); ok {
			caller = id.String()
		} else if authz := c.GetHeader("Authorization"); authz != "" {
			// Runs ahead of token verification; scope by the credential instead.
			sum := sha256.Sum256([]byte(authz))
			caller = hex.EncodeToString(sum[:8])
		}
		cacheKey := "idempotency:" + caller + ":" + c.Request.URL.Path + ":" + key
		ctx := c.Request.Context()

		cached, err := loadResponse(ctx, client, cacheKey)
		switch {
		case err == nil:
			c.Data(cached.StatusCode, "application/json; charset=utf-8", cached.Body)
			c.Abort()
			return
		case !errors.Is(err, redis.Nil):
			log.Warn("idempotency lookup failed", zap.String("key", cacheKey), zap.Error(err))
			c.Next()
			return
		}

		w := &capturingWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = w
		c.Next()

		status := w.Status()
		if cacheable(status) {
			if err := storeResponse(ctx, client, cacheKey, cachedResponse{StatusCode: status, Body: w.body.Bytes()}); err != nil {
				log.Warn("idempotency store failed", zap.String("key", cacheKey), zap.Error(err))
			}
		}
	}
}

// cacheable reports whether a response may be replayed for the same key. Rejections are not
// stored, so a retry after a stale-state conflict or a policy refusal is evaluated afresh.
func cacheable(status int) bool {
	return status >= 200 && status < 300
}

func loadResponse(ctx context.Context, client *redis.Client, key string) (*cachedResponse, error) {
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var cached cachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return &cached, nil
}

func storeResponse(ctx context.Context, client *redis.Client, key string, resp cachedResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, data, idempotencyTTL).Err()
}
