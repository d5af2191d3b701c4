package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockkeeper/internal/core/apperror"
	appctx "stockkeeper/internal/core/context"
	"stockkeeper/internal/infrastructure/storage/postgres"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"
const maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

// Gin context keys used to finish an acquired key.
const (
	KeyIdempotencyKey   = "idempotency_key"
	KeyIdempotencyStore = "idempotency_store"
)

// IdempotencyStore records request outcomes keyed by X-Idempotency-Key.
type IdempotencyStore interface {
	AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*postgres.IdempotencyReplay, error)
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
	FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
}

// Idempotency replays the stored response of a repeated POST/PUT/PATCH
// carrying the same key. Requests without the header pass through.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, _ := io.ReadAll(limited)
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)
		requestHash := hex.EncodeToString(hash[:])

		operation := c.Request.Method + " " + c.FullPath()
		userID := appctx.GetUserID(c.Request.Context())

		replay, err := store.AcquireKey(c.Request.Context(), key, userID, operation, requestHash)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				_ = c.Error(appErr)
			} else {
				_ = c.Error(apperror.NewInternal(err).WithDetail("component", "idempotency"))
			}
			c.Abort()
			return
		}

		if replay != nil {
			if replay.StatusCode == http.StatusNoContent {
				c.Status(http.StatusNoContent)
			} else {
				c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			}
			c.Abort()
			return
		}

		c.Set(KeyIdempotencyKey, key)
		c.Set(KeyIdempotencyStore, store)

		c.Next()
	}
}

// idempotencyFrom returns the store and key acquired for this request.
func idempotencyFrom(c *gin.Context) (IdempotencyStore, string, bool) {
	key := c.GetString(KeyIdempotencyKey)
	if key == "" {
		return nil, "", false
	}
	v, ok := c.Get(KeyIdempotencyStore)
	if !ok {
		return nil, "", false
	}
	store, ok := v.(IdempotencyStore)
	if !ok || store == nil {
		return nil, "", false
	}
	return store, key, true
}

// CompleteIdempotency stores a successful response for replay. It is a
// no-op when the request carried no key.
func CompleteIdempotency(c *gin.Context, statusCode int, contentType string, response any) {
	store, key, ok := idempotencyFrom(c)
	if !ok {
		return
	}
	if err := store.CompleteKey(c.Request.Context(), key, statusCode, contentType, response); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypePrivate)
	}
}

func failIdempotency(c *gin.Context, statusCode int, body any) {
	store, key, ok := idempotencyFrom(c)
	if !ok {
		return
	}
	_ = store.FailKey(c.Request.Context(), key, statusCode, "application/json", body)
}
