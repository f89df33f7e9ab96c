package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"

	inFlightMarker = "in_flight"
	keyPrefix      = "idempotency:"
)

// Idempotency replays the stored response for a repeated Idempotency-Key.
// The first request claims the key with SET NX; a duplicate arriving while it
// is still running gets 409. Server errors and handler panics release the key
// so the client can retry.
type Idempotency struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewIdempotency(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Idempotency {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Idempotency{client: client, ttl: ttl, logger: logger}
}

type storedResponse struct {
	ID          string `json:"id"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (rec *recorder) WriteHeader(status int) {
	if rec.status == 0 {
		rec.status = status
	}
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *recorder) Write(p []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	rec.body.Write(p)
	return rec.ResponseWriter.Write(p)
}

func (i *Idempotency) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(IdempotencyHeader)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		redisKey := keyPrefix + r.Method + ":" + r.URL.Path + ":" + key
		ctx := r.Context()

		claimed, err := i.client.SetNX(ctx, redisKey, inFlightMarker, i.ttl).Result()
		if err != nil {
			i.logger.Warn("Idempotency store unavailable, serving request without it",
				zap.String("key", key),
				zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		if !claimed {
			i.replay(ctx, w, redisKey, key)
			return
		}

		storeCtx := context.WithoutCancel(ctx)
		defer func() {
			if p := recover(); p != nil {
				i.release(storeCtx, redisKey, key)
				panic(p)
			}
		}()

		rec := &recorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		if rec.status == 0 || rec.status >= http.StatusInternalServerError {
			i.release(storeCtx, redisKey, key)
			return
		}

		payload, err := json.Marshal(storedResponse{
			ID:          uuid.NewString(),
			Status:      rec.status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		})
		if err == nil {
			err = i.client.Set(storeCtx, redisKey, payload, i.ttl).Err()
		}
		if err != nil {
			i.logger.Warn("Failed to store idempotent response", zap.String("key", key), zap.Error(err))
		}
	})
}

func (i *Idempotency) release(ctx context.Context, redisKey, key string) {
	if err := i.client.Del(ctx, redisKey).Err(); err != nil {
		i.logger.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}

func (i *Idempotency) replay(ctx context.Context, w http.ResponseWriter, redisKey, key string) {
	raw, err := i.client.Get(ctx, redisKey).Bytes()
	if err != nil || string(raw) == inFlightMarker {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":   "conflict",
			"message": "a request with this idempotency key is already in progress",
		})
		return
	}

	var stored storedResponse
	if err := json.Unmarshal(raw, &stored); err != nil {
		i.logger.Error("Corrupt idempotency record", zap.String("key", key), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}
