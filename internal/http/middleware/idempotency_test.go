package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newIdempotency(t *testing.T) (*Idempotency, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewIdempotency(client, time.Hour, zap.NewNop()), mr
}

func post(h http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/bookings", nil)
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	idem, mr := newIdempotency(t)
	var calls atomic.Int32
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":7}`))
	}))

	first := post(h, "abc")
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(ReplayedHeader))

	second := post(h, "abc")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, `{"id":7}`, second.Body.String())
	assert.Equal(t, "true", second.Header().Get(ReplayedHeader))
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Equal(t, int32(1), calls.Load())

	assert.Equal(t, time.Hour, mr.TTL("idempotency:POST:/api/bookings:abc"))
}

func TestIdempotencyWithoutKeyAlwaysRuns(t *testing.T) {
	idem, _ := newIdempotency(t)
	var calls atomic.Int32
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))

	post(h, "")
	post(h, "")
	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotencyRejectsDuplicateInFlight(t *testing.T) {
	idem, mr := newIdempotency(t)
	require.NoError(t, mr.Set("idempotency:POST:/api/bookings:busy", inFlightMarker))

	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for an in-flight key")
	}))

	rec := post(h, "busy")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"conflict"`)
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	idem, mr := newIdempotency(t)
	var calls atomic.Int32
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	assert.Equal(t, http.StatusInternalServerError, post(h, "retry").Code)
	assert.False(t, mr.Exists("idempotency:POST:/api/bookings:retry"))

	assert.Equal(t, http.StatusCreated, post(h, "retry").Code)
	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotencyKeepsClientErrors(t *testing.T) {
	idem, _ := newIdempotency(t)
	var calls atomic.Int32
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))

	post(h, "bad")
	rec := post(h, "bad")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestIdempotencyFailsOpenWhenRedisIsDown(t *testing.T) {
	idem, mr := newIdempotency(t)
	mr.Close()

	var calls atomic.Int32
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))

	assert.Equal(t, http.StatusCreated, post(h, "k").Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestIdempotencyReleasesKeyWhenHandlerPanics(t *testing.T) {
	idem, mr := newIdempotency(t)
	var calls atomic.Int32
	h := chimw.Recoverer(idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			panic("slot lookup exploded")
		}
		w.WriteHeader(http.StatusCreated)
	})))

	first := post(h, "boom")
	require.Equal(t, http.StatusInternalServerError, first.Code)
	assert.False(t, mr.Exists("idempotency:POST:/api/bookings:boom"))

	second := post(h, "boom")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, int32(2), calls.Load())
}
