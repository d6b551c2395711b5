package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func ok() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func errorBody(t *testing.T, body []byte) (int, string) {
	t.Helper()
	var (
		code int
		msg  string
	)
	err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			code, err = d.Int()
		case "message":
			msg, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	require.NoError(t, err)
	return code, msg
}

func TestWrap_Order(t *testing.T) {
	var calls []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls = append(calls, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Wrap(ok(), mark("outer"), mark("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner"}, calls)
}

func TestRequestID_Generated(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Len(t, seen, 36)
	assert.Equal(t, seen, w.Header().Get(HeaderRequestID))
}

func TestRequestID_Reused(t *testing.T) {
	h := RequestID()(ok())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "trace-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "trace-123", w.Header().Get(HeaderRequestID))
}

func TestRequestID_RejectsMalformed(t *testing.T) {
	for _, id := range []string{"bad\x00id", strings.Repeat("a", maxRequestIDLength+1)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, id)
		w := httptest.NewRecorder()
		RequestID()(ok()).ServeHTTP(w, req)

		assert.NotEqual(t, id, w.Header().Get(HeaderRequestID))
		assert.Len(t, w.Header().Get(HeaderRequestID), 36)
	}
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := Wrap(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }),
		InjectLogger(zap.New(core)),
		Recovery(),
	)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orders", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	code, msg := errorBody(t, w.Body.Bytes())
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal error", msg)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Panic", logs.All()[0].Message)
}

func TestLogRequests(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	h := Wrap(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			zctx.From(r.Context()).Info("Inside")
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte("{}"))
		}),
		InjectLogger(zap.New(core)),
		RequestID(),
		LogRequests(),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])

	last := entries[1].ContextMap()
	assert.Equal(t, "Request rejected", entries[1].Message)
	assert.Equal(t, int64(http.StatusConflict), last["status"])
	assert.Equal(t, int64(2), last["bytes"])
	assert.Equal(t, "/api/orders", last["path"])
}

func limited(t *testing.T, cfg RateLimitConfig) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return RateLimit(ctx, cfg)(ok())
}

func hit(h http.Handler, remote string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remote
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_UnderAndOverLimit(t *testing.T) {
	h := limited(t, RateLimitConfig{Max: 3, Window: time.Minute})

	for i := range 3 {
		w := hit(h, "10.0.0.1:1000", nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	}

	w := hit(h, "10.0.0.1:1001", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	code, msg := errorBody(t, w.Body.Bytes())
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "rate limit exceeded", msg)
}

func TestRateLimit_KeysAreIndependent(t *testing.T) {
	h := limited(t, RateLimitConfig{Max: 1, Window: time.Minute})

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1", nil).Code)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.2:1", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:2", nil).Code)
}

func TestRateLimit_ForwardedFor(t *testing.T) {
	h := limited(t, RateLimitConfig{Max: 1, Window: time.Minute})
	xff := map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}

	assert.Equal(t, http.StatusOK, hit(h, "192.168.1.1:1", xff).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "192.168.1.2:1", xff).Code)
}

func TestRateLimit_CustomKey(t *testing.T) {
	h := limited(t, RateLimitConfig{
		Max:     1,
		Window:  time.Minute,
		KeyFunc: func(r *http.Request) string { return r.Header.Get("Idempotency-Key") },
	})

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1", map[string]string{"Idempotency-Key": "a"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.2:1", map[string]string{"Idempotency-Key": "a"}).Code)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1", map[string]string{"Idempotency-Key": "b"}).Code)
}

func TestBuckets_Sweep(t *testing.T) {
	b := newBuckets(RateLimitConfig{Max: 1, Window: time.Second})
	now := time.Now()

	b.get("old", now.Add(-time.Minute))
	b.get("fresh", now)
	b.sweep(now, 2*time.Second)

	assert.NotContains(t, b.visitors, "old")
	assert.Contains(t, b.visitors, "fresh")
}
