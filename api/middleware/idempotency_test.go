package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/streetmed-backend/pkg/errors"
)

type fakeStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

const lotteryPattern = "/api/v1/admin/rounds/{roundId}/lottery"

func lotteryRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/rounds/r-1/lottery", strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{lotteryPattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func errorKind(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Status string `json:"status"`
		Kind   string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	require.Equal(t, "error", payload.Status)
	return payload.Kind
}

func TestIdempotencyKeyOptionalForOrderIntake(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil, OptionalKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"items":[]}`)))
		require.Equal(t, http.StatusCreated, resp.Code)
	}
	assert.Equal(t, 2, calls, "requests without a key are never replayed")
	assert.Empty(t, store.data)
}

func TestIdempotencyRequiredKeyMissing(t *testing.T) {
	called := false
	handler := Idempotency(newFakeStore(), nil, RequiredKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, lotteryRequest("", `{}`))
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.False(t, called)

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, lotteryRequest(strings.Repeat("k", maxKeyLen+1), `{}`))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil, RequiredKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"confirmed":3}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, lotteryRequest("draw-1", `{}`))
	require.Equal(t, http.StatusOK, first.Code)
	assert.Empty(t, first.Header().Get(replayedHeader))

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, lotteryRequest("draw-1", `{}`))
	require.Equal(t, http.StatusOK, replay.Code)
	assert.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	assert.Equal(t, "true", replay.Header().Get(replayedHeader))
	assert.Equal(t, `{"confirmed":3}`, strings.TrimSpace(replay.Body.String()))
	assert.Equal(t, 1, calls)

	for key, ttl := range store.ttls {
		assert.Equal(t, RequiredKey.TTL, ttl, key)
	}
}

func TestIdempotencyDetectsBodyChange(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, nil, RequiredKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), lotteryRequest("xyz", `{"seed":1}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, lotteryRequest("xyz", `{"seed":2}`))

	require.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorKind(t, resp))
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	release := make(chan struct{})
	started := make(chan struct{})
	calls := 0
	handler := Idempotency(store, nil, RequiredKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		close(started)
		<-release
		w.WriteHeader(http.StatusOK)
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(httptest.NewRecorder(), lotteryRequest("dup", `{}`))
	}()
	<-started

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, lotteryRequest("dup", `{}`))
	close(release)
	<-done

	require.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), errorKind(t, resp))
	assert.Equal(t, 1, calls)
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	fail := true
	calls := 0
	handler := Idempotency(store, nil, RequiredKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if fail {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, lotteryRequest("retry-me", `{}`))
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Empty(t, store.data)

	fail = false
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, lotteryRequest("retry-me", `{}`))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotencyScopesKeysPerCaller(t *testing.T) {
	orders := httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)
	guest := callerScope(orders)
	member := callerScope(orders.WithContext(WithActor(orders.Context(), 9, enums.ActorRoleClient)))
	assert.NotEqual(t, guest, member)
	assert.Contains(t, guest, "guest")
}

func TestIdempotencyWithoutStorePassesThrough(t *testing.T) {
	calls := 0
	handler := Idempotency(nil, nil, RequiredKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	handler.ServeHTTP(httptest.NewRecorder(), lotteryRequest("", `{}`))
	assert.Equal(t, 1, calls)
}
