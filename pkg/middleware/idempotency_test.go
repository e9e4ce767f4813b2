package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeRedis is an in-memory stand-in for the Redis operations the
// idempotency middleware uses
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.data[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(int64(n), nil)
}

func idempotentRouter(r RedisClient, calls *int) *gin.Engine {
	router := gin.New()
	router.Use(Idempotency(DefaultIdempotencyConfig(r)))
	router.POST("/pay", func(c *gin.Context) {
		*calls++
		c.JSON(http.StatusOK, gin.H{"paid": true, "call": *calls})
	})
	return router
}

func post(router *gin.Engine, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/pay", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIdempotencyMissingKey(t *testing.T) {
	calls := 0
	router := idempotentRouter(newFakeRedis(), &calls)

	w := post(router, "", `{"a":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, calls)
}

func TestIdempotencyReplay(t *testing.T) {
	calls := 0
	router := idempotentRouter(newFakeRedis(), &calls)

	first := post(router, "key-1", `{"a":1}`)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, 1, calls)

	second := post(router, "key-1", `{"a":1}`)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 1, calls, "replay must not reinvoke the handler")
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestIdempotencyKeyReuse(t *testing.T) {
	calls := 0
	router := idempotentRouter(newFakeRedis(), &calls)

	first := post(router, "key-1", `{"a":1}`)
	assert.Equal(t, http.StatusOK, first.Code)

	reused := post(router, "key-1", `{"a":2}`)
	assert.Equal(t, http.StatusUnprocessableEntity, reused.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotencyInProgress(t *testing.T) {
	r := newFakeRedis()
	calls := 0
	router := idempotentRouter(r, &calls)

	// seed an in-flight record with the hash the request will produce
	seedReq := httptest.NewRequest(http.MethodPost, "/pay", bytes.NewBufferString(`{"a":1}`))
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = seedReq
	record := &IdempotencyRecord{
		Key:         "key-1",
		Status:      StatusProcessing,
		RequestHash: hashRequest(c, []byte(`{"a":1}`)),
		CreatedAt:   time.Now(),
	}
	data, err := json.Marshal(record)
	require.NoError(t, err)
	r.data[IdempotencyKeyPrefix+"key-1"] = string(data)

	w := post(router, "key-1", `{"a":1}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 0, calls)
}

func TestIdempotencyFailsOpen(t *testing.T) {
	r := newFakeRedis()
	r.err = errors.New("connection refused")
	calls := 0
	router := idempotentRouter(r, &calls)

	w := post(router, "key-1", `{"a":1}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotencySkipPaths(t *testing.T) {
	calls := 0
	router := gin.New()
	cfg := DefaultIdempotencyConfig(newFakeRedis())
	cfg.SkipPaths = []string{"/pay"}
	router.Use(Idempotency(cfg))
	router.POST("/pay", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"paid": true})
	})

	w := post(router, "", `{"a":1}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, calls)
}
