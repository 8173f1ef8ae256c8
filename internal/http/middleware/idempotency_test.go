package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// httptest.NewRequest всегда приходит с 192.0.2.1
const testOwner = "192.0.2.1"

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func idempotentRouter(client *redis.Client, calls *int, status int) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User"); id != "" {
			c.Set(ContextUserIDKey, id)
		}
		c.Next()
	})
	r.POST("/deals", Idempotency(client), func(c *gin.Context) {
		*calls++
		c.JSON(status, gin.H{"call": *calls})
	})
	return r
}

func postDeal(r http.Handler, key, body, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/deals", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	mr, client := newRedis(t)
	calls := 0
	r := idempotentRouter(client, &calls, http.StatusCreated)

	first := postDeal(r, "k1", `{"skill_id":"a"}`, "")
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(ReplayHeader))

	second := postDeal(r, "k1", `{"skill_id":"a"}`, "")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get(ReplayHeader))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	assert.True(t, mr.Exists(idempotencyPrefix+testOwner+":/deals:k1"))
	assert.False(t, mr.Exists(idempotencyPrefix+testOwner+":/deals:k1:lock"), "блокировка снимается после ответа")
}

func TestIdempotency_DifferentBodyConflicts(t *testing.T) {
	_, client := newRedis(t)
	calls := 0
	r := idempotentRouter(client, &calls, http.StatusCreated)

	require.Equal(t, http.StatusCreated, postDeal(r, "k1", `{"skill_id":"a"}`, "").Code)

	w := postDeal(r, "k1", `{"skill_id":"b"}`, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "IDEMPOTENCY_CONFLICT", decode(t, w).Error.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotency_RequestInProgress(t *testing.T) {
	mr, client := newRedis(t)
	calls := 0
	r := idempotentRouter(client, &calls, http.StatusCreated)

	require.NoError(t, mr.Set(idempotencyPrefix+testOwner+":/deals:k1:lock", "1"))

	w := postDeal(r, "k1", `{}`, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "REQUEST_IN_PROGRESS", decode(t, w).Error.Code)
	assert.Zero(t, calls)
}

func TestIdempotency_FailedResponseIsNotStored(t *testing.T) {
	mr, client := newRedis(t)
	calls := 0
	r := idempotentRouter(client, &calls, http.StatusBadRequest)

	postDeal(r, "k1", `{}`, "")
	postDeal(r, "k1", `{}`, "")
	assert.Equal(t, 2, calls)
	assert.False(t, mr.Exists(idempotencyPrefix+testOwner+":/deals:k1"))
}

func TestIdempotency_KeyIsScopedToUser(t *testing.T) {
	_, client := newRedis(t)
	calls := 0
	r := idempotentRouter(client, &calls, http.StatusCreated)

	postDeal(r, "k1", `{}`, "user-a")
	w := postDeal(r, "k1", `{}`, "user-b")
	assert.Empty(t, w.Header().Get(ReplayHeader))
	assert.Equal(t, 2, calls)
}

// storeBeforeLock кладёт готовый ответ в Redis прямо перед захватом блокировки,
// как если бы параллельный запрос успел завершиться.
type storeBeforeLock struct {
	mr      *miniredis.Miniredis
	lockKey string
	key     string
	value   string
}

func (h storeBeforeLock) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h storeBeforeLock) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		args := cmd.Args()
		if cmd.Name() == "set" && len(args) > 1 && args[1] == h.lockKey {
			_ = h.mr.Set(h.key, h.value)
		}
		return next(ctx, cmd)
	}
}

func (h storeBeforeLock) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestIdempotency_RechecksAfterLock(t *testing.T) {
	mr, client := newRedis(t)
	key := idempotencyPrefix + testOwner + ":/deals:k1"

	stored, err := json.Marshal(cachedResponse{
		StatusCode:  http.StatusCreated,
		ContentType: "application/json; charset=utf-8",
		Body:        []byte(`{"call":1}`),
		BodyHash:    hashBody([]byte(`{}`)),
	})
	require.NoError(t, err)
	client.AddHook(storeBeforeLock{mr: mr, lockKey: key + ":lock", key: key, value: string(stored)})

	calls := 0
	r := idempotentRouter(client, &calls, http.StatusCreated)

	w := postDeal(r, "k1", `{}`, "")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "true", w.Header().Get(ReplayHeader))
	assert.JSONEq(t, `{"call":1}`, w.Body.String())
	assert.Zero(t, calls, "обработчик не вызывается повторно")
}
