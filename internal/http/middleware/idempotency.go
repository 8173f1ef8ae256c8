package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/umeyka/umeyka-backend/internal/http/response"
	"github.com/umeyka/umeyka-backend/internal/logger"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayHeader      = "Idempotent-Replay"
	idempotencyTTL    = 24 * time.Hour
	idempotencyLock   = 30 * time.Second
	idempotencyPrefix = "idempotency:"
)

type cachedResponse struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
	BodyHash    string `json:"body_hash"`
}

// bodyRecorder копирует тело ответа для сохранения.
type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency повторяет сохранённый ответ на запрос с тем же Idempotency-Key.
// Ключ привязан к пользователю. Без Redis или без заголовка запрос проходит как обычно.
func Idempotency(client *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if client == nil || key == "" || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.BadRequest(c, "не удалось прочитать тело запроса")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		owner := c.ClientIP()
		if userID, ok := c.Get(ContextUserIDKey); ok {
			owner = fmt.Sprint(userID)
		}
		cacheKey := idempotencyPrefix + owner + ":" + c.FullPath() + ":" + key
		bodyHash := hashBody(body)
		ctx := c.Request.Context()

		if cached, err := loadCached(ctx, client, cacheKey); err == nil {
			replay(c, cached, bodyHash)
			return
		}

		lockKey := cacheKey + ":lock"
		locked, err := client.SetNX(ctx, lockKey, "1", idempotencyLock).Result()
		if err != nil {
			logger.WithComponent("idempotency").WithError(err).Warn("redis недоступен")
			c.Next()
			return
		}
		if !locked {
			response.Abort(c, http.StatusConflict, "REQUEST_IN_PROGRESS", "запрос с этим ключом уже обрабатывается")
			return
		}
		defer client.Del(context.WithoutCancel(ctx), lockKey)

		// предыдущий запрос мог сохранить ответ и снять блокировку между Get и SetNX
		if cached, err := loadCached(ctx, client, cacheKey); err == nil {
			replay(c, cached, bodyHash)
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if status < 200 || status >= 300 {
			return
		}
		data, err := json.Marshal(cachedResponse{
			StatusCode:  status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
			BodyHash:    bodyHash,
		})
		if err != nil {
			return
		}
		if err := client.Set(context.WithoutCancel(ctx), cacheKey, data, idempotencyTTL).Err(); err != nil {
			logger.WithComponent("idempotency").WithError(err).Warn("не удалось сохранить ответ")
		}
	}
}

func replay(c *gin.Context, cached *cachedResponse, bodyHash string) {
	if cached.BodyHash != bodyHash {
		response.Abort(c, http.StatusConflict, "IDEMPOTENCY_CONFLICT", "ключ идемпотентности уже использован с другим запросом")
		return
	}
	c.Header(ReplayHeader, "true")
	c.Data(cached.StatusCode, cached.ContentType, cached.Body)
	c.Abort()
}

func loadCached(ctx context.Context, client *redis.Client, key string) (*cachedResponse, error) {
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

func hashBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
