package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umeyka/umeyka-backend/internal/validation"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := validation.RegisterBindings(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req, _ = http.NewRequest(method, path, nil)
	} else {
		req, _ = http.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthHandler_AllHealthy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	ok := PingFunc(func(context.Context) error { return nil })
	handler := NewHealthHandler(map[string]Pinger{"database": ok, "redis": nil})
	r.GET("/health", handler.Health)

	w := serve(r, "GET", "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "OK", resp.Status)
	assert.Equal(t, "Server is running", resp.Message)
	assert.Equal(t, map[string]string{"database": "healthy"}, resp.Checks)
}

func TestHealthHandler_Degraded(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHealthHandler(map[string]Pinger{
		"database": PingFunc(func(context.Context) error { return nil }),
		"redis":    PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	r.GET("/health", handler.Health)

	w := serve(r, "GET", "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "DEGRADED", resp.Status)
	assert.Equal(t, "healthy", resp.Checks["database"])
	assert.Contains(t, resp.Checks["redis"], "connection refused")
}

func TestChatHandler_RequiresUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ChatHandler{}
	r.GET("/chats", handler.List)
	r.POST("/chats/:chatId/messages", handler.Send)

	assert.Equal(t, http.StatusUnauthorized, serve(r, "GET", "/chats", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "POST", "/chats/"+uuid.NewString()+"/messages", `{"content":"hi"}`).Code)
}

func TestChatHandler_InvalidChatID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ChatHandler{}
	r.POST("/chats/:chatId/complete", withUser(uuid.New()), handler.Complete)

	w := serve(r, "POST", "/chats/abc/complete", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "BAD_REQUEST")
}

func TestChatHandler_OpenRequiresMaster(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ChatHandler{}
	r.POST("/chats", withUser(uuid.New()), handler.Open)

	w := serve(r, "POST", "/chats", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestDealHandler_CreateValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &DealHandler{}
	r.POST("/deals", withUser(uuid.New()), handler.Create)

	cases := map[string]string{
		"empty":       `{}`,
		"bad role":    `{"counterparty_id":"` + uuid.NewString() + `","role":"boss","title":"Ремонт","amount":100}`,
		"zero amount": `{"counterparty_id":"` + uuid.NewString() + `","role":"client","title":"Ремонт","amount":0}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := serve(r, "POST", "/deals", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestNotificationHandler_InvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &NotificationHandler{}
	r.PUT("/notifications/:id/read", withUser(uuid.New()), handler.MarkAsRead)
	r.DELETE("/notifications/:id", handler.DeleteNotification)

	assert.Equal(t, http.StatusBadRequest, serve(r, "PUT", "/notifications/x/read", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "DELETE", "/notifications/"+uuid.NewString(), "").Code)
}

func TestMediaHandler_MissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewMediaHandler(nil, 1<<20)
	r.POST("/media/photos", withUser(uuid.New()), handler.UploadPhoto)

	w := serve(r, "POST", "/media/photos", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

type staticParser struct {
	id  uuid.UUID
	err error
}

func (p staticParser) ParseAccess(string) (uuid.UUID, error) { return p.id, p.err }

func TestWSHandler_RejectsMissingOrBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewWSHandler(nil, staticParser{err: errors.New("expired")}, nil)
	r.GET("/ws", handler.Handle)

	assert.Equal(t, http.StatusUnauthorized, serve(r, "GET", "/ws", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "GET", "/ws?token=abc", "").Code)
}

func TestWSHandler_CheckOrigin(t *testing.T) {
	handler := NewWSHandler(nil, staticParser{}, []string{"https://app.example"})

	allowed, _ := http.NewRequest("GET", "/ws", nil)
	allowed.Header.Set("Origin", "https://app.example")
	denied, _ := http.NewRequest("GET", "/ws", nil)
	denied.Header.Set("Origin", "https://evil.example")

	assert.True(t, handler.upgrader.CheckOrigin(allowed))
	assert.False(t, handler.upgrader.CheckOrigin(denied))
}
