package middleware_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"smile-preview-backend/internal/middleware"
)

func visitorRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.VisitorID(false))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, middleware.GetVisitorID(c))
	})
	return router
}

func TestVisitorID_IssuesCookie(t *testing.T) {
	router := visitorRouter()

	req, _ := http.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.VisitorCookie, cookies[0].Name)
	assert.Equal(t, cookies[0].Value, w.Body.String())
	assert.True(t, cookies[0].HttpOnly)
}

func TestVisitorID_ReusesCookie(t *testing.T) {
	router := visitorRouter()
	id := "7a0f3a52-7c1e-4d3f-9a77-0d7f7e2f1c11"

	req, _ := http.NewRequest("GET", "/test", nil)
	req.AddCookie(&http.Cookie{Name: middleware.VisitorCookie, Value: id})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, id, w.Body.String())
	assert.Empty(t, w.Result().Cookies())
}

func TestVisitorID_ReplacesGarbage(t *testing.T) {
	router := visitorRouter()

	req, _ := http.NewRequest("GET", "/test", nil)
	req.AddCookie(&http.Cookie{Name: middleware.VisitorCookie, Value: "not-a-uuid"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.NotEqual(t, "not-a-uuid", w.Body.String())
	assert.Len(t, w.Result().Cookies(), 1)
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	router := gin.New()
	router.Use(middleware.RequestID(zerolog.New(&buf)))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(middleware.RequestIDKey))
	})

	req, _ := http.NewRequest("GET", "/test", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(middleware.RequestIDHeader))
	assert.Contains(t, buf.String(), `"request_id":"abc-123"`)

	req, _ = http.NewRequest("GET", "/test", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}
