package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"moff.io/frame-bridge/pkg/log/meta"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveredHTTPLog(), TimeoutHTTP(time.Second), RateLimitHTTP(nil, 10))
	return r
}

func TestRecoveredHTTPLogPropagatesRequestID(t *testing.T) {
	r := newTestRouter()
	r.GET("/id", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, map[string]string{"id": meta.RequestID(ctx.Request.Context())})
	})

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set("X-Request-Id", "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"abc"}`, w.Body.String())
	assert.Equal(t, "abc", w.Header().Get("x-request-id"))
}

func TestRecoveredHTTPLogGeneratesRequestID(t *testing.T) {
	r := newTestRouter()
	r.GET("/id", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, meta.RequestID(ctx.Request.Context()))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/id", nil))
	assert.NotEqual(t, "-", w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get("x-request-id"))
}

func TestRecoveredHTTPLogRecoversPanic(t *testing.T) {
	r := newTestRouter()
	r.GET("/panic", func(ctx *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestTimeoutHTTPSetsDeadline(t *testing.T) {
	r := newTestRouter()
	r.GET("/deadline", func(ctx *gin.Context) {
		_, ok := ctx.Request.Context().Deadline()
		ctx.JSON(http.StatusOK, map[string]bool{"deadline": ok})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/deadline", nil))
	assert.JSONEq(t, `{"deadline":true}`, w.Body.String())
}

func TestRequestHeaderFilter(t *testing.T) {
	got := requestHeaderFilter(map[string][]string{
		"Authorization": {"secret"},
		"Accept":        {"a", "b"},
	})
	assert.Equal(t, map[string]string{"accept": "a;b"}, got)
}
