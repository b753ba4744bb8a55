package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit(t *testing.T) {
	originalLog := log
	defer func() { log = originalLog }()

	t.Run("Production", func(t *testing.T) {
		Init("production")
		assert.NotNil(t, log)
	})

	t.Run("Development", func(t *testing.T) {
		Init("development")
		assert.NotNil(t, log)
	})

	t.Run("Test", func(t *testing.T) {
		Init("test")
		assert.NotNil(t, log)
	})
}

func TestL(t *testing.T) {
	originalLog := log
	defer func() { log = originalLog }()

	log = nil
	os.Setenv("APP_ENV", "test")

	l := L()
	assert.NotNil(t, l)
	assert.NotNil(t, log)
}

func TestReplace(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	restore := Replace(zap.New(core))

	L().Info("captured")
	restore()

	assert.Equal(t, 1, observed.Len())
}

func TestContextFunctions(t *testing.T) {
	ctx := context.Background()
	reqID := "test-request-id-123"

	t.Run("WithRequestID", func(t *testing.T) {
		newCtx := WithRequestID(ctx, reqID)
		assert.Equal(t, reqID, newCtx.Value(requestIDKey))
	})

	t.Run("RequestIDFrom", func(t *testing.T) {
		assert.Equal(t, reqID, RequestIDFrom(WithRequestID(ctx, reqID)))
		assert.Equal(t, "", RequestIDFrom(ctx))
	})
}

func TestFromCtx(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	defer Replace(zap.New(core))()

	t.Run("WithRequestAndUserID", func(t *testing.T) {
		ctx := WithUserID(WithRequestID(context.Background(), "req-abc-123"), "user-1")

		FromCtx(ctx).Info("test message with id")

		logs := observed.TakeAll()
		assert.Len(t, logs, 1)
		fields := logs[0].ContextMap()
		assert.Equal(t, "req-abc-123", fields["request_id"])
		assert.Equal(t, "user-1", fields["user_id"])
	})

	t.Run("WithoutRequestID", func(t *testing.T) {
		FromCtx(context.Background()).Info("test message without id")

		logs := observed.TakeAll()
		assert.Len(t, logs, 1)
		_, ok := logs[0].ContextMap()["request_id"]
		assert.False(t, ok)
	})
}

func TestSync(t *testing.T) {
	assert.NotPanics(t, func() {
		Sync()
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/test", func(c *gin.Context) {
		assert.NotEmpty(t, RequestIDFrom(c.Request.Context()))
		c.Status(http.StatusOK)
	})

	t.Run("Generates ID when missing", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	})

	t.Run("Preserves existing ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, "test-id-123")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, "test-id-123", w.Header().Get(RequestIDHeader))
	})
}

func TestLoggingMiddleware(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	defer Replace(zap.New(core))()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(LoggingMiddleware())
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/test", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/boom", nil))

	logs := observed.TakeAll()
	assert.Len(t, logs, 2)
	assert.Equal(t, "incoming request", logs[0].Message)
	assert.Equal(t, "/test", logs[0].ContextMap()["path"])
	assert.Equal(t, zapcore.ErrorLevel, logs[1].Level)
}
