package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.GET("/protected", handlers...)
	return r
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestExtractAccessToken(t *testing.T) {
	t.Run("Cookie Preferred", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "access_token", Value: "cookie_token"})
		req.Header.Set("Authorization", "Bearer header_token")

		assert.Equal(t, "cookie_token", ExtractAccessToken(req))
	})

	t.Run("Header Fallback", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer header_token")

		assert.Equal(t, "header_token", ExtractAccessToken(req))
	})

	t.Run("Wrong Scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic user:pass")

		assert.Equal(t, "", ExtractAccessToken(req))
	})
}

func TestAuth(t *testing.T) {
	t.Run("Missing Token", func(t *testing.T) {
		r := newRouter(Auth(testSecret), func(c *gin.Context) { c.Status(http.StatusOK) })

		w := serve(r, httptest.NewRequest(http.MethodGet, "/protected", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), `"success":false`)
	})

	t.Run("Invalid Token", func(t *testing.T) {
		r := newRouter(Auth(testSecret), func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer invalid-token")

		assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
	})

	t.Run("Valid Token", func(t *testing.T) {
		token, err := NewToken(testSecret, "u1", RoleUser, time.Hour)
		require.NoError(t, err)

		r := newRouter(Auth(testSecret), func(c *gin.Context) {
			claims, ok := CurrentUser(c)
			assert.True(t, ok)
			assert.Equal(t, "u1", claims.UserID)
			assert.True(t, IsOwner(c, "u1"))
			assert.False(t, IsOwner(c, "u2"))
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		assert.Equal(t, http.StatusOK, serve(r, req).Code)
	})

	t.Run("Expired Token", func(t *testing.T) {
		token, err := NewToken(testSecret, "u1", RoleUser, -time.Hour)
		require.NoError(t, err)

		r := newRouter(Auth(testSecret), func(c *gin.Context) { c.Status(http.StatusOK) })
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
	})

	t.Run("Wrong Secret", func(t *testing.T) {
		token, err := NewToken([]byte("other"), "u1", RoleUser, time.Hour)
		require.NoError(t, err)

		r := newRouter(Auth(testSecret), func(c *gin.Context) { c.Status(http.StatusOK) })
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
	})

	t.Run("Subject Fallback", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "u9",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		tokenString, err := tok.SignedString(testSecret)
		require.NoError(t, err)

		claims, err := ParseToken(testSecret, tokenString)
		require.NoError(t, err)
		assert.Equal(t, "u9", claims.UserID)
	})
}

func TestRequireAdmin(t *testing.T) {
	r := newRouter(Auth(testSecret), RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })

	userToken, err := NewToken(testSecret, "u1", RoleUser, time.Hour)
	require.NoError(t, err)
	adminToken, err := NewToken(testSecret, "a1", RoleAdmin, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	assert.Equal(t, http.StatusOK, serve(r, req).Code)

	// without Auth in front
	bare := newRouter(RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusUnauthorized, serve(bare, httptest.NewRequest(http.MethodGet, "/protected", nil)).Code)
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit())
	r.POST("/orders/checkout", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/books", func(c *gin.Context) { c.Status(http.StatusOK) })

	newReq := func(method, path string) *http.Request {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("X-Device-ID", "rate-limit-test")
		return req
	}

	limited := false
	for i := 0; i < burstStrict+1; i++ {
		if serve(r, newReq(http.MethodPost, "/orders/checkout")).Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	assert.True(t, limited, "strict tier should throttle after its burst")

	// separate bucket per tier
	assert.Equal(t, http.StatusOK, serve(r, newReq(http.MethodGet, "/books")).Code)
}

func TestBucketStore_Sweep(t *testing.T) {
	now := time.Now()
	store := newBucketStore()
	store.now = func() time.Time { return now }

	first := store.limiter("user:u1:general", limitGeneral, burstGeneral)
	assert.Same(t, first, store.limiter("user:u1:general", limitGeneral, burstGeneral))

	now = now.Add(2 * time.Minute)
	store.limiter("user:u2:general", limitGeneral, burstGeneral)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, store.sweep(idleAfter))
	assert.NotContains(t, store.buckets, "user:u1:general")
	assert.Contains(t, store.buckets, "user:u2:general")
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS("http://localhost:3000"))
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("OPTIONS request", func(t *testing.T) {
		w := serve(r, httptest.NewRequest(http.MethodOptions, "/test", nil))

		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Content-Type")
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("Normal request", func(t *testing.T) {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
