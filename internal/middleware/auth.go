package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"bookstore-be/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	claimsKey = "jwtClaims"
)

// Claims is the JWT payload issued by the identity provider.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// NewToken signs an HS256 token for userID.
func NewToken(secret []byte, userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func ParseToken(secret []byte, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user")
	}
	return claims, nil
}

// ExtractAccessToken reads the access_token cookie, falling back to the
// Authorization bearer header.
func ExtractAccessToken(r *http.Request) string {
	if cookie, err := r.Cookie("access_token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// Auth rejects requests without a valid token with 401.
func Auth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := ExtractAccessToken(c.Request)
		if tokenStr == "" {
			abort(c, http.StatusUnauthorized, "Unauthorized - No token provided")
			return
		}

		claims, err := ParseToken(secret, tokenStr)
		if err != nil {
			logger.FromCtx(c.Request.Context()).Debug("token rejected")
			abort(c, http.StatusUnauthorized, "Unauthorized - Invalid token")
			return
		}

		c.Set(claimsKey, claims)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), claims.UserID))
		c.Next()
	}
}

// RequireAdmin must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := CurrentUser(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "Unauthorized - Authentication required")
			return
		}
		if !claims.IsAdmin() {
			abort(c, http.StatusForbidden, "Forbidden - Admin access required")
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

// IsOwner reports whether the authenticated caller is userID.
func IsOwner(c *gin.Context, userID string) bool {
	claims, ok := CurrentUser(c)
	return ok && userID != "" && claims.UserID == userID
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}
