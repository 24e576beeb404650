package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"funnel-crm/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	SessionCookie = "session"
	accountKey    = "auth.account"
)

// AccountLoader resolves the account behind a verified session.
type AccountLoader interface {
	ByID(ctx context.Context, id uint) (*models.Account, error)
}

type Middleware struct {
	jwt      *JWTService
	accounts AccountLoader
}

func NewMiddleware(jwt *JWTService, accounts AccountLoader) *Middleware {
	return &Middleware{jwt: jwt, accounts: accounts}
}

// RequireSession rejects requests without a valid session token and attaches
// the account to the context otherwise.
func (m *Middleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.attach(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// OptionalSession attaches the account when a valid token is present and lets
// anonymous requests through.
func (m *Middleware) OptionalSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.attach(c)
		c.Next()
	}
}

func (m *Middleware) attach(c *gin.Context) bool {
	token := SessionToken(c)
	if token == "" {
		return false
	}
	claims, err := m.jwt.VerifySession(token)
	if err != nil {
		return false
	}
	acc, err := m.accounts.ByID(c.Request.Context(), claims.AccountID)
	if err != nil {
		return false
	}
	c.Set(accountKey, acc)
	return true
}

// RequireAdmin must run after RequireSession.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		acc, ok := CurrentAccount(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !acc.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}

// CurrentAccount returns the account attached by the session middleware.
func CurrentAccount(c *gin.Context) (*models.Account, bool) {
	v, ok := c.Get(accountKey)
	if !ok {
		return nil, false
	}
	acc, ok := v.(*models.Account)
	return acc, ok
}

// SessionToken reads the session cookie, falling back to a Bearer header.
func SessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie
	}
	return bearer(c.GetHeader("Authorization"))
}

// APIKey picks the webhook API key: body value first, then the userApiKey
// query parameter, then the Authorization header with or without "Bearer ".
func APIKey(c *gin.Context, fromBody string) string {
	if k := strings.TrimSpace(fromBody); k != "" {
		return k
	}
	if k := strings.TrimSpace(c.Query("userApiKey")); k != "" {
		return k
	}
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if t := bearer(header); t != "" {
		return t
	}
	return header
}

func SetSessionCookie(c *gin.Context, token string, ttl time.Duration, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, int(ttl/time.Second), "/", "", secure, true)
}

func ClearSessionCookie(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", secure, true)
}

func bearer(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
