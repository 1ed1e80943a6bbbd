package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"karta/internal/app/services/auth"
	domainauth "karta/internal/domain/auth"
)

const principalContextKey = "karta.principal"

type principal struct {
	ID        string
	Email     string
	Name      string
	Token     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AuthMiddleware resolves the bearer token into a principal. Requests
// without a valid token pass through anonymously; each handler decides
// whether it needs one.
type AuthMiddleware struct {
	Service *auth.Service
	Logger  *slog.Logger
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	if p, ok := m.resolve(c); ok {
		c.Set(principalContextKey, p)
	}
	c.Next()
}

func (m AuthMiddleware) resolve(c *gin.Context) (principal, bool) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" || m.Service == nil {
		return principal{}, false
	}
	resolved, err := m.Service.ResolveToken(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, domainauth.ErrSessionNotFound) && m.Logger != nil {
			m.Logger.Debug("token validation failed", "error", err)
		}
		return principal{}, false
	}
	account := resolved.User
	return principal{
		ID:        string(account.ID),
		Email:     account.Email,
		Name:      account.Name,
		Token:     token,
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	}, true
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

func requirePrincipal(c *gin.Context) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
	}
	return p, ok
}

func extractBearerToken(header string) string {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
