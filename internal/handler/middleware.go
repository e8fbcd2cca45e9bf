package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eduportal/backend/internal/model"
	"github.com/eduportal/backend/internal/service"
)

const principalKey = "auth_principal"

// RequireAuth verifies the bearer access token and stores the resolved
// Principal in the request context. Every failure is the same 401; the
// client treats it as the signal to drop local session state.
func RequireAuth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		principal, ok := bearerPrincipal(c, authService)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			c.Abort()
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// RequireRoles allows only callers whose role set intersects the given
// roles. Must run after RequireAuth.
func RequireRoles(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := GetPrincipal(c)
		if principal == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			c.Abort()
			return
		}
		if !principal.HasAnyRole(roles...) {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireVisibility gates a route at the given visibility level.
// Unauthenticated callers pass only PUBLIC; otherwise the caller's
// highest role must be at or above the level.
func RequireVisibility(authService *service.AuthService, level model.Visibility) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		principal, ok := bearerPrincipal(c, authService)
		if !ok {
			if level == model.VisibilityPublic {
				c.Next()
				return
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			c.Abort()
			return
		}

		if !principal.CanView(level) {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			c.Abort()
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

func GetPrincipal(c *gin.Context) *model.Principal {
	if value, ok := c.Get(principalKey); ok {
		if principal, ok := value.(*model.Principal); ok {
			return principal
		}
	}
	return nil
}

func bearerPrincipal(c *gin.Context, authService *service.AuthService) (*model.Principal, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, false
	}
	tokenStr := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if tokenStr == "" {
		return nil, false
	}
	principal, err := authService.Authorize(tokenStr)
	if err != nil {
		return nil, false
	}
	return principal, true
}

func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	originMap := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		originMap[trimmed] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := originMap[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
