package middleware

import (
	"net/http"
	"strings"

	"github.com/aimarket/aimarket-go/internal/domain/identity"
	"github.com/aimarket/aimarket-go/internal/infrastructure/security"
	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// AuthMiddleware validates the bearer token and stores the authenticated
// identity on the request context.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" || token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := security.ValidateJWT(token, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ident := security.IdentityFromClaims(claims)
		if ident == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims"})
			return
		}

		c.Set(identityKey, ident)
		c.Next()
	}
}

// GetIdentity returns the authenticated identity stored by AuthMiddleware.
func GetIdentity(c *gin.Context) (*identity.Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return nil, false
	}
	ident, ok := v.(*identity.Identity)
	return ident, ok
}
