// internal/middleware/auth.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/avpratap/riqueza-cart-sync/internal/identity"
)

// AdoptBearerToken hands any incoming bearer token to the identity resolver
// so backend calls triggered by this request use the authenticated endpoint
// family. Requests without a token proceed in guest mode; token verification
// is the backend's job, not ours.
func AdoptBearerToken(resolver *identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" && parts[1] != "" {
				resolver.SetAuthToken(parts[1])
			}
		}
		c.Next()
	}
}
