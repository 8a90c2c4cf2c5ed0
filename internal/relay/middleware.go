package relay

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxClaims = "extperm_relay_claims"

// RequireToken returns a Gin middleware that enforces a valid Bearer relay
// token with the inventory read scope. When the issuer has no secret the
// middleware lets every request through.
func RequireToken(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !tokens.Enabled() {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer token required",
			})
			return
		}

		claims, err := tokens.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token: " + err.Error(),
			})
			return
		}
		if !claims.HasScope(ScopeInventoryRead) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "scope " + ScopeInventoryRead + " required",
			})
			return
		}

		c.Set(ctxClaims, claims)
		c.Next()
	}
}

// ClaimsFromCtx retrieves the claims injected by RequireToken.
// It returns nil in open mode.
func ClaimsFromCtx(c *gin.Context) *Claims {
	v, _ := c.Get(ctxClaims)
	claims, _ := v.(*Claims)
	return claims
}
