package auth

import (
	"strings"

	"mobility-challenge/common"

	"github.com/gin-gonic/gin"
)

const (
	// CookieName is the cookie the session token is stored in.
	CookieName = "token"
	claimsKey  = "auth_claims"
)

// RequireAuth rejects requests without a valid token. The token is read from
// the Authorization header first, then from the session cookie.
func RequireAuth(issuer *Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			raw, _ = c.Cookie(CookieName)
		}
		if raw == "" {
			common.Fail(c, common.Unauthorized("UNAUTHORIZED", "Authentication required"))
			return
		}
		claims, err := issuer.Parse(raw)
		if err != nil {
			common.Fail(c, common.Unauthorized("INVALID_TOKEN", "Invalid or expired token"))
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := CurrentUser(c)
		if claims == nil {
			common.Fail(c, common.Unauthorized("UNAUTHORIZED", "Authentication required"))
			return
		}
		if !claims.IsAdmin() {
			common.Fail(c, common.Forbidden("FORBIDDEN", "Admin access required"))
			return
		}
		c.Next()
	}
}

// CurrentUser returns the claims set by RequireAuth, or nil.
func CurrentUser(c *gin.Context) *Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}

// OwnerOrAdmin allows admins and the user owning userID.
func OwnerOrAdmin(claims *Claims, userID uint) error {
	if claims == nil {
		return common.Unauthorized("UNAUTHORIZED", "Authentication required")
	}
	if claims.IsAdmin() || claims.UserID == userID {
		return nil
	}
	return common.Forbidden("FORBIDDEN", "You can only access your own data")
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
