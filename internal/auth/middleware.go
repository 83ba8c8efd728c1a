package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxUserID = "uniflow_user_id"

// RequireUser returns a Gin middleware that enforces a valid Bearer access token.
//
// On success it injects the token's user ID into the context. Both missing and
// invalid/expired tokens abort with 401; the two cases carry distinct messages
// so clients can tell "log in" apart from "session expired".
func RequireUser(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      "AuthenticationError",
				"message":    "No token provided",
				"statusCode": http.StatusUnauthorized,
			})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		userID, err := tokens.VerifyAccess(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      "AuthenticationError",
				"message":    "Invalid or expired token",
				"statusCode": http.StatusUnauthorized,
			})
			return
		}

		c.Set(ctxUserID, userID)
		c.Next()
	}
}

// UserIDFromCtx retrieves the user ID injected by RequireUser.
// Returns "" if the request was not authenticated.
func UserIDFromCtx(c *gin.Context) string {
	v, _ := c.Get(ctxUserID)
	id, _ := v.(string)
	return id
}
