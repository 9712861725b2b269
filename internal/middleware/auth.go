package middleware

import (
	"errors"
	"net/http"
	"strings"

	"codeberg.org/cklabs/authserver/accounts/tokens"
	"codeberg.org/cklabs/authserver/accounts/users"
	"github.com/gin-gonic/gin"
)

// validates bearer session tokens and adds the user to the context.
// Besides the Authorization header, the token is accepted as an
// auth_token query parameter for clients that cannot set headers.
func RequireAuth(tokenStore tokens.Store, userStore users.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := bearerKey(c)
		if key == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			c.Abort()
			return
		}

		token, err := tokenStore.FindByKey(c.Request.Context(), key)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		user, err := userStore.FindByID(c.Request.Context(), token.UserID)
		if err != nil {
			if errors.Is(err, users.ErrNotFound) {
				// token survived its user; treat as invalid
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
			}
			c.Abort()
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user", user)

		c.Next()
	}
}

// extracts user_id from context after RequireAuth
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		return "", false
	}

	return userID.(string), true
}

// extracts the authenticated user from context after RequireAuth
func GetUser(c *gin.Context) (*users.User, bool) {
	value, exists := c.Get("user")
	if !exists {
		return nil, false
	}

	user, ok := value.(*users.User)

	return user, ok
}

func bearerKey(c *gin.Context) string {
	header := c.GetHeader("Authorization")

	if header == "" {
		return c.Query("auth_token")
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}

	return parts[1]
}
