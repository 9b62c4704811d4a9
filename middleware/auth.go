package middleware

import (
	"net/http"
	"strings"

	sandboxRepo "flexify/database/repository/sandbox"
	"flexify/models"
	"flexify/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys set by JWTAuthMiddleware.
const (
	AccountIDKey = "accountID"
	RoleKey      = "role"
	TokenKey     = "token"
)

// BearerToken returns the bearer token of the request, or "".
func BearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

// JWTAuthMiddleware admits requests carrying a valid, unrevoked access token
// for an existing account.
func JWTAuthMiddleware(secret []byte, repo sandboxRepo.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := requestLogger(c)

		tokenString := BearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}

		claims, err := utils.ValidateToken(secret, tokenString)
		if err != nil {
			logger.Debug("Rejected token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		if kind, _ := claims["typ"].(string); kind != utils.AccessTokenKind {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token type"})
			return
		}
		if repo.IsRevoked(utils.HashToken(tokenString)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token has been revoked"})
			return
		}

		accountID, _ := claims["sub"].(string)
		account, err := repo.GetAccount(accountID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Account not found"})
			return
		}
		if account.Blocked {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Account is blocked"})
			return
		}

		c.Set(AccountIDKey, account.ID)
		c.Set(RoleKey, account.Role)
		c.Set(TokenKey, tokenString)
		c.Next()
	}
}

// RequireRole admits only accounts acting in one of roles. It must run after
// JWTAuthMiddleware.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get(RoleKey)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Not allowed for this account"})
	}
}
