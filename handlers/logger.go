package handlers

import (
	"flexify/middleware"
	"flexify/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// getLogger retrieves the request logger from the Gin context, falling back
// to the bundle logger.
func (hb *HandlerBundle) getLogger(c *gin.Context) *zap.Logger {
	if l, exists := c.Get(middleware.LoggerKey); exists {
		if logger, ok := l.(*zap.Logger); ok {
			return logger
		}
	}
	return hb.Logger
}

// caller returns the authenticated account id and role.
func caller(c *gin.Context) (string, models.Role) {
	id := c.GetString(middleware.AccountIDKey)
	role, _ := c.Get(middleware.RoleKey)
	r, _ := role.(models.Role)
	return id, r
}
