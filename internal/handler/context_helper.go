package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/lindenworks/studio-ops-api/internal/middleware"
	"github.com/lindenworks/studio-ops-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// requestMeta captures the caller network details recorded in audit logs
// and stamped on refresh token sessions.
func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}
