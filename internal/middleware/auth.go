package middleware

import (
	"net/http"
	"time"

	"github.com/johanesalxd/data-clean-room-demo/internal/config"
	"github.com/johanesalxd/data-clean-room-demo/internal/response"

	"github.com/gin-gonic/gin"
)

// APIKeyMiddleware guards the pipeline and exchange endpoints with the
// configured admin API key
func APIKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")

		// If not passed via header, try to get from query parameters
		if apiKey == "" {
			apiKey = c.Query("api_key")
		}

		if config.AppConfig.APIKey == "" {
			c.JSON(http.StatusServiceUnavailable, response.Error("API key is not configured on the server"))
			c.Abort()
			return
		}

		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, response.Error("Missing api_key"))
			c.Abort()
			return
		}

		if apiKey != config.AppConfig.APIKey {
			c.JSON(http.StatusUnauthorized, response.Error("Invalid api_key"))
			c.Abort()
			return
		}

		c.Set("request_time", time.Now())
		c.Next()
	}
}
