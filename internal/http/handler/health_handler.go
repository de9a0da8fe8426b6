package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheckHandler is a simple handler that returns HTTP 200 OK.
// It can be used for health checks by Docker or other services.
func HealthCheckHandler(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}
