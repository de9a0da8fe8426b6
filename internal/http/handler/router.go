package handler

import (
	"github.com/gin-gonic/gin"
)

// NewRouter wires the health check, the status API and the decision stream.
// hub may be nil.
func NewRouter(status *StatusHandler, hub *StreamHub) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", HealthCheckHandler)
	status.RegisterRoutes(r)
	if hub != nil {
		r.GET("/ws", hub.ServeWS)
	}
	return r
}
