package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRoutes configura le route di servizio: /healthz risponde sempre,
// /readyz solo quando la sessione WhatsApp è connessa
func SetupRoutes(router *gin.Engine, hub *Hub) {
	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	router.GET("/readyz", func(c *gin.Context) {
		if hub == nil || !hub.Status().Connected {
			c.String(http.StatusServiceUnavailable, "whatsapp non connesso")
			return
		}
		c.String(http.StatusOK, "ok")
	})
}
