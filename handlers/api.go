package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"whatsapp-reminders/models"
)

// APIDeps raccoglie le dipendenze delle rotte HTTP
type APIDeps struct {
	Store     ReminderStore
	Parser    DraftParser
	Scheduler *ReminderService
	Hub       *Hub
	Gatherer  prometheus.Gatherer
	Location  *time.Location
	Now       func() time.Time
}

type createReminderRequest struct {
	Owner string `json:"owner" binding:"required"`
	Text  string `json:"text" binding:"required"`
}

type parseRequest struct {
	Text string `json:"text" binding:"required"`
}

// SetupAPIRoutes configura tutte le rotte API
func SetupAPIRoutes(router *gin.Engine, deps APIDeps) {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	// Abilita CORS
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	// Stato della connessione WhatsApp e dell'ultimo ciclo dello scheduler
	router.GET("/api/status", func(c *gin.Context) {
		resp := gin.H{}
		if deps.Hub != nil {
			resp["whatsapp"] = deps.Hub.Status()
			resp["wsClients"] = deps.Hub.ClientCount()
		}
		if deps.Scheduler != nil {
			resp["lastTick"] = deps.Scheduler.LastReport()
		}
		c.JSON(http.StatusOK, resp)
	})

	router.GET("/api/reminders", func(c *gin.Context) {
		owner := strings.TrimSpace(c.Query("owner"))
		if owner == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "parametro owner obbligatorio"})
			return
		}
		reminders, err := deps.Store.ListByOwner(c.Request.Context(), owner)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if reminders == nil {
			reminders = []*models.Reminder{}
		}
		c.JSON(http.StatusOK, reminders)
	})

	// Crea un reminder dal testo libero, come se arrivasse da WhatsApp
	router.POST("/api/reminders", func(c *gin.Context) {
		var req createReminderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		draft, ok := deps.Parser.Parse(req.Text)
		if !ok {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "testo non riconosciuto come reminder"})
			return
		}
		r, err := deps.Store.Create(c.Request.Context(), req.Owner, draft.Materialize(deps.Now().In(deps.Location)))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, r)
	})

	// Prova il parser senza salvare nulla
	router.POST("/api/parse", func(c *gin.Context) {
		var req parseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		draft, ok := deps.Parser.Parse(req.Text)
		c.JSON(http.StatusOK, gin.H{"matched": ok, "draft": draft})
	})

	router.POST("/api/reminders/:id/complete", func(c *gin.Context) {
		r, err := deps.Store.MarkCompleted(c.Request.Context(), c.Param("id"))
		switch {
		case errors.Is(err, models.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		case r == nil:
			c.JSON(http.StatusNotFound, gin.H{"error": "reminder non trovato"})
		default:
			c.JSON(http.StatusOK, r)
		}
	})

	router.DELETE("/api/reminders/:id", func(c *gin.Context) {
		deleted, err := deps.Store.Delete(c.Request.Context(), c.Param("id"))
		switch {
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		case !deleted:
			c.JSON(http.StatusNotFound, gin.H{"error": "reminder non trovato"})
		default:
			c.Status(http.StatusNoContent)
		}
	})

	if deps.Hub != nil {
		router.GET("/ws", gin.WrapF(deps.Hub.HandleWebSocket))
	}
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
}
