package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"whatsapp-reminders/handlers"
)

// newRouter crea il router gin con le API, il WebSocket e le route di servizio
func newRouter(deps handlers.APIDeps, debug bool, logger zerolog.Logger) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	handlers.SetupRoutes(router, deps.Hub)
	handlers.SetupAPIRoutes(router, deps)
	return router
}

// requestLogger registra ogni richiesta HTTP sul logger dell'applicazione
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	logger = logger.With().Str("component", "http").Logger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		evt := logger.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			evt = logger.Error()
		}
		evt.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Richiesta HTTP")
	}
}

// runHTTPServer serve le richieste finché ctx non viene cancellato
func runHTTPServer(ctx context.Context, router http.Handler, port int, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("🌐 Server HTTP in ascolto")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("errore del server HTTP: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Arresto del server HTTP")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
