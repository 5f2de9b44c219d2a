package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/kalaharena/backend/internal/api/handlers"
	"github.com/kalaharena/backend/internal/config"
	"github.com/kalaharena/backend/internal/server"
	"github.com/kalaharena/backend/internal/store"
	"github.com/kalaharena/backend/internal/ws"
)

// SetupRoutes configures the status API routes
func SetupRoutes(router *gin.Engine, db *sqlx.DB, st *store.Store, arb *server.Server, cfg *config.Config) {
	// Permissive CORS: the API is read-only apart from the admin login
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// WebSocket bridge for browser clients
	router.GET("/ws", ws.BridgeHandler(cfg))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)
		v1.GET("/scoreboard/:kind", handlers.GetScoreboard(st))
		v1.GET("/players/:username/:kind", handlers.GetPlayerScore(st))

		adm := v1.Group("/admin")
		{
			adm.POST("/login", handlers.AdminLogin(db, cfg))
			adm.GET("/overview", handlers.AdminAuth(cfg), handlers.AdminOverview(db, arb))
		}
	}
}
