package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/qiranapp/qiran/internal/api/handlers"
	"github.com/qiranapp/qiran/internal/api/middleware"
)

type Deps struct {
	Profile   *handlers.ProfileHandler
	Match     *handlers.MatchHandler
	Telemetry *handlers.TelemetryHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth())

	auth.GET("/profile/me", d.Profile.Me)
	auth.PUT("/profile/update", d.Profile.Update)

	auth.POST("/matches/generate", d.Match.Generate)
	auth.POST("/matches/interactions", d.Match.RecordInteraction)

	// Ops-only telemetry
	admin := auth.Group("/admin")
	admin.Use(middleware.RequireRole("admin"))
	admin.GET("/telemetry", d.Telemetry.Snapshot)
}
