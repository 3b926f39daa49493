package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/qiranapp/qiran/internal/budget"
	"github.com/qiranapp/qiran/internal/cache"
	"github.com/qiranapp/qiran/internal/resilience"
)

// TelemetryHandler exposes cache, budget and breaker state to ops users.
type TelemetryHandler struct {
	cache    *cache.VectorCache
	guard    *budget.Guard
	breakers *resilience.BreakerSet
}

func NewTelemetryHandler(c *cache.VectorCache, g *budget.Guard, b *resilience.BreakerSet) *TelemetryHandler {
	return &TelemetryHandler{cache: c, guard: g, breakers: b}
}

func (h *TelemetryHandler) Snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"cache":    h.cache.Stats(),
		"budget":   h.guard.Snapshot(),
		"breakers": h.breakers.Snapshot(),
	})
}
