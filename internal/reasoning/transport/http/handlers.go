// Package http implements the §6.3 REST surface: event polling, the
// development-only synthetic event injector, and health/readiness probes.
package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/config"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/coordinator"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/store"
)

// Handler serves the REST surface over the shared event store and
// coordinator.
type Handler struct {
	logger      *zap.Logger
	cfg         *config.Config
	eventStore  *store.Store
	coordinator *coordinator.Coordinator
}

// NewHandler wires a Handler to its dependencies.
func NewHandler(logger *zap.Logger, cfg *config.Config, eventStore *store.Store, coord *coordinator.Coordinator) *Handler {
	return &Handler{logger: logger, cfg: cfg, eventStore: eventStore, coordinator: coord}
}

// SetupRoutes registers every REST route on router, including CORS and
// the Prometheus scrape endpoint.
func (h *Handler) SetupRoutes(router *gin.Engine) {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	router.Use(func(ctx *gin.Context) {
		c.HandlerFunc(ctx.Writer, ctx.Request)
		if ctx.Request.Method == http.MethodOptions && ctx.GetHeader("Access-Control-Request-Method") != "" {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}
		ctx.Next()
	})

	router.GET("/healthz", h.HealthCheck)
	router.GET("/readyz", h.ReadinessCheck)

	if h.cfg.Monitoring.Enabled {
		router.GET(h.cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api/intelligence")
	{
		api.GET("/events", h.GetEvents)
		api.GET("/live", h.GetEvents)
		if !h.cfg.Server.Production {
			api.POST("/events/test", h.InjectTestEvent)
		}
	}
}

// HealthCheck reports process liveness.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "reasoning-core",
	})
}

// ReadinessCheck reports whether the event store is serving yet.
func (h *Handler) ReadinessCheck(c *gin.Context) {
	if !h.eventStore.Available() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": domain.ErrStoreUnavailable.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// eventsResponse is §6.3's `{status, total, events}` envelope.
type eventsResponse struct {
	Status string             `json:"status"`
	Total  int                `json:"total"`
	Events []domain.EventWire `json:"events"`
}

// GetEvents serves GET /api/intelligence/events and /live identically.
func (h *Handler) GetEvents(c *gin.Context) {
	if !h.eventStore.Available() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": domain.ErrStoreUnavailable.Error()})
		return
	}

	limit := h.defaultLimit()
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		if n < limit {
			limit = n
		}
	}

	events := h.eventStore.Recent(limit)
	wire := make([]domain.EventWire, 0, len(events))
	for _, e := range events {
		wire = append(wire, e.ToWire())
	}

	status := "active"
	if h.coordinator != nil {
		status = h.coordinator.Status()
	}

	c.JSON(http.StatusOK, eventsResponse{
		Status: status,
		Total:  h.eventStore.Len(),
		Events: wire,
	})
}

func (h *Handler) defaultLimit() int {
	if h.cfg == nil {
		return 100
	}
	return h.cfg.Store.Capacity
}

// testEventRequest is the synthetic-event payload accepted by the
// development-only injector.
type testEventRequest struct {
	Type     string   `json:"type" binding:"required"`
	TrackIDs []uint64 `json:"track_ids" binding:"required"`
	ZoneID   string   `json:"zone_id"`
	Duration float64  `json:"duration"`
	Score    float64  `json:"score"`
}

// InjectTestEvent handles POST /api/intelligence/events/test: publishes a
// synthetic event through the normal store path, for UI/integration
// testing against a running process without a live detection feed.
func (h *Handler) InjectTestEvent(c *gin.Context) {
	var req testEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	score := domain.SeverityScore{Score: req.Score, Level: domain.LevelFromScore(req.Score)}
	event, err := h.eventStore.Publish(time.Now(), domain.EventType(req.Type), score, req.TrackIDs, req.ZoneID, req.Duration, nil)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if event == nil {
		c.JSON(http.StatusOK, gin.H{"suppressed": true})
		return
	}
	c.JSON(http.StatusCreated, event.ToWire())
}
