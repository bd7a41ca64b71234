// Package zoneadmin implements the zone administration REST surface: a
// read/validate subset of the donor's full zone CRUD+analytics router (zones
// are read-only for the lifetime of a run, per the core's operating model —
// no create/update/delete here). Routed with gorilla/mux, kept side by side
// with the gin-based transport/http package, mirroring the donor's own mix
// of routers across its HTTP surfaces.
package zoneadmin

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/config"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/zones"
)

// Handlers serves zone inspection and dry-run validation against the zone
// engine the coordinator is actually running with.
type Handlers struct {
	logger *zap.Logger
	engine *zones.Engine
}

// New creates Handlers bound to the live zone engine.
func New(logger *zap.Logger, engine *zones.Engine) *Handlers {
	return &Handlers{
		logger: logger.With(zap.String("component", "zone_admin")),
		engine: engine,
	}
}

// RegisterRoutes mounts the zone admin surface on router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/zones", h.ListZones).Methods(http.MethodGet)
	router.HandleFunc("/api/zones/{id}", h.GetZone).Methods(http.MethodGet)
	router.HandleFunc("/api/zones/validate", h.ValidateZones).Methods(http.MethodPost)
	router.HandleFunc("/api/zones/{id}/test-point", h.TestZonePoint).Methods(http.MethodPost)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// ListZones handles GET /api/zones.
func (h *Handlers) ListZones(w http.ResponseWriter, r *http.Request) {
	zoneList := h.engine.Zones()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"zones": zoneList,
		"count": len(zoneList),
	})
}

// GetZone handles GET /api/zones/{id}.
func (h *Handlers) GetZone(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	zone := h.engine.Zone(id)
	if zone == nil {
		http.Error(w, "zone not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, zone)
}

// validateRequest is the document submitted for a dry-run zone validation,
// the same shape config.Load() parses the `zones:` list of
// reasoning-core.yaml into.
type validateRequest struct {
	Zones []config.ZoneConfig `json:"zones"`
}

// ValidateZones handles POST /api/zones/validate: runs a submitted zone
// document through the exact conversion and validation config.Load() uses,
// without installing it — lets an operator check a document before a
// restart picks it up.
func (h *Handlers) ValidateZones(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	domainZones, err := config.ToDomainZones(req.Zones)
	if err != nil {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"valid": false, "error": err.Error()})
		return
	}
	if err := zones.Validate(domainZones); err != nil {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"valid": false, "error": err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"valid": true, "count": len(domainZones)})
}

// testPointRequest is the payload for a point-in-zone containment check.
type testPointRequest struct {
	Point domain.Point `json:"point"`
}

// TestZonePoint handles POST /api/zones/{id}/test-point: exercises
// Polygon.Contains against a live zone's boundary for operator debugging.
func (h *Handlers) TestZonePoint(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	zone := h.engine.Zone(id)
	if zone == nil {
		http.Error(w, "zone not found", http.StatusNotFound)
		return
	}

	var req testPointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"zone_id":   id,
		"point":     req.Point,
		"is_inside": zone.Polygon.Contains(req.Point),
	})
}
