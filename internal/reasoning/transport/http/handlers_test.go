package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appcontext "github.com/reasoning-core/reasoning-core/internal/reasoning/context"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/config"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/coordinator"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/intelligence"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/monitoring"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/severity"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/stabilizer"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/store"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/zones"
)

func setupTestRouter(t *testing.T, production bool) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	cfg := &config.Config{
		Server:     config.ServerConfig{Port: 8090, Production: production},
		Monitoring: config.MonitoringConfig{Enabled: true, MetricsPath: "/metrics"},
		Store:      config.StoreConfig{Capacity: 100},
	}

	metrics := monitoring.NewMetrics()
	stab := stabilizer.New(stabilizer.DefaultConfig(), metrics, logger)
	ctxEngine := appcontext.New(appcontext.DefaultConfig(30), 30, logger)
	zoneEngine := zones.New(nil, metrics, logger)
	w, err := severity.DefaultWeights().Normalize()
	require.NoError(t, err)
	scorer := severity.New(w)
	disp := intelligence.New(intelligence.DefaultConfig(), scorer, zoneEngine, logger)

	eventStore := store.New(store.DefaultConfig(), metrics, logger)
	eventStore.MarkAvailable()

	coord := coordinator.New(coordinator.DefaultConfig(), stab, ctxEngine, zoneEngine, scorer, disp, eventStore, metrics, logger)

	handler := NewHandler(logger, cfg, eventStore, coord)
	router := gin.New()
	handler.SetupRoutes(router)
	return router, eventStore
}

func TestHealthCheck(t *testing.T) {
	router, _ := setupTestRouter(t, false)

	req, _ := http.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestReadinessCheck_Ready(t *testing.T) {
	router, _ := setupTestRouter(t, false)

	req, _ := http.NewRequest("GET", "/readyz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadinessCheck_Unavailable(t *testing.T) {
	router, s := setupTestRouter(t, false)
	s.MarkUnavailable()

	req, _ := http.NewRequest("GET", "/readyz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetEvents_EmptyStore(t *testing.T) {
	router, _ := setupTestRouter(t, false)

	req, _ := http.NewRequest("GET", "/api/intelligence/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp eventsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Total)
	assert.Empty(t, resp.Events)
}

func TestGetEvents_RejectsNonPositiveLimit(t *testing.T) {
	router, _ := setupTestRouter(t, false)

	req, _ := http.NewRequest("GET", "/api/intelligence/events?limit=0", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetEvents_StoreUnavailable(t *testing.T) {
	router, s := setupTestRouter(t, false)
	s.MarkUnavailable()

	req, _ := http.NewRequest("GET", "/api/intelligence/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestInjectTestEvent_Succeeds(t *testing.T) {
	router, s := setupTestRouter(t, false)
	_ = s

	body := []byte(`{"type":"LOITERING","track_ids":[7],"duration":12.5,"score":0.6}`)
	req, _ := http.NewRequest("POST", "/api/intelligence/events/test", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var wire domain.EventWire
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &wire))
	assert.Equal(t, domain.EventLoitering, wire.EventType)
	assert.Equal(t, uint64(7), wire.TrackID)
}

func TestInjectTestEvent_DisabledInProduction(t *testing.T) {
	router, _ := setupTestRouter(t, true)

	body := []byte(`{"type":"LOITERING","track_ids":[7]}`)
	req, _ := http.NewRequest("POST", "/api/intelligence/events/test", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
