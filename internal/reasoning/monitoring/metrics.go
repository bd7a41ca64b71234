// Package monitoring holds the process's Prometheus metric registrations,
// grouped by reasoning pipeline subsystem.
package monitoring

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// Metrics holds every Prometheus metric reasoning-core exposes.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Frame/coordinator metrics
	FramesProcessedTotal   prometheus.Counter
	FrameProcessingSeconds prometheus.Histogram
	InputInvalidDropped    prometheus.Counter
	CoordinatorStatus      prometheus.Gauge // 1 = active, 0 = degraded

	// Stabilizer metrics
	StabilizerLockedTracks prometheus.Gauge
	StabilizerFlicker      prometheus.Counter

	// Zone metrics
	ZoneViolationsTotal *prometheus.CounterVec
	ZoneOccupancy       *prometheus.GaugeVec

	// Event store metrics
	EventsPublishedTotal *prometheus.CounterVec
	EventsDedupDropped   prometheus.Counter
	EventStoreLength     prometheus.Gauge

	// WebSocket fan-out metrics
	WebSocketConnections      prometheus.Gauge
	WebSocketMessagesSent     prometheus.Counter
	WebSocketSubscriberDrops  prometheus.Counter
}

// NewMetrics creates and registers every metric exactly once.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "reasoning_core_http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "endpoint", "status_code"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "reasoning_core_http_request_duration_seconds",
					Help:    "Duration of HTTP requests in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "endpoint"},
			),
			HTTPRequestsInFlight: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "reasoning_core_http_requests_in_flight",
					Help: "Number of HTTP requests currently being processed",
				},
			),

			FramesProcessedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "reasoning_core_frames_processed_total",
					Help: "Total number of frames processed by the coordinator",
				},
			),
			FrameProcessingSeconds: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "reasoning_core_frame_processing_seconds",
					Help:    "Duration of one frame's full pipeline pass",
					Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
				},
			),
			InputInvalidDropped: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "reasoning_core_input_invalid_dropped_total",
					Help: "Total number of detections dropped at sanitization",
				},
			),
			CoordinatorStatus: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "reasoning_core_coordinator_status",
					Help: "1 if the coordinator is active, 0 if degraded",
				},
			),

			StabilizerLockedTracks: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "reasoning_core_stabilizer_locked_tracks",
					Help: "Number of tracks currently in the locked classification state",
				},
			),
			StabilizerFlicker: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "reasoning_core_stabilizer_flicker_total",
					Help: "Total number of class-label flips absorbed by the stabilizer",
				},
			),

			ZoneViolationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "reasoning_core_zone_violations_total",
					Help: "Total number of zone rule violations by kind",
				},
				[]string{"zone_id", "kind"},
			),
			ZoneOccupancy: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "reasoning_core_zone_occupancy",
					Help: "Current occupancy count per zone",
				},
				[]string{"zone_id"},
			),

			EventsPublishedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "reasoning_core_events_published_total",
					Help: "Total number of reasoning events published by type",
				},
				[]string{"event_type", "severity"},
			),
			EventsDedupDropped: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "reasoning_core_events_dedup_dropped_total",
					Help: "Total number of publishes suppressed by the dedup window",
				},
			),
			EventStoreLength: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "reasoning_core_event_store_length",
					Help: "Current number of events held in the store",
				},
			),

			WebSocketConnections: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "reasoning_core_websocket_connections",
					Help: "Number of active WebSocket connections",
				},
			),
			WebSocketMessagesSent: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "reasoning_core_websocket_messages_sent_total",
					Help: "Total number of WebSocket frames sent to subscribers",
				},
			),
			WebSocketSubscriberDrops: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "reasoning_core_websocket_subscriber_drops_total",
					Help: "Total number of events dropped for a slow subscriber",
				},
			),
		}
	})
	return metricsInstance
}
