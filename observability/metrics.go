package observability

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MQTTMessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trafficmgr_mqtt_messages_received_total",
		Help: "Total number of MQTT messages received on the ignition topic.",
	})
	MQTTDecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trafficmgr_mqtt_decode_failures_total",
		Help: "Total number of ignition payloads that could not be decoded.",
	})
	MQTTMessagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trafficmgr_mqtt_messages_dropped_total",
		Help: "Total number of ignition messages dropped because the monitor queue was full.",
	})
	IgnitionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trafficmgr_ignition_transitions_total",
		Help: "Ignition state transitions by new state.",
	}, []string{"state"})
	IgnitionStaleDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trafficmgr_ignition_stale_dropped_total",
		Help: "Ignition on reports dropped for being older than the max event age.",
	})
	TripsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trafficmgr_trips_dropped_total",
		Help: "Trip events dropped because a traffic run was already queued.",
	})
	RouteChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trafficmgr_route_checks_total",
		Help: "Route traffic checks by result.",
	}, []string{"result"})
	AlertsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trafficmgr_alerts_sent_total",
		Help: "Total number of alerts delivered to the notification webhook.",
	})
	AlertsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trafficmgr_alerts_failed_total",
		Help: "Total number of alerts the webhook rejected or that failed to send.",
	})
	AlertsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trafficmgr_alerts_published_total",
		Help: "Total number of alert events published to Redis.",
	})
	CheckCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trafficmgr_check_cycle_duration_seconds",
		Help:    "Duration of a full check of all routes.",
		Buckets: []float64{0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
	})
	DirectionsLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trafficmgr_directions_request_duration_seconds",
		Help:    "Latency of directions API requests.",
		Buckets: prometheus.DefBuckets,
	})
)

// StartMetricsServer serves /metrics and /health until ctx is cancelled.
func StartMetricsServer(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", "error", err)
	}
}
