// ============================================================
// METRICS - prometheus collectors for the kiosk
// ============================================================
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendance-kiosk/models"
)

type Metrics struct {
	registry *prometheus.Registry

	attempts       *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec
	cameraActive   *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_attempts_total",
			Help: "Finished enrollment and attendance attempts by outcome.",
		}, []string{"workflow", "outcome"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kiosk_backend_request_duration_seconds",
			Help:    "Backend API call latency. status is 0 for transport failures.",
			Buckets: prometheus.DefBuckets,
		}, []string{"call", "status"}),
		cameraActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kiosk_camera_active",
			Help: "1 while the surface holds an open camera stream.",
		}, []string{"surface"}),
	}

	m.registry.MustRegister(
		m.attempts,
		m.backendLatency,
		m.cameraActive,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Attempt counts a finished attempt.
func (m *Metrics) Attempt(workflow models.Workflow, outcome models.Outcome) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(string(workflow), string(outcome)).Inc()
}

// ObserveBackend matches api.Observer.
func (m *Metrics) ObserveBackend(call string, statusCode int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.backendLatency.WithLabelValues(call, strconv.Itoa(statusCode)).Observe(elapsed.Seconds())
}

// CameraChanged matches the camera session observer.
func (m *Metrics) CameraChanged(surface models.Surface, active bool) {
	if m == nil {
		return
	}
	v := 0.0
	if active {
		v = 1
	}
	m.cameraActive.WithLabelValues(string(surface)).Set(v)
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
