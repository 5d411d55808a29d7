package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const outcomeOK = "ok"

// Metrics holds the collectors exposed on /metrics. Each instance owns its
// registry so tests and multiple servers do not collide.
type Metrics struct {
	registry    *prometheus.Registry
	transcribed *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	modelWait   prometheus.Histogram
	inflight    prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transcribed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxscribe",
			Name:      "transcriptions_total",
			Help:      "Transcription requests by outcome (ok or error kind).",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voxscribe",
			Name:      "transcription_duration_seconds",
			Help:      "Time from request to transcript, including the wait for the model.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),
		modelWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voxscribe",
			Name:      "model_wait_seconds",
			Help:      "Time spent waiting for exclusive access to the model.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxscribe",
			Name:      "transcriptions_in_flight",
			Help:      "Transcription requests currently being handled.",
		}),
	}

	m.registry.MustRegister(
		m.transcribed,
		m.latency,
		m.modelWait,
		m.inflight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveModelWait is meant for whisper.WithWaitObserver.
func (m *Metrics) ObserveModelWait(d time.Duration) {
	m.modelWait.Observe(d.Seconds())
}

func (m *Metrics) observeTranscription(outcome string, elapsed time.Duration) {
	m.transcribed.WithLabelValues(outcome).Inc()
	m.latency.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
