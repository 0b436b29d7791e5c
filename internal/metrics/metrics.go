package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of one process. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	analysesTotal     *prometheus.CounterVec
	analysisDuration  prometheus.Histogram
	windowsTotal      *prometheus.CounterVec
	beatsDetected     prometheus.Histogram
	uploadBytes       prometheus.Histogram
	notifyErrors      prometheus.Counter
}

// New registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		analysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecg_analyses_total",
			Help: "Analyses by outcome (ok or the error kind).",
		}, []string{"outcome"}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ecg_analysis_duration_seconds",
			Help:    "Wall time of one complete analysis.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		windowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecg_windows_total",
			Help: "Assessed windows by status label.",
		}, []string{"label"}),
		beatsDetected: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ecg_beats_detected",
			Help:    "R peaks detected per analysis.",
			Buckets: prometheus.LinearBuckets(0, 50, 10),
		}),
		uploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ecg_upload_bytes",
			Help:    "Size of uploaded recordings.",
			Buckets: prometheus.ExponentialBuckets(64*1024, 2, 10),
		}),
		notifyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecg_notify_errors_total",
			Help: "Quality notifications that failed to send.",
		}),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpDuration,
		m.analysesTotal,
		m.analysisDuration,
		m.windowsTotal,
		m.beatsDetected,
		m.uploadBytes,
		m.notifyErrors,
	)
	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests and their latency under route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// AnalysisDone records one finished analysis. outcome is "ok" or an error
// kind.
func (m *Metrics) AnalysisDone(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.analysesTotal.WithLabelValues(outcome).Inc()
	m.analysisDuration.Observe(elapsed.Seconds())
}

// WindowsAssessed adds window counts per label.
func (m *Metrics) WindowsAssessed(good, adequate, rejected int) {
	if m == nil {
		return
	}
	m.windowsTotal.WithLabelValues("GOOD").Add(float64(good))
	m.windowsTotal.WithLabelValues("ADEQUATE").Add(float64(adequate))
	m.windowsTotal.WithLabelValues("REJECTED").Add(float64(rejected))
}

func (m *Metrics) BeatsDetected(n int) {
	if m == nil {
		return
	}
	m.beatsDetected.Observe(float64(n))
}

func (m *Metrics) Upload(size int64) {
	if m == nil {
		return
	}
	m.uploadBytes.Observe(float64(size))
}

func (m *Metrics) NotifyFailed() {
	if m == nil {
		return
	}
	m.notifyErrors.Inc()
}
