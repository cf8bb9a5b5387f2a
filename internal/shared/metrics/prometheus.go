package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Clinical metrics
	vitalsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitals_ingested_total",
			Help: "Total number of vitals samples ingested",
		},
		[]string{"source"},
	)

	labsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labs_ingested_total",
			Help: "Total number of lab results ingested",
		},
		[]string{"source"},
	)

	alertsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_raised_total",
			Help: "Total number of alerts raised",
		},
		[]string{"severity", "source"},
	)

	alertsAcknowledged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alerts_acknowledged_total",
			Help: "Total number of alerts acknowledged",
		},
	)

	alertsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alerts_suppressed_total",
			Help: "Total number of duplicate alerts suppressed",
		},
	)

	assessmentRoundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_rounds_total",
			Help: "Total number of assessment rounds run",
		},
		[]string{"trigger"},
	)

	assessmentRoundDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assessment_round_duration_seconds",
			Help:    "Assessment round duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	activeAlerts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_alerts",
			Help: "Number of currently unacknowledged alerts",
		},
	)

	highRiskPatients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "high_risk_patients",
			Help: "Number of patients at or above the high-risk score",
		},
	)

	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of notifications dispatched",
		},
		[]string{"channel", "status"},
	)

	// Database metrics
	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes URL paths for metrics to avoid cardinality explosion
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Clinical metric helpers ---

// RecordVitalsIngested records an accepted vitals sample
func RecordVitalsIngested(source string) {
	vitalsIngested.WithLabelValues(source).Inc()
}

// RecordLabsIngested records an accepted lab result
func RecordLabsIngested(source string) {
	labsIngested.WithLabelValues(source).Inc()
}

// RecordAlertRaised records a raised alert
func RecordAlertRaised(severity, source string) {
	alertsRaised.WithLabelValues(severity, source).Inc()
}

// RecordAlertAcknowledged records an alert acknowledgement
func RecordAlertAcknowledged() {
	alertsAcknowledged.Inc()
}

// RecordAlertSuppressed records a duplicate alert suppression
func RecordAlertSuppressed() {
	alertsSuppressed.Inc()
}

// RecordAssessmentRound records an assessment round and its duration
func RecordAssessmentRound(trigger string, duration time.Duration) {
	assessmentRoundsTotal.WithLabelValues(trigger).Inc()
	assessmentRoundDuration.Observe(duration.Seconds())
}

// SetActiveAlerts records the current unacknowledged alert count
func SetActiveAlerts(count int) {
	activeAlerts.Set(float64(count))
}

// SetHighRiskPatients records the current high-risk patient count
func SetHighRiskPatients(count int) {
	highRiskPatients.Set(float64(count))
}

// RecordNotificationSent records a notification dispatch attempt
func RecordNotificationSent(channel string, ok bool) {
	status := "error"
	if ok {
		status = "sent"
	}
	notificationsSent.WithLabelValues(channel, status).Inc()
}

// RecordDBConnections records active database connections
func RecordDBConnections(count int) {
	dbConnectionsActive.Set(float64(count))
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
