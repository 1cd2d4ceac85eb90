package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"brandreport-service/pkg/config"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Login counters
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "brandreport_login_total",
			Help: "Total number of login attempts",
		},
	)

	// Registration counter
	RegisterCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "brandreport_register_total",
			Help: "Total number of user registrations",
		},
	)

	// Brand operation counter
	BrandOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandreport_brand_operations_total",
			Help: "Total number of brand operations",
		},
		[]string{"operation"}, // operation can be "create", "update", "delete", "list", "access"
	)

	// Allocation operation counter
	AllocationOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandreport_allocation_operations_total",
			Help: "Total number of allocation operations",
		},
		[]string{"operation"}, // operation can be "create", "remove", "list"
	)

	// Report operation counter
	ReportOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandreport_report_operations_total",
			Help: "Total number of report queries",
		},
		[]string{"operation"}, // operation can be "login_logs", "daily_summary", "brand_summary"
	)

	// Export counter by target
	ExportCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandreport_exports_total",
			Help: "Total number of CSV exports by target",
		},
		[]string{"target"}, // target can be "brand", "all", "mine"
	)

	// Exported rows counter
	ExportedRowsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "brandreport_exported_rows_total",
			Help: "Total number of CSV data rows streamed to clients",
		},
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandreport_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Error counters
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandreport_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"}, // type can be "login_failure", "invalid_token", "db_error" etc.
	)

	// Scope denial counter
	ScopeDenialCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brandreport_scope_denials_total",
			Help: "Total number of denied authorization decisions",
		},
		[]string{"reason"}, // reason can be "insufficient_role", "access_denied", "identity_not_found"
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brandreport_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brandreport_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update", "delete"
	)

	// Export duration
	ExportDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brandreport_export_duration_seconds",
			Help:    "Duration of CSV export streaming in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"target"},
	)
)

// Gauge metrics
var (
	// Active tokens
	ActiveTokensGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "brandreport_active_tokens",
			Help: "Number of currently active authentication tokens",
		},
	)

	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "brandreport_info",
			Help: "Information about the brand reporting service",
		},
		[]string{"version", "environment"},
	)
)

func init() {
	// Register counters
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(RegisterCounter)
	prometheus.MustRegister(BrandOperationCounter)
	prometheus.MustRegister(AllocationOperationCounter)
	prometheus.MustRegister(ReportOperationCounter)
	prometheus.MustRegister(ExportCounter)
	prometheus.MustRegister(ExportedRowsCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(ScopeDenialCounter)

	// Register histograms
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)
	prometheus.MustRegister(ExportDuration)

	// Register gauges
	prometheus.MustRegister(ActiveTokensGauge)
	prometheus.MustRegister(InfoGauge)
}

// InitMetrics sets the initial service info
func InitMetrics(cfg *config.Config) {
	InfoGauge.With(prometheus.Labels{"version": "1.0.0", "environment": cfg.Server.Env}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// IncreaseActiveTokens increments the active tokens gauge
func IncreaseActiveTokens() {
	ActiveTokensGauge.Inc()
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordScopeDenial records a denied authorization decision
func RecordScopeDenial(reason string) {
	ScopeDenialCounter.With(prometheus.Labels{"reason": reason}).Inc()
}

// RecordBrandOperation records a brand operation
func RecordBrandOperation(operation string) {
	BrandOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordAllocationOperation records an allocation operation
func RecordAllocationOperation(operation string) {
	AllocationOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordReportOperation records a report query
func RecordReportOperation(operation string) {
	ReportOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordExport records a CSV export and the number of rows it streamed
func RecordExport(target string, rows int64, elapsed time.Duration) {
	ExportCounter.With(prometheus.Labels{"target": target}).Inc()
	ExportedRowsCounter.Add(float64(rows))
	ExportDuration.With(prometheus.Labels{"target": target}).Observe(elapsed.Seconds())
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Execute the request handler
			err := next(c)

			// Record request duration
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			// Record metrics
			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}
