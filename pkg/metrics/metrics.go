package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all service metrics
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// MongoDB metrics
	MongoDBOperations        *prometheus.CounterVec
	MongoDBOperationDuration *prometheus.HistogramVec

	// Reconciliation metrics
	ReconcileRuns        *prometheus.CounterVec
	ReconcileDuration    prometheus.Histogram
	StatusUpdates        *prometheus.CounterVec
	UnknownStatuses      *prometheus.CounterVec
	OrdersSkipped        *prometheus.CounterVec
	FeedPagesFetched     *prometheus.CounterVec
	StockAdjustments     *prometheus.CounterVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "oms",
	}
}

// New creates a new Metrics instance
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()

	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)

	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "http_requests_in_flight",
			Help:        "Number of HTTP requests currently being processed",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.MongoDBOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "mongodb_operations_total",
			Help:      "Total number of MongoDB operations",
		},
		[]string{"service", "collection", "operation", "status"},
	)

	m.MongoDBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "mongodb_operation_duration_seconds",
			Help:      "MongoDB operation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"service", "collection", "operation"},
	)

	m.ReconcileRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "reconcile_runs_total",
			Help:      "Total number of reconciliation runs",
		},
		[]string{"service", "trigger", "status"},
	)

	m.ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "reconcile_run_duration_seconds",
			Help:        "Reconciliation run duration in seconds",
			Buckets:     []float64{.1, .5, 1, 5, 10, 30, 60, 300},
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.StatusUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "status_updates_total",
			Help:      "Total number of order status transitions written",
		},
		[]string{"service", "carrier", "status"},
	)

	m.UnknownStatuses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "unknown_status_total",
			Help:      "Carrier status strings that did not classify to any canonical status",
		},
		[]string{"service", "carrier"},
	)

	m.OrdersSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "orders_skipped_total",
			Help:      "Orders excluded from reconciliation, by reason",
		},
		[]string{"service", "reason"},
	)

	m.FeedPagesFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "feed_pages_fetched_total",
			Help:      "Total number of carrier feed pages fetched",
		},
		[]string{"service", "carrier", "status"},
	)

	m.StockAdjustments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "stock_adjustments_total",
			Help:      "Stock adjustments performed, by operation and outcome",
		},
		[]string{"service", "operation", "status"},
	)

	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"service", "name"},
	)

	m.CircuitBreakerTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "circuit_breaker_trips_total",
			Help:      "Total number of circuit breaker trips",
		},
		[]string{"service", "name"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.MongoDBOperations,
		m.MongoDBOperationDuration,
		m.ReconcileRuns,
		m.ReconcileDuration,
		m.StatusUpdates,
		m.UnknownStatuses,
		m.OrdersSkipped,
		m.FeedPagesFetched,
		m.StockAdjustments,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
	)

	return m
}

// Handler returns an HTTP handler for metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// RecordMongoDBOperation records a MongoDB operation
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.MongoDBOperations.WithLabelValues(m.serviceName, collection, operation, status).Inc()
	m.MongoDBOperationDuration.WithLabelValues(m.serviceName, collection, operation).Observe(duration.Seconds())
}

// RecordReconcileRun records a reconciliation run
func (m *Metrics) RecordReconcileRun(trigger string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.ReconcileRuns.WithLabelValues(m.serviceName, trigger, status).Inc()
	m.ReconcileDuration.Observe(duration.Seconds())
}

// RecordStatusUpdate records one written status transition
func (m *Metrics) RecordStatusUpdate(carrier, status string) {
	m.StatusUpdates.WithLabelValues(m.serviceName, carrier, status).Inc()
}

// RecordUnknownStatus records a carrier status that failed classification
func (m *Metrics) RecordUnknownStatus(carrier string) {
	m.UnknownStatuses.WithLabelValues(m.serviceName, carrier).Inc()
}

// RecordOrderSkipped records an order excluded from reconciliation
func (m *Metrics) RecordOrderSkipped(reason string) {
	m.OrdersSkipped.WithLabelValues(m.serviceName, reason).Inc()
}

// RecordFeedPage records one carrier feed page fetch
func (m *Metrics) RecordFeedPage(carrier string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.FeedPagesFetched.WithLabelValues(m.serviceName, carrier, status).Inc()
}

// RecordStockAdjustment records a stock adjustment attempt
func (m *Metrics) RecordStockAdjustment(operation string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.StockAdjustments.WithLabelValues(m.serviceName, operation, status).Inc()
}

// SetCircuitBreakerState sets the circuit breaker state
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(m.serviceName, name).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(name string) {
	m.CircuitBreakerTrips.WithLabelValues(m.serviceName, name).Inc()
}

// IncrementHTTPRequestsInFlight increments in-flight requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements in-flight requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}
