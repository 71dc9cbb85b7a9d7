package prometheus

import (
	"sync"
	"time"

	"rental-service/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec

	// Database operation metrics
	DbOperationDuration *prometheus.HistogramVec

	// Order metrics
	OrderOperationsCounter *prometheus.CounterVec

	// Inventory metrics
	StockMovementUnits *prometheus.CounterVec

	// Return metrics
	ReturnedUnitsCounter prometheus.Counter

	initOnce sync.Once
)

// InitMetrics initializes Prometheus metrics with configuration. Only the first
// call registers collectors.
func InitMetrics(config *config.Config) {
	initOnce.Do(func() {
		prefix := config.Metrics.Prefix

		HttpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		)

		HttpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		)

		DbOperationDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_db_operation_duration_seconds",
				Help:    "Duration of database operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation_type"},
		)

		OrderOperationsCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_order_operations_total",
				Help: "Total number of order operations",
			},
			[]string{"operation", "result"},
		)

		StockMovementUnits = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_stock_movement_units_total",
				Help: "Units of product stock reserved or released",
			},
			[]string{"direction"},
		)

		ReturnedUnitsCounter = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: prefix + "_returned_units_total",
				Help: "Total number of rented units returned",
			},
		)
	})
}

// TrackDBOperation returns a function that records the duration of a database operation
func TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		if DbOperationDuration == nil {
			return
		}
		duration := time.Since(startTime).Seconds()
		DbOperationDuration.WithLabelValues(operationType).Observe(duration)
	}
}

// RecordOperation increments the counter for order operations
func RecordOperation(operation string, err error) {
	if OrderOperationsCounter == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	OrderOperationsCounter.WithLabelValues(operation, result).Inc()
}

// RecordStockMovement adds reserved or released units
func RecordStockMovement(direction string, units int) {
	if StockMovementUnits == nil {
		return
	}
	StockMovementUnits.WithLabelValues(direction).Add(float64(units))
}

// RecordReturnedUnits adds units brought back by a return submission
func RecordReturnedUnits(units int) {
	if ReturnedUnitsCounter == nil {
		return
	}
	ReturnedUnitsCounter.Add(float64(units))
}

// RecordHTTPRequest counts one served request and observes its duration
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if HttpRequestsTotal == nil {
		return
	}
	HttpRequestsTotal.WithLabelValues(method, path, status).Inc()
	HttpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
