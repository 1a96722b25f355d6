package middleware

import (
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    httpRequestsTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Name: "http_requests_total",
            Help: "Total number of HTTP requests",
        },
        []string{"method", "endpoint", "status"},
    )

    httpRequestDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Name:    "http_request_duration_seconds",
            Help:    "HTTP request duration in seconds",
            Buckets: prometheus.DefBuckets,
        },
        []string{"method", "endpoint"},
    )

    ordersCreatedTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Name: "orders_created_total",
            Help: "Total number of orders created",
        },
        []string{"status"},
    )

    seatsReservedTotal = prometheus.NewCounter(
        prometheus.CounterOpts{
            Name: "seats_reserved_total",
            Help: "Total number of seats reserved on splits",
        },
    )

    seatsReleasedTotal = prometheus.NewCounter(
        prometheus.CounterOpts{
            Name: "seats_released_total",
            Help: "Total number of seats released back to splits",
        },
    )

    refundsIssuedTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Name: "refunds_issued_total",
            Help: "Total number of refunds issued",
        },
        []string{"fee_reversed"},
    )

    splitsExpiredTotal = prometheus.NewCounter(
        prometheus.CounterOpts{
            Name: "splits_expired_total",
            Help: "Total number of splits expired by the sweep",
        },
    )
)

func init() {
    prometheus.MustRegister(httpRequestsTotal)
    prometheus.MustRegister(httpRequestDuration)
    prometheus.MustRegister(ordersCreatedTotal)
    prometheus.MustRegister(seatsReservedTotal)
    prometheus.MustRegister(seatsReleasedTotal)
    prometheus.MustRegister(refundsIssuedTotal)
    prometheus.MustRegister(splitsExpiredTotal)
}

// Metrics returns an Echo middleware recording request counts and
// latencies per route.
func Metrics() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            path := c.Path()
            if path == "" {
                path = c.Request().URL.Path
            }

            err := next(c)

            status := strconv.Itoa(c.Response().Status)
            httpRequestsTotal.WithLabelValues(c.Request().Method, path, status).Inc()
            httpRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
            return err
        }
    }
}

// PrometheusHandler exposes the metrics endpoint.
func PrometheusHandler() echo.HandlerFunc {
    return echo.WrapHandler(promhttp.Handler())
}

// RecordOrderCreated counts a created order by its initial status.
func RecordOrderCreated(status string) {
    ordersCreatedTotal.WithLabelValues(status).Inc()
}

// RecordSeatsReserved counts seats claimed on splits.
func RecordSeatsReserved(n int64) {
    seatsReservedTotal.Add(float64(n))
}

// RecordSeatsReleased counts seats returned to splits.
func RecordSeatsReleased(n int64) {
    seatsReleasedTotal.Add(float64(n))
}

// RecordRefundIssued counts an issued refund.
func RecordRefundIssued(feeReversed bool) {
    refundsIssuedTotal.WithLabelValues(strconv.FormatBool(feeReversed)).Inc()
}

// RecordSplitExpired counts a split expired by the sweep.
func RecordSplitExpired() {
    splitsExpiredTotal.Inc()
}
