package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Checkout outcomes.
const (
	OutcomeSuccess           = "success"
	OutcomeEmptyCart         = "empty_cart"
	OutcomeBookNotFound      = "book_not_found"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeError             = "error"
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

	checkoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkouts_total",
			Help: "Checkout attempts by outcome",
		},
		[]string{"outcome"},
	)

	checkoutDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkout_duration_seconds",
			Help:    "Checkout duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	stockReleasedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stock_released_units_total",
			Help: "Units of stock returned by compensation or recovery",
		},
	)

	holdsRecoveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_holds_recovered_total",
			Help: "Stale checkouts resolved by recovery",
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		checkoutsTotal,
		checkoutDuration,
		stockReleasedTotal,
		holdsRecoveredTotal,
	)
}

// Middleware records request count and latency per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RecordCheckout(outcome string, d time.Duration) {
	checkoutsTotal.WithLabelValues(outcome).Inc()
	checkoutDuration.Observe(d.Seconds())
}

func RecordStockReleased(units int) {
	if units > 0 {
		stockReleasedTotal.Add(float64(units))
	}
}

func RecordHoldsRecovered(action string, checkouts int) {
	if checkouts > 0 {
		holdsRecoveredTotal.WithLabelValues(action).Add(float64(checkouts))
	}
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
