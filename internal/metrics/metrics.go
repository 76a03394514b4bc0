package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	HTTPRequests          *prometheus.CounterVec
	HTTPDuration          *prometheus.HistogramVec
	RecommendationsServed *prometheus.CounterVec
	RecommendationCache   *prometheus.CounterVec
	MessagesSent          prometheus.Counter
	LiveSubscriptions     prometheus.Gauge
	WalletOperations      *prometheus.CounterVec
	TasksProcessed        *prometheus.CounterVec
	PendingWithdrawals    prometheus.Gauge
}

// NewMetrics registers the collectors with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voyago_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),

		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voyago_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),

		RecommendationsServed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voyago_recommendations_served_total",
			Help: "Recommendation lists served, by kind (scored or fallback)",
		}, []string{"kind"}),

		RecommendationCache: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voyago_recommendation_cache_total",
			Help: "Recommendation cache lookups by result",
		}, []string{"result"}),

		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "voyago_messages_sent_total",
			Help: "Total number of chat messages sent",
		}),

		LiveSubscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voyago_live_subscriptions",
			Help: "Open live conversation subscriptions",
		}),

		WalletOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voyago_wallet_operations_total",
			Help: "Wallet operations by type and outcome",
		}, []string{"operation", "outcome"}),

		TasksProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voyago_tasks_processed_total",
			Help: "Background tasks processed by type and outcome",
		}, []string{"task", "outcome"}),

		PendingWithdrawals: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voyago_pending_withdrawals",
			Help: "Withdrawal requests awaiting an admin decision, as of the last sweep",
		}),
	}
}

// Outcome labels a metric with "ok" or "error".
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// GinMiddleware records request counts and latency keyed by route template.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
