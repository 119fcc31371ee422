package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatclient_http_requests_total",
			Help: "Total number of HTTP requests handled by the local facade.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatclient_http_request_duration_seconds",
			Help:    "Facade request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	hubConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatclient_hub_connected",
			Help: "Whether the hub websocket connection is currently up.",
		},
	)
	hubEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatclient_hub_events_total",
			Help: "Total number of hub connection events.",
		},
		[]string{"event"},
	)
	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatclient_messages_total",
			Help: "Total number of chat messages by direction.",
		},
		[]string{"direction"},
	)
	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatclient_uploads_total",
			Help: "Total number of file uploads by result.",
		},
		[]string{"result"},
	)
	uploadBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatclient_upload_bytes_total",
			Help: "Total number of bytes uploaded.",
		},
	)
	pendingEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatclient_pending_evictions_total",
			Help: "Total number of optimistic messages evicted without an echo.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatclient_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		hubConnected,
		hubEventsTotal,
		messagesTotal,
		uploadsTotal,
		uploadBytesTotal,
		pendingEvictionsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func SetHubConnected(up bool) {
	if up {
		hubConnected.Set(1)
		return
	}
	hubConnected.Set(0)
}

func IncHubEvent(event string) {
	hubEventsTotal.WithLabelValues(event).Inc()
}

func IncMessage(direction string) {
	messagesTotal.WithLabelValues(direction).Inc()
}

func IncUpload(result string) {
	uploadsTotal.WithLabelValues(result).Inc()
}

func AddUploadBytes(n int64) {
	uploadBytesTotal.Add(float64(n))
}

func IncPendingEviction() {
	pendingEvictionsTotal.Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
