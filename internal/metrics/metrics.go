package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notify_http_request_duration_seconds",
			Help:    "Histogram of response durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	// DeliveryOutcomes counts committed state transitions per channel
	DeliveryOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_delivery_outcomes_total",
			Help: "Number of delivery attempts by resulting status",
		},
		[]string{"channel", "status", "path"},
	)

	AdapterLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notify_adapter_send_duration_seconds",
			Help:    "Latency of provider sends",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel", "result"},
	)

	// Dispatches counts records handed to a dispatch path (queue or direct)
	Dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_dispatches_total",
			Help: "Number of records handed to a dispatch path",
		},
		[]string{"path", "result"},
	)
)

func Init() {
	prometheus.MustRegister(HTTPRequests, RequestDuration, DeliveryOutcomes, AdapterLatency, Dispatches)
}
