package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campuschat_messages_sent_total",
		Help: "Messages persisted, by kind (private or group).",
	}, []string{"kind"})

	BroadcastsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campuschat_broadcasts_total",
		Help: "Broadcast publish attempts, by event and result.",
	}, []string{"event", "result"})

	WSConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "campuschat_ws_connections",
		Help: "Currently connected websocket clients.",
	})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campuschat_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})
)

func init() {
	prometheus.MustRegister(MessagesSent, BroadcastsPublished, WSConnections, HTTPDuration)
}

// Handler returns an http.Handler for Prometheus scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
