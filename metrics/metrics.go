// File: metrics/metrics.go
package metrics

import (
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Session Metrics
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "qwen_proxy_sessions_active",
		Help: "The current number of active relay sessions.",
	})
	TotalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qwen_proxy_sessions_total",
		Help: "The total number of relay sessions accepted.",
	})
	SessionsConfigured = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qwen_proxy_sessions_configured_total",
		Help: "The total number of sessions whose upstream acknowledged configuration.",
	})
	InactivityTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qwen_proxy_inactivity_timeouts_total",
		Help: "The total number of sessions terminated by the inactivity timeout.",
	})

	// Relay Metrics
	ClientMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qwen_proxy_client_messages_total",
		Help: "The total number of messages received from clients.",
	})
	UpstreamMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qwen_proxy_upstream_messages_total",
		Help: "The total number of messages received from the upstream API.",
	})
	BufferedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qwen_proxy_messages_buffered_total",
		Help: "The total number of client messages held in a pending buffer.",
	})

	// Upstream Metrics
	UpstreamConnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qwen_proxy_upstream_connects_total",
		Help: "The total number of upstream connections established.",
	})
	ReconnectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qwen_proxy_reconnect_attempts_total",
		Help: "The total number of upstream reconnect attempts issued by the liveness monitor.",
	})
	UpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qwen_proxy_upstream_errors_total",
		Help: "The total number of upstream errors by classified kind.",
	}, []string{"kind"})
)

// StartServer starts the HTTP server for Prometheus metrics.
func StartServer(port int, path string) {
	http.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	log.Printf("Starting metrics server on %s%s", addr, path)

	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Fatalf("Failed to start metrics server: %v", err)
		}
	}()
}
