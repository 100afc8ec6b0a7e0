package cloud

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var requestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "graylock_cloud_request_duration_seconds",
		Help:    "Lock service request latency by endpoint and status",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"endpoint", "status"},
)

// MetricsCollectors returns collectors for the cloud client.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{requestDuration}
}

func observe(endpoint, status string, start time.Time) {
	requestDuration.WithLabelValues(endpoint, status).Observe(time.Since(start).Seconds())
}

// endpointLabel replaces numeric and opaque path segments so labels stay bounded.
func endpointLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		if i > 0 && (parts[i-1] == "operation" || isNumeric(p)) {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
