package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Decode outcomes recorded against mdpwire_decode_messages_total.
const (
	ResultOK              = "ok"
	ResultUnknownTemplate = "unknown_template"
	ResultShortBuffer     = "short_buffer"
	ResultMalformed       = "malformed"
	ResultError           = "error"
)

// UnknownTemplateLabel is the template label for ids missing from the
// registry, so arbitrary ids do not each get a series.
const UnknownTemplateLabel = "unknown"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mdpwire",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mdpwire",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	decodeMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mdpwire",
			Subsystem: "decode",
			Name:      "messages_total",
			Help:      "Messages decoded, by template id and outcome.",
		},
		[]string{"template", "result"},
	)
	decodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mdpwire",
			Subsystem: "decode",
			Name:      "duration_seconds",
			Help:      "Message decode duration in seconds.",
			Buckets:   []float64{1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 5e-4, 1e-3},
		},
		[]string{"template"},
	)
	groupFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mdpwire",
			Subsystem: "decode",
			Name:      "group_fallback_total",
			Help:      "Group elements kept as raw bytes after a malformed decode.",
		},
		[]string{"template"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, decodeMessages, decodeDuration, groupFallbacks)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordDecode(templateID uint16, result string, duration time.Duration) {
	RegisterMetrics()
	label := strconv.FormatUint(uint64(templateID), 10)
	if result == ResultUnknownTemplate {
		label = UnknownTemplateLabel
	}
	decodeMessages.WithLabelValues(label, result).Inc()
	decodeDuration.WithLabelValues(label).Observe(duration.Seconds())
}

func RecordGroupFallbacks(templateID uint16, n int) {
	if n <= 0 {
		return
	}
	RegisterMetrics()
	groupFallbacks.WithLabelValues(strconv.FormatUint(uint64(templateID), 10)).Add(float64(n))
}
