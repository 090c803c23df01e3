package s3

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the counters and histograms a Driver reports. Each Driver
// owns one, registered against the *prometheus.Registry passed to Open (or
// left unregistered if none is supplied).
type metrics struct {
	bytesRead    prometheus.Counter
	bytesWritten prometheus.Counter
	retries      *prometheus.CounterVec
	calls        *prometheus.CounterVec
	latencyMs    *prometheus.HistogramVec
}

func newMetrics(reg *prometheus.Registry) *metrics {
	m := &metrics{
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kvstore",
			Subsystem: "s3",
			Name:      "bytes_read_total",
			Help:      "Total bytes returned by successful Read calls.",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kvstore",
			Subsystem: "s3",
			Name:      "bytes_written_total",
			Help:      "Total bytes accepted by successful Write calls.",
		}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kvstore",
			Subsystem: "s3",
			Name:      "retries_total",
			Help:      "Number of retries scheduled, by operation.",
		}, []string{"op"}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kvstore",
			Subsystem: "s3",
			Name:      "calls_total",
			Help:      "Number of driver calls, by operation.",
		}, []string{"op"}),
		latencyMs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kvstore",
			Subsystem: "s3",
			Name:      "latency_milliseconds",
			Help:      "Call latency in milliseconds, by operation.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.bytesRead, m.bytesWritten, m.retries, m.calls, m.latencyMs)
	}
	return m
}

func (m *metrics) incRetries(op string)  { m.retries.WithLabelValues(op).Inc() }
func (m *metrics) incCall(op string)     { m.calls.WithLabelValues(op).Inc() }
func (m *metrics) addBytesRead(n int)    { m.bytesRead.Add(float64(n)) }
func (m *metrics) addBytesWritten(n int) { m.bytesWritten.Add(float64(n)) }

func (m *metrics) observeLatency(op string, d time.Duration) {
	m.latencyMs.WithLabelValues(op).Observe(float64(d.Milliseconds()))
}
