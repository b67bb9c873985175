// Package metrics exposes Prometheus instrumentation for the input relay.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rein"

// Drop reasons
const (
	ReasonMalformed    = "malformed"
	ReasonIncomplete   = "incomplete"
	ReasonUnmapped     = "unmapped_key"
	ReasonBackpressure = "send_buffer_full"
)

// Recorder holds the relay's collectors. A nil *Recorder is valid and records nothing.
type Recorder struct {
	messagesTotal     *prometheus.CounterVec
	droppedTotal      *prometheus.CounterVec
	dispatchErrors    *prometheus.CounterVec
	dispatchDuration  *prometheus.HistogramVec
	activeConnections prometheus.Gauge
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Total number of decoded input messages by type",
		}, []string{"type"}),

		droppedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Total number of frames or messages dropped by reason",
		}, []string{"reason"}),

		dispatchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_errors_total",
			Help:      "Total number of OS input failures by message type",
		}, []string{"type"}),

		dispatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent driving the OS device per message",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"type"}),

		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of open /ws connections",
		}),
	}
}

// Message counts one decoded message of msgType
func (r *Recorder) Message(msgType string) {
	if r == nil {
		return
	}
	r.messagesTotal.WithLabelValues(msgType).Inc()
}

// Dropped counts a frame or message discarded for reason
func (r *Recorder) Dropped(reason string) {
	if r == nil {
		return
	}
	r.droppedTotal.WithLabelValues(reason).Inc()
}

// DispatchError counts an OS input failure while handling msgType
func (r *Recorder) DispatchError(msgType string) {
	if r == nil {
		return
	}
	r.dispatchErrors.WithLabelValues(msgType).Inc()
}

// ObserveDispatch records how long handling msgType took
func (r *Recorder) ObserveDispatch(msgType string, d time.Duration) {
	if r == nil {
		return
	}
	r.dispatchDuration.WithLabelValues(msgType).Observe(d.Seconds())
}

// ConnectionOpened increments the open /ws connection gauge
func (r *Recorder) ConnectionOpened() {
	if r == nil {
		return
	}
	r.activeConnections.Inc()
}

// ConnectionClosed decrements the open /ws connection gauge
func (r *Recorder) ConnectionClosed() {
	if r == nil {
		return
	}
	r.activeConnections.Dec()
}
