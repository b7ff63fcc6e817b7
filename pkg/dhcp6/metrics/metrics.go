// Package metrics counts what the server does with each packet and exports
// the counters over HTTP.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dhcp6d"

// Drop reasons.
const (
	ReasonParseError   = "parse_error"
	ReasonMisrouted    = "misrouted"
	ReasonHandlerDrop  = "handler_drop"
	ReasonHandlerError = "handler_error"
	ReasonNoResponse   = "no_response"
	ReasonEncodeError  = "encode_error"
)

type Collector struct {
	received *prometheus.CounterVec
	replied  *prometheus.CounterVec
	dropped  *prometheus.CounterVec
	duration prometheus.Histogram
	reloads  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg skips
// registration, which tests use.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "Packets received, by client message type.",
		}, []string{"message_type"}),
		replied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_replied_total",
			Help:      "Replies sent, by response message type.",
		}, []string{"message_type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_dropped_total",
			Help:      "Packets that got no reply, by reason.",
		}, []string{"reason"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transaction_duration_seconds",
			Help:      "Time spent answering one packet.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Configuration reloads, by result.",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(c.received, c.replied, c.dropped, c.duration, c.reloads)
	}
	return c
}

func (c *Collector) Received(messageType string) {
	c.received.WithLabelValues(messageType).Inc()
}

func (c *Collector) Replied(messageType string) {
	c.replied.WithLabelValues(messageType).Inc()
}

func (c *Collector) Dropped(reason string) {
	c.dropped.WithLabelValues(reason).Inc()
}

func (c *Collector) ObserveDuration(start time.Time) {
	c.duration.Observe(time.Since(start).Seconds())
}

func (c *Collector) Reloaded(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	c.reloads.WithLabelValues(result).Inc()
}
