package events

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Delivery outcomes.
const (
	OutcomeAck  = "ack"
	OutcomeNack = "nack"
	OutcomeDead = "dead"
)

// Metrics exposes Prometheus collectors for publishing and consumption.
type Metrics struct {
	published *prometheus.CounterVec
	consumed  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the event metrics against registerer. A nil
// registerer uses the default Prometheus registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delifood_events_published_total",
		Help: "Published events partitioned by topic and outcome.",
	}, []string{"topic", "outcome"})
	consumed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delifood_events_consumed_total",
		Help: "Delivered events partitioned by queue and outcome.",
	}, []string{"queue", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "delifood_event_delivery_duration_seconds",
		Help:    "Handler duration per delivery.",
		Buckets: prometheus.DefBuckets,
	}, []string{"queue"})
	registerer.MustRegister(published, consumed, duration)
	return &Metrics{published: published, consumed: consumed, duration: duration}
}

// Published records a publish attempt.
func (m *Metrics) Published(topic string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.published.WithLabelValues(topic, outcome).Inc()
}

// Tracker instruments a single delivery.
type Tracker struct {
	metrics *Metrics
	queue   string
	start   time.Time
}

// Track starts timing a delivery on queue.
func (m *Metrics) Track(queue string) *Tracker {
	return &Tracker{metrics: m, queue: queue, start: time.Now()}
}

// End records the outcome and returns err untouched.
func (t *Tracker) End(outcome string, err error) error {
	if t == nil || t.metrics == nil {
		return err
	}
	t.metrics.consumed.WithLabelValues(t.queue, outcome).Inc()
	t.metrics.duration.WithLabelValues(t.queue).Observe(time.Since(t.start).Seconds())
	return err
}

func outcomeFor(err error, exhausted bool) string {
	switch {
	case err == nil:
		return OutcomeAck
	case exhausted || errors.Is(err, ErrSkipRetry):
		return OutcomeDead
	default:
		return OutcomeNack
	}
}
