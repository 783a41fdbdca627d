package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector counts notifications passing through the pipeline. A nil *Collector records nothing
type Collector struct {
	notifications        *prometheus.CounterVec
	duplicates           *prometheus.CounterVec
	verificationFailures prometheus.Counter
	duration             *prometheus.HistogramVec
}

// New creates the collector and registers it with reg
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rtdn",
				Name:      "notifications_total",
				Help:      "Processed notifications by type and result",
			},
			[]string{"type", "result"},
		),
		duplicates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rtdn",
				Name:      "duplicates_total",
				Help:      "Notifications suppressed by the duplicate guard, by the state found",
			},
			[]string{"state"},
		),
		verificationFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rtdn",
				Name:      "verification_failures_total",
				Help:      "Purchase tokens that could not be verified with Google Play",
			},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "rtdn",
				Name:      "handle_duration_seconds",
				Help:      "Time spent in notification handlers",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"type"},
		),
	}
	for _, collector := range []prometheus.Collector{
		c.notifications,
		c.duplicates,
		c.verificationFailures,
		c.duration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) Notification(notificationType, result string) {
	if c == nil {
		return
	}
	c.notifications.WithLabelValues(notificationType, result).Inc()
}

func (c *Collector) Duplicate(state string) {
	if c == nil {
		return
	}
	c.duplicates.WithLabelValues(state).Inc()
}

func (c *Collector) VerificationFailure() {
	if c == nil {
		return
	}
	c.verificationFailures.Inc()
}

func (c *Collector) Observe(notificationType string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.duration.WithLabelValues(notificationType).Observe(elapsed.Seconds())
}
