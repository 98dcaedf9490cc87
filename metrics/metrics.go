package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Namespace = "dnsswitch"

	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "poller",
		Name:      "ticks_total",
		Help:      "Counter of completed poll ticks",
	})

	TickDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "poller",
		Name:      "tick_duration_seconds",
		Help:      "Duration of poll ticks",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	TickPanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "poller",
		Name:      "tick_panics_total",
		Help:      "Counter of ticks aborted by a recovered panic",
	})

	ResolveFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "resolver",
		Name:      "failures_total",
		Help:      "Counter of external address resolution failures",
	})

	ExternalAddress = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "resolver",
		Name:      "external_address",
		Help:      "Set to 1 for the most recently resolved external address",
	}, []string{"address"})

	UnknownAddressTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "failover",
		Name:      "unknown_address_total",
		Help:      "Counter of resolved addresses that matched neither uplink",
	})

	PrimaryActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "failover",
		Name:      "primary_active",
		Help:      "Whether the alias record currently points at the primary target",
	})

	Confidence = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "failover",
		Name:      "confidence",
		Help:      "Current hysteresis confidence toward the primary uplink",
	})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "failover",
		Name:      "transitions_total",
		Help:      "Counter of confirmed alias transitions",
	}, []string{"side"})

	RecordUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "provider",
		Name:      "record_updates_total",
		Help:      "Counter of successful DNS record updates",
	}, []string{"record"})

	RecordUpdateFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "provider",
		Name:      "record_update_failures_total",
		Help:      "Counter of failed DNS record updates",
	}, []string{"record"})

	NotificationsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "notifier",
		Name:      "sent_total",
		Help:      "Counter of notifications delivered to the channel",
	})

	NotificationsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "notifier",
		Name:      "failed_total",
		Help:      "Counter of notification deliveries that failed",
	})

	NotificationsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "notifier",
		Name:      "pending",
		Help:      "Depth of the pending notification queue",
	})
)
