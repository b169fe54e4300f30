package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PublishedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_published_total",
			Help: "Total number of snapshots published to the broker",
		},
	)

	PublishFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_publish_failed_total",
			Help: "Total number of failed publish attempts",
		},
	)

	RequeuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_requeued_total",
			Help: "Total number of snapshots put back on the retry queue",
		},
	)

	NotifiedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of order notifications sent",
		},
	)

	NotifyFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Total number of order notifications that could not be sent",
		},
	)

	ConsumerDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consumer_deliveries_total",
			Help: "Broker deliveries handled by the consumer, by outcome",
		},
		[]string{"outcome"},
	)

	ExportCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_cycles_total",
			Help: "Scheduled job cycles, by job and result",
		},
		[]string{"job", "result"},
	)

	QueueDegraded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "retry_queue_degraded",
			Help: "1 while the retry queue runs on its in-memory fallback",
		},
	)

	QueueDepth = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "retry_queue_depth",
			Help: "Entries currently waiting on the retry queue",
		},
		func() float64 {
			depthMu.RLock()
			defer depthMu.RUnlock()

			if depthFn == nil {
				return 0
			}

			return float64(depthFn())
		},
	)

	depthMu sync.RWMutex
	depthFn func() int64

	registerOnce sync.Once
)

// SetQueueDepthFunc installs the function sampled by QueueDepth.
func SetQueueDepthFunc(fn func() int64) {
	depthMu.Lock()
	depthFn = fn
	depthMu.Unlock()
}

// Register registers all collectors with the default registry. Safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(PublishedTotal)
		prometheus.MustRegister(PublishFailedTotal)
		prometheus.MustRegister(RequeuedTotal)
		prometheus.MustRegister(NotifiedTotal)
		prometheus.MustRegister(NotifyFailedTotal)
		prometheus.MustRegister(ConsumerDeliveriesTotal)
		prometheus.MustRegister(ExportCyclesTotal)
		prometheus.MustRegister(QueueDegraded)
		prometheus.MustRegister(QueueDepth)
	})
}
