package framebuffer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Occupancy per queue
	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "playcore_framebuffer_depth",
		Help: "Number of decoded frames waiting for presentation",
	}, []string{"owner", "queue"})

	queueCapacity = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "playcore_framebuffer_capacity",
		Help: "Configured frame buffer capacity",
	}, []string{"owner", "queue"})

	// Pushes refused because the queue was full
	queueRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playcore_framebuffer_rejected_total",
		Help: "Total number of frames refused by a full buffer",
	}, []string{"owner", "queue"})
)

type queueMetrics struct {
	depth   prometheus.Gauge
	rejects prometheus.Counter
	owner   string
	queue   string
}

func newQueueMetrics(owner, queue string, capacity int) *queueMetrics {
	queueCapacity.WithLabelValues(owner, queue).Set(float64(capacity))
	m := &queueMetrics{
		depth:   queueDepth.WithLabelValues(owner, queue),
		rejects: queueRejectedTotal.WithLabelValues(owner, queue),
		owner:   owner,
		queue:   queue,
	}
	m.depth.Set(0)
	return m
}

func (m *queueMetrics) observe(depth int) {
	if m == nil {
		return
	}
	m.depth.Set(float64(depth))
}

func (m *queueMetrics) rejected() {
	if m == nil {
		return
	}
	m.rejects.Inc()
}

// release drops the label set so finished owners do not linger in scrapes.
func (m *queueMetrics) release() {
	if m == nil {
		return
	}
	queueDepth.DeleteLabelValues(m.owner, m.queue)
	queueCapacity.DeleteLabelValues(m.owner, m.queue)
	queueRejectedTotal.DeleteLabelValues(m.owner, m.queue)
}
