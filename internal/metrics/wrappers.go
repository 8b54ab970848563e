package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// register adds c to the default registry. If an identical collector is
// already registered the existing one is returned so callers share it.
func register[T prometheus.Collector](c T) T {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		// Anything else leaves c unregistered but usable
	}
	return c
}

// Counter wraps prometheus.Counter
type Counter struct {
	counter prometheus.Counter
}

// NewCounter creates and registers a counter with constant labels.
func NewCounter(name, help string, labels map[string]string) *Counter {
	return &Counter{counter: register(prometheus.NewCounter(prometheus.CounterOpts{
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	}))}
}

// Inc increments the counter by 1
func (c *Counter) Inc() { c.counter.Inc() }

// Add adds the given value to the counter
func (c *Counter) Add(v float64) { c.counter.Add(v) }

// Gauge wraps prometheus.Gauge
type Gauge struct {
	gauge prometheus.Gauge
}

// NewGauge creates and registers a gauge with constant labels.
func NewGauge(name, help string, labels map[string]string) *Gauge {
	return &Gauge{gauge: register(prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	}))}
}

// Set sets the gauge to the given value
func (g *Gauge) Set(v float64) { g.gauge.Set(v) }

// Inc increments the gauge by 1
func (g *Gauge) Inc() { g.gauge.Inc() }

// Dec decrements the gauge by 1
func (g *Gauge) Dec() { g.gauge.Dec() }

// SetBuildInfo publishes a constant 1-valued gauge labelled with the build.
func SetBuildInfo(version, commit, goVersion string) {
	NewGauge("playcore_build_info", "Build information of the running binary", map[string]string{
		"version":    version,
		"commit":     commit,
		"go_version": goVersion,
	}).Set(1)
}
