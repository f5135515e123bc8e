// Package metrics holds the bridge's process-wide metrics and the HTTP endpoint
// that exposes them in the Prometheus text format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ForwardedName = "number_msgs_total"
	LastValueName = "temp"
)

// Registry owns the forward counter and the last-value gauge. Each metric is
// updated atomically; there is no ordering between the two.
type Registry struct {
	registry  *prometheus.Registry
	forwarded prometheus.Counter
	lastValue prometheus.Gauge
}

// NewRegistry creates a Registry on its own prometheus registry, together with
// the Go runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		forwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: ForwardedName,
			Help: "Messages forwarded",
		}),
		lastValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: LastValueName,
			Help: "Temperature [C]",
		}),
	}

	r.registry.MustRegister(
		r.forwarded,
		r.lastValue,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Registry) IncForwardCount() {
	r.forwarded.Inc()
}

func (r *Registry) SetLastValue(v float64) {
	r.lastValue.Set(v)
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the text exposition of every registered metric. Compression
// is left to the HTTP middleware.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		Registry:           r.registry,
		DisableCompression: true,
	})
}
