// Package metrics exports router and session counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nuhub/internal/router"
)

const namespace = "nuhub"

// Collector implements router.Observer and session.Observer.
type Collector struct {
	registry *prometheus.Registry

	dispatchTotal *prometheus.CounterVec
	storedTotal   *prometheus.CounterVec
	replayFrames  *prometheus.CounterVec
	participants  *prometheus.GaugeVec
}

// New registers the hub metrics, plus the Go and process collectors, on a
// fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newCollector(reg)
}

func newCollector(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		registry: reg,

		dispatchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "dispatch_total",
			Help:      "Messages dispatched per module, by outcome",
		}, []string{"module", "outcome"}),

		storedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "params_stored_total",
			Help:      "Parameter store writes per module",
		}, []string{"module"}),

		replayFrames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "replay_frames_total",
			Help:      "Frames sent to joining participants during state replay",
		}, []string{"module"}),

		participants: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "participants",
			Help:      "Connected participants per transport",
		}, []string{"transport"}),
	}
}

func (c *Collector) Dispatched(module string, outcome router.Outcome) {
	c.dispatchTotal.WithLabelValues(module, string(outcome)).Inc()
}

func (c *Collector) Stored(module, _ string, _ router.Value) {
	c.storedTotal.WithLabelValues(module).Inc()
}

func (c *Collector) Replayed(module string, frames int) {
	c.replayFrames.WithLabelValues(module).Add(float64(frames))
}

func (c *Collector) ParticipantAdded(transport string) {
	c.participants.WithLabelValues(transport).Inc()
}

func (c *Collector) ParticipantRemoved(transport string) {
	c.participants.WithLabelValues(transport).Dec()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry is exposed for tests and extra collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
