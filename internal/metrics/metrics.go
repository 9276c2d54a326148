// Package metrics implements Prometheus metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the switch collectors on their own registry, so several
// switches in one process (tests, replays) never collide.
type Metrics struct {
	registry *prometheus.Registry

	// FramesTotal counts handled frames by forwarding verdict
	FramesTotal *prometheus.CounterVec

	// EmissionsTotal counts frames transmitted per egress interface
	EmissionsTotal *prometheus.CounterVec

	// TableEntries tracks the current number of learned stations
	TableEntries prometheus.Gauge

	// TableUpdatesTotal counts address table changes by kind
	TableUpdatesTotal *prometheus.CounterVec
}

// New registers the switch collectors and the Go runtime collectors on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		FramesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lswitch_frames_total",
				Help: "Total number of frames handled, by forwarding verdict",
			},
			[]string{"verdict"},
		),
		EmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lswitch_emissions_total",
				Help: "Total number of frames transmitted, by egress interface",
			},
			[]string{"interface"},
		),
		TableEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "lswitch_table_entries",
				Help: "Current number of stations in the address table",
			},
		),
		TableUpdatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lswitch_table_updates_total",
				Help: "Total number of address table updates, by kind (inserted, refreshed, moved, evicted)",
			},
			[]string{"action"},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveFrame(verdict string) {
	m.FramesTotal.WithLabelValues(verdict).Inc()
}

func (m *Metrics) ObserveEmission(ifc int) {
	m.EmissionsTotal.WithLabelValues(strconv.Itoa(ifc)).Inc()
}

func (m *Metrics) ObserveLearn(action string, entries int) {
	m.TableUpdatesTotal.WithLabelValues(action).Inc()
	m.TableEntries.Set(float64(entries))
}
