// Package metrics exposes conversion counters in Prometheus format.
//
// A conversion is a short batch run, so metrics are not served over HTTP;
// they are written once to a text file for the node_exporter textfile
// collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gt2plink"

// Metrics holds the counters updated during a conversion.
type Metrics struct {
	registry *prometheus.Registry

	LinesRead prometheus.Counter
	Retained  prometheus.Counter
	Dropped   *prometheus.CounterVec
	Genotypes *prometheus.CounterVec
	Duration  prometheus.Gauge
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		LinesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_read_total",
			Help:      "Input lines consumed, including comments and blank lines.",
		}),
		Retained: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "variants_retained_total",
			Help:      "Variants written to the fileset.",
		}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_dropped_total",
			Help:      "Data lines dropped during normalization, by reason.",
		}, []string{"reason"}),
		Genotypes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "genotypes_total",
			Help:      "Genotype codes written to the .bed file, by code.",
		}, []string{"code"}),
		Duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last conversion.",
		}),
	}
	m.registry.MustRegister(m.LinesRead, m.Retained, m.Dropped, m.Genotypes, m.Duration)
	return m
}

// Registry returns the registry holding all conversion metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the current metric values to path in the text
// exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
