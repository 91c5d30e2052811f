// Package metrics exposes memflow processor counters in Prometheus form.
// The orchestrator owns the live counters; this package adapts its
// snapshots to a prometheus.Collector, so every scrape reads fresh values
// and nothing is double-counted between snapshot and scrape.
package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/a2arium/memflow/pkg/types"
)

// Source yields a point-in-time metrics snapshot. The orchestrator
// implements it; tests substitute fixtures.
type Source interface {
	GetMetrics() types.MetricsSnapshot
}

// Label names on every processor metric, in order.
var processorLabels = []string{"tenant", "agent", "intent", "processor", "strategy"}

// Collector adapts a Source to the prometheus.Collector contract using
// const metrics built per scrape.
type Collector struct {
	source Source

	itemsProcessed *prometheus.Desc
	itemsDropped   *prometheus.Desc
	processingTime *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector builds a collector over the given source.
func NewCollector(source Source) *Collector {
	return &Collector{
		source: source,
		itemsProcessed: prometheus.NewDesc(
			"memflow_processor_items_processed_total",
			"Items a processor completed, including ones it dropped.",
			processorLabels, nil,
		),
		itemsDropped: prometheus.NewDesc(
			"memflow_processor_items_dropped_total",
			"Items a processor dropped by policy or lost to a fault.",
			processorLabels, nil,
		),
		processingTime: prometheus.NewDesc(
			"memflow_processor_processing_seconds_total",
			"Cumulative time spent inside a processor.",
			processorLabels, nil,
		),
	}
}

// Describe sends the fixed metric descriptors.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.itemsProcessed
	ch <- c.itemsDropped
	ch <- c.processingTime
}

// Collect snapshots the source and emits one series per processor.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.source.GetMetrics()
	for _, s := range snap.Processors {
		labels := []string{s.Tenant, s.Agent, string(s.Intent), s.Processor, s.Strategy}
		ch <- prometheus.MustNewConstMetric(c.itemsProcessed, prometheus.CounterValue,
			float64(s.Metrics.ItemsProcessed), labels...)
		ch <- prometheus.MustNewConstMetric(c.itemsDropped, prometheus.CounterValue,
			float64(s.Metrics.ItemsDropped), labels...)
		ch <- prometheus.MustNewConstMetric(c.processingTime, prometheus.CounterValue,
			s.Metrics.ProcessingTime.Seconds(), labels...)
	}
}

// NewRegistry returns a fresh registry with a collector for the source
// already registered.
func NewRegistry(source Source) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(source)); err != nil {
		return nil, err
	}
	return reg, nil
}

// WriteText writes everything a gatherer holds in the Prometheus text
// exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
