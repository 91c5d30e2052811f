package types

import (
	"fmt"
	"time"
)

// ProcessorMetrics is a point-in-time snapshot of one processor's counters.
// Live counters are owned by the processor behind a mutex; this value form
// is safe to copy and share.
type ProcessorMetrics struct {
	ItemsProcessed int64         `json:"items_processed"`
	ItemsDropped   int64         `json:"items_dropped"`
	ProcessingTime time.Duration `json:"processing_time"`
	LastProcessed  time.Time     `json:"last_processed"`
}

// Add returns the element-wise sum of two snapshots. LastProcessed keeps
// the later of the two timestamps.
func (m ProcessorMetrics) Add(o ProcessorMetrics) ProcessorMetrics {
	sum := ProcessorMetrics{
		ItemsProcessed: m.ItemsProcessed + o.ItemsProcessed,
		ItemsDropped:   m.ItemsDropped + o.ItemsDropped,
		ProcessingTime: m.ProcessingTime + o.ProcessingTime,
		LastProcessed:  m.LastProcessed,
	}
	if o.LastProcessed.After(sum.LastProcessed) {
		sum.LastProcessed = o.LastProcessed
	}
	return sum
}

// ProcessorStat locates one processor's metrics within the pipeline tree.
type ProcessorStat struct {
	Tenant    string           `json:"tenant"`
	Agent     string           `json:"agent"`
	Intent    Intent           `json:"intent"`
	Processor string           `json:"processor"`
	Strategy  string           `json:"strategy"`
	Metrics   ProcessorMetrics `json:"metrics"`
}

// Key returns the canonical aggregation key
// "tenant/agent/intent/stage:component/strategy".
func (s ProcessorStat) Key() string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", s.Tenant, s.Agent, s.Intent, s.Processor, s.Strategy)
}

// MetricsSnapshot aggregates every processor of every built pipeline.
type MetricsSnapshot struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Processors  []ProcessorStat  `json:"processors"`
	Totals      ProcessorMetrics `json:"totals"`
}
