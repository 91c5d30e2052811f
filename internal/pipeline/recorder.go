package pipeline

import (
	"sync"
	"time"

	"github.com/a2arium/memflow/pkg/types"
)

// Recorder is the metrics helper the builtin processors embed. It counts
// completed Process calls and the calls that yielded no surviving items.
// All methods are safe for concurrent use; pipelines run many items at
// once against the same processor instance.
type Recorder struct {
	mu sync.Mutex
	m  types.ProcessorMetrics
}

// RecordProcessed notes one completed call that forwarded items.
func (r *Recorder) RecordProcessed(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m.ItemsProcessed++
	r.m.ProcessingTime += d
	r.m.LastProcessed = time.Now().UTC()
}

// RecordDrop notes one completed call that yielded no items. The executor
// also uses this path for processor faults, where the transformation is
// lost even though the original item continues.
func (r *Recorder) RecordDrop(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m.ItemsProcessed++
	r.m.ItemsDropped++
	r.m.ProcessingTime += d
	r.m.LastProcessed = time.Now().UTC()
}

// Metrics returns a copy of the counters.
func (r *Recorder) Metrics() types.ProcessorMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m
}

// Reset zeroes the counters.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m = types.ProcessorMetrics{}
}
