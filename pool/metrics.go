package pool

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wippyai/nativecoll/resource"
)

// Metrics holds the allocator's prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	livePools      prometheus.Gauge
	poolsCreated   prometheus.Counter
	bytesAllocated prometheus.Counter
	heapTop        prometheus.Gauge
	freeBytes      prometheus.Gauge
	memorySize     prometheus.Gauge
	memoryGrows    prometheus.Counter
	liveBatons     *prometheus.GaugeVec
}

var _ resource.Observer = (*Metrics)(nil)

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		livePools: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "live",
			Help:      "Number of pools not yet destroyed.",
		}),
		poolsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "created_total",
			Help:      "Pools created since start.",
		}),
		bytesAllocated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "allocated_bytes_total",
			Help:      "Bytes handed out by pool allocations, after alignment.",
		}),
		heapTop: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "allocator",
			Name:      "heap_top_bytes",
			Help:      "Highest address ever carved into a block.",
		}),
		freeBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "allocator",
			Name:      "free_bytes",
			Help:      "Bytes held in free blocks awaiting reuse.",
		}),
		memorySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "size_bytes",
			Help:      "Current size of native linear memory.",
		}),
		memoryGrows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "grows_total",
			Help:      "Times native memory was grown. Each growth may relocate it.",
		}),
		liveBatons: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "baton",
			Name:      "live",
			Help:      "Go values reachable from native callbacks, by kind.",
		}, []string{"type"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.livePools, m.poolsCreated, m.bytesAllocated,
			m.heapTop, m.freeBytes, m.memorySize, m.memoryGrows,
			m.liveBatons,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) poolCreated() {
	if m == nil {
		return
	}
	m.poolsCreated.Inc()
	m.livePools.Inc()
}

func (m *Metrics) poolDestroyed() {
	if m == nil {
		return
	}
	m.livePools.Dec()
}

func (m *Metrics) allocated(n uint32) {
	if m == nil {
		return
	}
	m.bytesAllocated.Add(float64(n))
}

func (m *Metrics) setHeapTop(top uint32) {
	if m == nil {
		return
	}
	m.heapTop.Set(float64(top))
}

func (m *Metrics) setFree(n uint64) {
	if m == nil {
		return
	}
	m.freeBytes.Set(float64(n))
}

func (m *Metrics) memoryGrown(size uint32) {
	if m == nil {
		return
	}
	m.memoryGrows.Inc()
	m.memorySize.Set(float64(size))
}

// OnResourceEvent tracks live batons. Subscribe it to a runtime's baton
// table.
func (m *Metrics) OnResourceEvent(e resource.Event) {
	if m == nil {
		return
	}
	switch e.Type {
	case resource.EventCreated:
		m.liveBatons.WithLabelValues(e.TypeID.String()).Inc()
	case resource.EventDropped:
		m.liveBatons.WithLabelValues(e.TypeID.String()).Dec()
	}
}
