package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"beltway.ai/internal/persistence/indexdb"
	"beltway.ai/internal/sim/world"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "beltway",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "beltway",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// MetricsSource is satisfied by *world.World.
type MetricsSource interface {
	Metrics() world.WorldMetrics
}

// IndexStatsSource is satisfied by *indexdb.SQLiteIndex.
type IndexStatsSource interface {
	Stats() indexdb.Stats
}

// WorldCollector exports the latest world metrics snapshot at scrape time.
type WorldCollector struct {
	world MetricsSource
	index IndexStatsSource

	tick       *prometheus.Desc
	nodes      *prometheus.Desc
	inFlight   *prometheus.Desc
	transfers  *prometheus.Desc
	stalled    *prometheus.Desc
	totals     *prometheus.Desc
	queue      *prometheus.Desc
	observers  *prometheus.Desc
	stepSecs   *prometheus.Desc
	indexDepth *prometheus.Desc
	indexDrops *prometheus.Desc
}

// NewWorldCollector wires a collector for one world. index may be nil.
func NewWorldCollector(src MetricsSource, index IndexStatsSource, worldID string) *WorldCollector {
	labels := prometheus.Labels{"world": worldID}
	desc := func(name, help string, vars ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("beltway", "world", name), help, vars, labels)
	}
	return &WorldCollector{
		world:      src,
		index:      index,
		tick:       desc("tick", "Last completed tick."),
		nodes:      desc("nodes", "Live nodes."),
		inFlight:   desc("in_flight_items", "Items held by non-sink nodes."),
		transfers:  desc("tick_transfers", "Transfers accepted during the last tick."),
		stalled:    desc("tick_stalled_nodes", "Nodes holding a ready item that no receiver accepted during the last tick."),
		totals:     desc("items_total", "Cumulative item counts by boundary.", "boundary"),
		queue:      desc("queue_depth", "Pending requests per world channel.", "queue"),
		observers:  desc("observers", "Connected observer sessions."),
		stepSecs:   desc("step_seconds", "Wall time of the last tick."),
		indexDepth: desc("index_queue_depth", "Pending SQLite index writes."),
		indexDrops: desc("index_dropped_total", "SQLite index writes dropped under backlog.", "stream"),
	}
}

func (c *WorldCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{c.tick, c.nodes, c.inFlight, c.transfers, c.stalled, c.totals, c.queue, c.observers, c.stepSecs} {
		ch <- d
	}
	if c.index != nil {
		ch <- c.indexDepth
		ch <- c.indexDrops
	}
}

func (c *WorldCollector) Collect(ch chan<- prometheus.Metric) {
	m := c.world.Metrics()
	gauge := func(d *prometheus.Desc, v float64, lv ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, lv...)
	}
	counter := func(d *prometheus.Desc, v float64, lv ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, lv...)
	}
	gauge(c.tick, float64(m.Tick))
	gauge(c.nodes, float64(m.Nodes))
	gauge(c.inFlight, float64(m.InFlight))
	gauge(c.transfers, float64(m.Transfers))
	gauge(c.stalled, float64(m.Stalled))
	counter(c.totals, float64(m.Totals.Emitted), "emitted")
	counter(c.totals, float64(m.Totals.Injected), "injected")
	counter(c.totals, float64(m.Totals.Sunk), "sunk")
	counter(c.totals, float64(m.Totals.Dropped), "dropped")
	gauge(c.queue, float64(m.QueueDepths.Commands), "commands")
	gauge(c.queue, float64(m.QueueDepths.Inspect), "inspect")
	gauge(c.observers, float64(m.Observers))
	gauge(c.stepSecs, m.StepMS/1000)

	if c.index != nil {
		st := c.index.Stats()
		gauge(c.indexDepth, float64(st.QueueDepth))
		counter(c.indexDrops, float64(st.DropTickTotal), "tick")
		counter(c.indexDrops, float64(st.DropAuditTotal), "audit")
	}
}
