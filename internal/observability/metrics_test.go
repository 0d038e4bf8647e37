package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"beltway.ai/internal/persistence/indexdb"
	"beltway.ai/internal/sim/world"
)

type fakeSource struct{ m world.WorldMetrics }

func (f fakeSource) Metrics() world.WorldMetrics { return f.m }

type fakeIndex struct{ st indexdb.Stats }

func (f fakeIndex) Stats() indexdb.Stats { return f.st }

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()
	RecordHTTPRequest("GET", "/healthz", 200, 12*time.Millisecond)
}

func TestWorldCollector(t *testing.T) {
	src := fakeSource{m: world.WorldMetrics{
		Tick:      42,
		Nodes:     7,
		InFlight:  5,
		Transfers: 3,
		Stalled:   1,
		Totals:    world.Totals{Emitted: 10, Injected: 2, Sunk: 6, Dropped: 1},
		StepMS:    2,
	}}
	idx := fakeIndex{st: indexdb.Stats{QueueDepth: 4, DropTickTotal: 9}}
	c := NewWorldCollector(src, idx, "w1")

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}
	// 13 world series plus 3 index series.
	if n := testutil.CollectAndCount(c); n != 16 {
		t.Fatalf("collected %d metrics want 16", n)
	}
	want := `
# HELP beltway_world_items_total Cumulative item counts by boundary.
# TYPE beltway_world_items_total counter
beltway_world_items_total{boundary="dropped",world="w1"} 1
beltway_world_items_total{boundary="emitted",world="w1"} 10
beltway_world_items_total{boundary="injected",world="w1"} 2
beltway_world_items_total{boundary="sunk",world="w1"} 6
# HELP beltway_world_tick Last completed tick.
# TYPE beltway_world_tick gauge
beltway_world_tick{world="w1"} 42
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "beltway_world_items_total", "beltway_world_tick"); err != nil {
		t.Fatalf("compare: %v", err)
	}
}

func TestInstrument_RecordsStatus(t *testing.T) {
	h := Instrument(zerolog.Nop(), "/teapot", http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusTeapot)
	}))
	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/teapot", "418"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teapot", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("code=%d", rec.Code)
	}
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/teapot", "418")); got != before+1 {
		t.Fatalf("requests=%v want %v", got, before+1)
	}
}
