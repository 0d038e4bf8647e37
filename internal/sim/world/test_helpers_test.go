package world

import (
	"testing"

	"beltway.ai/internal/sim/catalogs"
	modelpkg "beltway.ai/internal/sim/world/kernel/model"
)

func newTestWorld(t *testing.T, order AdvanceOrder) *World {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	w, err := New(WorldConfig{ID: "test", TickRateHz: 20, Order: order, Seed: 7}, cats)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	return w
}

func place(t *testing.T, w *World, typ string, x, y int, dir modelpkg.Direction, team TeamTag) NodeHandle {
	t.Helper()
	h, err := w.Place("test", PlaceSpec{Type: typ, Pos: Vec2i{X: x, Y: y}, Orientation: dir, Team: team})
	if err != nil {
		t.Fatalf("place %s at %d,%d: %v", typ, x, y, err)
	}
	return h
}

func countOf(t *testing.T, w *World, h NodeHandle, kind ItemKind) int {
	t.Helper()
	cs, err := w.PeekContents(h)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	for _, c := range cs {
		if c.Kind == kind {
			return c.Count
		}
	}
	return 0
}

func steps(w *World, n int) {
	for i := 0; i < n; i++ {
		w.Step(nil)
	}
}

// checkInvariants asserts per-node capacity, belt spacing and network-wide conservation.
func checkInvariants(t *testing.T, w *World) {
	t.Helper()
	held := 0
	for _, n := range w.live() {
		switch n.Policy.Kind {
		case modelpkg.PolicyJunction:
			for d := range n.Lanes {
				if l := n.Lanes[d].Len(); n.Capacity != modelpkg.Unbounded && l > int(n.Capacity) {
					t.Fatalf("tick %d: %s lane %d holds %d > %d", w.CurrentTick(), w.nodeID(n), d, l, n.Capacity)
				}
			}
		default:
			if n.Capacity != modelpkg.Unbounded && n.Count() > int(n.Capacity) {
				t.Fatalf("tick %d: %s holds %d > %d", w.CurrentTick(), w.nodeID(n), n.Count(), n.Capacity)
			}
		}
		if n.Policy.Kind == modelpkg.PolicyConveyor {
			space := 1 / float64(n.Capacity)
			for i := 1; i < len(n.Belt); i++ {
				if gap := n.Belt[i].Progress - n.Belt[i-1].Progress; gap < space-1e-9 {
					t.Fatalf("tick %d: %s gap %v < %v", w.CurrentTick(), w.nodeID(n), gap, space)
				}
			}
		}
		if n.Policy.Kind != modelpkg.PolicySink {
			held += n.Count()
		}
	}
	tot := w.Totals()
	if got, want := uint64(held)+tot.Sunk+tot.Dropped, tot.Emitted+tot.Injected; got != want {
		t.Fatalf("tick %d: conservation held+sunk+dropped=%d want emitted+injected=%d", w.CurrentTick(), got, want)
	}
}
