package runtime

import (
	"math"
	"testing"

	modelpkg "beltway.ai/internal/sim/world/kernel/model"
)

type fakeEnv struct {
	accept bool
	got    []modelpkg.ItemKind
}

func (e *fakeEnv) Offer(_ *modelpkg.Node, _ modelpkg.NodeHandle, kind modelpkg.ItemKind) bool {
	if !e.accept {
		return false
	}
	e.got = append(e.got, kind)
	return true
}

func newBelt(capacity int) *modelpkg.Node {
	return &modelpkg.Node{
		Handle:      modelpkg.NodeHandle{Index: 1, Gen: 1},
		Size:        1,
		Oriented:    true,
		Orientation: modelpkg.East,
		Capacity:    modelpkg.Capacity(capacity),
		Speed:       2,
		Policy:      modelpkg.Policy{Kind: modelpkg.PolicyConveyor},
	}
}

func assertSpacing(t *testing.T, n *modelpkg.Node) {
	t.Helper()
	space := ItemSpace(n)
	for i := 1; i < len(n.Belt); i++ {
		if gap := n.Belt[i].Progress - n.Belt[i-1].Progress; gap < space-1e-6 {
			t.Fatalf("items %d,%d gap=%.6f < itemSpace %.6f (belt=%+v)", i-1, i, gap, space, n.Belt)
		}
	}
	if len(n.Belt) > int(n.Capacity) {
		t.Fatalf("belt holds %d items, capacity %d", len(n.Belt), n.Capacity)
	}
}

func TestBelt_FillsToCapacityAndParks(t *testing.T) {
	env := &fakeEnv{}
	n := newBelt(3)
	n.Neighbors[modelpkg.East] = modelpkg.NodeHandle{Index: 2, Gen: 1}

	accepted := 0
	for tick := 0; tick < 200; tick++ {
		if accepted < 4 && CanAccept(n, modelpkg.West) {
			Enqueue(n, "COPPER", modelpkg.West)
			accepted++
		}
		Advance(env, n, 0.05)
		assertSpacing(t, n)
	}
	if accepted != 3 {
		t.Fatalf("accepted=%d want 3", accepted)
	}
	if CanAccept(n, modelpkg.West) {
		t.Fatalf("full belt accepts a 4th item")
	}
	want := []float64{1.0 / 3, 2.0 / 3, 1}
	for i, w := range want {
		if math.Abs(n.Belt[i].Progress-w) > 1e-6 {
			t.Fatalf("item %d progress=%.4f want %.4f", i, n.Belt[i].Progress, w)
		}
	}

	// Unblock: the leading item leaves and the rest keep their spacing.
	env.accept = true
	Advance(env, n, 0.05)
	if len(env.got) != 1 || len(n.Belt) != 2 {
		t.Fatalf("after unblock delivered=%d remaining=%d", len(env.got), len(n.Belt))
	}
	assertSpacing(t, n)
}

func TestBelt_RejectsOutputFaceAndNoNeighbourStalls(t *testing.T) {
	n := newBelt(4)
	if CanAccept(n, modelpkg.East) {
		t.Fatalf("belt accepted through its output face")
	}
	Enqueue(n, "IRON", modelpkg.West)
	var res Result
	for i := 0; i < 40; i++ {
		res = Advance(nil, n, 0.05)
	}
	if !res.Stalled || len(n.Belt) != 1 || n.Belt[0].Progress != 1 {
		t.Fatalf("want parked item at 1, got res=%+v belt=%+v", res, n.Belt)
	}
}

func TestBelt_SideMergeSlotsByPosition(t *testing.T) {
	n := newBelt(4)
	env := &fakeEnv{}
	Enqueue(n, "A", modelpkg.West)
	n.Belt[0].Progress = 0.9
	Enqueue(n, "B", modelpkg.West)

	if !CanAccept(n, modelpkg.North) {
		t.Fatalf("side entry with clear midpoint rejected")
	}
	Enqueue(n, "C", modelpkg.North)
	if len(n.Belt) != 3 || n.Belt[1].Kind != "C" {
		t.Fatalf("side item not slotted between back and lead: %+v", n.Belt)
	}
	if n.Belt[1].Lateral != 1 {
		t.Fatalf("left merge lateral=%v want 1", n.Belt[1].Lateral)
	}
	if CanAccept(n, modelpkg.South) {
		t.Fatalf("side entry accepted while midpoint occupied")
	}
	assertSpacing(t, n)

	for i := 0; i < 20; i++ {
		Advance(env, n, 0.05)
		assertSpacing(t, n)
	}
	for _, it := range n.Belt {
		if it.Lateral != 0 {
			t.Fatalf("lateral offset did not settle: %+v", n.Belt)
		}
	}
}

func TestBelt_SideEntryJoinsAtMidpoint(t *testing.T) {
	for _, tc := range []struct {
		from    modelpkg.Direction
		lateral float64
	}{
		{modelpkg.North, 1},
		{modelpkg.South, -1},
	} {
		n := newBelt(4)
		Enqueue(n, "SIDE", tc.from)
		Enqueue(n, "BACK", modelpkg.West)
		if len(n.Belt) != 2 {
			t.Fatalf("from %v: belt=%+v", tc.from, n.Belt)
		}
		if n.Belt[0].Kind != "BACK" || n.Belt[0].Progress != 0 {
			t.Fatalf("from %v: back entry=%+v want progress 0", tc.from, n.Belt[0])
		}
		if n.Belt[1].Kind != "SIDE" || n.Belt[1].Progress != SideEntry || SideEntry != 0.5 {
			t.Fatalf("from %v: side entry=%+v want progress 0.5", tc.from, n.Belt[1])
		}
		if n.Belt[1].Lateral != tc.lateral {
			t.Fatalf("from %v: lateral=%v want %v", tc.from, n.Belt[1].Lateral, tc.lateral)
		}
	}
}

func TestBelt_SpacingHoldsUnderMixedFeed(t *testing.T) {
	n := newBelt(5)
	n.Neighbors[modelpkg.East] = modelpkg.NodeHandle{Index: 2, Gen: 1}
	env := &fakeEnv{}
	sides := []modelpkg.Direction{modelpkg.West, modelpkg.North, modelpkg.South}
	for tick := 0; tick < 500; tick++ {
		env.accept = tick%7 < 3
		from := sides[tick%len(sides)]
		if CanAccept(n, from) {
			Enqueue(n, "X", from)
		}
		assertSpacing(t, n)
		Advance(env, n, 0.03)
		assertSpacing(t, n)
	}
	if len(env.got) == 0 {
		t.Fatalf("no items delivered")
	}
	if MinGap(n) < ItemSpace(n)-1e-6 {
		t.Fatalf("MinGap=%v", MinGap(n))
	}
}
