package world

import (
	"errors"
	"math"
	"testing"

	modelpkg "beltway.ai/internal/sim/world/kernel/model"
)

func TestConveyor_FillsToCapacityThenRejects(t *testing.T) {
	w := newTestWorld(t, OrderIndex)
	belt := place(t, w, "CONVEYOR", 0, 0, modelpkg.East, 1)

	accepted := 0
	for i := 0; i < 40; i++ {
		if w.CanAccept(belt, "COPPER", modelpkg.West) {
			if err := w.Enqueue("test", belt, "COPPER", modelpkg.West); err != nil {
				t.Fatalf("enqueue: %v", err)
			}
			accepted++
		}
		w.Step(nil)
		checkInvariants(t, w)
	}
	if accepted != 3 {
		t.Fatalf("accepted=%d want 3", accepted)
	}
	n := w.get(belt)
	want := []float64{1.0 / 3, 2.0 / 3, 1}
	for i, it := range n.Belt {
		if math.Abs(it.Progress-want[i]) > 1e-6 {
			t.Fatalf("belt[%d]=%v want %v", i, it.Progress, want[i])
		}
	}
	err := w.Enqueue("test", belt, "COPPER", modelpkg.West)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("4th enqueue err=%v want ErrCapacityExceeded", err)
	}

	sink := place(t, w, "SINK", 1, 0, modelpkg.East, 1)
	steps(w, 20)
	if got := countOf(t, w, sink, "COPPER"); got != 3 {
		t.Fatalf("sink got %d want 3", got)
	}
	if !w.CanAccept(belt, "COPPER", modelpkg.West) {
		t.Fatalf("expected belt to accept after draining")
	}
}

func TestJunction_BlockedDirectionDoesNotAffectOther(t *testing.T) {
	w := newTestWorld(t, OrderIndex)
	j := place(t, w, "JUNCTION", 0, 0, modelpkg.East, 1)
	north := place(t, w, "SINK", 0, 1, modelpkg.East, 1)
	// Nothing east of the junction: West->East is blocked.

	for i := 0; i < 6; i++ {
		if err := w.Enqueue("test", j, "IRON", modelpkg.West); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := w.Enqueue("test", j, "IRON", modelpkg.West); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("7th west enqueue err=%v want ErrCapacityExceeded", err)
	}
	for i := 0; i < 3; i++ {
		if err := w.Enqueue("test", j, "COPPER", modelpkg.South); err != nil {
			t.Fatalf("south enqueue: %v", err)
		}
		steps(w, 4)
		checkInvariants(t, w)
	}
	steps(w, 10)
	if got := countOf(t, w, north, "COPPER"); got != 3 {
		t.Fatalf("north sink got %d want 3", got)
	}
	if got := w.get(j).Lanes[modelpkg.West].Len(); got != 6 {
		t.Fatalf("west lane=%d want 6", got)
	}
	if w.CanAccept(j, "IRON", modelpkg.West) {
		t.Fatalf("west lane should still be full")
	}
	if !w.CanAccept(j, "IRON", modelpkg.South) {
		t.Fatalf("south lane should accept")
	}
}

func TestSorter_SelectedForwardOthersAlternate(t *testing.T) {
	w := newTestWorld(t, OrderIndex)
	s, err := w.Place("test", PlaceSpec{Type: "SORTER", Pos: Vec2i{}, Team: 1, Selected: "COPPER"})
	if err != nil {
		t.Fatalf("place sorter: %v", err)
	}
	east := place(t, w, "SINK", 1, 0, modelpkg.East, 1)
	north := place(t, w, "SINK", 0, 1, modelpkg.East, 1)
	south := place(t, w, "SINK", 0, -1, modelpkg.East, 1)

	feed := []ItemKind{"COPPER", "IRON", "COPPER", "IRON", "COPPER", "IRON", "COPPER", "IRON"}
	var sides []string
	prevN, prevS := 0, 0
	for tick := 0; tick < 200; tick++ {
		if len(feed) > 0 && w.CanAccept(s, feed[0], modelpkg.West) {
			if err := w.Enqueue("test", s, feed[0], modelpkg.West); err != nil {
				t.Fatalf("enqueue: %v", err)
			}
			feed = feed[1:]
		}
		w.Step(nil)
		n, so := countOf(t, w, north, "IRON"), countOf(t, w, south, "IRON")
		if n > prevN {
			sides = append(sides, "N")
		}
		if so > prevS {
			sides = append(sides, "S")
		}
		prevN, prevS = n, so
	}
	if got := countOf(t, w, east, "COPPER"); got != 4 {
		t.Fatalf("forward copper=%d want 4", got)
	}
	if got := countOf(t, w, east, "IRON"); got != 0 {
		t.Fatalf("forward iron=%d want 0", got)
	}
	want := []string{"N", "S", "N", "S"}
	if len(sides) != len(want) {
		t.Fatalf("side deliveries=%v want %v", sides, want)
	}
	for i := range want {
		if sides[i] != want[i] {
			t.Fatalf("side deliveries=%v want %v", sides, want)
		}
	}
}

func TestBridge_FillsWhenReceiverBlockedThenResumes(t *testing.T) {
	w := newTestWorld(t, OrderIndex)
	a := place(t, w, "BRIDGE", 0, 0, modelpkg.East, 1)
	b := place(t, w, "BRIDGE", 4, 0, modelpkg.East, 1)
	if err := w.Link("test", a, b); err != nil {
		t.Fatalf("link at max range: %v", err)
	}

	for i := 0; i < 300; i++ {
		if w.CanAccept(a, "LEAD", modelpkg.West) {
			if err := w.Enqueue("test", a, "LEAD", modelpkg.West); err != nil {
				t.Fatalf("enqueue: %v", err)
			}
		}
		w.Step(nil)
		checkInvariants(t, w)
	}
	if got := w.get(b).Count(); got != 10 {
		t.Fatalf("receiver holds %d want 10", got)
	}
	if got := w.get(a).Count(); got != 10 {
		t.Fatalf("sender holds %d want 10", got)
	}
	if err := w.Enqueue("test", a, "LEAD", modelpkg.West); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("enqueue on full sender err=%v want ErrCapacityExceeded", err)
	}
	if w.get(a).Policy.Link != b {
		t.Fatalf("link lost while blocked")
	}

	sink := place(t, w, "SINK", 5, 0, modelpkg.East, 1)
	steps(w, 40)
	if countOf(t, w, sink, "LEAD") == 0 {
		t.Fatalf("flow did not resume after unblocking")
	}
	if !w.CanAccept(a, "LEAD", modelpkg.West) {
		t.Fatalf("sender still full after unblocking")
	}
	checkInvariants(t, w)
}

func TestBridge_LinkRules(t *testing.T) {
	w := newTestWorld(t, OrderIndex)
	a := place(t, w, "BRIDGE", 0, 0, modelpkg.East, 1)
	far := place(t, w, "BRIDGE", 5, 0, modelpkg.East, 1)
	diag := place(t, w, "BRIDGE", 2, 2, modelpkg.East, 1)
	other := place(t, w, "BRIDGE", 0, 3, modelpkg.North, 2)
	near := place(t, w, "BRIDGE", 3, 0, modelpkg.East, 1)
	router := place(t, w, "ROUTER", 0, -2, modelpkg.East, 1)

	for name, to := range map[string]NodeHandle{"range": far, "aligned": diag, "team": other, "kind": router, "self": a} {
		if err := w.Link("test", a, to); !errors.Is(err, ErrLinkInvalid) {
			t.Fatalf("%s: err=%v want ErrLinkInvalid", name, err)
		}
	}
	if err := w.Link("test", a, near); err != nil {
		t.Fatalf("link: %v", err)
	}
	if err := w.Link("test", near, a); !errors.Is(err, ErrLinkInvalid) {
		t.Fatalf("mutual link err=%v want ErrLinkInvalid", err)
	}
	if err := w.Remove("test", near); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !w.get(a).Policy.Link.IsZero() {
		t.Fatalf("link to removed bridge not cleared")
	}
}

func TestBridge_UnlinkFallsBackToGeometricForward(t *testing.T) {
	w := newTestWorld(t, OrderIndex)
	a := place(t, w, "BRIDGE", 0, 0, modelpkg.East, 1)
	b := place(t, w, "BRIDGE", 3, 0, modelpkg.East, 1)
	next := place(t, w, "SINK", 1, 0, modelpkg.East, 1)
	if err := w.Link("test", a, b); err != nil {
		t.Fatalf("link: %v", err)
	}
	if err := w.Enqueue("test", a, "SAND", modelpkg.West); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	steps(w, 10)
	if got := w.get(b).Count(); got != 1 {
		t.Fatalf("partner holds %d want 1", got)
	}
	if err := w.Unlink("test", a); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if err := w.Enqueue("test", a, "SAND", modelpkg.West); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	steps(w, 10)
	if got := countOf(t, w, next, "SAND"); got != 1 {
		t.Fatalf("geometric neighbour got %d want 1", got)
	}
}

func TestBridge_WestwardLinkIgnoresPlacementOrientation(t *testing.T) {
	w := newTestWorld(t, OrderIndex)
	belt := place(t, w, "CONVEYOR", 6, 0, modelpkg.West, 1)
	// Both bridges keep the default East orientation, which points against the link.
	a := place(t, w, "BRIDGE", 5, 0, modelpkg.East, 1)
	b := place(t, w, "BRIDGE", 2, 0, modelpkg.East, 1)
	sink := place(t, w, "SINK", 1, 0, modelpkg.East, 1)

	if got := w.get(belt).Neighbors[modelpkg.West]; !got.IsZero() {
		t.Fatalf("unlinked bridge facing the belt is a receiver: %+v", got)
	}
	if err := w.Link("test", a, b); err != nil {
		t.Fatalf("link: %v", err)
	}
	if got := w.get(belt).Neighbors[modelpkg.West]; got != a {
		t.Fatalf("belt forward neighbour=%+v want %+v", got, a)
	}
	if got := w.get(b).Policy.Incoming; got != a {
		t.Fatalf("receiver incoming=%+v want %+v", got, a)
	}
	if !w.CanAccept(b, "LEAD", modelpkg.East) {
		t.Fatalf("receiver refuses items from its partner side")
	}

	for i := 0; i < 200; i++ {
		if w.CanAccept(belt, "LEAD", modelpkg.East) {
			if err := w.Enqueue("test", belt, "LEAD", modelpkg.East); err != nil {
				t.Fatalf("enqueue: %v", err)
			}
		}
		w.Step(nil)
		checkInvariants(t, w)
	}
	if got := countOf(t, w, sink, "LEAD"); got < 10 {
		t.Fatalf("sink got %d LEAD across the westward link", got)
	}

	if err := w.Unlink("test", a); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if got := w.get(belt).Neighbors[modelpkg.West]; !got.IsZero() {
		t.Fatalf("belt still feeds a bridge facing it after unlink: %+v", got)
	}
	if got := w.get(b).Policy.Incoming; !got.IsZero() {
		t.Fatalf("receiver incoming not cleared: %+v", got)
	}
}

func TestTeamIsolation(t *testing.T) {
	w := newTestWorld(t, OrderIndex)
	belt := place(t, w, "CONVEYOR", 0, 0, modelpkg.East, 1)
	sink := place(t, w, "SINK", 1, 0, modelpkg.East, 2)
	if err := w.Enqueue("test", belt, "COAL", modelpkg.West); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	steps(w, 30)
	if got := countOf(t, w, sink, "COAL"); got != 0 {
		t.Fatalf("cross-team delivery happened: %d", got)
	}
	if got := w.get(belt).Count(); got != 1 {
		t.Fatalf("belt lost its item: %d", got)
	}

	box, err := w.Place("test", PlaceSpec{Type: "CONTAINER", Pos: Vec2i{X: 0, Y: 5}, Team: 1})
	if err != nil {
		t.Fatalf("place container: %v", err)
	}
	if err := w.Enqueue("test", box, "COAL", modelpkg.North); err != nil {
		t.Fatalf("stock container: %v", err)
	}
	if err := w.Transfer(box, sink, "COAL"); !errors.Is(err, ErrTeamMismatch) {
		t.Fatalf("transfer err=%v want ErrTeamMismatch", err)
	}
	checkInvariants(t, w)
}

func TestTransferCommand_UnloadsStorage(t *testing.T) {
	w := newTestWorld(t, OrderIndex)
	box := place(t, w, "CONTAINER", 0, 0, modelpkg.East, 1)
	sink := place(t, w, "SINK", 0, 5, modelpkg.East, 1)
	if err := w.Enqueue("test", box, "SAND", modelpkg.North); err != nil {
		t.Fatalf("stock: %v", err)
	}

	resp := make(chan CommandResult, 3)
	w.StepOnce([]Command{
		{Op: OpTransfer, Actor: "ops", Pos: Vec2i{X: 1, Y: 1}, Target: Vec2i{X: 0, Y: 5}, Item: "SAND", Resp: resp},
		{Op: OpTransfer, Actor: "ops", Pos: Vec2i{X: 0, Y: 0}, Target: Vec2i{X: 0, Y: 5}, Item: "SAND", Resp: resp},
		{Op: OpTransfer, Actor: "ops", Pos: Vec2i{X: 0, Y: 0}, Target: Vec2i{X: 9, Y: 9}, Item: "SAND", Resp: resp},
	})
	if r := <-resp; r.Err != nil || r.Node != "CONTAINER@0,0" {
		t.Fatalf("transfer: %+v", r)
	}
	if r := <-resp; !errors.Is(r.Err, ErrRejected) {
		t.Fatalf("empty storage err=%v want ErrRejected", r.Err)
	}
	if r := <-resp; !errors.Is(r.Err, ErrStaleNode) {
		t.Fatalf("missing target err=%v want ErrStaleNode", r.Err)
	}
	if got := countOf(t, w, sink, "SAND"); got != 1 {
		t.Fatalf("sink got %d want 1", got)
	}
	if got := w.get(box).Count(); got != 0 {
		t.Fatalf("container still holds %d", got)
	}
	checkInvariants(t, w)
}

func TestStaleNeighbor_RemovedNodeIsNoNeighbor(t *testing.T) {
	w := newTestWorld(t, OrderIndex)
	r := place(t, w, "ROUTER", 0, 0, modelpkg.East, 1)
	old := place(t, w, "SINK", 1, 0, modelpkg.East, 1)
	if w.get(r).Neighbors[modelpkg.East] != old {
		t.Fatalf("router did not resolve its forward neighbour")
	}
	if err := w.Remove("test", old); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !w.get(r).Neighbors[modelpkg.East].IsZero() {
		t.Fatalf("neighbour table kept a removed node")
	}
	if w.CanAccept(old, "IRON", modelpkg.West) {
		t.Fatalf("stale handle accepted an item")
	}
	if err := w.Remove("test", old); !errors.Is(err, ErrStaleNode) {
		t.Fatalf("second remove err=%v want ErrStaleNode", err)
	}

	fresh := place(t, w, "SINK", 1, 0, modelpkg.East, 1)
	if fresh.Index != old.Index || fresh.Gen == old.Gen {
		t.Fatalf("expected slot reuse with new generation: old=%+v fresh=%+v", old, fresh)
	}
	if w.Alive(old) {
		t.Fatalf("old handle resolves after slot reuse")
	}
	if err := w.Enqueue("test", r, "IRON", modelpkg.West); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	steps(w, 10)
	if got := countOf(t, w, fresh, "IRON"); got != 1 {
		t.Fatalf("fresh sink got %d want 1", got)
	}
}

func TestRemove_DropsHeldItems(t *testing.T) {
	w := newTestWorld(t, OrderIndex)
	j := place(t, w, "JUNCTION", 0, 0, modelpkg.East, 1)
	for _, d := range []modelpkg.Direction{modelpkg.West, modelpkg.South, modelpkg.South} {
		if err := w.Enqueue("test", j, "IRON", d); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	audits := &memAudit{}
	w.SetAuditLogger(audits)
	if err := w.Remove("test", j); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := w.Totals().Dropped; got != 3 {
		t.Fatalf("dropped=%d want 3", got)
	}
	if !audits.has("ITEMS_DROPPED") || !audits.has("NODE_REMOVE") {
		t.Fatalf("missing audits: %+v", audits.entries)
	}
	checkInvariants(t, w)
}

func TestAdjacency_FacingBackIsNotReceiver(t *testing.T) {
	w := newTestWorld(t, OrderIndex)
	// Two routers facing each other must not feed each other forever.
	a := place(t, w, "ROUTER", 0, 0, modelpkg.East, 1)
	b := place(t, w, "ROUTER", 1, 0, modelpkg.West, 1)
	if !w.get(a).Neighbors[modelpkg.East].IsZero() || !w.get(b).Neighbors[modelpkg.West].IsZero() {
		t.Fatalf("facing routers resolved each other as receivers")
	}
	if err := w.Enqueue("test", a, "IRON", modelpkg.North); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	steps(w, 20)
	if got := w.get(a).Count(); got != 1 {
		t.Fatalf("router a=%d want 1 (stalled)", got)
	}
}

func TestEnqueue_Errors(t *testing.T) {
	w := newTestWorld(t, OrderIndex)
	r := place(t, w, "ROUTER", 0, 0, modelpkg.East, 1)
	if err := w.Enqueue("test", r, "UNOBTAINIUM", modelpkg.West); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("unknown item err=%v", err)
	}
	if err := w.Enqueue("test", r, "IRON", modelpkg.East); !errors.Is(err, ErrRejected) {
		t.Fatalf("enqueue through output face err=%v want ErrRejected", err)
	}
	if _, err := w.Place("test", PlaceSpec{Type: "TELEPORTER"}); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("unknown type err=%v", err)
	}
	if _, err := w.Place("test", PlaceSpec{Type: "CONTAINER", Pos: Vec2i{X: -1, Y: -1}}); !errors.Is(err, ErrOccupied) {
		t.Fatalf("overlapping footprint err=%v want ErrOccupied", err)
	}
}

func TestSource_EmitsAtThroughput(t *testing.T) {
	w := newTestWorld(t, OrderIndex)
	if _, err := w.Place("test", PlaceSpec{Type: "SOURCE", Pos: Vec2i{}, Orientation: modelpkg.East, Team: 1, Emit: "COPPER"}); err != nil {
		t.Fatalf("place source: %v", err)
	}
	sink := place(t, w, "SINK", 1, 0, modelpkg.East, 1)
	steps(w, 100)
	if got := countOf(t, w, sink, "COPPER"); got != 20 {
		t.Fatalf("sink got %d want 20 (4/s over 5s)", got)
	}
	if tot := w.Totals(); tot.Emitted != 20 || tot.Sunk != 20 {
		t.Fatalf("totals=%+v", tot)
	}
}

func TestStorage_RoundRobinAcrossReceivers(t *testing.T) {
	w := newTestWorld(t, OrderIndex)
	box, err := w.Place("test", PlaceSpec{Type: "CONTAINER", Pos: Vec2i{}, Team: 1})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	for i := 0; i < 6; i++ {
		if err := w.Enqueue("test", box, "GRAPHITE", modelpkg.North); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	east := place(t, w, "SINK", 2, 0, modelpkg.East, 1)
	west := place(t, w, "SINK", -1, 0, modelpkg.East, 1)
	steps(w, 6)
	if e, wst := countOf(t, w, east, "GRAPHITE"), countOf(t, w, west, "GRAPHITE"); e != 3 || wst != 3 {
		t.Fatalf("east=%d west=%d want 3/3", e, wst)
	}
}
