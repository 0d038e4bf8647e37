package world

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"beltway.ai/internal/observerproto"
	modelpkg "beltway.ai/internal/sim/world/kernel/model"
)

func readTick(t *testing.T, ch chan []byte) observerproto.TickMsg {
	t.Helper()
	select {
	case b := <-ch:
		var msg observerproto.TickMsg
		if err := json.Unmarshal(b, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return msg
	default:
		t.Fatalf("no tick message")
	}
	return observerproto.TickMsg{}
}

func TestObserver_FullThenDirtyOnly(t *testing.T) {
	w := newTestWorld(t, OrderIndex)
	belt := place(t, w, "CONVEYOR", 0, 0, modelpkg.East, 1)
	place(t, w, "SINK", 5, 5, modelpkg.East, 1)

	out := make(chan []byte, 4)
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "O1", TickOut: out, Belts: true})

	w.Step(nil)
	first := readTick(t, out)
	if !first.Full || len(first.Nodes) != 2 {
		t.Fatalf("first message full=%v nodes=%d want full with 2", first.Full, len(first.Nodes))
	}

	w.Step(nil)
	idle := readTick(t, out)
	if idle.Full || len(idle.Nodes) != 0 {
		t.Fatalf("idle tick full=%v nodes=%d want 0 dirty", idle.Full, len(idle.Nodes))
	}

	if err := w.Enqueue("test", belt, "COPPER", modelpkg.West); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	w.Step(nil)
	msg := readTick(t, out)
	if len(msg.Nodes) != 1 || msg.Nodes[0].ID != "CONVEYOR@0,0" {
		t.Fatalf("dirty nodes=%+v want only the belt", msg.Nodes)
	}
	st := msg.Nodes[0]
	if len(st.Contents) != 1 || st.Contents[0].Kind != "COPPER" || st.Contents[0].Count != 1 {
		t.Fatalf("contents=%+v", st.Contents)
	}
	if st.Belt == nil || len(st.Belt.Kinds) != 1 || st.Orientation != "E" {
		t.Fatalf("belt state=%+v orientation=%q", st.Belt, st.Orientation)
	}

	w.handleObserverLeave("O1")
	w.Step(nil)
	select {
	case <-out:
		t.Fatalf("message after leave")
	default:
	}
}

func TestRun_AppliesCommandsAtTickBoundary(t *testing.T) {
	w := newTestWorld(t, OrderIndex)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	resp := make(chan CommandResult, 1)
	w.Commands() <- Command{Op: OpPlace, Actor: "ops", Place: &PlaceSpec{Type: "JUNCTION", Pos: Vec2i{X: 2, Y: 3}, Team: 1}, Resp: resp}
	var res CommandResult
	select {
	case res = <-resp:
	case <-time.After(5 * time.Second):
		t.Fatalf("command not applied")
	}
	if res.Err != nil || res.Handle.IsZero() {
		t.Fatalf("place result: %+v", res)
	}

	pos := Vec2i{X: 2, Y: 3}
	states := make(chan []observerproto.NodeState, 1)
	w.Inspect() <- InspectRequest{Pos: &pos, Resp: states}
	select {
	case got := <-states:
		if len(got) != 1 || got[0].ID != "JUNCTION@2,3" || got[0].Policy != "junction" {
			t.Fatalf("inspect=%+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("inspect timed out")
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("run err=%v want context.Canceled", err)
	}
	if m := w.Metrics(); m.Nodes != 1 || m.Tick == 0 {
		t.Fatalf("metrics=%+v", m)
	}
}
