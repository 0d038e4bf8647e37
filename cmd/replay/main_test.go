package main

import (
	"path/filepath"
	"strings"
	"testing"

	persistlog "beltway.ai/internal/persistence/log"
	"beltway.ai/internal/sim/catalogs"
	"beltway.ai/internal/sim/layout"
	"beltway.ai/internal/sim/world"
)

func newWorld(t *testing.T, order world.AdvanceOrder) *world.World {
	t.Helper()
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	w, err := world.New(world.WorldConfig{ID: "replay", TickRateHz: 20, Order: order, Seed: 99}, cats)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	return w
}

func record(t *testing.T, order world.AdvanceOrder) string {
	t.Helper()
	dir := t.TempDir()
	tl := persistlog.NewTickLogger(dir)
	w := newWorld(t, order)
	w.SetTickLogger(tl)

	doc, err := layout.Load("../../configs/layouts/demo.yaml")
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if _, err := doc.Apply(w, "layout"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	for i := 0; i < 60; i++ {
		w.Step(nil)
	}
	w.Step([]world.Command{{Op: world.OpRemove, Actor: "ops", Pos: world.Vec2i{X: 2, Y: 0}}})
	for i := 0; i < 39; i++ {
		w.Step(nil)
	}
	if err := tl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return filepath.Join(dir, "ticks")
}

func TestReplay_MatchesRecordedDigests(t *testing.T) {
	for _, order := range []world.AdvanceOrder{world.OrderIndex, world.OrderShuffle} {
		t.Run(string(order), func(t *testing.T) {
			files, err := persistlog.ListFiles(record(t, order), "ticks")
			if err != nil || len(files) == 0 {
				t.Fatalf("files=%v err=%v", files, err)
			}
			w := newWorld(t, order)
			res, err := replay(w, files, 0, 0)
			if err != nil {
				t.Fatalf("replay: %v", err)
			}
			if res.checked != 101 || res.last != 100 || res.restarted {
				t.Fatalf("result=%+v", res)
			}
			if w.NodeCount() != 13 {
				t.Fatalf("nodes=%d want 13", w.NodeCount())
			}
		})
	}
}

func TestReplay_ToTickStopsEarly(t *testing.T) {
	files, _ := persistlog.ListFiles(record(t, world.OrderIndex), "ticks")
	w := newWorld(t, world.OrderIndex)
	res, err := replay(w, files, 10, 20)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.checked != 11 || res.last != 20 {
		t.Fatalf("result=%+v", res)
	}
}

func TestReplay_DetectsDigestMismatch(t *testing.T) {
	dir := t.TempDir()
	tl := persistlog.NewTickLogger(dir)
	_ = tl.WriteTick(world.TickLogEntry{Tick: 0, Digest: "not-a-digest"})
	_ = tl.Close()

	files, _ := persistlog.ListFiles(filepath.Join(dir, "ticks"), "ticks")
	_, err := replay(newWorld(t, world.OrderIndex), files, 0, 0)
	if err == nil || !strings.Contains(err.Error(), "digest mismatch at tick 0") {
		t.Fatalf("err=%v", err)
	}
}

func TestReplay_StopsAtRestart(t *testing.T) {
	dir := t.TempDir()
	tl := persistlog.NewTickLogger(dir)
	rec := newWorld(t, world.OrderIndex)
	rec.SetTickLogger(tl)
	rec.Step(nil)
	rec.Step(nil)
	// A second run appends from tick 0 again.
	rerun := newWorld(t, world.OrderIndex)
	rerun.SetTickLogger(tl)
	rerun.Step(nil)
	_ = tl.Close()

	files, _ := persistlog.ListFiles(filepath.Join(dir, "ticks"), "ticks")
	res, err := replay(newWorld(t, world.OrderIndex), files, 0, 0)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !res.restarted || res.checked != 2 {
		t.Fatalf("result=%+v", res)
	}
}
