package world

import (
	"math/rand"
	"time"

	modelpkg "beltway.ai/internal/sim/world/kernel/model"
)

func (w *World) step(cmds []Command) StepResult {
	stepStart := time.Now()
	nowTick := w.tick.Load()

	w.transfers = 0
	w.stalled = 0
	w.auditsThisTick = w.auditsThisTick[:0]
	w.removedIDs = w.removedIDs[:0]
	w.drainSessions()

	// Commands apply in receive order before any node advances.
	recorded := make([]Command, 0, len(cmds))
	for _, cmd := range cmds {
		res := w.applyCommand(cmd)
		if cmd.Resp != nil {
			select {
			case cmd.Resp <- res:
			default:
			}
		}
		cmd.Resp = nil
		recorded = append(recorded, cmd)
	}

	dt := w.Dt()
	for _, n := range w.advanceOrder(nowTick) {
		// A node removed earlier in this tick is skipped.
		if w.get(n.Handle) != n {
			continue
		}
		if w.advanceNode(n, dt) {
			w.stalled++
		}
	}

	var dirty []NodeHandle
	inFlight := 0
	for _, n := range w.live() {
		if n.Policy.Kind != modelpkg.PolicySink {
			inFlight += n.Count()
		}
		if n.Dirty {
			dirty = append(dirty, n.Handle)
			n.Dirty = false
		}
	}
	removed := append([]string(nil), w.removedIDs...)

	digest := w.stateDigest(nowTick)
	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{Tick: nowTick, Commands: recorded, Transfers: w.transfers, Digest: digest})
	}

	w.stepObservers(nowTick, dirty, removed, inFlight)

	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000.0
	nextTick := w.tick.Add(1)
	w.metrics.Store(WorldMetrics{
		Tick:      nextTick,
		Nodes:     w.NodeCount(),
		InFlight:  inFlight,
		Transfers: w.transfers,
		Stalled:   w.stalled,
		Totals:    w.totals,
		QueueDepths: QueueDepths{
			Commands: len(w.cmds),
			Inspect:  len(w.inspect),
		},
		Observers: len(w.observers),
		StepMS:    stepMS,
	})

	return StepResult{
		Tick:      nowTick,
		Digest:    digest,
		Transfers: w.transfers,
		Stalled:   w.stalled,
		Dirty:     dirty,
		Removed:   removed,
	}
}

// advanceOrder is the visiting order for this tick. Shuffle is seeded per tick so runs stay
// reproducible.
func (w *World) advanceOrder(tick uint64) []*modelpkg.Node {
	nodes := w.live()
	switch w.cfg.Order {
	case OrderReverse:
		for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
			nodes[i], nodes[j] = nodes[j], nodes[i]
		}
	case OrderShuffle:
		rng := rand.New(rand.NewSource(w.cfg.Seed ^ int64(tick)))
		rng.Shuffle(len(nodes), func(i, j int) { nodes[i], nodes[j] = nodes[j], nodes[i] })
	}
	return nodes
}
