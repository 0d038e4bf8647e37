package world

import (
	"context"
	"time"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []Command

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case cmd := <-w.cmds:
			pending = append(pending, cmd)
		case req := <-w.inspect:
			w.handleInspect(req)
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case req := <-w.observerSub:
			w.handleObserverSubscribe(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case <-ticker.C:
			w.step(pending)
			pending = pending[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepResult reports one completed tick.
type StepResult struct {
	Tick      uint64
	Digest    string
	Transfers int
	Stalled   int
	// Dirty lists nodes whose contents changed this tick; their flags are cleared.
	Dirty []NodeHandle
	// Removed lists ids of nodes destroyed this tick.
	Removed []string
}

// Step applies cmds at the tick boundary, advances every node once and returns what changed.
func (w *World) Step(cmds []Command) StepResult { return w.step(cmds) }

// StepOnce advances the world by a single tick using the same ordering semantics as the server.
// It is primarily intended for deterministic replays/tests.
func (w *World) StepOnce(cmds []Command) (tick uint64, digest string) {
	res := w.step(cmds)
	return res.Tick, res.Digest
}
