package world

import (
	"fmt"

	conveyorrt "beltway.ai/internal/sim/world/feature/conveyor/runtime"
	distrt "beltway.ai/internal/sim/world/feature/distribution/runtime"
	storagert "beltway.ai/internal/sim/world/feature/storage/runtime"
	modelpkg "beltway.ai/internal/sim/world/kernel/model"
)

// canAccept is the receiver half of a transfer: allow-list, then the policy's own check.
// Team checks happen at the sender side in Offer.
func (w *World) canAccept(n *modelpkg.Node, kind ItemKind, from Direction) bool {
	if kind == "" || !n.AcceptsKind(kind) {
		return false
	}
	switch n.Policy.Kind {
	case modelpkg.PolicyConveyor:
		return conveyorrt.CanAccept(n, from)
	case modelpkg.PolicyStorage, modelpkg.PolicySink:
		return storagert.CanAccept(n)
	case modelpkg.PolicySource:
		return false
	default:
		return distrt.CanAccept(worldEnv{w}, n, from)
	}
}

func (w *World) enqueue(n *modelpkg.Node, kind ItemKind, from Direction) {
	switch n.Policy.Kind {
	case modelpkg.PolicyConveyor:
		conveyorrt.Enqueue(n, kind, from)
	case modelpkg.PolicySink:
		storagert.Add(n, kind)
		w.totals.Sunk++
	case modelpkg.PolicyStorage:
		storagert.Add(n, kind)
	default:
		distrt.Enqueue(n, kind, from, w.Now())
	}
}

// full reports whether the queue an item from side from would land in is at capacity.
func full(n *modelpkg.Node, from Direction) bool {
	switch n.Policy.Kind {
	case modelpkg.PolicyJunction:
		return !n.Capacity.Allows(n.Lanes[from%modelpkg.NumDirections].Len())
	case modelpkg.PolicyConveyor:
		return !n.Capacity.Allows(len(n.Belt))
	case modelpkg.PolicyStorage, modelpkg.PolicySink:
		return !n.Capacity.Allows(n.Inventory.Total())
	default:
		return !n.Capacity.Allows(n.Lane.Len())
	}
}

// CanAccept reports whether the node would take one item of kind entering through side from.
// Stale handles accept nothing.
func (w *World) CanAccept(h NodeHandle, kind ItemKind, from Direction) bool {
	n := w.get(h)
	if n == nil {
		return false
	}
	return w.canAccept(n, kind, from)
}

// Enqueue inserts an item from outside the network. It is gated by CanAccept and reports why a
// refused item was refused; nothing is stored on error.
func (w *World) Enqueue(actor string, h NodeHandle, kind ItemKind, from Direction) error {
	n := w.get(h)
	if n == nil {
		return fmt.Errorf("enqueue: %w", ErrStaleNode)
	}
	if err := w.checkItem(kind); err != nil || kind == "" {
		return fmt.Errorf("enqueue %s: %w: %q", w.nodeID(n), ErrUnknownItem, kind)
	}
	if !w.canAccept(n, kind, from) {
		err := ErrRejected
		if from.Valid() && full(n, from) {
			err = ErrCapacityExceeded
		}
		w.audit(actor, "ENQUEUE_REJECTED", n, err.Error(), map[string]any{"kind": string(kind), "from": from.String()})
		return fmt.Errorf("enqueue %s: %w", w.nodeID(n), err)
	}
	w.enqueue(n, kind, from)
	w.totals.Injected++
	return nil
}

// Transfer moves one item of kind out of the source's storage into dst, as a node-to-node hand-off.
// It backs the TRANSFER command and, unlike internal transfers, reports the reason for a refusal.
func (w *World) Transfer(src, dst NodeHandle, kind ItemKind) error {
	a, b := w.get(src), w.get(dst)
	if a == nil || b == nil {
		return fmt.Errorf("transfer: %w", ErrStaleNode)
	}
	if a.Team != b.Team {
		return fmt.Errorf("transfer %s -> %s: %w", w.nodeID(a), w.nodeID(b), ErrTeamMismatch)
	}
	if a.Policy.Kind != modelpkg.PolicyStorage || a.Inventory.Counts[kind] <= 0 {
		return fmt.Errorf("transfer %s -> %s: %w: no %s in stock", w.nodeID(a), w.nodeID(b), ErrRejected, kind)
	}
	if !(worldEnv{w}).Offer(a, dst, kind) {
		return fmt.Errorf("transfer %s -> %s: %w", w.nodeID(a), w.nodeID(b), ErrRejected)
	}
	a.Inventory.Counts[kind]--
	if a.Inventory.Counts[kind] <= 0 {
		delete(a.Inventory.Counts, kind)
	}
	a.Dirty = true
	return nil
}

// PeekContents lists what a node holds, per kind, sorted by kind.
func (w *World) PeekContents(h NodeHandle) ([]ItemCount, error) {
	n := w.get(h)
	if n == nil {
		return nil, fmt.Errorf("peek: %w", ErrStaleNode)
	}
	return n.Contents(), nil
}

// advanceNode runs one tick of a single node and reports whether it ended holding a ready item
// nobody took.
func (w *World) advanceNode(n *modelpkg.Node, dt float64) (stalled bool) {
	env := worldEnv{w}
	switch n.Policy.Kind {
	case modelpkg.PolicyConveyor:
		return conveyorrt.Advance(env, n, dt).Stalled
	case modelpkg.PolicyStorage:
		if storagert.Advance(env, n) {
			return false
		}
		return n.Inventory.Total() > 0 && len(storagert.Receivers(n)) > 0
	case modelpkg.PolicySource:
		if storagert.AdvanceSource(env, n) {
			w.totals.Emitted++
		}
		return false
	case modelpkg.PolicySink:
		return false
	case modelpkg.PolicyBridge:
		if !n.Policy.Link.IsZero() && w.get(n.Policy.Link) == nil {
			n.Policy.Link = NodeHandle{}
			n.Dirty = true
			w.audit("WORLD", "LINK_BROKEN", n, "partner gone", nil)
		}
	}
	return distrt.Advance(env, n).Stalled > 0
}
