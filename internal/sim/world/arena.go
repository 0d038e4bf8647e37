package world

import modelpkg "beltway.ai/internal/sim/world/kernel/model"

// slot is one arena cell. gen is bumped on every free so older handles stop resolving.
type slot struct {
	gen  uint32
	node *modelpkg.Node
}

func (w *World) alloc(n *modelpkg.Node) NodeHandle {
	var idx uint32
	if k := len(w.free); k > 0 {
		idx = w.free[k-1]
		w.free = w.free[:k-1]
	} else {
		idx = uint32(len(w.slots))
		w.slots = append(w.slots, slot{})
	}
	s := &w.slots[idx]
	if s.gen == 0 {
		s.gen = 1
	}
	s.node = n
	h := NodeHandle{Index: idx, Gen: s.gen}
	n.Handle = h
	return h
}

func (w *World) release(h NodeHandle) {
	s := &w.slots[h.Index]
	s.node = nil
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	w.free = append(w.free, h.Index)
}

// get resolves a handle, returning nil for zero or stale handles.
func (w *World) get(h NodeHandle) *modelpkg.Node {
	if h.IsZero() || int(h.Index) >= len(w.slots) {
		return nil
	}
	s := &w.slots[h.Index]
	if s.gen != h.Gen || s.node == nil {
		return nil
	}
	return s.node
}

// live returns every live node in arena index order.
func (w *World) live() []*modelpkg.Node {
	out := make([]*modelpkg.Node, 0, len(w.slots)-len(w.free))
	for i := range w.slots {
		if n := w.slots[i].node; n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (w *World) Alive(h NodeHandle) bool { return w.get(h) != nil }

func (w *World) NodeCount() int { return len(w.slots) - len(w.free) }

// NodeAt returns the node occupying cell p, if any.
func (w *World) NodeAt(p Vec2i) (NodeHandle, bool) {
	h, ok := w.grid[p]
	if !ok || w.get(h) == nil {
		return NodeHandle{}, false
	}
	return h, true
}
