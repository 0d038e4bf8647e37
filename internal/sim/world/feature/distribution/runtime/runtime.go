package runtime

import modelpkg "beltway.ai/internal/sim/world/kernel/model"

// Env is the world-facing callback set used by queue nodes.
// Offer must perform the receiver's accept check and commit only when it passes.
type Env interface {
	Now() float64
	Alive(h modelpkg.NodeHandle) bool
	PosOf(h modelpkg.NodeHandle) (modelpkg.Vec2i, bool)
	Offer(from *modelpkg.Node, to modelpkg.NodeHandle, kind modelpkg.ItemKind) bool
}

// Result summarizes one Advance.
type Result struct {
	Delivered int
	// Stalled counts lanes holding a ready item that no receiver took.
	Stalled int
}

// AcceptsFrom reports whether from is a recognized input side for the node's policy.
func AcceptsFrom(env Env, n *modelpkg.Node, from modelpkg.Direction) bool {
	if !from.Valid() {
		return false
	}
	switch n.Policy.Kind {
	case modelpkg.PolicyJunction:
		return true
	case modelpkg.PolicyBridge:
		fwd, _ := BridgeForward(env, n)
		return from != fwd
	default:
		if fwd, ok := n.Forward(); ok {
			return from != fwd
		}
		return true
	}
}

// CanAccept checks capacity and entry side. Team and allow-list checks belong to the caller.
func CanAccept(env Env, n *modelpkg.Node, from modelpkg.Direction) bool {
	if !AcceptsFrom(env, n, from) {
		return false
	}
	if n.Policy.Kind == modelpkg.PolicyJunction {
		return n.Capacity.Allows(n.Lanes[from].Len())
	}
	return n.Capacity.Allows(n.Lane.Len())
}

// Enqueue appends an item behind everything already queued. Callers gate it with CanAccept.
func Enqueue(n *modelpkg.Node, kind modelpkg.ItemKind, from modelpkg.Direction, now float64) {
	it := modelpkg.TransitItem{Kind: kind, From: from, ReadyAt: now + n.TravelTime}
	if n.Policy.Kind == modelpkg.PolicyJunction {
		n.Lanes[from].Queue = append(n.Lanes[from].Queue, it)
	} else {
		n.Lane.Queue = append(n.Lane.Queue, it)
	}
	n.Dirty = true
}

// Advance runs one tick of a queue node: promote the head into the waiting slot, then try to
// deliver it once ready. A failed delivery leaves the item in place for the next tick.
func Advance(env Env, n *modelpkg.Node) Result {
	var res Result
	if n.Policy.Kind == modelpkg.PolicyJunction {
		for d := modelpkg.Direction(0); d < modelpkg.NumDirections; d++ {
			out := d.Opposite()
			stepLane(env, n, &n.Lanes[d], func(it modelpkg.TransitItem) bool {
				return offerDir(env, n, out, it.Kind)
			}, &res)
		}
		return res
	}
	stepLane(env, n, &n.Lane, func(it modelpkg.TransitItem) bool {
		return deliver(env, n, it)
	}, &res)
	return res
}

func stepLane(env Env, n *modelpkg.Node, l *modelpkg.Lane, send func(modelpkg.TransitItem) bool, res *Result) {
	if !l.HasWaiting && len(l.Queue) > 0 {
		l.Waiting = l.Queue[0]
		l.Queue[0] = modelpkg.TransitItem{}
		l.Queue = l.Queue[1:]
		l.HasWaiting = true
	}
	if !l.HasWaiting || env.Now() < l.Waiting.ReadyAt {
		return
	}
	if !send(l.Waiting) {
		res.Stalled++
		return
	}
	l.Waiting = modelpkg.TransitItem{}
	l.HasWaiting = false
	n.Dirty = true
	res.Delivered++
}

// forwardFor is the node's facing when oriented, otherwise straight through from the entry side.
func forwardFor(n *modelpkg.Node, it modelpkg.TransitItem) modelpkg.Direction {
	if fwd, ok := n.Forward(); ok {
		return fwd
	}
	return it.From.Opposite()
}

func deliver(env Env, n *modelpkg.Node, it modelpkg.TransitItem) bool {
	fwd := forwardFor(n, it)
	switch n.Policy.Kind {
	case modelpkg.PolicyRouter:
		return offerDir(env, n, fwd, it.Kind)
	case modelpkg.PolicyBridge:
		if linkAlive(env, n) {
			return env.Offer(n, n.Policy.Link, it.Kind)
		}
		bf, _ := BridgeForward(env, n)
		return offerDir(env, n, bf, it.Kind)
	case modelpkg.PolicyOverflow:
		if n.Policy.Inverted {
			return offerSides(env, n, fwd, it.Kind) || offerDir(env, n, fwd, it.Kind)
		}
		return offerDir(env, n, fwd, it.Kind) || offerSides(env, n, fwd, it.Kind)
	case modelpkg.PolicySorter:
		matches := (n.Policy.Selected == it.Kind) != n.Policy.Inverted
		if matches {
			return offerDir(env, n, fwd, it.Kind)
		}
		return offerSides(env, n, fwd, it.Kind)
	default:
		return offerSides(env, n, fwd, it.Kind) || offerDir(env, n, fwd, it.Kind)
	}
}

// offerSides tries both sides of fwd. NextSide picks the starting side and flips after every
// successful side delivery so neither side starves.
func offerSides(env Env, n *modelpkg.Node, fwd modelpkg.Direction, kind modelpkg.ItemKind) bool {
	a, b := fwd.Left(), fwd.Right()
	if !n.NextSide {
		a, b = b, a
	}
	if offerDir(env, n, a, kind) || offerDir(env, n, b, kind) {
		n.NextSide = !n.NextSide
		return true
	}
	return false
}

func offerDir(env Env, n *modelpkg.Node, d modelpkg.Direction, kind modelpkg.ItemKind) bool {
	h := n.Neighbors[d%modelpkg.NumDirections]
	if h.IsZero() {
		return false
	}
	return env.Offer(n, h, kind)
}
