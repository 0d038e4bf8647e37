package runtime

import (
	"sort"

	modelpkg "beltway.ai/internal/sim/world/kernel/model"
)

type Env interface {
	Now() float64
	Offer(from *modelpkg.Node, to modelpkg.NodeHandle, kind modelpkg.ItemKind) bool
}

// Receivers lists the node's resolved neighbours in direction order.
func Receivers(n *modelpkg.Node) []modelpkg.NodeHandle {
	out := make([]modelpkg.NodeHandle, 0, modelpkg.NumDirections)
	for _, h := range n.Neighbors {
		if h.IsZero() {
			continue
		}
		out = append(out, h)
	}
	return out
}

// PickOutput returns the kind the node currently wants to emit: the first allow-listed kind in
// stock, or the lowest kind present when there is no allow-list.
func PickOutput(inv *modelpkg.Inventory) modelpkg.ItemKind {
	if len(inv.Counts) == 0 {
		return ""
	}
	if len(inv.Allow) > 0 {
		for _, k := range inv.Allow {
			if inv.Counts[k] > 0 {
				return k
			}
		}
		return ""
	}
	keys := make([]string, 0, len(inv.Counts))
	for k, c := range inv.Counts {
		if k == "" || c <= 0 {
			continue
		}
		keys = append(keys, string(k))
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return modelpkg.ItemKind(keys[0])
}

func CanAccept(n *modelpkg.Node) bool {
	return n.Capacity.Allows(n.Inventory.Total())
}

func Add(n *modelpkg.Node, kind modelpkg.ItemKind) {
	if n.Inventory.Counts == nil {
		n.Inventory.Counts = map[modelpkg.ItemKind]int{}
	}
	n.Inventory.Counts[kind]++
	n.Dirty = true
}

// Advance hands at most one unit to the first accepting receiver, scanning round-robin from
// the receiver after the last successful one.
func Advance(env Env, n *modelpkg.Node) bool {
	recv := Receivers(n)
	if len(recv) == 0 {
		return false
	}
	kind := PickOutput(&n.Inventory)
	if kind == "" {
		return false
	}
	start := n.Inventory.LastIndex % len(recv)
	if start < 0 {
		start = 0
	}
	for i := 0; i < len(recv); i++ {
		idx := (start + i) % len(recv)
		if !env.Offer(n, recv[idx], kind) {
			continue
		}
		n.Inventory.Counts[kind]--
		if n.Inventory.Counts[kind] <= 0 {
			delete(n.Inventory.Counts, kind)
		}
		n.Inventory.LastIndex = (idx + 1) % len(recv)
		n.Dirty = true
		return true
	}
	return false
}

// AdvanceSource emits one unit of the configured kind forward every TravelTime seconds.
func AdvanceSource(env Env, n *modelpkg.Node) bool {
	if n.Policy.Emit == "" || env.Now() < n.NextEmitAt {
		return false
	}
	to := n.Neighbors[n.Orientation%modelpkg.NumDirections]
	if to.IsZero() || !env.Offer(n, to, n.Policy.Emit) {
		return false
	}
	n.NextEmitAt = env.Now() + n.TravelTime
	return true
}
