package runtime

import (
	"math"

	modelpkg "beltway.ai/internal/sim/world/kernel/model"
)

// SideEntry is where perpendicular merges join the belt.
const SideEntry = 0.5

const eps = 1e-9

// Env is the world-facing callback set used by belts.
type Env interface {
	Offer(from *modelpkg.Node, to modelpkg.NodeHandle, kind modelpkg.ItemKind) bool
}

// ItemSpace is the minimum progress gap between neighbouring items, 1/capacity.
func ItemSpace(n *modelpkg.Node) float64 {
	if n.Capacity <= 0 {
		return 1
	}
	return 1 / float64(n.Capacity)
}

// CanAccept reports whether an item entering through side from fits. Belts take input from the
// back and both sides, never through their output face.
func CanAccept(n *modelpkg.Node, from modelpkg.Direction) bool {
	fwd := n.Orientation
	if !from.Valid() || from == fwd {
		return false
	}
	if !n.Capacity.Allows(len(n.Belt)) {
		return false
	}
	space := ItemSpace(n)
	if from == fwd.Opposite() {
		return len(n.Belt) == 0 || n.Belt[0].Progress >= space-eps
	}
	for _, it := range n.Belt {
		if math.Abs(it.Progress-SideEntry) < space-eps {
			return false
		}
	}
	return true
}

// Enqueue places an item on the belt. Back entries start at progress 0 behind everything;
// side merges join at SideEntry with a lateral offset, slotted in by position.
func Enqueue(n *modelpkg.Node, kind modelpkg.ItemKind, from modelpkg.Direction) {
	it := modelpkg.TransitItem{Kind: kind, From: from}
	fwd := n.Orientation
	if from == fwd.Opposite() {
		n.Belt = append(n.Belt, modelpkg.TransitItem{})
		copy(n.Belt[1:], n.Belt)
		n.Belt[0] = it
		n.Dirty = true
		return
	}
	it.Progress = SideEntry
	if from == fwd.Left() {
		it.Lateral = 1
	} else {
		it.Lateral = -1
	}
	idx := len(n.Belt)
	for i, cur := range n.Belt {
		if cur.Progress > it.Progress {
			idx = i
			break
		}
	}
	n.Belt = append(n.Belt, modelpkg.TransitItem{})
	copy(n.Belt[idx+1:], n.Belt[idx:])
	n.Belt[idx] = it
	n.Dirty = true
}

type Result struct {
	Delivered bool
	Stalled   bool
}

// Advance moves items toward the exit, leading item first, each capped by the item ahead minus
// ItemSpace so nothing overtakes or closes the gap. A leading item at the end is offered to the
// forward neighbour and stays parked at 1 if refused.
func Advance(env Env, n *modelpkg.Node, dt float64) Result {
	var res Result
	if len(n.Belt) == 0 {
		return res
	}
	move := n.Speed * dt
	space := ItemSpace(n)
	last := len(n.Belt) - 1
	for i := last; i >= 0; i-- {
		it := &n.Belt[i]
		limit := 1.0
		if i < last {
			limit = n.Belt[i+1].Progress - space
		}
		next := math.Min(it.Progress+move, limit)
		if next > it.Progress {
			it.Progress = next
			n.Dirty = true
		}
		if it.Lateral != 0 {
			it.Lateral = approachZero(it.Lateral, move*2)
			n.Dirty = true
		}
	}

	lead := &n.Belt[last]
	if lead.Progress < 1-eps {
		return res
	}
	lead.Progress = 1
	to := n.Neighbors[n.Orientation%modelpkg.NumDirections]
	if to.IsZero() || env == nil || !env.Offer(n, to, lead.Kind) {
		res.Stalled = true
		return res
	}
	n.Belt[last] = modelpkg.TransitItem{}
	n.Belt = n.Belt[:last]
	n.Dirty = true
	res.Delivered = true
	return res
}

func approachZero(v, step float64) float64 {
	if v > 0 {
		return math.Max(0, v-step)
	}
	return math.Min(0, v+step)
}

// MinGap returns the smallest progress gap between adjacent items, or 1 for fewer than two.
func MinGap(n *modelpkg.Node) float64 {
	gap := 1.0
	for i := 1; i < len(n.Belt); i++ {
		if d := n.Belt[i].Progress - n.Belt[i-1].Progress; d < gap {
			gap = d
		}
	}
	return gap
}
