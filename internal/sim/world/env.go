package world

import (
	distrt "beltway.ai/internal/sim/world/feature/distribution/runtime"
	modelpkg "beltway.ai/internal/sim/world/kernel/model"
	"beltway.ai/internal/sim/world/logic/adjacency"
)

// worldEnv is the callback set handed to the feature runtimes and the adjacency resolver.
type worldEnv struct{ w *World }

func (e worldEnv) Now() float64 { return e.w.Now() }

func (e worldEnv) Alive(h NodeHandle) bool { return e.w.get(h) != nil }

func (e worldEnv) PosOf(h NodeHandle) (Vec2i, bool) {
	n := e.w.get(h)
	if n == nil {
		return Vec2i{}, false
	}
	return n.Pos, true
}

func (e worldEnv) NodeAt(p Vec2i) (NodeHandle, bool) { return e.w.NodeAt(p) }

// Facing is the effective forward of h. Bridges report their link-aware forward so neighbours
// never drop a linked bridge from their tables because of its placement orientation.
func (e worldEnv) Facing(h NodeHandle) (Direction, bool) {
	n := e.w.get(h)
	if n == nil {
		return 0, false
	}
	if n.Policy.Kind == modelpkg.PolicyBridge {
		return distrt.BridgeForward(e, n)
	}
	return n.Forward()
}

// Offer is the two-phase hand-off used by every node: accept check on the receiver, then
// enqueue only if it passed. Stale receivers and cross-team pairs are refused.
func (e worldEnv) Offer(from *modelpkg.Node, to NodeHandle, kind ItemKind) bool {
	dst := e.w.get(to)
	if dst == nil || from == nil || dst == from {
		return false
	}
	if dst.Team != from.Team {
		return false
	}
	side := adjacency.EntrySide(dst.Pos, dst.Size, from.Pos, from.Size)
	if !e.w.canAccept(dst, kind, side) {
		return false
	}
	e.w.enqueue(dst, kind, side)
	e.w.transfers++
	return true
}
